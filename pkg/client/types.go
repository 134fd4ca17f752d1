package client

import (
	"encoding/json"
	"time"
)

// Setting is one stored setting.
type Setting struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	Kind      string    `json:"kind,omitempty"`
	Group     string    `json:"group"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Entry is one write of a batch.
type Entry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
	Group string `json:"group,omitempty"`
}

// Actor identifies who makes a change.
type Actor struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// HistoryEntry is one recorded change.
type HistoryEntry struct {
	ID           string    `json:"id"`
	Key          string    `json:"key"`
	Group        string    `json:"group,omitempty"`
	OldValue     any       `json:"oldValue"`
	NewValue     any       `json:"newValue"`
	Action       string    `json:"action"`
	Description  string    `json:"description,omitempty"`
	RestoredFrom *string   `json:"restoredFrom,omitempty"`
	ChangedBy    *Actor    `json:"changedBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// HistoryPage is one page of history, newest first.
type HistoryPage struct {
	History    []HistoryEntry `json:"history"`
	Pagination Pagination     `json:"pagination"`
}

// BatchResult summarizes an applied batch.
type BatchResult struct {
	Success bool     `json:"success"`
	Applied int      `json:"applied"`
	Groups  []string `json:"groups"`
}

// Document is a settings export. It is passed through unchanged.
type Document = json.RawMessage

type writeRequest struct {
	Value       any    `json:"value"`
	Group       string `json:"group,omitempty"`
	Description string `json:"description,omitempty"`
}
