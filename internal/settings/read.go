package settings

import (
	"context"
	"time"

	"github.com/quillblog/quill/internal/codec"
	"github.com/quillblog/quill/internal/db/controller/history"
	"github.com/quillblog/quill/internal/db/controller/setting"
	"github.com/quillblog/quill/internal/db/models"
)

// View is the API form of a setting.
type View struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	Kind      string    `json:"kind,omitempty"`
	Group     string    `json:"group"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ViewOf converts a stored setting.
func ViewOf(s *models.Setting) View {
	return View{
		Key:       s.Key,
		Value:     s.TypedValue().Decode(),
		Kind:      string(s.Kind),
		Group:     s.Group,
		UpdatedAt: s.UpdatedAt,
	}
}

// HistoryEntry is the API form of a history entry.
type HistoryEntry struct {
	ID           string        `json:"id"`
	Key          string        `json:"key"`
	Group        string        `json:"group,omitempty"`
	OldValue     any           `json:"oldValue"`
	NewValue     any           `json:"newValue"`
	Action       models.Action `json:"action"`
	Description  string        `json:"description,omitempty"`
	RestoredFrom *string       `json:"restoredFrom,omitempty"`
	ChangedBy    *models.Actor `json:"changedBy,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// HistoryEntryOf converts a stored history entry.
func HistoryEntryOf(h *models.SettingHistory) HistoryEntry {
	return HistoryEntry{
		ID:           h.ID,
		Key:          h.Key,
		Group:        h.Group,
		OldValue:     decodePtr(h.OldValue),
		NewValue:     decodePtr(h.NewValue),
		Action:       h.Action,
		Description:  h.Description,
		RestoredFrom: h.RestoredFrom,
		ChangedBy:    h.ChangedBy.Ptr(),
		CreatedAt:    h.CreatedAt,
	}
}

func decodePtr(v *codec.Value) any {
	if v == nil {
		return nil
	}

	return v.Decode()
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

// Get returns one live setting.
func (s *Service) Get(ctx context.Context, key string) (*models.Setting, error) {
	return setting.Get(s.db.WithContext(ctx), key)
}

// List returns the live settings of group, or all of them for an empty group.
func (s *Service) List(ctx context.Context, group string) ([]models.Setting, error) {
	if group == "" {
		return setting.GetAll(s.db.WithContext(ctx))
	}

	return setting.GetByGroup(s.db.WithContext(ctx), group)
}

// Snapshot returns the settings of group (all groups when empty) nested per
// group: {"general": {"siteName": "My Blog"}}.
func (s *Service) Snapshot(ctx context.Context, group string) (map[string]any, error) {
	list, err := s.List(ctx, group)
	if err != nil {
		return nil, err
	}

	return codec.GroupView(models.Entries(list)), nil
}

// Flat returns key to decoded value of group (all groups when empty).
func (s *Service) Flat(ctx context.Context, group string) (map[string]any, error) {
	list, err := s.List(ctx, group)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(list))
	for i := range list {
		out[list[i].Key] = list[i].TypedValue().Decode()
	}

	return out, nil
}

// History returns one page of the history of key, or of all keys when key is
// empty. Pages start at 1.
func (s *Service) History(ctx context.Context, key string, page, limit int) (*HistoryPage, error) {
	var (
		entries []models.SettingHistory
		total   int64
		err     error
		db      = s.db.WithContext(ctx)
	)

	if page < 1 {
		page = 1
	}

	limit = s.clampLimit(limit)

	if key == "" {
		entries, total, err = history.ListAll(db, page, limit)
	} else {
		entries, total, err = history.ListForKey(db, key, page, limit)
	}

	if err != nil {
		return nil, err
	}

	out := &HistoryPage{
		History: make([]HistoryEntry, len(entries)),
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + int64(limit) - 1) / int64(limit),
		},
	}

	for i := range entries {
		out.History[i] = HistoryEntryOf(&entries[i])
	}

	return out, nil
}

// Export returns every live setting as an export document.
func (s *Service) Export(ctx context.Context) (codec.Document, error) {
	list, err := s.List(ctx, "")
	if err != nil {
		return codec.Document{}, err
	}

	return codec.NewDocument(models.Entries(list), s.now()), nil
}

// Empty reports whether no live setting exists.
func (s *Service) Empty(ctx context.Context) (bool, error) {
	n, err := setting.Count(s.db.WithContext(ctx))

	return n == 0, err
}
