package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/quillblog/quill/internal/apperr"
	"github.com/quillblog/quill/internal/codec"
)

// Action is the kind of change a history entry records.
type Action string

const (
	// ActionCreate records the first write of a key (or its revival after a delete).
	ActionCreate Action = "create"
	// ActionUpdate records an overwrite of an existing key.
	ActionUpdate Action = "update"
	// ActionDelete records a tombstoned key.
	ActionDelete Action = "delete"
	// ActionRollback records a restore to an earlier history entry.
	ActionRollback Action = "rollback"
)

// ErrHistoryImmutable is returned by the model hooks when something tries to
// change or remove a written history entry.
var ErrHistoryImmutable = fmt.Errorf("setting history entries are write-once: %w", apperr.ErrConflict)

// SettingHistory is one append-only audit record of a setting change.
type SettingHistory struct {
	// ID is a ULID, so ids sort in creation order.
	ID string `gorm:"primaryKey;size:26"`
	// Key is the setting key the entry concerns.
	Key string `gorm:"column:setting_key;size:191;not null;index:idx_history_key_created,priority:1"`
	// Group is the group the key had when the change happened.
	Group string `gorm:"column:setting_group;size:64"`
	// OldValue is nil when the change created the key.
	OldValue *codec.Value `gorm:"serializer:json;type:text"`
	// NewValue is nil when the change deleted the key.
	NewValue *codec.Value `gorm:"serializer:json;type:text"`
	// Action is the kind of change.
	Action Action `gorm:"size:16;not null"`
	// Description is a human readable summary.
	Description string `gorm:"size:512"`
	// RestoredFrom references the entry a rollback restored.
	RestoredFrom *string `gorm:"size:26"`
	// ChangedBy is the actor; zero for system changes.
	ChangedBy Actor `gorm:"embedded;embeddedPrefix:changed_by_"`
	// CreatedAt orders entries; never decreasing for one key.
	CreatedAt time.Time `gorm:"not null;index;index:idx_history_key_created,priority:2"`
}

// TableName returns the history table name.
func (SettingHistory) TableName() string {
	return "setting_histories"
}

// BeforeUpdate rejects updates of written entries.
func (h *SettingHistory) BeforeUpdate(_ *gorm.DB) error {
	return ErrHistoryImmutable
}

// BeforeDelete rejects deletes of written entries.
func (h *SettingHistory) BeforeDelete(_ *gorm.DB) error {
	return ErrHistoryImmutable
}
