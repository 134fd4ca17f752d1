// Package models contains database model definitions.
package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/quillblog/quill/internal/codec"
)

// Setting represents a configuration setting stored in the database.
// Deleting a setting tombstones the row through DeletedAt, so the key stays
// reserved and its history keeps pointing at an existing row.
type Setting struct {
	// ID is the unique identifier for the row.
	ID uint64 `gorm:"primaryKey"`
	// Key is the dotted path of the setting, e.g. "appearance.theme".
	Key string `gorm:"column:setting_key;size:191;not null;uniqueIndex"`
	// Value is the raw stored text, decoded according to Kind.
	Value string `gorm:"column:setting_value;type:text"`
	// Kind tags the type of Value. Empty for legacy rows.
	Kind codec.Kind `gorm:"column:value_kind;size:16"`
	// Group partitions settings for bulk retrieval.
	Group string `gorm:"column:setting_group;size:64;not null;index"`
	// CreatedAt is managed by GORM.
	CreatedAt time.Time
	// UpdatedAt is managed by GORM.
	UpdatedAt time.Time
	// DeletedAt is the tombstone of a deleted setting.
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TypedValue returns the setting value with its kind.
func (s *Setting) TypedValue() codec.Value {
	return codec.Value{Kind: s.Kind, Raw: s.Value}
}

// SetValue stores v on the setting.
func (s *Setting) SetValue(v codec.Value) {
	s.Value = v.Raw
	s.Kind = v.Kind
}

// Entry returns the setting as a flat codec entry.
func (s *Setting) Entry() codec.Entry {
	return codec.Entry{Key: s.Key, Value: s.TypedValue(), Group: s.Group}
}

// Entries converts settings into flat codec entries.
func Entries(settings []Setting) []codec.Entry {
	out := make([]codec.Entry, 0, len(settings))
	for i := range settings {
		out = append(out, settings[i].Entry())
	}

	return out
}
