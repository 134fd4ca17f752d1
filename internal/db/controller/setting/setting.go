// Package setting provides the key-value store operations for settings.
// Every function takes a *gorm.DB so callers can pass a transaction.
package setting

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quillblog/quill/internal/apperr"
	"github.com/quillblog/quill/internal/codec"
	"github.com/quillblog/quill/internal/db/models"
)

const (
	keyQueryPattern   = "setting_key = ?"
	groupQueryPattern = "setting_group = ?"
	orderByKey        = "setting_key"
)

var (
	// ErrSettingNotFound is returned when a setting is not found.
	ErrSettingNotFound = fmt.Errorf("setting %w", apperr.ErrNotFound)
	// ErrSettingKeyInvalid is returned for keys that are not a dotted path.
	ErrSettingKeyInvalid = fmt.Errorf("setting key is not a dotted path: %w", apperr.ErrValidation)
	// ErrSettingGroupEmpty is returned when attempting to write a setting without a group.
	ErrSettingGroupEmpty = fmt.Errorf("setting group cannot be empty: %w", apperr.ErrValidation)
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Change describes what an upsert or delete did to a key.
type Change struct {
	Setting models.Setting
	// Old is nil when the key did not exist or was tombstoned.
	Old *codec.Value
	// New is nil for deletes.
	New    *codec.Value
	Action models.Action
}

// Get retrieves a live setting by its key.
func Get(db *gorm.DB, key string) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if !codec.ValidKey(key) {
		return nil, fmt.Errorf("%q: %w", key, ErrSettingKeyInvalid)
	}

	var setting models.Setting

	result := db.Where(keyQueryPattern, key).First(&setting)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%q: %w", key, ErrSettingNotFound)
		}

		return nil, apperr.Storage(result.Error)
	}

	return &setting, nil
}

// GetAll retrieves all live settings ordered by key.
func GetAll(db *gorm.DB) ([]models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var settings []models.Setting

	if result := db.Order(orderByKey).Find(&settings); result.Error != nil {
		return nil, apperr.Storage(result.Error)
	}

	return settings, nil
}

// GetByGroup retrieves the live settings of one group ordered by key.
func GetByGroup(db *gorm.DB, group string) ([]models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var settings []models.Setting

	if result := db.Where(groupQueryPattern, group).Order(orderByKey).Find(&settings); result.Error != nil {
		return nil, apperr.Storage(result.Error)
	}

	return settings, nil
}

// Count returns the number of live settings.
func Count(db *gorm.DB) (int64, error) {
	if db == nil {
		return 0, ErrDBNil
	}

	var n int64

	if result := db.Model(&models.Setting{}).Count(&n); result.Error != nil {
		return 0, apperr.Storage(result.Error)
	}

	return n, nil
}

// Upsert creates the key or overwrites its value in place.
// A tombstoned key is revived and reported as a create.
// The row is locked for the rest of the transaction on databases that support it.
// A first write racing another first write of the same key has no row to
// lock; the insert then yields to the committed row and overwrites it, so the
// last writer wins as for existing keys.
func Upsert(db *gorm.DB, key string, value codec.Value, group string) (*Change, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if !codec.ValidKey(key) {
		return nil, fmt.Errorf("%q: %w", key, ErrSettingKeyInvalid)
	}

	if group == "" {
		return nil, fmt.Errorf("%q: %w", key, ErrSettingGroupEmpty)
	}

	newValue := value

	existing, found, err := lockByKey(db, key)
	if err != nil {
		return nil, err
	}

	if !found {
		s := models.Setting{Key: key, Group: group}
		s.SetValue(value)

		result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&s)
		if result.Error != nil {
			return nil, apperr.Storage(result.Error)
		}

		if result.RowsAffected == 1 {
			return &Change{Setting: s, New: &newValue, Action: models.ActionCreate}, nil
		}

		// created concurrently
		if existing, found, err = lockByKey(db, key); err != nil {
			return nil, err
		}

		if !found {
			return nil, apperr.Storage(fmt.Errorf("setting %q neither inserted nor found", key))
		}
	}

	change := &Change{New: &newValue, Action: models.ActionUpdate}

	if existing.DeletedAt.Valid {
		change.Action = models.ActionCreate
	} else {
		old := existing.TypedValue()
		change.Old = &old
	}

	existing.SetValue(value)
	existing.Group = group
	existing.DeletedAt = gorm.DeletedAt{}

	if err = db.Unscoped().Save(&existing).Error; err != nil {
		return nil, apperr.Storage(err)
	}

	change.Setting = existing

	return change, nil
}

// lockByKey loads the row of key, tombstoned or not, and locks it.
func lockByKey(db *gorm.DB, key string) (models.Setting, bool, error) {
	var existing models.Setting

	result := lockForUpdate(db).Unscoped().Where(keyQueryPattern, key).Limit(1).Find(&existing)
	if result.Error != nil {
		return models.Setting{}, false, apperr.Storage(result.Error)
	}

	return existing, result.RowsAffected > 0, nil
}

// Delete tombstones a live setting.
func Delete(db *gorm.DB, key string) (*Change, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if !codec.ValidKey(key) {
		return nil, fmt.Errorf("%q: %w", key, ErrSettingKeyInvalid)
	}

	var existing models.Setting

	result := lockForUpdate(db).Where(keyQueryPattern, key).Limit(1).Find(&existing)
	if result.Error != nil {
		return nil, apperr.Storage(result.Error)
	}

	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%q: %w", key, ErrSettingNotFound)
	}

	if err := db.Delete(&existing).Error; err != nil {
		return nil, apperr.Storage(err)
	}

	old := existing.TypedValue()

	return &Change{Setting: existing, Old: &old, Action: models.ActionDelete}, nil
}

// lockForUpdate adds SELECT ... FOR UPDATE where the dialect has it.
func lockForUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}

	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
