// Package history provides the append-only setting history log.
package history

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/quillblog/quill/internal/apperr"
	"github.com/quillblog/quill/internal/db/models"
)

const (
	keyQueryPattern = "setting_key = ?"
	newestFirst     = "created_at DESC, id DESC"

	// ids are generated in write order, created_at of one key may run ahead
	// of the clock
	writeOrderDesc = "id DESC"

	// Resolution is the timestamp granularity of history entries.
	// It matches ULID timestamps and MySQL's default datetime precision.
	Resolution = time.Millisecond
)

var (
	// ErrHistoryNotFound is returned when a history entry does not exist.
	ErrHistoryNotFound = fmt.Errorf("history entry %w", apperr.ErrNotFound)
	// ErrHistoryKeyEmpty is returned when recording an entry without key.
	ErrHistoryKeyEmpty = fmt.Errorf("history key cannot be empty: %w", apperr.ErrValidation)
	// ErrHistoryActionInvalid is returned for unknown actions.
	ErrHistoryActionInvalid = fmt.Errorf("history action is invalid: %w", apperr.ErrValidation)
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")

	ids = newIDGenerator() //nolint:gochecknoglobals
)

// Record appends entry to the log. ID and CreatedAt are assigned here.
// The ID carries now and increases with every call. CreatedAt is now, pushed
// forward if needed so that entries of one key strictly increase in time.
func Record(db *gorm.DB, entry *models.SettingHistory, now time.Time) error {
	if db == nil {
		return ErrDBNil
	}

	if entry.Key == "" {
		return ErrHistoryKeyEmpty
	}

	switch entry.Action {
	case models.ActionCreate, models.ActionUpdate, models.ActionDelete, models.ActionRollback:
	default:
		return fmt.Errorf("%q: %w", entry.Action, ErrHistoryActionInvalid)
	}

	createdAt := now.UTC().Truncate(Resolution)

	last, err := Latest(db, entry.Key)

	switch {
	case errors.Is(err, ErrHistoryNotFound):
	case err != nil:
		return err
	case !createdAt.After(last.CreatedAt):
		createdAt = last.CreatedAt.UTC().Add(Resolution)
	}

	entry.CreatedAt = createdAt
	entry.ID = ids.Make(now)

	if err = db.Create(entry).Error; err != nil {
		return apperr.Storage(err)
	}

	return nil
}

// Get returns one entry by id.
func Get(db *gorm.DB, id string) (*models.SettingHistory, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if !ValidID(id) {
		return nil, fmt.Errorf("%q: %w", id, ErrHistoryNotFound)
	}

	var entry models.SettingHistory

	result := db.Where("id = ?", id).First(&entry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%q: %w", id, ErrHistoryNotFound)
		}

		return nil, apperr.Storage(result.Error)
	}

	return &entry, nil
}

// Latest returns the newest entry of key.
func Latest(db *gorm.DB, key string) (*models.SettingHistory, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var entry models.SettingHistory

	result := db.Where(keyQueryPattern, key).Order(newestFirst).Limit(1).Find(&entry)
	if result.Error != nil {
		return nil, apperr.Storage(result.Error)
	}

	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%q: %w", key, ErrHistoryNotFound)
	}

	return &entry, nil
}

// ListForKey returns one page of the entries of key, newest first, and the
// total number of entries of key.
func ListForKey(db *gorm.DB, key string, page, limit int) ([]models.SettingHistory, int64, error) {
	if db == nil {
		return nil, 0, ErrDBNil
	}

	return list(db.Where(keyQueryPattern, key), newestFirst, page, limit)
}

// ListAll returns one page of all entries, last written first, and the
// total count.
func ListAll(db *gorm.DB, page, limit int) ([]models.SettingHistory, int64, error) {
	if db == nil {
		return nil, 0, ErrDBNil
	}

	return list(db, writeOrderDesc, page, limit)
}

// Offset converts a 1-based page into a row offset.
func Offset(page, limit int) int {
	if page < 1 {
		page = 1
	}

	return (page - 1) * limit
}

func list(scope *gorm.DB, order string, page, limit int) ([]models.SettingHistory, int64, error) {
	var (
		total   int64
		entries []models.SettingHistory
	)

	// the scope is used for two statements
	scope = scope.Session(&gorm.Session{})

	if err := scope.Model(&models.SettingHistory{}).Count(&total).Error; err != nil {
		return nil, 0, apperr.Storage(err)
	}

	if limit <= 0 {
		return []models.SettingHistory{}, total, nil
	}

	err := scope.Order(order).Offset(Offset(page, limit)).Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, 0, apperr.Storage(err)
	}

	return entries, total, nil
}
