// Package settings implements the settings service: typed key/value writes
// with a complete history, atomic batches, rollback and snapshot views.
package settings

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/quillblog/quill/internal/codec"
	"github.com/quillblog/quill/internal/db/controller/history"
	"github.com/quillblog/quill/internal/db/models"
	"github.com/quillblog/quill/internal/logger"
)

const (
	// DefaultHistoryLimit is the page size used when none is requested.
	DefaultHistoryLimit = 20
	// MaxHistoryLimit caps requested page sizes.
	MaxHistoryLimit = 100
)

// Input is one write request.
type Input struct {
	Key string `json:"key" validate:"required,settingkey"`
	// Value is any JSON serializable value, a codec.Value or a json.RawMessage.
	Value any `json:"value"`
	// Group may be empty: the current group of the key is kept, new keys
	// take the first key segment.
	Group string `json:"group" validate:"omitempty,settinggroup"`
}

// Meta describes who changed something and why.
type Meta struct {
	Actor       models.Actor
	Description string
}

// ChangeHook is called after a write committed, with the history entries the
// write appended.
type ChangeHook func(ctx context.Context, entries []models.SettingHistory)

// Service is the settings service.
type Service struct {
	db           *gorm.DB
	validator    *validator.Validate
	now          func() time.Time
	defaultLimit int
	maxLimit     int
	log          zerolog.Logger

	hooksMu sync.RWMutex
	hooks   []ChangeHook
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithHistoryLimits sets the default and maximum history page size.
func WithHistoryLimits(defaultLimit, maxLimit int) Option {
	return func(s *Service) {
		if defaultLimit > 0 {
			s.defaultLimit = defaultLimit
		}

		if maxLimit >= s.defaultLimit {
			s.maxLimit = maxLimit
		}
	}
}

// WithChangeHook registers hook at construction time.
func WithChangeHook(hook ChangeHook) Option {
	return func(s *Service) {
		s.hooks = append(s.hooks, hook)
	}
}

// New returns a Service working on db.
func New(db *gorm.DB, opts ...Option) *Service {
	s := &Service{
		db:           db,
		validator:    newValidator(),
		now:          time.Now,
		defaultLimit: DefaultHistoryLimit,
		maxLimit:     MaxHistoryLimit,
		log:          logger.Component("settings"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// OnChange registers a hook called after every committed write.
func (s *Service) OnChange(hook ChangeHook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()

	s.hooks = append(s.hooks, hook)
}

func (s *Service) notify(ctx context.Context, entries []models.SettingHistory) {
	for _, e := range entries {
		changesTotal.WithLabelValues(string(e.Action)).Inc()
	}

	s.hooksMu.RLock()
	hooks := append([]ChangeHook(nil), s.hooks...)
	s.hooksMu.RUnlock()

	for _, hook := range hooks {
		hook(ctx, entries)
	}
}

// transact runs fn in one transaction. Entries passed to record are appended
// to the history inside the transaction and handed to the change hooks after
// the commit.
func (s *Service) transact(ctx context.Context, fn func(tx *gorm.DB, record func(models.SettingHistory) error) error) error {
	var recorded []models.SettingHistory

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recorded = recorded[:0]

		return fn(tx, func(entry models.SettingHistory) error {
			if err := history.Record(tx, &entry, s.now()); err != nil {
				return err
			}

			recorded = append(recorded, entry)

			return nil
		})
	})
	if err != nil {
		return err
	}

	s.notify(ctx, recorded)

	return nil
}

// inferGroup picks the group of a key written without one.
func inferGroup(current *models.Setting, key string) string {
	if current != nil && current.Group != "" {
		return current.Group
	}

	first, _, _ := strings.Cut(key, codec.Separator)

	return strings.ToLower(first)
}

// clampLimit applies the configured history page size bounds.
func (s *Service) clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return s.defaultLimit
	case limit > s.maxLimit:
		return s.maxLimit
	default:
		return limit
	}
}
