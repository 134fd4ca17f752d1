package settings

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"gorm.io/gorm"

	"github.com/quillblog/quill/internal/apperr"
	"github.com/quillblog/quill/internal/codec"
	"github.com/quillblog/quill/internal/db/controller/history"
	"github.com/quillblog/quill/internal/db/controller/setting"
	"github.com/quillblog/quill/internal/db/models"
)

// BatchResult summarizes an applied batch.
type BatchResult struct {
	Applied  int              `json:"applied"`
	Groups   []string         `json:"groups"`
	Settings []models.Setting `json:"-"`
}

var (
	// ErrRollbackToDelete is returned when rolling back to an entry that deleted its key.
	ErrRollbackToDelete = fmt.Errorf("cannot roll back to a deletion, delete the key instead: %w", apperr.ErrValidation)
	// ErrGroupNotInferable is returned when a key written without group does
	// not start with a valid group name.
	ErrGroupNotInferable = fmt.Errorf("cannot infer a group from the key, pass one: %w", apperr.ErrValidation)
	// ErrSnapshotPathTaken is returned when a key would share its snapshot
	// path with another key of its group, as "appearance.theme" and "theme"
	// in group "appearance" do.
	ErrSnapshotPathTaken = fmt.Errorf("another setting of the group has the same snapshot path: %w", apperr.ErrValidation)
)

// pending is a validated write.
type pending struct {
	key   string
	value codec.Value
	group string
}

// prepare validates in and serializes its value.
func (s *Service) prepare(in Input) (pending, error) {
	if err := s.validator.Struct(in); err != nil {
		return pending{}, apperr.Validation("%s", describe(err))
	}

	v, err := codec.ValueOf(in.Value)
	if err != nil {
		return pending{}, err
	}

	return pending{key: in.Key, value: v, group: in.Group}, nil
}

// resolveGroup returns the group a write of key lands in and checks that the
// key keeps its own path in the grouped snapshot.
func resolveGroup(tx *gorm.DB, key, group string) (string, error) {
	if group == "" {
		current, err := setting.Get(tx, key)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return "", err
		}

		group = inferGroup(current, key)
		if !validGroup(group) {
			return "", fmt.Errorf("%q: %w", key, ErrGroupNotInferable)
		}
	}

	if err := checkSnapshotPath(tx, key, group); err != nil {
		return "", err
	}

	return group, nil
}

// checkSnapshotPath rejects key when the grouped snapshot would show it and
// another live key of group at the same path.
func checkSnapshotPath(tx *gorm.DB, key, group string) error {
	prefix := group + codec.Separator

	twin, ok := strings.CutPrefix(key, prefix)
	if !ok {
		twin = prefix + key
	}

	if !codec.ValidKey(twin) {
		return nil
	}

	other, err := setting.Get(tx, twin)

	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.Group != group:
		return nil
	}

	return fmt.Errorf("%q clashes with %q in group %q: %w", key, twin, group, ErrSnapshotPathTaken)
}

// write upserts p and records its history entry.
func write(tx *gorm.DB, p pending, meta Meta, record func(models.SettingHistory) error) (*models.Setting, error) {
	group, err := resolveGroup(tx, p.key, p.group)
	if err != nil {
		return nil, err
	}

	change, err := setting.Upsert(tx, p.key, p.value, group)
	if err != nil {
		return nil, err
	}

	err = record(models.SettingHistory{
		Key:         p.key,
		Group:       group,
		OldValue:    change.Old,
		NewValue:    change.New,
		Action:      change.Action,
		Description: describeChange(meta.Description, change.Action, p.key),
		ChangedBy:   meta.Actor,
	})
	if err != nil {
		return nil, err
	}

	return &change.Setting, nil
}

func describeChange(description string, action models.Action, key string) string {
	if description != "" {
		return description
	}

	switch action {
	case models.ActionCreate:
		return "Created " + key
	case models.ActionDelete:
		return "Deleted " + key
	default:
		return "Updated " + key
	}
}

// Upsert creates or overwrites one setting and records the change.
func (s *Service) Upsert(ctx context.Context, in Input, meta Meta) (*models.Setting, error) {
	p, err := s.prepare(in)
	if err != nil {
		rejectedTotal.WithLabelValues(kindLabel(err)).Inc()

		return nil, err
	}

	var out *models.Setting

	err = s.transact(ctx, func(tx *gorm.DB, record func(models.SettingHistory) error) error {
		out, err = write(tx, p, meta, record)

		return err
	})
	if err != nil {
		rejectedTotal.WithLabelValues(kindLabel(err)).Inc()

		return nil, err
	}

	s.log.Info().Str("key", out.Key).Str("actor", meta.Actor.Name).Msg("setting written")

	return out, nil
}

// Delete tombstones a setting and records the change.
// Deleting a missing or already deleted key is a NotFound error.
func (s *Service) Delete(ctx context.Context, key string, meta Meta) error {
	err := s.transact(ctx, func(tx *gorm.DB, record func(models.SettingHistory) error) error {
		change, err := setting.Delete(tx, key)
		if err != nil {
			return err
		}

		return record(models.SettingHistory{
			Key:         key,
			Group:       change.Setting.Group,
			OldValue:    change.Old,
			Action:      models.ActionDelete,
			Description: describeChange(meta.Description, models.ActionDelete, key),
			ChangedBy:   meta.Actor,
		})
	})
	if err != nil {
		rejectedTotal.WithLabelValues(kindLabel(err)).Inc()

		return err
	}

	s.log.Info().Str("key", key).Str("actor", meta.Actor.Name).Msg("setting deleted")

	return nil
}

// Batch applies all inputs in one transaction, in slice order. Either every
// input is stored or none is; a *BatchError names the offending keys.
// All inputs are validated before anything is written.
func (s *Service) Batch(ctx context.Context, inputs []Input, meta Meta) (*BatchResult, error) {
	if len(inputs) == 0 {
		return nil, ErrBatchEmpty
	}

	batchSize.Observe(float64(len(inputs)))

	var (
		prepared = make([]pending, len(inputs))
		rejected = newBatchError()
	)

	for i, in := range inputs {
		p, err := s.prepare(in)
		if err != nil {
			rejected.add(i, in.Key, err)

			continue
		}

		prepared[i] = p
	}

	if err := rejected.orNil(); err != nil {
		rejectedTotal.WithLabelValues(kindLabel(err)).Inc()

		return nil, err
	}

	if meta.Description == "" {
		meta.Description = "Updated via batch update"
	}

	result := &BatchResult{Settings: make([]models.Setting, 0, len(prepared))}
	groups := mapset.NewThreadUnsafeSet[string]()

	err := s.transact(ctx, func(tx *gorm.DB, record func(models.SettingHistory) error) error {
		result.Settings = result.Settings[:0]
		groups.Clear()

		for i, p := range prepared {
			out, err := write(tx, p, meta, record)
			if err != nil {
				failed := newBatchError()
				failed.add(i, p.key, err)

				return failed.orNil()
			}

			result.Settings = append(result.Settings, *out)
			groups.Add(out.Group)
		}

		return nil
	})
	if err != nil {
		rejectedTotal.WithLabelValues(kindLabel(err)).Inc()

		return nil, err
	}

	result.Applied = len(result.Settings)
	result.Groups = sortedGroups(groups)

	s.log.Info().Int("applied", result.Applied).Strs("groups", result.Groups).
		Str("actor", meta.Actor.Name).Msg("batch applied")

	return result, nil
}

// Rollback restores the key of history entry id to the value that entry
// stored, and records the restore as a rollback entry.
func (s *Service) Rollback(ctx context.Context, id string, meta Meta) (*models.Setting, error) {
	var out *models.Setting

	err := s.transact(ctx, func(tx *gorm.DB, record func(models.SettingHistory) error) error {
		entry, err := history.Get(tx, id)
		if err != nil {
			return err
		}

		if entry.Action == models.ActionDelete || entry.NewValue == nil {
			return fmt.Errorf("entry %s: %w", id, ErrRollbackToDelete)
		}

		group, err := resolveGroup(tx, entry.Key, entry.Group)
		if err != nil {
			return err
		}

		change, err := setting.Upsert(tx, entry.Key, *entry.NewValue, group)
		if err != nil {
			return err
		}

		description := "Rolled back to entry " + id
		if meta.Description != "" {
			description += ": " + meta.Description
		}

		restored := entry.ID

		err = record(models.SettingHistory{
			Key:          entry.Key,
			Group:        group,
			OldValue:     change.Old,
			NewValue:     change.New,
			Action:       models.ActionRollback,
			Description:  description,
			RestoredFrom: &restored,
			ChangedBy:    meta.Actor,
		})
		if err != nil {
			return err
		}

		out = &change.Setting

		return nil
	})
	if err != nil {
		rejectedTotal.WithLabelValues(kindLabel(err)).Inc()

		return nil, err
	}

	s.log.Info().Str("key", out.Key).Str("entry", id).Str("actor", meta.Actor.Name).Msg("setting rolled back")

	return out, nil
}

// Import applies an export document through the batch path.
func (s *Service) Import(ctx context.Context, doc codec.Document, meta Meta) (*BatchResult, error) {
	entries, err := doc.Entries()
	if err != nil {
		return nil, err
	}

	inputs := make([]Input, len(entries))
	for i, e := range entries {
		inputs[i] = Input{Key: e.Key, Value: e.Value, Group: e.Group}
	}

	if meta.Description == "" {
		meta.Description = "Updated via settings import"
	}

	return s.Batch(ctx, inputs, meta)
}

func kindLabel(err error) string {
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return "not_found"
	case apperr.ErrValidation:
		return "validation"
	case apperr.ErrConflict:
		return "conflict"
	default:
		return "storage"
	}
}

func sortedGroups(groups mapset.Set[string]) []string {
	out := groups.ToSlice()
	slices.Sort(out)

	return out
}
