package settings

import (
	"context"
	"encoding/json"

	"github.com/quillblog/quill/internal/apperr"
	"github.com/quillblog/quill/internal/codec"
)

// GroupInputs flattens the fields of v into writes of group. Every key
// starts with prefix, e.g. "general." for {"siteName": ...}.
func GroupInputs(v any, group, prefix string) ([]Input, error) {
	entries, err := codec.Flatten(v, group, prefix)
	if err != nil {
		return nil, err
	}

	inputs := make([]Input, len(entries))
	for i, e := range entries {
		inputs[i] = Input{Key: e.Key, Value: e.Value, Group: e.Group}
	}

	return inputs, nil
}

// SaveGroup stores the fields of v as the settings "<group>.<field>" of
// group in one batch.
func (s *Service) SaveGroup(ctx context.Context, group string, v any, meta Meta) (*BatchResult, error) {
	inputs, err := GroupInputs(v, group, group+codec.Separator)
	if err != nil {
		return nil, err
	}

	return s.Batch(ctx, inputs, meta)
}

// LoadGroup decodes the settings of group into out, a pointer to a struct
// or map with json tags matching the keys below the group.
func (s *Service) LoadGroup(ctx context.Context, group string, out any) error {
	snapshot, err := s.Snapshot(ctx, group)
	if err != nil {
		return err
	}

	data, ok := snapshot[group]
	if !ok {
		return apperr.NotFound("group %s has no settings", group)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return apperr.Storage(err)
	}

	if err = json.Unmarshal(raw, out); err != nil {
		return apperr.Validation("settings of group %s do not fit %T: %v", group, out, err)
	}

	return nil
}
