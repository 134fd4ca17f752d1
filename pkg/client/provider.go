package client

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/quillblog/quill/internal/codec"
	"github.com/quillblog/quill/pkg/cache"
)

// Provider serves settings from a snapshot cache and invalidates it after
// every write it makes.
type Provider struct {
	client *Client
	cache  *cache.Cache
}

// NewProvider caches the settings of c in backend.
func NewProvider(c *Client, backend cache.Backend, opts ...cache.Option) *Provider {
	opts = append([]cache.Option{cache.WithName("client")}, opts...)

	return &Provider{
		client: c,
		cache:  cache.New(backend, c.All, opts...),
	}
}

// Cache returns the snapshot cache.
func (p *Provider) Cache() *cache.Cache {
	return p.cache
}

// Settings returns all settings nested per group.
func (p *Provider) Settings(ctx context.Context) (map[string]any, error) {
	return p.cache.Get(ctx)
}

// GetSetting returns the value of key or def when the key does not exist or
// the settings cannot be loaded.
func (p *Provider) GetSetting(ctx context.Context, key string, def any) any {
	data, err := p.cache.Get(ctx)
	if err != nil {
		return def
	}

	if v, ok := lookup(data, key); ok {
		return v
	}

	return def
}

// DecodeGroup decodes the cached settings of group into out, a pointer to a
// struct or map with json tags matching the keys below the group.
func (p *Provider) DecodeGroup(ctx context.Context, group string, out any) error {
	data, err := p.cache.Get(ctx)
	if err != nil {
		return err
	}

	nested, ok := data[group]
	if !ok {
		return fmt.Errorf("group %s: %w", group, ErrNotFound)
	}

	raw, err := json.Marshal(nested)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, out)
}

// lookup finds key in a per group snapshot. Keys starting with their group
// name live below the group without the prefix, all others below the group
// with their full path.
func lookup(data map[string]any, key string) (any, bool) {
	if v, ok := codec.Lookup(data, key); ok {
		return v, true
	}

	groups := make([]string, 0, len(data))
	for g := range data {
		groups = append(groups, g)
	}

	slices.Sort(groups)

	for _, g := range groups {
		nested, ok := data[g].(map[string]any)
		if !ok {
			continue
		}

		if v, ok := codec.Lookup(nested, key); ok {
			return v, true
		}
	}

	return nil, false
}

// Set writes one setting.
func (p *Provider) Set(ctx context.Context, key string, value any, group, description string) (*Setting, error) {
	out, err := p.client.Set(ctx, key, value, group, description)
	if err == nil {
		p.cache.Invalidate()
	}

	return out, err
}

// Batch writes all entries atomically.
func (p *Provider) Batch(ctx context.Context, entries []Entry) (*BatchResult, error) {
	out, err := p.client.Batch(ctx, entries)
	if err == nil {
		p.cache.Invalidate()
	}

	return out, err
}

// Delete removes one setting.
func (p *Provider) Delete(ctx context.Context, key string) error {
	err := p.client.Delete(ctx, key)
	if err == nil {
		p.cache.Invalidate()
	}

	return err
}

// Rollback restores the value recorded by history entry id.
func (p *Provider) Rollback(ctx context.Context, id, description string) (*Setting, error) {
	out, err := p.client.Rollback(ctx, id, description)
	if err == nil {
		p.cache.Invalidate()
	}

	return out, err
}

// Import applies an export document atomically.
func (p *Provider) Import(ctx context.Context, doc Document) (*BatchResult, error) {
	out, err := p.client.Import(ctx, doc)
	if err == nil {
		p.cache.Invalidate()
	}

	return out, err
}
