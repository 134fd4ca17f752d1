// Package cache keeps a snapshot of all settings and serves it
// stale-while-revalidate: fresh reads return the stored snapshot at once and
// refresh it in the background, expired reads fetch synchronously.
package cache

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is how long a snapshot counts as fresh.
	DefaultTTL = time.Hour
	// DefaultKey is the backend key the snapshot is stored under.
	DefaultKey = "settings:snapshot"

	defaultRefreshTimeout = 10 * time.Second
)

// Snapshot is the cached settings object and the time it was fetched.
type Snapshot struct {
	Timestamp time.Time      `json:"timestamp" msgpack:"timestamp"`
	Data      map[string]any `json:"data"      msgpack:"data"`
}

// Age returns how old s is at now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}

// Fetcher loads the current settings object.
type Fetcher func(ctx context.Context) (map[string]any, error)

// Cache is a stale-while-revalidate snapshot cache. It is safe for concurrent use.
type Cache struct {
	backend        Backend
	fetch          Fetcher
	key            string
	name           string
	ttl            time.Duration
	retention      time.Duration
	refreshTimeout time.Duration
	now            func() time.Time
	log            zerolog.Logger

	flight     singleflight.Group
	refreshing atomic.Bool
	background sync.WaitGroup

	// storeMu orders stores against invalidations; gen counts invalidations.
	storeMu sync.Mutex
	gen     atomic.Uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets how long a snapshot counts as fresh.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRetention keeps expired snapshots in the backend for d after they
// turned stale, so Peek can still show them. It never makes a read return
// stale data.
func WithRetention(d time.Duration) Option {
	return func(c *Cache) {
		c.retention = d
	}
}

// WithKey sets the backend key.
func WithKey(key string) Option {
	return func(c *Cache) {
		if key != "" {
			c.key = key
		}
	}
}

// WithName labels the metrics and log lines of the cache.
func WithName(name string) Option {
	return func(c *Cache) {
		if name != "" {
			c.name = name
		}
	}
}

// WithRefreshTimeout bounds each background refresh.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New returns a Cache storing snapshots produced by fetch in backend.
func New(backend Backend, fetch Fetcher, opts ...Option) *Cache {
	c := &Cache{
		backend:        backend,
		fetch:          fetch,
		key:            DefaultKey,
		name:           "settings",
		ttl:            DefaultTTL,
		refreshTimeout: defaultRefreshTimeout,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.log = log.With().Str("component", "cache").Str("cache", c.name).Logger()

	return c
}

// Get returns the settings object. A fresh snapshot is returned as is and
// revalidated in the background; refresh errors are logged only. Without a
// fresh snapshot the object is fetched synchronously and fetch errors are
// returned.
func (c *Cache) Get(ctx context.Context) (map[string]any, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	return snap.Data, nil
}

// Snapshot is Get returning the snapshot with its timestamp.
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := c.load(); snap != nil && c.fresh(snap) {
		hitsTotal.WithLabelValues(c.name).Inc()
		c.revalidate()

		return snap, nil
	}

	missesTotal.WithLabelValues(c.name).Inc()

	return c.Refresh(ctx)
}

// Refresh fetches and stores a new snapshot. Concurrent calls share one fetch.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	gen := c.gen.Load()

	v, err, _ := c.flight.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		return c.refresh(ctx, gen)
	})
	if err != nil {
		return nil, err
	}

	return v.(*Snapshot), nil //nolint:forcetypeassert
}

// Invalidate drops the stored snapshot. Refreshes started before the call
// do not store their result.
func (c *Cache) Invalidate() {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	c.gen.Add(1)

	if err := c.backend.Delete(c.key); err != nil {
		c.log.Warn().Err(err).Msg("failed to delete snapshot")
	}
}

// Peek returns the stored snapshot, fresh or not, without fetching.
func (c *Cache) Peek() (*Snapshot, bool) {
	snap := c.load()

	return snap, snap != nil
}

// Wait blocks until running background refreshes are done.
func (c *Cache) Wait() {
	c.background.Wait()
}

func (c *Cache) fresh(snap *Snapshot) bool {
	return snap.Age(c.now()) < c.ttl
}

// revalidate starts a background refresh unless one is running.
func (c *Cache) revalidate() {
	if !c.refreshing.CompareAndSwap(false, true) {
		return
	}

	gen := c.gen.Load()

	c.background.Add(1)

	go func() {
		defer c.background.Done()
		defer c.refreshing.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
		defer cancel()

		if _, err := c.refresh(ctx, gen); err != nil {
			refreshFailuresTotal.WithLabelValues(c.name).Inc()
			c.log.Warn().Err(err).Msg("background refresh failed")
		}
	}()
}

func (c *Cache) refresh(ctx context.Context, gen uint64) (*Snapshot, error) {
	data, err := c.fetch(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch settings snapshot")
	}

	snap := &Snapshot{Timestamp: c.now(), Data: data}

	c.store(gen, snap)

	return snap, nil
}

// store writes snap unless the cache was invalidated since gen was read.
func (c *Cache) store(gen uint64, snap *Snapshot) {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	if c.gen.Load() != gen {
		c.log.Debug().Msg("discarding snapshot fetched before invalidation")

		return
	}

	raw, err := msgpack.Marshal(snap)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to encode snapshot")

		return
	}

	if err = c.backend.Set(c.key, raw, c.ttl+c.retention); err != nil {
		c.log.Warn().Err(err).Msg("failed to store snapshot")
	}
}

// load reads the stored snapshot. Unreadable snapshots count as missing.
func (c *Cache) load() *Snapshot {
	raw, err := c.backend.Get(c.key)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to read snapshot")

		return nil
	}

	if raw == nil {
		return nil
	}

	var snap Snapshot
	if err = msgpack.Unmarshal(raw, &snap); err != nil {
		c.log.Warn().Err(err).Msg("failed to decode snapshot")

		return nil
	}

	return &snap
}
