package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"
)

// Backend stores encoded snapshots. Get returns nil, nil for missing keys and
// an exp of zero means no expiration. The gofiber storage drivers satisfy it.
type Backend interface {
	Get(key string) ([]byte, error)
	Set(key string, val []byte, exp time.Duration) error
	Delete(key string) error
}

// Memory is an in-process Backend.
type Memory struct {
	items *ttlcache.Cache[string, []byte]
}

// NewMemory returns a Memory backend. Close stops its expiry loop.
func NewMemory() *Memory {
	m := &Memory{
		items: ttlcache.New(
			ttlcache.WithDisableTouchOnHit[string, []byte](),
		),
	}

	go m.items.Start()

	return m
}

// Get implements Backend.
func (m *Memory) Get(key string) ([]byte, error) {
	item := m.items.Get(key)
	if item == nil {
		return nil, nil
	}

	return item.Value(), nil
}

// Set implements Backend.
func (m *Memory) Set(key string, val []byte, exp time.Duration) error {
	if exp <= 0 {
		exp = ttlcache.NoTTL
	}

	m.items.Set(key, val, exp)

	return nil
}

// Delete implements Backend.
func (m *Memory) Delete(key string) error {
	m.items.Delete(key)

	return nil
}

// Close stops the expiry loop.
func (m *Memory) Close() error {
	m.items.Stop()

	return nil
}

// Redis is a Backend shared by every process using the same redis.
type Redis struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewRedis returns a Redis backend on client. Every call is bounded by timeout.
func NewRedis(client redis.UniversalClient, timeout time.Duration) *Redis {
	return &Redis{client: client, timeout: timeout}
}

func (r *Redis) ctx() (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.Background(), func() {}
	}

	return context.WithTimeout(context.Background(), r.timeout)
}

// Get implements Backend.
func (r *Redis) Get(key string) ([]byte, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	return val, err
}

// Set implements Backend.
func (r *Redis) Set(key string, val []byte, exp time.Duration) error {
	ctx, cancel := r.ctx()
	defer cancel()

	return r.client.Set(ctx, key, val, exp).Err()
}

// Delete implements Backend.
func (r *Redis) Delete(key string) error {
	ctx, cancel := r.ctx()
	defer cancel()

	return r.client.Del(ctx, key).Err()
}

// Close closes the redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
