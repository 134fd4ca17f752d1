package daemon

import (
	storagemysql "github.com/gofiber/storage/mysql/v2"
	storagepostgres "github.com/gofiber/storage/postgres/v3"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/quillblog/quill/internal/config"
	"github.com/quillblog/quill/internal/db/dsn"
	"github.com/quillblog/quill/pkg/cache"
)

type closableBackend interface {
	cache.Backend
	Close() error
}

// newBackend opens the configured snapshot cache backend.
func newBackend(cfg *config.Config) (closableBackend, error) {
	switch cfg.Cache.Backend {
	case config.CacheMemory, "":
		return cache.NewMemory(), nil
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Username: cfg.Cache.Redis.Username,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})

		log.Info().Str("addr", cfg.Cache.Redis.Addr).Msg("settings snapshots are cached in redis")

		return cache.NewRedis(client, cfg.Cache.RefreshTimeout), nil
	case config.CacheMySQL:
		uri, err := dsn.StorageURI(&cfg.DB)
		if err != nil {
			return nil, err
		}

		return storagemysql.New(storagemysql.Config{ConnectionURI: uri, Table: cfg.Cache.Table}), nil
	case config.CachePostgres:
		uri, err := dsn.StorageURI(&cfg.DB)
		if err != nil {
			return nil, err
		}

		return storagepostgres.New(storagepostgres.Config{ConnectionURI: uri, Table: cfg.Cache.Table}), nil
	default:
		return nil, errors.Wrapf(config.ErrUnsupportedCacheBackend, "%q", cfg.Cache.Backend)
	}
}

// DropSharedSnapshot deletes the cached snapshot from a shared backend, so
// running servers fetch fresh settings after an offline change. The memory
// backend is private to each server and is left alone.
func DropSharedSnapshot(cfg *config.Config) error {
	if cfg.Cache.Backend == config.CacheMemory || cfg.Cache.Backend == "" {
		return nil
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}

	defer func() {
		_ = backend.Close()
	}()

	return errors.Wrap(backend.Delete(cfg.Cache.Key), "drop cached snapshot")
}
