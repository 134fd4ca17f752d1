// Package daemon wires the settings service, the snapshot cache and the web
// service together.
package daemon

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/quillblog/quill/internal/config"
	"github.com/quillblog/quill/internal/db"
	"github.com/quillblog/quill/internal/db/models"
	"github.com/quillblog/quill/internal/settings"
	"github.com/quillblog/quill/internal/web"
	"github.com/quillblog/quill/internal/web/handler"
	"github.com/quillblog/quill/pkg/cache"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	db         *gorm.DB
	settings   *settings.Service
	backend    closableBackend
	snapshots  *cache.Cache
	webService *web.Service
}

// Start serves the api until SIGINT or SIGTERM and releases all resources.
func (d *Daemon) Start() error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
	}()

	log.Info().Int("port", d.cfg.Webserver.Port).Str("url", d.cfg.Webserver.URL).Msg("settings api started")

	shutdown := make(chan struct{})

	go func() {
		d.webService.WaitShutdown()
		close(shutdown)
	}()

	var err error

	select {
	case err = <-errCh:
	case <-shutdown:
		err = <-errCh
	}

	d.Close()

	return err
}

// Close waits for background cache refreshes and closes the cache backend
// and the database.
func (d *Daemon) Close() {
	d.snapshots.Wait()

	if err := d.backend.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close cache backend")
	}

	if sqlDB, err := d.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Settings returns the settings service.
func (d *Daemon) Settings() *settings.Service {
	return d.settings
}

// Web returns the web service.
func (d *Daemon) Web() *web.Service {
	return d.webService
}

// OpenSettings connects and migrates the database and returns a settings
// service on it. close releases the database.
func OpenSettings(cfg *config.Config) (svc *settings.Service, closeFn func(), err error) {
	if cfg == nil {
		return nil, nil, errors.New("config is nil")
	}

	gdb, err := db.Open(&cfg.DB)
	if err != nil {
		return nil, nil, err
	}

	if err = db.Migrate(gdb); err != nil {
		return nil, nil, err
	}

	closeFn = func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	return settings.New(gdb, settings.WithHistoryLimits(cfg.History.DefaultLimit, cfg.History.MaxLimit)), closeFn, nil
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	gdb, err := db.Open(&cfg.DB)
	if err != nil {
		return nil, err
	}

	if err = db.Migrate(gdb); err != nil {
		return nil, err
	}

	svc := settings.New(gdb, settings.WithHistoryLimits(cfg.History.DefaultLimit, cfg.History.MaxLimit))

	backend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}

	snapshots := cache.New(backend,
		func(ctx context.Context) (map[string]any, error) {
			return svc.Snapshot(ctx, "")
		},
		cache.WithName("server"),
		cache.WithKey(cfg.Cache.Key),
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithRetention(cfg.Cache.Retention),
		cache.WithRefreshTimeout(cfg.Cache.RefreshTimeout),
	)

	svc.OnChange(func(_ context.Context, entries []models.SettingHistory) {
		snapshots.Invalidate()
		log.Debug().Int("changes", len(entries)).Msg("settings snapshot invalidated")
	})

	if err = seed(context.Background(), svc); err != nil {
		return nil, err
	}

	return &Daemon{
		cfg:        cfg,
		db:         gdb,
		settings:   svc,
		backend:    backend,
		snapshots:  snapshots,
		webService: web.New(cfg, handler.Deps{Settings: svc, Snapshots: snapshots}),
	}, nil
}
