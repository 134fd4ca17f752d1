// Package db opens the settings database and migrates its schema.
package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quillblog/quill/internal/config"
	"github.com/quillblog/quill/internal/db/dsn"
	"github.com/quillblog/quill/internal/db/models"
)

// Open connects to the configured database.
func Open(cfg *config.DB) (*gorm.DB, error) {
	var dialector gorm.Dialector

	source, err := dsn.Create(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case config.DriverSQLite:
		if source != dsn.Memory {
			if err = os.MkdirAll(filepath.Dir(source), 0o750); err != nil { //nolint:mnd
				return nil, errors.Wrapf(err, "create sqlite directory for %s", source)
			}
		}

		dialector = sqlite.Open(source)
	case config.DriverMySQL:
		dialector = mysql.Open(source)
	case config.DriverPostgres:
		dialector = postgres.Open(source)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnsupportedDriver, cfg.Driver)
	}

	logMode := logger.Silent
	if cfg.Debug {
		logMode = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", cfg.Driver)
	}

	// every sql connection to :memory: is a new empty database
	if source == dsn.Memory {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "get sql db")
		}

		sqlDB.SetMaxOpenConns(1)
	}

	log.Debug().Str("driver", string(cfg.Driver)).Msg("database connected")

	return db, nil
}

// Migrate creates or updates the settings tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Setting{},
		&models.SettingHistory{},
	); err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}

	return nil
}
