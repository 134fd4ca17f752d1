// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"fmt"
	"path/filepath"

	"github.com/quillblog/quill/internal/config"
)

const (
	defaultMySQLPort    = 3306
	defaultPostgresPort = 5432
	defaultSQLiteFile   = "quill.db"

	// Memory is the sqlite path of a private in-memory database.
	Memory = ":memory:"
)

// Create builds the Data Source Name for the configured driver.
func Create(dbCfg *config.DB) (string, error) {
	switch dbCfg.Driver {
	case config.DriverMySQL:
		port := dbCfg.Port
		if port == 0 {
			port = defaultMySQLPort
		}

		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.User,
			dbCfg.Password,
			dbCfg.Host,
			port,
			dbCfg.Name,
			dbCfg.Extras,
		), nil
	case config.DriverPostgres:
		port := dbCfg.Port
		if port == 0 {
			port = defaultPostgresPort
		}

		out := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d",
			dbCfg.Host,
			dbCfg.User,
			dbCfg.Password,
			dbCfg.Name,
			port,
		)
		if dbCfg.Extras != "" {
			out += " " + dbCfg.Extras
		}

		return out, nil
	case config.DriverSQLite:
		if dbCfg.Path == "" {
			return defaultSQLiteFile, nil
		}

		if dbCfg.Path == Memory {
			return Memory, nil
		}

		if filepath.Ext(dbCfg.Path) == "" {
			return filepath.Join(dbCfg.Path, defaultSQLiteFile), nil
		}

		return dbCfg.Path, nil
	default:
		return "", fmt.Errorf("%w: %q", config.ErrUnsupportedDriver, dbCfg.Driver)
	}
}

// StorageURI builds the connection string expected by the gofiber storage drivers:
// the go-sql-driver DSN for MySQL and a URL for PostgreSQL.
func StorageURI(dbCfg *config.DB) (string, error) {
	switch dbCfg.Driver {
	case config.DriverMySQL:
		return Create(dbCfg)
	case config.DriverPostgres:
		port := dbCfg.Port
		if port == 0 {
			port = defaultPostgresPort
		}

		return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s", dbCfg.User, dbCfg.Password, dbCfg.Host, port, dbCfg.Name), nil
	default:
		return "", fmt.Errorf("%w: %q has no storage uri", config.ErrUnsupportedDriver, dbCfg.Driver)
	}
}
