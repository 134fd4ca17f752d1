// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/quillblog/quill/internal/config"
	"github.com/quillblog/quill/internal/db"
	"github.com/quillblog/quill/internal/db/dsn"
)

// New returns a fresh migrated sqlite database closed at test cleanup.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	gdb, err := db.Open(&config.DB{Driver: config.DriverSQLite, Path: dsn.Memory})
	require.NoError(t, err, "failed to create test database")
	require.NoError(t, db.Migrate(gdb), "failed to migrate test database")

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return gdb
}
