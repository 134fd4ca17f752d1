package db_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillblog/quill/internal/config"
	"github.com/quillblog/quill/internal/db"
	"github.com/quillblog/quill/internal/db/models"
)

func TestOpenSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.db")

	gdb, err := db.Open(&config.DB{Driver: config.DriverSQLite, Path: path})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	assert.True(t, gdb.Migrator().HasTable(&models.Setting{}))
	assert.True(t, gdb.Migrator().HasTable(&models.SettingHistory{}))
	assert.FileExists(t, path)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := db.Open(&config.DB{Driver: "oracle"})
	require.ErrorIs(t, err, config.ErrUnsupportedDriver)
}
