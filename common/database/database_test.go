package database

import (
	"context"
	"path/filepath"
	"testing"

	"glycemic-guard/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:     DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "nested", "guard.db"),
	}

	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer Close(db)

	var one int
	require.NoError(t, db.QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestNewSQLiteDB_RequiresPath(t *testing.T) {
	_, err := NewSQLiteDB(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite path is required")
}
