package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/sanketb-14/Streamline-sub000/internal/config"
)

func TestNew_SQLite(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             filepath.Join(t.TempDir(), "streamline.db"),
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		LogLevel:        "warn",
	}

	db, err := New(cfg, nil, nil)
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Ping(context.Background()))
	assert.Equal(t, "sqlite", db.Driver())

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	assert.Equal(t, 6, sqlDB.Stats().MaxOpenConnections)
}

func TestNew_InMemoryUsesSingleConnection(t *testing.T) {
	db, err := New(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"}, nil, nil)
	require.NoError(t, err)
	defer db.Close()

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestNew_InvalidDriver(t *testing.T) {
	db, err := New(config.DatabaseConfig{Driver: "invalid", DSN: ":memory:"}, nil, nil)
	require.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestDB_Migrate(t *testing.T) {
	db, err := New(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"}, nil, nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate(context.Background()))
	assert.True(t, db.Migrator().HasTable("videos"))
	assert.True(t, db.Migrator().HasTable("channel_videos"))
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, gormLogLevel("silent"))
	assert.Equal(t, logger.Error, gormLogLevel("error"))
	assert.Equal(t, logger.Info, gormLogLevel("info"))
	assert.Equal(t, logger.Warn, gormLogLevel("anything"))
}

func TestTruncateSQL(t *testing.T) {
	short := "SELECT 1"
	assert.Equal(t, short, truncateSQL(short))

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, truncateSQL(string(long)), maxSQLLogLength+len("... (truncated)"))
}
