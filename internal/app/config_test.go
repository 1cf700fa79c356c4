package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE", "")
	t.Setenv("STORAGE_DRIVER", "")

	_, err := LoadConfig(t.TempDir())
	assert.ErrorIs(t, err, ErrMissingDatabase)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE", "mongodb://localhost:27017")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, DriverMongo, cfg.StorageDriver)
	assert.Equal(t, "tasks", cfg.MongoDatabase)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.DBTimeout)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("PORT: \"9000\"\nSTORAGE_DRIVER: postgres\nDATABASE: postgres://file\nCACHE_TTL: 30s\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))
	t.Setenv("DATABASE", "postgres://env")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.StorageDriver)
	assert.Equal(t, "postgres://env", cfg.Database)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
}

func TestMemoryDriverNeedsNoDatabase(t *testing.T) {
	t.Setenv("DATABASE", "")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StorageDriver)
}

func TestUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE", "x")
	t.Setenv("STORAGE_DRIVER", "cassandra")

	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestShippedConfigDoesNotSupplyDatabase(t *testing.T) {
	t.Setenv("DATABASE", "")
	t.Setenv("STORAGE_DRIVER", "")

	_, err := LoadConfig(filepath.Join("..", "..", "configs"))
	assert.ErrorIs(t, err, ErrMissingDatabase)
}
