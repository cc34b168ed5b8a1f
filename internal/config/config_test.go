package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, 2*time.Hour, cfg.Activity.DefaultDuration)
	assert.Equal(t, 6*time.Hour, cfg.Activity.MaxHorizon)
	assert.Equal(t, 30.0, cfg.Activity.MaxDistanceKm)
	assert.Equal(t, 8, cfg.Shuffle.Rounds)
	assert.Equal(t, 5, cfg.Shuffle.MaxMembers)
	assert.Equal(t, 5, cfg.Profile.DefaultMaxAgeDifference)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_DRIVER", "badger")
	t.Setenv("ACTIVITY_DEFAULT_DURATION", "90m")
	t.Setenv("SHUFFLE_ROUNDS", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StorageBadger, cfg.StorageDriver)
	assert.Equal(t, 90*time.Minute, cfg.Activity.DefaultDuration)
	assert.Equal(t, 4, cfg.Shuffle.Rounds)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meetup.yaml")
	content := []byte(`
port: "7000"
storage_driver: postgres
activity:
  max_distance_km: 12.5
shuffle:
  rounds: 3
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7001", cfg.Port, "env wins over file")
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, 12.5, cfg.Activity.MaxDistanceKm)
	assert.Equal(t, 3, cfg.Shuffle.Rounds)
	assert.Equal(t, 6*time.Hour, cfg.Activity.MaxHorizon, "untouched keys keep defaults")
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("ACTIVITY_MAX_HORIZON", "soon")
		_, err := Load()
		assert.ErrorContains(t, err, "ACTIVITY_MAX_HORIZON")
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "sqlite")
		_, err := Load()
		assert.ErrorContains(t, err, "unknown storage driver")
	})
}
