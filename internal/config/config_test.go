package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DB_DRIVER", "SAVE_DEBOUNCE", "REPLICATION_ENABLED", "PLANNER_TIMEZONE", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 500*time.Millisecond, cfg.SaveDebounce)
	assert.False(t, cfg.ReplicationEnabled)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("SAVE_DEBOUNCE", "2s")
	t.Setenv("REPLICATION_ENABLED", "true")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 2*time.Second, cfg.SaveDebounce)
	assert.True(t, cfg.ReplicationEnabled)
	assert.Equal(t, "cache:6380", cfg.RedisAddr())
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("SAVE_DEBOUNCE", "soon")
	t.Setenv("REPLICATION_ENABLED", "maybe")

	cfg := Load()
	assert.Equal(t, 500*time.Millisecond, cfg.SaveDebounce)
	assert.False(t, cfg.ReplicationEnabled)
}

func TestLocation_Invalid(t *testing.T) {
	cfg := &Config{Timezone: "Mars/Olympus"}
	_, err := cfg.Location()
	assert.Error(t, err)
}
