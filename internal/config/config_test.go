package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ACTIVITY_JWT_SECRET", "secret")
	t.Setenv("ACTIVITY_DATABASE_URL", "postgres://localhost/activity")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.DatabaseDriver)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 365, cfg.RetentionUserDays)
	require.Equal(t, 90, cfg.RetentionGuestDays)
	require.Equal(t, 24*time.Hour, cfg.RetentionInterval)
	require.Equal(t, 30*time.Second, cfg.QueryCacheTTL)
	require.Equal(t, 1000, cfg.WriterQueueSize)
	require.Equal(t, "*", cfg.CORSAllowOrigins)
	require.True(t, cfg.RealtimeEnabled)
}

func TestLoadSQLiteFallsBackToLocalFile(t *testing.T) {
	t.Setenv("ACTIVITY_JWT_SECRET", "secret")
	t.Setenv("ACTIVITY_DATABASE_DRIVER", "SQLite")
	t.Setenv("ACTIVITY_DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.DatabaseDriver)
	require.NotEmpty(t, cfg.DatabaseURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("ACTIVITY_JWT_SECRET", "")
		t.Setenv("ACTIVITY_DATABASE_URL", "postgres://localhost/activity")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("ACTIVITY_JWT_SECRET", "secret")
		t.Setenv("ACTIVITY_DATABASE_URL", "postgres://localhost/activity")
		t.Setenv("ACTIVITY_QUERY_CACHE_TTL", "soon")
		_, err := Load()
		require.ErrorContains(t, err, "query.cache_ttl")
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("ACTIVITY_JWT_SECRET", "secret")
		t.Setenv("ACTIVITY_DATABASE_DRIVER", "mysql")
		_, err := Load()
		require.Error(t, err)
	})
}
