package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite3", cfg.Database.Driver)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, 8*time.Hour, cfg.Session.TTL)
	require.Equal(t, 3, cfg.Auth.MaxAttempts)
	require.Empty(t, cfg.Redis.Addr)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "exchange")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("AUTH_MAX_ATTEMPTS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, cfg.Session.TTL)
	require.Equal(t, 5, cfg.Auth.MaxAttempts)
	require.Equal(t, "host=db port=5432 user=app password=pw dbname=exchange sslmode=disable", cfg.Database.PostgresDSN())
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
}
