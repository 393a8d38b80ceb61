package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_EnvReachesEveryKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env@db:5432/tabnews")
	t.Setenv("DATABASE_MIGRATE_ON_START", "true")
	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("SERVER_TRUST_PROXY", "true")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("TRACING_INSECURE", "true")
	t.Setenv("LEDGER_MAX_ATTEMPTS", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://env@db:5432/tabnews", cfg.Database.URL)
	assert.True(t, cfg.Database.MigrateOnStart)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.True(t, cfg.Server.TrustProxy)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.True(t, cfg.Tracing.Insecure)
	assert.Equal(t, 7, cfg.Ledger.MaxAttempts)
}

func TestLoadConfig_ZeroDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env@db:5432/tabnews")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, cfg.Database.MigrateOnStart)
	assert.False(t, cfg.Server.TrustProxy)
	assert.Zero(t, cfg.Redis.DB)
	assert.Equal(t, 5, cfg.Ledger.MaxAttempts)
}

func TestLoadConfig_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "database.url")
}
