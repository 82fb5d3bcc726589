package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/winnow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 800*time.Millisecond, cfg.Autosave.Delay)
	assert.Equal(t, 60*time.Second, cfg.Reasoning.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "winnow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
store:
  backend: redis
  redis:
    addr: "redis.internal:6379"
    ttl: 24h
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Store.Redis.TTL)

	// Untouched keys keep their defaults.
	assert.Equal(t, 800*time.Millisecond, cfg.Autosave.Delay)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "winnow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: file\n"), 0o644))

	t.Setenv("WINNOW_STORE__BACKEND", "memory")
	t.Setenv("WINNOW_REASONING__BASE_URL", "https://gateway.internal/v1")
	t.Setenv("WINNOW_REASONING__API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "https://gateway.internal/v1", cfg.Reasoning.BaseURL)
	assert.Equal(t, "sk-test", cfg.Reasoning.APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("WINNOW_STORE__BACKEND", "cassandra")
		_, err := Load("")
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})

	t.Run("unknown log format", func(t *testing.T) {
		t.Setenv("WINNOW_LOGGING__FORMAT", "xml")
		_, err := Load("")
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}
