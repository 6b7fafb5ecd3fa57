package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":5001", cfg.HTTP.Address)
	assert.Equal(t, "/ws", cfg.WebSocket.Path)
	assert.Equal(t, 256, cfg.WebSocket.SendQueueSize)
	assert.False(t, cfg.Redis.Enabled)
	assert.Empty(t, cfg.Auth.Secret)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  address: ":9999"
websocket:
  pong_wait: 90s
auth:
  secret: hunter2
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTP.Address)
	assert.Equal(t, 90*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, "hunter2", cfg.Auth.Secret)
	// Untouched keys keep their defaults.
	assert.Equal(t, "/ws", cfg.WebSocket.Path)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestLoadRejectsPingSlowerThanPong(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
websocket:
  pong_wait: 5s
  ping_period: 10s
`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":8123")
	t.Setenv("AUTH_SECRET", "from-env")
	t.Setenv("REDIS_ADDRESS", "redis:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8123", cfg.HTTP.Address)
	assert.Equal(t, "from-env", cfg.Auth.Secret)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
	assert.True(t, cfg.Redis.Enabled)
}
