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
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Session.ConnectTimeout)
	assert.True(t, cfg.Session.SendInit)
	assert.Equal(t, "manual", cfg.Reconnect.Mode)
	assert.Equal(t, uint(5), cfg.Reconnect.MaxAttempts)
	assert.Equal(t, int64(8<<20), cfg.Transport.MaxFrameBytes)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "json", cfg.Log.Format)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.ws_url is required")
	assert.Contains(t, err.Error(), "session.session_id is required")
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessiond.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
session:
  ws_url: wss://realtime.example/agent
  session_id: from-file
  connect_timeout: 5s
reconnect:
  mode: backoff
  initial_interval: 250ms
redis:
  enabled: true
  addr: redis:6379
`), 0o600))

	t.Setenv("SESSIOND_SESSION__SESSION_ID", "from-env")
	t.Setenv("SESSIOND_SESSION__TOKEN", "secret")
	t.Setenv("SESSIOND_LOG__LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "wss://realtime.example/agent", cfg.Session.WSURL)
	assert.Equal(t, "from-env", cfg.Session.SessionID)
	assert.Equal(t, "secret", cfg.Session.Token)
	assert.Equal(t, 5*time.Second, cfg.Session.ConnectTimeout)
	assert.Equal(t, "backoff", cfg.Reconnect.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Reconnect.InitialInterval)
	assert.Equal(t, 30*time.Second, cfg.Reconnect.MaxInterval)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessiond.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Session:   SessionConfig{WSURL: "wss://x", SessionID: "s1"},
			Reconnect: ReconnectConfig{Mode: "manual", RandomizationFactor: 0.5},
			Transport: TransportConfig{PingInterval: 25 * time.Second, PongWait: 60 * time.Second},
		}
	}
	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Reconnect.Mode = "forever"
	assert.ErrorContains(t, cfg.Validate(), "reconnect.mode")

	cfg = valid()
	cfg.Transport.PingInterval = time.Minute
	assert.ErrorContains(t, cfg.Validate(), "ping_interval")

	cfg = valid()
	cfg.Redis = RedisConfig{Enabled: true}
	assert.ErrorContains(t, cfg.Validate(), "redis.addr")
}
