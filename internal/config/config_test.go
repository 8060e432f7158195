package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "https://server.smartlead.ai/api/v1", cfg.Smartlead.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Smartlead.Timeout())
	assert.Equal(t, 5000, cfg.Smartlead.RetryAfterCapMs)
	assert.Equal(t, 120*time.Second, cfg.Snapshot.LockTTL())
	assert.Equal(t, 5000, cfg.Snapshot.DefaultMaxContacts)
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: 0.0.0.0
smartlead:
  api_key: sk-test
  workspace_id: ws-7
  retry_after_cap_ms: 2000
snapshot:
  default_max_contacts: 100
redis:
  addr: localhost:6379
  enabled: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.Smartlead.APIKey)
	assert.Equal(t, "ws-7", cfg.Smartlead.WorkspaceID)
	assert.Equal(t, 2000, cfg.Smartlead.RetryAfterCapMs)
	assert.Equal(t, 100, cfg.Snapshot.DefaultMaxContacts)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
smartlead:
  api_key: from-file
`)
	t.Setenv("SMARTLEAD_API_KEY", "from-env")
	t.Setenv("SMARTLEAD_RETRY_AFTER_CAP_MS", "750")
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("REDIS_ADDR", "redis-host:6379")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Smartlead.APIKey)
	assert.Equal(t, 750, cfg.Smartlead.RetryAfterCapMs)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, "redis-host:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.Enabled)
}

func TestEnvOverrideIgnoresBadCap(t *testing.T) {
	path := writeConfig(t, ``)
	t.Setenv("SMARTLEAD_RETRY_AFTER_CAP_MS", "not-a-number")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Smartlead.RetryAfterCapMs)
}
