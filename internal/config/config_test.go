package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, `
app:
  owner_id: farmer-1
service:
  base_url: https://market.example.com
  timeout_seconds: 10
  rate_limit_per_second: 5
system:
  log_level: DEBUG
telemetry:
  metrics_port: 9191
  enable_metrics: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "farmer-1", cfg.App.OwnerID)
	assert.Equal(t, "https://market.example.com", cfg.Service.BaseURL)
	assert.Equal(t, 10, cfg.Service.TimeoutSeconds)
	assert.Equal(t, 9191, cfg.Telemetry.MetricsPort)
	// Defaults fill unset sections
	assert.Equal(t, 4, cfg.Concurrency.BidLoadLimit)
	assert.Equal(t, 5, cfg.Notify.ReconnectDelaySeconds)
}

func TestLoadConfig_MissingOwner(t *testing.T) {
	path := writeConfig(t, `
service:
  base_url: https://market.example.com
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.owner_id")
}

func TestLoadConfig_TrailingSlash(t *testing.T) {
	path := writeConfig(t, `
app:
  owner_id: farmer-1
service:
  base_url: https://market.example.com/
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing slash")
}

func TestLoadConfig_EnvExpansion(t *testing.T) {
	t.Setenv("MARKET_URL", "https://market.example.com")
	path := writeConfig(t, `
app:
  owner_id: farmer-1
service:
  base_url: ${MARKET_URL}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://market.example.com", cfg.Service.BaseURL)
}

func TestLoadConfig_NotifyRequiresWsURL(t *testing.T) {
	path := writeConfig(t, `
app:
  owner_id: farmer-1
service:
  base_url: https://market.example.com
notify:
  enabled: true
  url: https://not-a-websocket
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify.url")
}

func TestLoadConfig_InvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
app:
  owner_id: farmer-1
service:
  base_url: https://market.example.com
system:
  log_level: LOUD
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "system.log_level")
}
