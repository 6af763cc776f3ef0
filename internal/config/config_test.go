package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpgate/perpgate/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "ostium", cfg.Routing.DefaultTradingProvider)
	assert.Equal(t, "lifi", cfg.Routing.DefaultSwapProvider)
	assert.Equal(t, "lighter", cfg.Routing.CategoryProviders["crypto"])
	assert.Equal(t, "ostium", cfg.Routing.CategoryProviders["forex"])
	assert.Equal(t, 60, cfg.Risk.MonitorInterval)
	assert.Equal(t, 100, cfg.Risk.MonitorPageSize)

	ostium := cfg.Provider("ostium")
	assert.True(t, ostium.Enabled)
	assert.Equal(t, 30*time.Second, ostium.TimeoutDuration())
	assert.Equal(t, 3, ostium.RetryAttempts)
	assert.Equal(t, time.Second, ostium.RetryDelayDuration())
	assert.Equal(t, "arbitrum", ostium.Network)

	assert.Equal(t, "https://li.quest/v1", cfg.Provider("lifi").BaseURL)
}

func TestProviderUnknownFallsBackToDefaults(t *testing.T) {
	cfg := &config.Config{}

	p := cfg.Provider("something-new")
	assert.True(t, p.Enabled)
	assert.Equal(t, 30, p.Timeout)
	assert.Equal(t, 3, p.RetryAttempts)
	assert.Equal(t, 1.0, p.RetryDelay)
}

func TestProviderPartialSectionFillsDefaults(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"ostium": {Enabled: true, BaseURL: "https://example.test", Timeout: 5},
		},
	}

	p := cfg.Provider("OSTIUM")
	assert.Equal(t, "https://example.test", p.BaseURL)
	assert.Equal(t, 5, p.Timeout, "explicit values survive")
	assert.Equal(t, 3, p.RetryAttempts, "unset values get defaults")
	assert.Equal(t, 1.0, p.RetryDelay)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perpgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
providers:
  ostium:
    base_url: https://api.example.test
    retry_attempts: 5
routing:
  default_trading_provider: lighter
  asset_overrides:
    BTC: ostium
risk:
  monitor_interval: 15
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "lighter", cfg.Routing.DefaultTradingProvider)
	assert.Equal(t, 15, cfg.Risk.MonitorInterval)

	ostium := cfg.Provider("ostium")
	assert.Equal(t, "https://api.example.test", ostium.BaseURL)
	assert.Equal(t, 5, ostium.RetryAttempts)
	assert.Equal(t, 30, ostium.Timeout, "defaults still apply under a file")

	overrides, ok := cfg.Routing.AssetOverrides.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ostium", overrides["btc"])
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PERPGATE_LOG_LEVEL", "warn")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}
