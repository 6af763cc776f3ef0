// Package config loads process configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProviderConfig holds the settings for one external execution provider.
type ProviderConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	BaseURL       string  `mapstructure:"base_url"`
	APIKey        string  `mapstructure:"api_key"`
	PrivateKey    string  `mapstructure:"private_key"`
	RPCURL        string  `mapstructure:"rpc_url"`
	Network       string  `mapstructure:"network"`
	Timeout       int     `mapstructure:"timeout"`        // seconds, per attempt
	RetryAttempts int     `mapstructure:"retry_attempts"` // additional attempts beyond the first
	RetryDelay    float64 `mapstructure:"retry_delay"`    // base backoff, seconds
	SlippagePct   float64 `mapstructure:"slippage_pct"`
}

// TimeoutDuration returns the per-attempt timeout as a duration.
func (p ProviderConfig) TimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

// RetryDelayDuration returns the base backoff delay as a duration.
func (p ProviderConfig) RetryDelayDuration() time.Duration {
	return time.Duration(p.RetryDelay * float64(time.Second))
}

// RoutingConfig drives asset to provider resolution.
// AssetOverrides is either a map[string]string or a JSON-encoded string of
// the same shape; invalid JSON is ignored and default routing applies.
type RoutingConfig struct {
	DefaultTradingProvider    string            `mapstructure:"default_trading_provider"`
	DefaultPriceProvider      string            `mapstructure:"default_price_provider"`
	DefaultSettlementProvider string            `mapstructure:"default_settlement_provider"`
	DefaultSwapProvider       string            `mapstructure:"default_swap_provider"`
	CategoryProviders         map[string]string `mapstructure:"category_providers"`
	AssetCategories           map[string]string `mapstructure:"asset_categories"`
	AssetOverrides            any               `mapstructure:"asset_overrides"`
}

// RiskConfig holds risk engine settings.
type RiskConfig struct {
	MonitorInterval int `mapstructure:"monitor_interval"` // seconds
	MonitorPageSize int `mapstructure:"monitor_page_size"`
}

// Config is the full process configuration.
type Config struct {
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Routing   RoutingConfig             `mapstructure:"routing"`
	Risk      RiskConfig                `mapstructure:"risk"`
}

// Provider returns the configuration for a named provider, falling back to
// defaults when the provider has no explicit section.
func (c *Config) Provider(name string) ProviderConfig {
	if p, ok := c.Providers[strings.ToLower(name)]; ok {
		if p.Timeout == 0 {
			p.Timeout = defaultTimeout
		}
		if p.RetryAttempts == 0 {
			p.RetryAttempts = defaultRetryAttempts
		}
		if p.RetryDelay == 0 {
			p.RetryDelay = defaultRetryDelay
		}
		return p
	}
	return ProviderConfig{
		Enabled:       true,
		Timeout:       defaultTimeout,
		RetryAttempts: defaultRetryAttempts,
		RetryDelay:    defaultRetryDelay,
	}
}

const (
	defaultTimeout       = 30
	defaultRetryAttempts = 3
	defaultRetryDelay    = 1.0
)

// Load reads configuration from the given path (optional) plus PERPGATE_*
// environment variables, applying defaults for everything unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PERPGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("perpgate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/perpgate")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("database.dsn", "")

	for _, name := range []string{"ostium", "lighter", "lifi"} {
		v.SetDefault("providers."+name+".enabled", true)
		v.SetDefault("providers."+name+".timeout", defaultTimeout)
		v.SetDefault("providers."+name+".retry_attempts", defaultRetryAttempts)
		v.SetDefault("providers."+name+".retry_delay", defaultRetryDelay)
	}
	v.SetDefault("providers.ostium.network", "arbitrum")
	v.SetDefault("providers.lighter.base_url", "https://api.lighter.xyz")
	v.SetDefault("providers.lighter.network", "mainnet")
	v.SetDefault("providers.lifi.base_url", "https://li.quest/v1")

	v.SetDefault("routing.default_trading_provider", "ostium")
	v.SetDefault("routing.default_price_provider", "ostium")
	v.SetDefault("routing.default_settlement_provider", "ostium")
	v.SetDefault("routing.default_swap_provider", "lifi")
	v.SetDefault("routing.category_providers", map[string]string{
		"crypto":      "lighter",
		"forex":       "ostium",
		"indices":     "ostium",
		"commodities": "ostium",
		"tradfi":      "ostium",
	})

	v.SetDefault("risk.monitor_interval", 60)
	v.SetDefault("risk.monitor_page_size", 100)
}
