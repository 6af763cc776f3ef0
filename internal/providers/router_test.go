package providers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/perpgate/perpgate/internal/config"
	"github.com/perpgate/perpgate/internal/providers"
)

func testRoutingConfig() config.RoutingConfig {
	return config.RoutingConfig{
		DefaultTradingProvider:    "ostium",
		DefaultSettlementProvider: "ostium",
		CategoryProviders: map[string]string{
			"crypto":      "lighter",
			"forex":       "ostium",
			"indices":     "ostium",
			"commodities": "ostium",
			"tradfi":      "ostium",
		},
	}
}

func newTestRouter(t *testing.T, cfg config.RoutingConfig) *providers.Router {
	t.Helper()
	return providers.NewRouter(cfg, nil, zap.NewNop())
}

func TestRouterCryptoInference(t *testing.T) {
	router := newTestRouter(t, testRoutingConfig())

	// Well-known crypto tickers route to the crypto-category provider
	// without any per-asset configuration.
	for _, asset := range []string{"BTC", "ETH", "SOL", "AVAX", "MATIC", "ARB", "OP", "LINK", "UNI"} {
		assert.Equal(t, "lighter", router.ProviderForAsset(asset), asset)
		assert.Equal(t, "crypto", router.AssetCategory(asset), asset)
	}

	// Unknown assets default to tradfi.
	assert.Equal(t, "ostium", router.ProviderForAsset("EURUSD"))
	assert.Equal(t, "tradfi", router.AssetCategory("EURUSD"))
}

func TestRouterOverrideAlwaysWins(t *testing.T) {
	router := newTestRouter(t, testRoutingConfig())
	router.ConfigureAssetProvider("BTC", "ostium")

	// Category says lighter; the direct override wins regardless.
	assert.Equal(t, "ostium", router.ProviderForAsset("BTC"))
	assert.Equal(t, "ostium", router.ProviderForAsset("btc"), "asset lookup is case-normalized")
}

func TestRouterConfiguredCategory(t *testing.T) {
	router := newTestRouter(t, testRoutingConfig())
	router.ConfigureAssetCategory("XAU", "commodities", "")

	assert.Equal(t, "commodities", router.AssetCategory("XAU"))
	assert.Equal(t, "ostium", router.ProviderForAsset("XAU"))
}

func TestRouterDeterministic(t *testing.T) {
	router := newTestRouter(t, testRoutingConfig())
	for i := 0; i < 100; i++ {
		assert.Equal(t, "lighter", router.ProviderForAsset("SOL"))
		assert.Equal(t, "ostium", router.ProviderForAsset("SPX"))
	}
}

func TestRouterAssetTypeCodes(t *testing.T) {
	router := newTestRouter(t, testRoutingConfig())

	// Crypto wire codes route to the crypto-category provider.
	assert.Equal(t, "lighter", router.ProviderForAssetType(0))
	assert.Equal(t, "lighter", router.ProviderForAssetType(1))
	// Everything else goes to the default provider.
	assert.Equal(t, "ostium", router.ProviderForAssetType(2))
	assert.Equal(t, "ostium", router.ProviderForAssetType(17))
}

func TestRouterOverridesFromStructuredMap(t *testing.T) {
	cfg := testRoutingConfig()
	cfg.AssetOverrides = map[string]string{"eth": "OSTIUM"}
	router := newTestRouter(t, cfg)

	assert.Equal(t, "ostium", router.ProviderForAsset("ETH"))
}

func TestRouterOverridesFromJSONString(t *testing.T) {
	cfg := testRoutingConfig()
	cfg.AssetOverrides = `{"BTC":"ostium","EURUSD":"lighter"}`
	router := newTestRouter(t, cfg)

	assert.Equal(t, "ostium", router.ProviderForAsset("BTC"))
	assert.Equal(t, "lighter", router.ProviderForAsset("EURUSD"))
}

func TestRouterMalformedOverridesIgnored(t *testing.T) {
	cfg := testRoutingConfig()
	cfg.AssetOverrides = `{"BTC": not json`
	router := newTestRouter(t, cfg)

	// Default routing still applies.
	assert.Equal(t, "lighter", router.ProviderForAsset("BTC"))
	assert.Equal(t, "ostium", router.ProviderForAsset("EURUSD"))
}
