package providers

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/perpgate/perpgate/internal/config"
)

const (
	categoryCrypto   = "crypto"
	categoryTradfi   = "tradfi"
	fallbackProvider = "ostium"
)

// cryptoTickers is the inference table for well-known crypto assets that
// have no explicit routing configuration.
var cryptoTickers = map[string]struct{}{
	"BTC": {}, "ETH": {}, "SOL": {}, "AVAX": {}, "MATIC": {},
	"ARB": {}, "OP": {}, "LINK": {}, "UNI": {},
}

// cryptoAssetTypes is the set of numeric asset-type codes (the tradfi
// venue wire format) that route to the crypto-category provider.
var cryptoAssetTypes = map[int]struct{}{0: {}, 1: {}}

// Router decides which provider name serves a request for an asset symbol
// or numeric asset-type code, then delegates instance creation to the
// factory. Resolution performs no I/O and is deterministic for a given
// configuration; only the factory call that follows touches the network.
type Router struct {
	factory *Factory
	log     *zap.Logger

	mu                sync.RWMutex
	assetCategories   map[string]string // ASSET -> category
	categoryProviders map[string]string // category -> provider
	assetProviders    map[string]string // ASSET -> provider, highest priority
}

// NewRouter builds a router seeded from the routing configuration.
// Asset overrides are accepted as a structured mapping or a JSON-encoded
// string; invalid JSON is logged and ignored so default routing still
// applies.
func NewRouter(cfg config.RoutingConfig, factory *Factory, log *zap.Logger) *Router {
	r := &Router{
		factory:           factory,
		log:               log.Named("provider-router"),
		assetCategories:   make(map[string]string),
		categoryProviders: make(map[string]string),
		assetProviders:    make(map[string]string),
	}
	for category, provider := range cfg.CategoryProviders {
		r.ConfigureCategoryProvider(category, provider)
	}
	for asset, category := range cfg.AssetCategories {
		r.ConfigureAssetCategory(asset, category, "")
	}
	r.applyOverrides(cfg.AssetOverrides)
	return r
}

func (r *Router) applyOverrides(overrides any) {
	switch v := overrides.(type) {
	case nil:
	case map[string]string:
		for asset, provider := range v {
			r.ConfigureAssetProvider(asset, provider)
		}
	case map[string]any:
		for asset, provider := range v {
			if name, ok := provider.(string); ok {
				r.ConfigureAssetProvider(asset, name)
			}
		}
	case string:
		if v == "" {
			return
		}
		var parsed map[string]string
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			r.log.Warn("ignoring malformed asset routing overrides", zap.Error(err))
			return
		}
		for asset, provider := range parsed {
			r.ConfigureAssetProvider(asset, provider)
		}
	default:
		r.log.Warn("ignoring asset routing overrides of unsupported type")
	}
}

// ConfigureAssetCategory maps an asset to a category, optionally pinning a
// direct provider for it at the same time.
func (r *Router) ConfigureAssetCategory(asset, category, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assetCategories[strings.ToUpper(asset)] = strings.ToLower(category)
	if provider != "" {
		r.assetProviders[strings.ToUpper(asset)] = strings.ToLower(provider)
	}
}

// ConfigureCategoryProvider sets the provider serving a category.
func (r *Router) ConfigureCategoryProvider(category, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categoryProviders[strings.ToLower(category)] = strings.ToLower(provider)
}

// ConfigureAssetProvider pins an asset directly to a provider, overriding
// any category routing.
func (r *Router) ConfigureAssetProvider(asset, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assetProviders[strings.ToUpper(asset)] = strings.ToLower(provider)
}

// AssetCategory resolves the routing category for an asset: explicit
// configuration first, then the crypto inference table, then tradfi.
func (r *Router) AssetCategory(asset string) string {
	upper := strings.ToUpper(asset)
	r.mu.RLock()
	defer r.mu.RUnlock()

	if provider, ok := r.assetProviders[upper]; ok {
		// A pinned provider implies its category when it serves one.
		for category, name := range r.categoryProviders {
			if name == provider && category == categoryCrypto {
				return categoryCrypto
			}
		}
	}
	if category, ok := r.assetCategories[upper]; ok {
		return category
	}
	if _, ok := cryptoTickers[upper]; ok {
		return categoryCrypto
	}
	return categoryTradfi
}

// ProviderForAsset resolves the provider name serving an asset. A direct
// per-asset override always wins; otherwise the asset's category decides.
func (r *Router) ProviderForAsset(asset string) string {
	upper := strings.ToUpper(asset)

	r.mu.RLock()
	if provider, ok := r.assetProviders[upper]; ok {
		r.mu.RUnlock()
		return provider
	}
	r.mu.RUnlock()

	category := r.AssetCategory(upper)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if provider, ok := r.categoryProviders[category]; ok {
		return provider
	}
	return fallbackProvider
}

// ProviderForAssetType resolves the provider for a numeric asset-type
// code. Crypto codes route to the crypto-category provider; everything
// else goes to the default provider.
func (r *Router) ProviderForAssetType(assetType int) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := cryptoAssetTypes[assetType]; ok {
		if provider, ok := r.categoryProviders[categoryCrypto]; ok {
			return provider
		}
	}
	if provider, ok := r.categoryProviders[categoryTradfi]; ok {
		return provider
	}
	return fallbackProvider
}

// GetTradingProvider resolves and returns the trading provider for an
// asset symbol or, when the symbol is empty, a numeric asset-type code.
// Passing an empty asset and a negative asset type selects the default.
func (r *Router) GetTradingProvider(ctx context.Context, asset string, assetType int) (TradingProvider, error) {
	return r.factory.GetTradingProvider(ctx, r.resolve(asset, assetType))
}

// GetPriceProvider resolves and returns the price provider for an asset.
func (r *Router) GetPriceProvider(ctx context.Context, asset string) (PriceProvider, error) {
	return r.factory.GetPriceProvider(ctx, r.ProviderForAsset(asset))
}

// GetSettlementProvider resolves and returns the settlement provider for
// an asset symbol or numeric asset-type code.
func (r *Router) GetSettlementProvider(ctx context.Context, asset string, assetType int) (SettlementProvider, error) {
	return r.factory.GetSettlementProvider(ctx, r.resolve(asset, assetType))
}

func (r *Router) resolve(asset string, assetType int) string {
	switch {
	case asset != "":
		return r.ProviderForAsset(asset)
	case assetType >= 0:
		return r.ProviderForAssetType(assetType)
	default:
		return "" // factory falls back to the configured default
	}
}
