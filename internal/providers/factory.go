package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/perpgate/perpgate/internal/config"
)

// Factory builds and caches one live, initialized provider instance per
// (capability, name) for the process lifetime.
type Factory struct {
	registry *Registry
	cfg      *config.Config
	log      *zap.Logger

	mu    sync.Mutex
	cache map[registryKey]Provider
	gates map[registryKey]*sync.Mutex
}

// NewFactory returns a factory backed by the given registry and config.
func NewFactory(registry *Registry, cfg *config.Config, log *zap.Logger) *Factory {
	return &Factory{
		registry: registry,
		cfg:      cfg,
		log:      log.Named("provider-factory"),
		cache:    make(map[registryKey]Provider),
		gates:    make(map[registryKey]*sync.Mutex),
	}
}

// Get returns the cached instance for (capability, name), constructing and
// initializing it on first access. A per-key gate ensures exactly one
// Initialize runs under concurrent first access; every concurrent caller
// receives the same instance. Initialization failure leaves the cache
// empty so the next caller can retry.
func (f *Factory) Get(ctx context.Context, capability Capability, name string) (Provider, error) {
	key := registryKey{capability, strings.ToLower(name)}

	f.mu.Lock()
	if p, ok := f.cache[key]; ok {
		f.mu.Unlock()
		return p, nil
	}
	gate, ok := f.gates[key]
	if !ok {
		gate = &sync.Mutex{}
		f.gates[key] = gate
	}
	f.mu.Unlock()

	gate.Lock()
	defer gate.Unlock()

	// Another caller may have finished initialization while we waited.
	f.mu.Lock()
	if p, ok := f.cache[key]; ok {
		f.mu.Unlock()
		return p, nil
	}
	f.mu.Unlock()

	ctor, ok := f.registry.Resolve(capability, key.name)
	if !ok {
		return nil, &ConfigurationError{
			Capability: capability,
			Name:       key.name,
			Available:  f.registry.List(capability),
		}
	}

	provider, err := ctor(f.cfg.Provider(key.name), f.log)
	if err != nil {
		return nil, &ServiceUnavailableError{Service: key.name, Op: "construct", Err: err}
	}
	if err := provider.Initialize(ctx); err != nil {
		f.log.Error("provider initialization failed",
			zap.String("provider", key.name),
			zap.String("capability", string(capability)),
			zap.Error(err))
		return nil, &ServiceUnavailableError{Service: key.name, Op: "initialize", Err: err}
	}

	f.mu.Lock()
	f.cache[key] = provider
	f.mu.Unlock()

	f.log.Info("provider initialized",
		zap.String("provider", key.name),
		zap.String("capability", string(capability)))
	return provider, nil
}

// GetTradingProvider returns an initialized trading provider. An empty
// name falls back to the configured default.
func (f *Factory) GetTradingProvider(ctx context.Context, name string) (TradingProvider, error) {
	if name == "" {
		name = f.cfg.Routing.DefaultTradingProvider
	}
	p, err := f.Get(ctx, CapabilityTrading, name)
	if err != nil {
		return nil, err
	}
	tp, ok := p.(TradingProvider)
	if !ok {
		return nil, &ServiceUnavailableError{Service: name, Op: "trading",
			Err: fmt.Errorf("provider does not implement trading")}
	}
	return tp, nil
}

// GetPriceProvider returns an initialized price provider.
func (f *Factory) GetPriceProvider(ctx context.Context, name string) (PriceProvider, error) {
	if name == "" {
		name = f.cfg.Routing.DefaultPriceProvider
	}
	p, err := f.Get(ctx, CapabilityPrice, name)
	if err != nil {
		return nil, err
	}
	pp, ok := p.(PriceProvider)
	if !ok {
		return nil, &ServiceUnavailableError{Service: name, Op: "price",
			Err: fmt.Errorf("provider does not implement price feeds")}
	}
	return pp, nil
}

// GetSettlementProvider returns an initialized settlement provider.
func (f *Factory) GetSettlementProvider(ctx context.Context, name string) (SettlementProvider, error) {
	if name == "" {
		name = f.cfg.Routing.DefaultSettlementProvider
	}
	p, err := f.Get(ctx, CapabilitySettlement, name)
	if err != nil {
		return nil, err
	}
	sp, ok := p.(SettlementProvider)
	if !ok {
		return nil, &ServiceUnavailableError{Service: name, Op: "settlement",
			Err: fmt.Errorf("provider does not implement settlement")}
	}
	return sp, nil
}

// GetSwapProvider returns an initialized swap provider.
func (f *Factory) GetSwapProvider(ctx context.Context, name string) (SwapProvider, error) {
	if name == "" {
		name = f.cfg.Routing.DefaultSwapProvider
	}
	p, err := f.Get(ctx, CapabilitySwap, name)
	if err != nil {
		return nil, err
	}
	sp, ok := p.(SwapProvider)
	if !ok {
		return nil, &ServiceUnavailableError{Service: name, Op: "swap",
			Err: fmt.Errorf("provider does not implement swaps")}
	}
	return sp, nil
}
