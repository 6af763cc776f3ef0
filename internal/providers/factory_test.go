package providers_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/perpgate/perpgate/internal/config"
	"github.com/perpgate/perpgate/internal/providers"
)

type stubProvider struct {
	name      string
	initCalls int32
	initFails int32 // number of leading Initialize calls that fail
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Initialize(ctx context.Context) error {
	call := atomic.AddInt32(&s.initCalls, 1)
	if call <= atomic.LoadInt32(&s.initFails) {
		return errors.New("handshake refused")
	}
	return nil
}

func (s *stubProvider) HealthCheck(ctx context.Context) bool { return true }

func (s *stubProvider) OpenTrade(ctx context.Context, req providers.OpenTradeRequest) (*providers.TradeReceipt, error) {
	return &providers.TradeReceipt{Status: "ok"}, nil
}

func (s *stubProvider) CloseTrade(ctx context.Context, pairID, tradeIndex int) (*providers.TradeReceipt, error) {
	return &providers.TradeReceipt{Status: "closed"}, nil
}

func (s *stubProvider) UpdateTakeProfit(ctx context.Context, pairID, tradeIndex int, price decimal.Decimal) error {
	return nil
}

func (s *stubProvider) UpdateStopLoss(ctx context.Context, pairID, tradeIndex int, price decimal.Decimal) error {
	return nil
}

func (s *stubProvider) GetOpenTrades(ctx context.Context, trader string) ([]providers.Trade, error) {
	return nil, nil
}

func (s *stubProvider) GetPairs(ctx context.Context) ([]providers.Pair, error) {
	return nil, nil
}

func newTestFactory(t *testing.T, reg *providers.Registry) *providers.Factory {
	t.Helper()
	cfg := &config.Config{
		Routing: config.RoutingConfig{DefaultTradingProvider: "stub"},
	}
	return providers.NewFactory(reg, cfg, zap.NewNop())
}

func TestFactoryCachesSingleInstance(t *testing.T) {
	stub := &stubProvider{name: "stub"}
	reg := providers.NewRegistry()
	reg.Register(providers.CapabilityTrading, "stub",
		func(cfg config.ProviderConfig, log *zap.Logger) (providers.Provider, error) {
			return stub, nil
		})
	factory := newTestFactory(t, reg)

	first, err := factory.Get(context.Background(), providers.CapabilityTrading, "stub")
	require.NoError(t, err)
	second, err := factory.Get(context.Background(), providers.CapabilityTrading, "stub")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.initCalls))
}

func TestFactoryConcurrentFirstAccess(t *testing.T) {
	stub := &stubProvider{name: "stub"}
	var constructed int32
	reg := providers.NewRegistry()
	reg.Register(providers.CapabilityTrading, "stub",
		func(cfg config.ProviderConfig, log *zap.Logger) (providers.Provider, error) {
			atomic.AddInt32(&constructed, 1)
			return stub, nil
		})
	factory := newTestFactory(t, reg)

	const callers = 32
	results := make([]providers.Provider, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := factory.Get(context.Background(), providers.CapabilityTrading, "stub")
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.initCalls), "initialize must run exactly once")
	assert.Equal(t, int32(1), atomic.LoadInt32(&constructed))
}

func TestFactoryUnknownProviderIsConfigurationError(t *testing.T) {
	factory := newTestFactory(t, providers.NewRegistry())

	_, err := factory.Get(context.Background(), providers.CapabilityTrading, "nope")
	var cfgErr *providers.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "nope", cfgErr.Name)
}

func TestFactoryInitFailureLeavesCacheEmpty(t *testing.T) {
	stub := &stubProvider{name: "stub", initFails: 1}
	reg := providers.NewRegistry()
	reg.Register(providers.CapabilityTrading, "stub",
		func(cfg config.ProviderConfig, log *zap.Logger) (providers.Provider, error) {
			return stub, nil
		})
	factory := newTestFactory(t, reg)

	_, err := factory.Get(context.Background(), providers.CapabilityTrading, "stub")
	var unavailable *providers.ServiceUnavailableError
	require.ErrorAs(t, err, &unavailable)

	// The failure was not cached; the next caller retries and succeeds.
	p, err := factory.Get(context.Background(), providers.CapabilityTrading, "stub")
	require.NoError(t, err)
	assert.Equal(t, "stub", p.Name())
	assert.Equal(t, int32(2), atomic.LoadInt32(&stub.initCalls))
}

func TestFactoryDefaultNameFallback(t *testing.T) {
	reg := providers.NewRegistry()
	reg.Register(providers.CapabilityTrading, "stub",
		func(cfg config.ProviderConfig, log *zap.Logger) (providers.Provider, error) {
			return &stubProvider{name: "stub"}, nil
		})
	factory := newTestFactory(t, reg)

	// Empty name resolves to the configured default trading provider,
	// and the instance satisfies the trading interface.
	tp, err := factory.GetTradingProvider(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "stub", tp.Name())
}
