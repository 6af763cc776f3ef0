package providers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/perpgate/perpgate/internal/config"
	"github.com/perpgate/perpgate/internal/providers"
)

func stubConstructor(name string) providers.Constructor {
	return func(cfg config.ProviderConfig, log *zap.Logger) (providers.Provider, error) {
		return &stubProvider{name: name}, nil
	}
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := providers.NewRegistry()
	reg.Register(providers.CapabilityTrading, "ostium", stubConstructor("ostium"))
	reg.Register(providers.CapabilityTrading, "lighter", stubConstructor("lighter"))
	reg.Register(providers.CapabilityPrice, "ostium", stubConstructor("ostium"))

	ctor, ok := reg.Resolve(providers.CapabilityTrading, "ostium")
	assert.True(t, ok)
	assert.NotNil(t, ctor)

	// Names are case-insensitive.
	_, ok = reg.Resolve(providers.CapabilityTrading, "OSTIUM")
	assert.True(t, ok)

	// Capability scoping: lighter never registered for price.
	_, ok = reg.Resolve(providers.CapabilityPrice, "lighter")
	assert.False(t, ok)

	assert.Equal(t, []string{"lighter", "ostium"}, reg.List(providers.CapabilityTrading))
	assert.Equal(t, []string{"ostium"}, reg.List(providers.CapabilityPrice))
	assert.Empty(t, reg.List(providers.CapabilitySwap))
}

func TestRegistryLastWriteWins(t *testing.T) {
	reg := providers.NewRegistry()
	reg.Register(providers.CapabilityTrading, "ostium", stubConstructor("first"))
	reg.Register(providers.CapabilityTrading, "ostium", stubConstructor("second"))

	ctor, ok := reg.Resolve(providers.CapabilityTrading, "ostium")
	assert.True(t, ok)
	p, err := ctor(config.ProviderConfig{}, zap.NewNop())
	assert.NoError(t, err)
	assert.Equal(t, "second", p.Name())

	assert.Equal(t, []string{"ostium"}, reg.List(providers.CapabilityTrading))
}

func TestRegistriesAreIsolated(t *testing.T) {
	a := providers.NewRegistry()
	b := providers.NewRegistry()
	a.Register(providers.CapabilityTrading, "ostium", stubConstructor("ostium"))

	_, ok := b.Resolve(providers.CapabilityTrading, "ostium")
	assert.False(t, ok)
}
