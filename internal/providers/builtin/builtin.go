// Package builtin registers every known provider implementation. Keeping
// registration in one explicit startup routine, instead of load-time side
// effects in each provider package, makes the registry contents
// deterministic and independent of import order.
package builtin

import (
	"github.com/perpgate/perpgate/internal/providers"
	"github.com/perpgate/perpgate/internal/providers/lifi"
	"github.com/perpgate/perpgate/internal/providers/lighter"
	"github.com/perpgate/perpgate/internal/providers/ostium"
)

// Register records all built-in provider constructors on reg.
func Register(reg *providers.Registry) {
	reg.Register(providers.CapabilityTrading, ostium.Name, ostium.New)
	reg.Register(providers.CapabilityPrice, ostium.Name, ostium.New)
	reg.Register(providers.CapabilitySettlement, ostium.Name, ostium.New)

	reg.Register(providers.CapabilityTrading, lighter.Name, lighter.New)
	reg.Register(providers.CapabilityPrice, lighter.Name, lighter.New)
	reg.Register(providers.CapabilitySettlement, lighter.Name, lighter.New)

	reg.Register(providers.CapabilitySwap, lifi.Name, lifi.New)
}
