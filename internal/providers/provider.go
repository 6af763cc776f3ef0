// Package providers contains the provider registry, factory and router
// plus the resilient execution harness shared by all provider clients.
package providers

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/perpgate/perpgate/internal/config"
)

// Capability is a functional role a provider can fulfill.
type Capability string

const (
	CapabilityTrading    Capability = "trading"
	CapabilityPrice      Capability = "price"
	CapabilitySettlement Capability = "settlement"
	CapabilitySwap       Capability = "swap"
	CapabilityAuth       Capability = "auth"
)

// Provider is the lifecycle contract every provider implementation meets.
// Initialize performs the provider's connection handshake and must be
// called before any capability method.
type Provider interface {
	Name() string
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) bool
}

// Constructor builds an uninitialized provider from its configuration.
// Registered constructors replace load-time self-registration: the startup
// routine enumerates and registers every implementation deterministically.
type Constructor func(cfg config.ProviderConfig, log *zap.Logger) (Provider, error)

// OpenTradeRequest describes a prospective trade in the numeric asset-type
// wire format used by the tradfi venue family.
type OpenTradeRequest struct {
	Collateral decimal.Decimal
	Leverage   int
	AssetType  int
	Long       bool
	OrderType  string // market, limit, stop
	AtPrice    *decimal.Decimal
	TakeProfit *decimal.Decimal
	StopLoss   *decimal.Decimal
}

// TradeReceipt is the venue acknowledgement for an order mutation.
type TradeReceipt struct {
	TxHash     string `json:"tx_hash"`
	PairID     int    `json:"pair_id"`
	TradeIndex int    `json:"trade_index"`
	Status     string `json:"status"`
}

// Trade is one open trade as reported by a venue.
type Trade struct {
	PairID     int             `json:"pair_id"`
	TradeIndex int             `json:"trade_index"`
	Asset      string          `json:"asset"`
	Long       bool            `json:"long"`
	Collateral decimal.Decimal `json:"collateral"`
	Leverage   int             `json:"leverage"`
	OpenPrice  decimal.Decimal `json:"open_price"`
}

// Pair is a tradable pair listed by a venue.
type Pair struct {
	ID       int    `json:"id"`
	Base     string `json:"base"`
	Quote    string `json:"quote"`
	Category string `json:"category"`
}

// PriceQuote is a single price observation.
type PriceQuote struct {
	Asset     string          `json:"asset"`
	Quote     string          `json:"quote"`
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
	Source    string          `json:"source"`
}

// TxStatus reports on-chain settlement progress for a transaction.
type TxStatus struct {
	Hash        string `json:"hash"`
	Status      string `json:"status"`
	BlockNumber int64  `json:"block_number"`
}

// SwapQuoteRequest asks a swap provider for a cross-chain route.
type SwapQuoteRequest struct {
	FromChain   string
	ToChain     string
	FromToken   string
	ToToken     string
	Amount      decimal.Decimal
	FromAddress string
}

// SwapQuote is a priced swap route.
type SwapQuote struct {
	Tool         string          `json:"tool"`
	FromAmount   decimal.Decimal `json:"from_amount"`
	ToAmount     decimal.Decimal `json:"to_amount"`
	EstimatedGas decimal.Decimal `json:"estimated_gas"`
}

// TradingProvider executes order mutations against a venue.
type TradingProvider interface {
	Provider
	OpenTrade(ctx context.Context, req OpenTradeRequest) (*TradeReceipt, error)
	CloseTrade(ctx context.Context, pairID, tradeIndex int) (*TradeReceipt, error)
	UpdateTakeProfit(ctx context.Context, pairID, tradeIndex int, price decimal.Decimal) error
	UpdateStopLoss(ctx context.Context, pairID, tradeIndex int, price decimal.Decimal) error
	GetOpenTrades(ctx context.Context, trader string) ([]Trade, error)
	GetPairs(ctx context.Context) ([]Pair, error)
}

// PriceProvider serves price feeds.
type PriceProvider interface {
	Provider
	GetPrice(ctx context.Context, asset, quote string) (*PriceQuote, error)
	GetPrices(ctx context.Context, pairs [][2]string) (map[string]*PriceQuote, error)
}

// SettlementProvider executes and tracks settlement transactions.
type SettlementProvider interface {
	Provider
	ExecuteTrade(ctx context.Context, req OpenTradeRequest) (*TradeReceipt, error)
	TransactionStatus(ctx context.Context, txHash string) (*TxStatus, error)
}

// SwapProvider quotes cross-chain token swaps.
type SwapProvider interface {
	Provider
	Quote(ctx context.Context, req SwapQuoteRequest) (*SwapQuote, error)
}
