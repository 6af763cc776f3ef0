// Package ostium implements the tradfi-default venue client. Trades are
// addressed by (pairID, tradeIndex) and assets by numeric asset-type
// codes, the venue's wire format.
package ostium

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/perpgate/perpgate/internal/config"
	"github.com/perpgate/perpgate/internal/providers"
)

// Name is the registry name of this provider.
const Name = "ostium"

const defaultBaseURL = "https://api.ostium.io/v1"

// Client talks to the Ostium trading API. It implements the trading,
// price and settlement capabilities.
type Client struct {
	cfg     config.ProviderConfig
	log     *zap.Logger
	exec    *providers.Executor
	http    *http.Client
	baseURL string
}

// New constructs an uninitialized client. It matches providers.Constructor.
func New(cfg config.ProviderConfig, log *zap.Logger) (providers.Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		cfg:     cfg,
		log:     log.Named(Name),
		exec:    providers.NewExecutor(Name, cfg, log),
		http:    &http.Client{Timeout: cfg.TimeoutDuration()},
		baseURL: baseURL,
	}, nil
}

func (c *Client) Name() string { return Name }

// Initialize performs the connection handshake by listing pairs once.
func (c *Client) Initialize(ctx context.Context) error {
	_, err := providers.ExecuteWithRetry(ctx, c.exec, "initialize",
		func(ctx context.Context) ([]providers.Pair, error) {
			return c.fetchPairs(ctx)
		})
	if err != nil {
		return fmt.Errorf("ostium handshake: %w", err)
	}
	c.log.Info("initialized", zap.String("network", c.cfg.Network))
	return nil
}

// HealthCheck reports whether the venue answers a pairs listing.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.fetchPairs(ctx)
	return err == nil
}

// OpenTrade submits a new trade.
func (c *Client) OpenTrade(ctx context.Context, req providers.OpenTradeRequest) (*providers.TradeReceipt, error) {
	return providers.ExecuteWithRetry(ctx, c.exec, "open_trade",
		func(ctx context.Context) (*providers.TradeReceipt, error) {
			body := map[string]any{
				"collateral": req.Collateral,
				"leverage":   req.Leverage,
				"asset_type": req.AssetType,
				"direction":  req.Long,
				"order_type": req.OrderType,
				"slippage":   c.cfg.SlippagePct,
			}
			if req.AtPrice != nil {
				body["at_price"] = *req.AtPrice
			}
			if req.TakeProfit != nil {
				body["tp"] = *req.TakeProfit
			}
			if req.StopLoss != nil {
				body["sl"] = *req.StopLoss
			}
			var receipt providers.TradeReceipt
			if err := c.call(ctx, http.MethodPost, "/trades", body, &receipt); err != nil {
				return nil, err
			}
			return &receipt, nil
		})
}

// CloseTrade closes an open trade.
func (c *Client) CloseTrade(ctx context.Context, pairID, tradeIndex int) (*providers.TradeReceipt, error) {
	return providers.ExecuteWithRetry(ctx, c.exec, "close_trade",
		func(ctx context.Context) (*providers.TradeReceipt, error) {
			var receipt providers.TradeReceipt
			path := fmt.Sprintf("/trades/%d/%d/close", pairID, tradeIndex)
			if err := c.call(ctx, http.MethodPost, path, nil, &receipt); err != nil {
				return nil, err
			}
			return &receipt, nil
		})
}

// UpdateTakeProfit moves the take-profit of an open trade.
func (c *Client) UpdateTakeProfit(ctx context.Context, pairID, tradeIndex int, price decimal.Decimal) error {
	_, err := providers.ExecuteWithRetry(ctx, c.exec, "update_tp",
		func(ctx context.Context) (struct{}, error) {
			path := fmt.Sprintf("/trades/%d/%d/tp", pairID, tradeIndex)
			return struct{}{}, c.call(ctx, http.MethodPut, path, map[string]any{"price": price}, nil)
		})
	return err
}

// UpdateStopLoss moves the stop-loss of an open trade.
func (c *Client) UpdateStopLoss(ctx context.Context, pairID, tradeIndex int, price decimal.Decimal) error {
	_, err := providers.ExecuteWithRetry(ctx, c.exec, "update_sl",
		func(ctx context.Context) (struct{}, error) {
			path := fmt.Sprintf("/trades/%d/%d/sl", pairID, tradeIndex)
			return struct{}{}, c.call(ctx, http.MethodPut, path, map[string]any{"price": price}, nil)
		})
	return err
}

// GetOpenTrades lists the trader's open trades.
func (c *Client) GetOpenTrades(ctx context.Context, trader string) ([]providers.Trade, error) {
	return providers.ExecuteWithRetry(ctx, c.exec, "get_open_trades",
		func(ctx context.Context) ([]providers.Trade, error) {
			var trades []providers.Trade
			if err := c.call(ctx, http.MethodGet, "/trades?trader="+trader, nil, &trades); err != nil {
				return nil, err
			}
			return trades, nil
		})
}

// GetPairs lists tradable pairs.
func (c *Client) GetPairs(ctx context.Context) ([]providers.Pair, error) {
	return providers.ExecuteWithRetry(ctx, c.exec, "get_pairs",
		func(ctx context.Context) ([]providers.Pair, error) {
			return c.fetchPairs(ctx)
		})
}

// GetPrice returns the venue price for one asset.
func (c *Client) GetPrice(ctx context.Context, asset, quote string) (*providers.PriceQuote, error) {
	return providers.ExecuteWithRetry(ctx, c.exec, "get_price",
		func(ctx context.Context) (*providers.PriceQuote, error) {
			var out struct {
				Price     decimal.Decimal `json:"price"`
				Timestamp int64           `json:"timestamp"`
			}
			path := fmt.Sprintf("/prices/%s/%s", asset, quote)
			if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
				return nil, err
			}
			return &providers.PriceQuote{
				Asset: asset, Quote: quote,
				Price: out.Price, Timestamp: out.Timestamp, Source: Name,
			}, nil
		})
}

// GetPrices returns prices for several assets, keyed "ASSET/QUOTE".
func (c *Client) GetPrices(ctx context.Context, pairs [][2]string) (map[string]*providers.PriceQuote, error) {
	quotes := make(map[string]*providers.PriceQuote, len(pairs))
	for _, pair := range pairs {
		quote, err := c.GetPrice(ctx, pair[0], pair[1])
		if err != nil {
			return nil, err
		}
		quotes[pair[0]+"/"+pair[1]] = quote
	}
	return quotes, nil
}

// ExecuteTrade settles a trade on-chain and returns the receipt.
func (c *Client) ExecuteTrade(ctx context.Context, req providers.OpenTradeRequest) (*providers.TradeReceipt, error) {
	return c.OpenTrade(ctx, req)
}

// TransactionStatus reports settlement progress for a transaction hash.
func (c *Client) TransactionStatus(ctx context.Context, txHash string) (*providers.TxStatus, error) {
	return providers.ExecuteWithRetry(ctx, c.exec, "transaction_status",
		func(ctx context.Context) (*providers.TxStatus, error) {
			var status providers.TxStatus
			if err := c.call(ctx, http.MethodGet, "/transactions/"+txHash, nil, &status); err != nil {
				return nil, err
			}
			return &status, nil
		})
}

func (c *Client) fetchPairs(ctx context.Context) ([]providers.Pair, error) {
	var pairs []providers.Pair
	if err := c.call(ctx, http.MethodGet, "/pairs", nil, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

// call performs one HTTP round trip and tags the resulting error with the
// executor's failure taxonomy at this boundary.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return providers.Classified(providers.ClassPermanent, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return providers.Classified(providers.ClassPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return providers.Classified(providers.ClassRetryable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("ostium %s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
		return providers.Classified(classifyStatus(resp.StatusCode), err)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return providers.Classified(providers.ClassRetryable, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func classifyStatus(code int) providers.ErrorClass {
	switch {
	case code == http.StatusRequestTimeout:
		return providers.ClassTimeout
	case code == http.StatusTooManyRequests, code >= 500:
		return providers.ClassRetryable
	default:
		return providers.ClassPermanent
	}
}
