// Package lighter implements the crypto-category venue client.
package lighter

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
const Name = "lighter"

// markets maps the numeric asset-type wire codes onto Lighter market
// symbols. Only crypto codes are meaningful here.
var markets = map[int]string{
	0: "BTC-USD",
	1: "ETH-USD",
}

// Client talks to the Lighter REST API. It implements the trading, price
// and settlement capabilities for crypto assets.
type Client struct {
	cfg  config.ProviderConfig
	log  *zap.Logger
	exec *providers.Executor
	http *http.Client
}

// New constructs an uninitialized client. It matches providers.Constructor.
func New(cfg config.ProviderConfig, log *zap.Logger) (providers.Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("lighter: base_url is required")
	}
	return &Client{
		cfg:  cfg,
		log:  log.Named(Name),
		exec: providers.NewExecutor(Name, cfg, log),
		http: &http.Client{Timeout: cfg.TimeoutDuration()},
	}, nil
}

func (c *Client) Name() string { return Name }

func (c *Client) Initialize(ctx context.Context) error {
	_, err := providers.ExecuteWithRetry(ctx, c.exec, "initialize",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.call(ctx, http.MethodGet, "/status", nil, nil)
		})
	if err != nil {
		return fmt.Errorf("lighter handshake: %w", err)
	}
	c.log.Info("initialized", zap.String("network", c.cfg.Network))
	return nil
}

func (c *Client) HealthCheck(ctx context.Context) bool {
	return c.call(ctx, http.MethodGet, "/status", nil, nil) == nil
}

func (c *Client) OpenTrade(ctx context.Context, req providers.OpenTradeRequest) (*providers.TradeReceipt, error) {
	market, err := marketFor(req.AssetType)
	if err != nil {
		return nil, err
	}
	return providers.ExecuteWithRetry(ctx, c.exec, "open_trade",
		func(ctx context.Context) (*providers.TradeReceipt, error) {
			body := map[string]any{
				"market":     market,
				"collateral": req.Collateral,
				"leverage":   req.Leverage,
				"side":       side(req.Long),
				"type":       req.OrderType,
			}
			if req.AtPrice != nil {
				body["price"] = *req.AtPrice
			}
			var receipt providers.TradeReceipt
			if err := c.call(ctx, http.MethodPost, "/orders", body, &receipt); err != nil {
				return nil, err
			}
			return &receipt, nil
		})
}

func (c *Client) CloseTrade(ctx context.Context, pairID, tradeIndex int) (*providers.TradeReceipt, error) {
	return providers.ExecuteWithRetry(ctx, c.exec, "close_trade",
		func(ctx context.Context) (*providers.TradeReceipt, error) {
			var receipt providers.TradeReceipt
			path := fmt.Sprintf("/orders/%d/%d/close", pairID, tradeIndex)
			if err := c.call(ctx, http.MethodPost, path, nil, &receipt); err != nil {
				return nil, err
			}
			return &receipt, nil
		})
}

func (c *Client) UpdateTakeProfit(ctx context.Context, pairID, tradeIndex int, price decimal.Decimal) error {
	return c.updateTrigger(ctx, "update_tp", pairID, tradeIndex, "tp", price)
}

func (c *Client) UpdateStopLoss(ctx context.Context, pairID, tradeIndex int, price decimal.Decimal) error {
	return c.updateTrigger(ctx, "update_sl", pairID, tradeIndex, "sl", price)
}

func (c *Client) updateTrigger(ctx context.Context, op string, pairID, tradeIndex int, kind string, price decimal.Decimal) error {
	_, err := providers.ExecuteWithRetry(ctx, c.exec, op,
		func(ctx context.Context) (struct{}, error) {
			path := fmt.Sprintf("/orders/%d/%d/%s", pairID, tradeIndex, kind)
			return struct{}{}, c.call(ctx, http.MethodPut, path, map[string]any{"price": price}, nil)
		})
	return err
}

func (c *Client) GetOpenTrades(ctx context.Context, trader string) ([]providers.Trade, error) {
	return providers.ExecuteWithRetry(ctx, c.exec, "get_open_trades",
		func(ctx context.Context) ([]providers.Trade, error) {
			var trades []providers.Trade
			if err := c.call(ctx, http.MethodGet, "/positions?account="+trader, nil, &trades); err != nil {
				return nil, err
			}
			return trades, nil
		})
}

func (c *Client) GetPairs(ctx context.Context) ([]providers.Pair, error) {
	return providers.ExecuteWithRetry(ctx, c.exec, "get_pairs",
		func(ctx context.Context) ([]providers.Pair, error) {
			var pairs []providers.Pair
			if err := c.call(ctx, http.MethodGet, "/markets", nil, &pairs); err != nil {
				return nil, err
			}
			return pairs, nil
		})
}

func (c *Client) GetPrice(ctx context.Context, asset, quote string) (*providers.PriceQuote, error) {
	return providers.ExecuteWithRetry(ctx, c.exec, "get_price",
		func(ctx context.Context) (*providers.PriceQuote, error) {
			var out struct {
				Mark      decimal.Decimal `json:"mark_price"`
				Timestamp int64           `json:"timestamp"`
			}
			path := fmt.Sprintf("/markets/%s-%s/price", asset, quote)
			if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
				return nil, err
			}
			return &providers.PriceQuote{
				Asset: asset, Quote: quote,
				Price: out.Mark, Timestamp: out.Timestamp, Source: Name,
			}, nil
		})
}

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

func (c *Client) ExecuteTrade(ctx context.Context, req providers.OpenTradeRequest) (*providers.TradeReceipt, error) {
	return c.OpenTrade(ctx, req)
}

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

func marketFor(assetType int) (string, error) {
	market, ok := markets[assetType]
	if !ok {
		return "", providers.Classified(providers.ClassPermanent,
			fmt.Errorf("lighter: invalid asset type %d", assetType))
	}
	return market, nil
}

func side(long bool) string {
	if long {
		return "buy"
	}
	return "sell"
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return providers.Classified(providers.ClassPermanent, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return providers.Classified(providers.ClassPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return providers.Classified(providers.ClassRetryable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("lighter %s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
		class := providers.ClassPermanent
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			class = providers.ClassRetryable
		}
		return providers.Classified(class, err)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return providers.Classified(providers.ClassRetryable, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
