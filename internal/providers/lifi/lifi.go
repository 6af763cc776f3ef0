// Package lifi implements the cross-chain swap provider client.
package lifi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/perpgate/perpgate/internal/config"
	"github.com/perpgate/perpgate/internal/providers"
)

// Name is the registry name of this provider.
const Name = "lifi"

// Client talks to the LI.FI quote API.
type Client struct {
	cfg  config.ProviderConfig
	log  *zap.Logger
	exec *providers.Executor
	http *http.Client
}

// New constructs an uninitialized client. It matches providers.Constructor.
func New(cfg config.ProviderConfig, log *zap.Logger) (providers.Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("lifi: base_url is required")
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
			return struct{}{}, c.get(ctx, "/chains", nil)
		})
	if err != nil {
		return fmt.Errorf("lifi handshake: %w", err)
	}
	c.log.Info("initialized")
	return nil
}

func (c *Client) HealthCheck(ctx context.Context) bool {
	return c.get(ctx, "/chains", nil) == nil
}

// Quote prices a cross-chain swap route.
func (c *Client) Quote(ctx context.Context, req providers.SwapQuoteRequest) (*providers.SwapQuote, error) {
	return providers.ExecuteWithRetry(ctx, c.exec, "quote",
		func(ctx context.Context) (*providers.SwapQuote, error) {
			params := url.Values{}
			params.Set("fromChain", req.FromChain)
			params.Set("toChain", req.ToChain)
			params.Set("fromToken", req.FromToken)
			params.Set("toToken", req.ToToken)
			params.Set("fromAmount", req.Amount.String())
			params.Set("fromAddress", req.FromAddress)

			var out struct {
				Tool     string `json:"tool"`
				Estimate struct {
					FromAmount decimal.Decimal `json:"fromAmount"`
					ToAmount   decimal.Decimal `json:"toAmount"`
					GasCosts   []struct {
						Amount decimal.Decimal `json:"amount"`
					} `json:"gasCosts"`
				} `json:"estimate"`
			}
			if err := c.get(ctx, "/quote?"+params.Encode(), &out); err != nil {
				return nil, err
			}

			quote := &providers.SwapQuote{
				Tool:       out.Tool,
				FromAmount: out.Estimate.FromAmount,
				ToAmount:   out.Estimate.ToAmount,
			}
			for _, gas := range out.Estimate.GasCosts {
				quote.EstimatedGas = quote.EstimatedGas.Add(gas.Amount)
			}
			return quote, nil
		})
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return providers.Classified(providers.ClassPermanent, err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("x-lifi-api-key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return providers.Classified(providers.ClassRetryable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		class := providers.ClassPermanent
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			class = providers.ClassRetryable
		}
		return providers.Classified(class,
			fmt.Errorf("lifi GET %s: status %d", path, resp.StatusCode))
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
