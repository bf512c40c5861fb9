// Package jupiter adapts the Jupiter swap aggregator's quote and swap
// endpoints to the gateway envelope.
package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/metrics"
)

const (
	// DefaultBaseURL is the public Jupiter v6 API.
	DefaultBaseURL = "https://quote-api.jup.ag/v6"

	// DefaultSlippageBps is applied when a request leaves slippage unset.
	DefaultSlippageBps = 50

	// CodeQuoteStale is the envelope code for quotes older than MaxQuoteAge.
	CodeQuoteStale = "QUOTE_STALE"
)

// ErrQuoteStale is returned when a quote is too old to build a swap from.
var ErrQuoteStale = errors.New("quote is stale")

// Client fetches quotes and unsigned swap transactions.
type Client struct {
	provider    *gateway.Provider
	req         *gateway.Requester
	maxQuoteAge time.Duration
	now         func() time.Time
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithMaxQuoteAge rejects swaps built from quotes older than d. Zero disables
// the check.
func WithMaxQuoteAge(d time.Duration) Option {
	return func(c *Client) {
		c.maxQuoteAge = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Jupiter client. The API needs no key.
func NewClient(baseURL string, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		provider: gateway.NewProvider("jupiter", m, logger),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.req = gateway.NewRequester("jupiter", baseURL,
		gateway.WithHTTPClient(c.httpClient),
		gateway.WithRequesterMetrics(m),
		gateway.WithRequesterLogger(c.provider.Logger()),
	)
	return c
}

// GetQuote requests a quote. Slippage defaults to 50 bps and mode to ExactIn.
func (c *Client) GetQuote(ctx context.Context, params QuoteParams) gateway.Envelope[*Quote] {
	return gateway.Invoke(ctx, c.provider, "quote", func(ctx context.Context) (*Quote, error) {
		if params.SlippageBps == 0 {
			params.SlippageBps = DefaultSlippageBps
		}
		if params.SwapMode == "" {
			params.SwapMode = SwapModeExactIn
		}
		if err := gateway.Validate(params); err != nil {
			return nil, err
		}

		q := url.Values{}
		q.Set("inputMint", params.InputMint)
		q.Set("outputMint", params.OutputMint)
		q.Set("amount", strconv.FormatUint(params.Amount, 10))
		q.Set("slippageBps", strconv.Itoa(params.SlippageBps))
		q.Set("swapMode", params.SwapMode)

		body, err := c.req.Do(ctx, http.MethodGet, "/quote", q, nil, "")
		if err != nil {
			return nil, err
		}

		var quote Quote
		if err := json.Unmarshal(body, &quote); err != nil {
			return nil, &gateway.ProviderError{Provider: "jupiter", Body: body, Message: fmt.Sprintf("failed to decode quote: %v", err)}
		}
		quote.FetchedAt = c.now()
		quote.Raw = body
		return &quote, nil
	})
}

// GetSwapTransaction builds the unsigned swap transaction for quote and
// wallet. Signing and submission are the caller's job.
func (c *Client) GetSwapTransaction(ctx context.Context, quote *Quote, wallet string) gateway.Envelope[*SwapTransaction] {
	return gateway.Invoke(ctx, c.provider, "swap", func(ctx context.Context) (*SwapTransaction, error) {
		if quote == nil {
			return nil, gateway.InvalidRequest(errors.New("quote is required"))
		}
		if err := gateway.Validate(struct {
			Wallet string `validate:"required,solana_pubkey"`
		}{wallet}); err != nil {
			return nil, err
		}
		if err := c.checkFresh(quote); err != nil {
			return nil, err
		}

		raw := quote.Raw
		if len(raw) == 0 {
			b, err := json.Marshal(quote)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal quote: %w", err)
			}
			raw = b
		}

		var out SwapTransaction
		req := swapRequest{QuoteResponse: raw, UserPublicKey: wallet, WrapAndUnwrapSol: true}
		if err := c.req.PostJSON(ctx, "/swap", req, &out); err != nil {
			return nil, err
		}
		if out.SwapTransaction == "" {
			return nil, &gateway.ProviderError{Provider: "jupiter", Message: "swap response has no transaction"}
		}
		return &out, nil
	})
}

// checkFresh enforces maxQuoteAge. With the check on, a quote without a
// fetch time cannot be proven fresh and is rejected.
func (c *Client) checkFresh(quote *Quote) error {
	if c.maxQuoteAge <= 0 {
		return nil
	}
	if quote.FetchedAt.IsZero() {
		return gateway.WithCode(fmt.Errorf("%w: quote has no fetch time", ErrQuoteStale), CodeQuoteStale)
	}
	age := c.now().Sub(quote.FetchedAt)
	if age > c.maxQuoteAge {
		return gateway.WithCode(fmt.Errorf("%w: fetched %s ago, max %s", ErrQuoteStale, age.Round(time.Millisecond), c.maxQuoteAge), CodeQuoteStale)
	}
	return nil
}
