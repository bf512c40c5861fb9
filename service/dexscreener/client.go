// Package dexscreener adapts DexScreener's pair lookups.
package dexscreener

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/metrics"
)

// DefaultBaseURL is the public DexScreener API.
const DefaultBaseURL = "https://api.dexscreener.com"

// Token identifies one side of a pair.
type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// TxnCounts counts buys and sells in a window.
type TxnCounts struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

// Pair is a trading pair on one DEX.
type Pair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	URL         string `json:"url"`
	PairAddress string `json:"pairAddress"`
	BaseToken   Token  `json:"baseToken"`
	QuoteToken  Token  `json:"quoteToken"`
	PriceNative string `json:"priceNative"`
	PriceUSD    string `json:"priceUsd,omitempty"`
	Txns        struct {
		H24 TxnCounts `json:"h24"`
	} `json:"txns"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Liquidity *struct {
		USD   float64 `json:"usd"`
		Base  float64 `json:"base"`
		Quote float64 `json:"quote"`
	} `json:"liquidity,omitempty"`
	FDV           float64 `json:"fdv,omitempty"`
	MarketCap     float64 `json:"marketCap,omitempty"`
	PairCreatedAt int64   `json:"pairCreatedAt,omitempty"`
}

type tokensResponse struct {
	SchemaVersion string `json:"schemaVersion"`
	Pairs         []Pair `json:"pairs"`
}

// Client looks up pairs.
type Client struct {
	provider *gateway.Provider
	req      *gateway.Requester
}

// NewClient creates a DexScreener client. The API needs no key.
func NewClient(baseURL string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	provider := gateway.NewProvider("dexscreener", m, logger)
	return &Client{
		provider: provider,
		req: gateway.NewRequester("dexscreener", baseURL,
			gateway.WithHTTPClient(httpClient),
			gateway.WithRequesterMetrics(m),
			gateway.WithRequesterLogger(provider.Logger()),
		),
	}
}

// GetTokenPairs returns every pair trading the token at address, in provider
// order. A token with no pairs yields an empty list.
func (c *Client) GetTokenPairs(ctx context.Context, address string) gateway.Envelope[[]Pair] {
	return gateway.Invoke(ctx, c.provider, "token_pairs", func(ctx context.Context) ([]Pair, error) {
		var resp tokensResponse
		if err := c.req.GetJSON(ctx, "/latest/dex/tokens/"+url.PathEscape(address), nil, &resp); err != nil {
			return nil, err
		}
		if resp.Pairs == nil {
			return []Pair{}, nil
		}
		return resp.Pairs, nil
	})
}
