// Package birdeye adapts the Birdeye market-data API to the gateway envelope.
package birdeye

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/metrics"
)

const (
	// DefaultBaseURL is Birdeye's public API.
	DefaultBaseURL = "https://public-api.birdeye.so"

	// DefaultTimeframe is used when GetOHLCV is called without one.
	DefaultTimeframe = "15m"

	defaultTrendingLimit = 20
	defaultWindow        = 24 * time.Hour
)

var validTimeframes = map[string]bool{
	"1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1H": true, "2H": true, "4H": true, "6H": true, "8H": true, "12H": true,
	"1D": true, "3D": true, "1W": true, "1M": true,
}

// Client fetches prices, candles and ranked token lists.
type Client struct {
	provider *gateway.Provider
	req      *gateway.Requester
	now      func() time.Time
}

// NewClient creates a Birdeye client. The API key is required: without it no
// call can succeed, so construction fails instead.
func NewClient(apiKey, baseURL string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("birdeye: %w", gateway.ErrMissingAPIKey)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	provider := gateway.NewProvider("birdeye", m, logger)
	return &Client{
		provider: provider,
		req: gateway.NewRequester("birdeye", baseURL,
			gateway.WithHTTPClient(httpClient),
			gateway.WithHeader("X-API-KEY", apiKey),
			gateway.WithHeader("x-chain", "solana"),
			gateway.WithRequesterMetrics(m),
			gateway.WithRequesterLogger(provider.Logger()),
		),
		now: time.Now,
	}, nil
}

// GetPrice returns the current price of a single token.
func (c *Client) GetPrice(ctx context.Context, address string) gateway.Envelope[*PriceRecord] {
	return gateway.Invoke(ctx, c.provider, "price", func(ctx context.Context) (*PriceRecord, error) {
		q := url.Values{}
		q.Set("address", address)
		q.Set("include_liquidity", "true")

		var resp priceResponse
		if err := c.get(ctx, "/defi/price", q, &resp); err != nil {
			return nil, err
		}
		if resp.Data == nil {
			return nil, &gateway.ProviderError{Provider: "birdeye", Message: "no price data for " + address}
		}
		return resp.Data.toRecord(address), nil
	})
}

// GetMultiPrice returns prices for several tokens in one request. Addresses are
// sent as given. Tokens the provider does not return are left out of the map.
func (c *Client) GetMultiPrice(ctx context.Context, addresses []string) gateway.Envelope[map[string]*PriceRecord] {
	return gateway.Invoke(ctx, c.provider, "multi_price", func(ctx context.Context) (map[string]*PriceRecord, error) {
		q := url.Values{}
		q.Set("list_address", strings.Join(addresses, ","))
		q.Set("include_liquidity", "true")

		var resp multiPriceResponse
		if err := c.get(ctx, "/defi/multi_price", q, &resp); err != nil {
			return nil, err
		}

		prices := make(map[string]*PriceRecord, len(resp.Data))
		for address, data := range resp.Data {
			if data == nil {
				continue
			}
			prices[address] = data.toRecord(address)
		}
		return prices, nil
	})
}

// GetOHLCV returns candles for address. A nil from defaults to 24 hours before
// to, and a nil to defaults to now. Candles keep the provider's order.
func (c *Client) GetOHLCV(ctx context.Context, address, timeframe string, from, to *time.Time) gateway.Envelope[[]Candle] {
	return gateway.Invoke(ctx, c.provider, "ohlcv", func(ctx context.Context) ([]Candle, error) {
		if timeframe == "" {
			timeframe = DefaultTimeframe
		}
		if !validTimeframes[timeframe] {
			return nil, gateway.InvalidRequest(fmt.Errorf("unsupported timeframe %q", timeframe))
		}

		end := c.now()
		if to != nil {
			end = *to
		}
		start := end.Add(-defaultWindow)
		if from != nil {
			start = *from
		}
		if start.After(end) {
			return nil, gateway.InvalidRequest(fmt.Errorf("time_from %s is after time_to %s", start, end))
		}

		q := url.Values{}
		q.Set("address", address)
		q.Set("type", timeframe)
		q.Set("time_from", strconv.FormatInt(start.Unix(), 10))
		q.Set("time_to", strconv.FormatInt(end.Unix(), 10))

		var resp ohlcvResponse
		if err := c.get(ctx, "/defi/ohlcv", q, &resp); err != nil {
			return nil, err
		}

		candles := make([]Candle, len(resp.Data.Items))
		for i, item := range resp.Data.Items {
			candles[i] = Candle{
				UnixTime: item.UnixTime,
				Open:     item.O,
				High:     item.H,
				Low:      item.L,
				Close:    item.C,
				Volume:   item.V,
			}
		}
		return candles, nil
	})
}

// GetTrending returns the provider-ranked token list. Sorting is entirely the
// provider's; this layer only forwards the parameters.
func (c *Client) GetTrending(ctx context.Context, sortKey, direction string, offset, limit int) gateway.Envelope[[]TrendingToken] {
	return gateway.Invoke(ctx, c.provider, "trending", func(ctx context.Context) ([]TrendingToken, error) {
		if sortKey == "" {
			sortKey = "v24hUSD"
		}
		if direction == "" {
			direction = "desc"
		}
		if direction != "asc" && direction != "desc" {
			return nil, gateway.InvalidRequest(fmt.Errorf("sort direction must be asc or desc, got %q", direction))
		}
		if offset < 0 {
			return nil, gateway.InvalidRequest(fmt.Errorf("offset must not be negative"))
		}
		if limit <= 0 {
			limit = defaultTrendingLimit
		}

		q := url.Values{}
		q.Set("sort_by", sortKey)
		q.Set("sort_type", direction)
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(limit))

		var resp tokenListResponse
		if err := c.get(ctx, "/defi/tokenlist", q, &resp); err != nil {
			return nil, err
		}

		tokens := make([]TrendingToken, len(resp.Data.Tokens))
		for i, t := range resp.Data.Tokens {
			tokens[i] = TrendingToken{
				Address:           t.Address,
				Symbol:            t.Symbol,
				Name:              t.Name,
				Decimals:          t.Decimals,
				Price:             t.Price,
				Volume24hUSD:      t.V24hUSD,
				Volume24hChange:   t.V24hChangePercent,
				PriceChange24h:    t.PriceChange24h,
				MarketCap:         t.MC,
				Liquidity:         t.Liquidity,
				LastTradeUnixTime: t.LastTradeUnixTime,
			}
		}
		return tokens, nil
	})
}

// get performs the request and rejects bodies that report success=false,
// keeping the body for the envelope details.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	body, err := c.req.Do(ctx, http.MethodGet, path, q, nil, "")
	if err != nil {
		return err
	}

	var status struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return &gateway.ProviderError{Provider: "birdeye", Body: body, Message: fmt.Sprintf("failed to decode response: %v", err)}
	}
	if !status.Success {
		msg := status.Message
		if msg == "" {
			msg = "request unsuccessful"
		}
		return &gateway.ProviderError{Provider: "birdeye", Body: body, Message: msg}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &gateway.ProviderError{Provider: "birdeye", Body: body, Message: fmt.Sprintf("failed to decode response: %v", err)}
	}
	return nil
}
