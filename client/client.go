// Package client is the Go HTTP client for the caesarbot proxy.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/caesarbot/service/birdeye"
	"github.com/brojonat/caesarbot/service/db"
	"github.com/brojonat/caesarbot/service/dexscreener"
	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/helius"
	"github.com/brojonat/caesarbot/service/jupiter"
	"github.com/brojonat/caesarbot/service/nats"
	"github.com/brojonat/caesarbot/service/pumpfun"
	"github.com/brojonat/caesarbot/service/pumpportal"
	"github.com/brojonat/caesarbot/service/realtime"
	"github.com/brojonat/caesarbot/service/rugcheck"
)

// Client is the HTTP client for the caesarbot proxy. Every call returns the
// proxy's envelope; the error return is reserved for transport failures and
// bodies that are not envelopes.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new proxy client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetPrice fetches a token's current price.
func (c *Client) GetPrice(ctx context.Context, address string) (gateway.Envelope[*birdeye.PriceRecord], error) {
	return call[*birdeye.PriceRecord](ctx, c, http.MethodGet, "/api/v1/tokens/"+url.PathEscape(address)+"/price", nil, nil)
}

// GetMultiPrice fetches prices for several tokens at once.
func (c *Client) GetMultiPrice(ctx context.Context, addresses []string) (gateway.Envelope[map[string]*birdeye.PriceRecord], error) {
	return call[map[string]*birdeye.PriceRecord](ctx, c, http.MethodPost, "/api/v1/prices", nil,
		map[string][]string{"addresses": addresses})
}

// GetTrending fetches the provider-ranked token list. Empty sort fields use
// the server defaults.
func (c *Client) GetTrending(ctx context.Context, sortBy, sortType string, offset, limit int) (gateway.Envelope[[]birdeye.TrendingToken], error) {
	q := url.Values{}
	if sortBy != "" {
		q.Set("sort_by", sortBy)
	}
	if sortType != "" {
		q.Set("sort_type", sortType)
	}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	return call[[]birdeye.TrendingToken](ctx, c, http.MethodGet, "/api/v1/tokens/trending", q, nil)
}

// GetReport fetches a token's risk report summary.
func (c *Client) GetReport(ctx context.Context, mint string) (gateway.Envelope[*rugcheck.ReportSummary], error) {
	return call[*rugcheck.ReportSummary](ctx, c, http.MethodGet, "/api/v1/tokens/"+url.PathEscape(mint)+"/report", nil, nil)
}

// GetPairs fetches the trading pairs of a token.
func (c *Client) GetPairs(ctx context.Context, address string) (gateway.Envelope[[]dexscreener.Pair], error) {
	return call[[]dexscreener.Pair](ctx, c, http.MethodGet, "/api/v1/tokens/"+url.PathEscape(address)+"/pairs", nil, nil)
}

// GetBalance fetches a wallet's native balance in whole SOL.
func (c *Client) GetBalance(ctx context.Context, address string) (gateway.Envelope[float64], error) {
	return call[float64](ctx, c, http.MethodGet, walletPath(address, "balance"), nil, nil)
}

// GetTokenAccounts fetches a wallet's token holdings.
func (c *Client) GetTokenAccounts(ctx context.Context, address string) (gateway.Envelope[[]helius.TokenAccount], error) {
	return call[[]helius.TokenAccount](ctx, c, http.MethodGet, walletPath(address, "tokens"), nil, nil)
}

// GetTransactions fetches a wallet's parsed transaction history.
func (c *Client) GetTransactions(ctx context.Context, address string, limit int) (gateway.Envelope[[]helius.Transaction], error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return call[[]helius.Transaction](ctx, c, http.MethodGet, walletPath(address, "transactions"), q, nil)
}

// GetSnapshot fetches a wallet's balance and holdings together.
func (c *Client) GetSnapshot(ctx context.Context, address string) (gateway.Envelope[helius.Snapshot], error) {
	return call[helius.Snapshot](ctx, c, http.MethodGet, walletPath(address, "snapshot"), nil, nil)
}

// GetQuote requests a swap quote.
func (c *Client) GetQuote(ctx context.Context, params jupiter.QuoteParams) (gateway.Envelope[*jupiter.Quote], error) {
	q := url.Values{}
	q.Set("input_mint", params.InputMint)
	q.Set("output_mint", params.OutputMint)
	q.Set("amount", strconv.FormatUint(params.Amount, 10))
	if params.SlippageBps > 0 {
		q.Set("slippage_bps", strconv.Itoa(params.SlippageBps))
	}
	if params.SwapMode != "" {
		q.Set("swap_mode", params.SwapMode)
	}
	return call[*jupiter.Quote](ctx, c, http.MethodGet, "/api/v1/swap/quote", q, nil)
}

// GetSwapTransaction builds the unsigned swap transaction for a quote.
func (c *Client) GetSwapTransaction(ctx context.Context, quote *jupiter.Quote, wallet string) (gateway.Envelope[*jupiter.SwapTransaction], error) {
	return call[*jupiter.SwapTransaction](ctx, c, http.MethodPost, "/api/v1/swap/transaction", nil,
		map[string]any{"quote": quote, "wallet": wallet})
}

// GetTradeTransaction builds an unsigned launchpad trade.
func (c *Client) GetTradeTransaction(ctx context.Context, params pumpportal.TradeParams) (gateway.Envelope[*pumpportal.TradeTransaction], error) {
	return call[*pumpportal.TradeTransaction](ctx, c, http.MethodPost, "/api/v1/pump/trade", nil, params)
}

// GetUserStats fetches a wallet's stats. Data is nil for unknown wallets.
func (c *Client) GetUserStats(ctx context.Context, address string) (gateway.Envelope[*db.UserStats], error) {
	return call[*db.UserStats](ctx, c, http.MethodGet, "/api/v1/stats/"+url.PathEscape(address), nil, nil)
}

// UpsertUserStats merges params into a wallet's stats.
func (c *Client) UpsertUserStats(ctx context.Context, params db.UpsertUserStatsParams) (gateway.Envelope[*db.UserStats], error) {
	return call[*db.UserStats](ctx, c, http.MethodPut, "/api/v1/stats/"+url.PathEscape(params.WalletAddress), nil, params)
}

// GetLeaderboard fetches the top wallets by xp.
func (c *Client) GetLeaderboard(ctx context.Context, limit int) (gateway.Envelope[[]realtime.LeaderboardEntry], error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return call[[]realtime.LeaderboardEntry](ctx, c, http.MethodGet, "/api/v1/leaderboard", q, nil)
}

// UploadImage uploads image bytes for a token launch.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (gateway.Envelope[*pumpfun.UploadResult], error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return gateway.Envelope[*pumpfun.UploadResult]{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return gateway.Envelope[*pumpfun.UploadResult]{}, fmt.Errorf("failed to read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return gateway.Envelope[*pumpfun.UploadResult]{}, fmt.Errorf("failed to finish form: %w", err)
	}
	return send[*pumpfun.UploadResult](ctx, c, http.MethodPost, "/api/v1/upload/image", nil, &buf, mw.FormDataContentType())
}

// UploadMetadata pins a token metadata document.
func (c *Client) UploadMetadata(ctx context.Context, metadata pumpfun.TokenMetadata) (gateway.Envelope[*pumpfun.UploadResult], error) {
	return call[*pumpfun.UploadResult](ctx, c, http.MethodPost, "/api/v1/upload/metadata", nil, metadata)
}

// WatchResult describes a wallet's snapshot schedule.
type WatchResult struct {
	Address      string `json:"address"`
	PollInterval string `json:"poll_interval"`
}

// Watch starts (or reschedules) periodic snapshots of a wallet. A zero
// interval uses the server default.
func (c *Client) Watch(ctx context.Context, address string, interval time.Duration) (gateway.Envelope[WatchResult], error) {
	body := map[string]string{"address": address}
	if interval > 0 {
		body["poll_interval"] = interval.String()
	}
	return call[WatchResult](ctx, c, http.MethodPost, "/api/v1/watch", nil, body)
}

// Unwatch stops periodic snapshots of a wallet.
func (c *Client) Unwatch(ctx context.Context, address string) (gateway.Envelope[WatchResult], error) {
	return call[WatchResult](ctx, c, http.MethodDelete, "/api/v1/watch/"+url.PathEscape(address), nil, nil)
}

// Stream names accepted by StreamChanges.
const (
	StreamStats     = "stats"
	StreamSnapshots = "snapshots"
)

// StreamChanges follows a wallet's change stream until ctx is done or handler
// returns an error. jq optionally filters events server-side.
func (c *Client) StreamChanges(ctx context.Context, stream, address, jq string, handler func(*nats.ChangeEvent) error) error {
	u := fmt.Sprintf("%s/api/v1/stream/%s/%s", c.baseURL, stream, url.PathEscape(address))
	if jq != "" {
		u += "?" + url.Values{"jq": {jq}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// No timeout for streaming
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()

		// Empty line indicates end of event
		if line == "" {
			if event != "" && event != "connected" && data != "" {
				var change nats.ChangeEvent
				if err := json.Unmarshal([]byte(data), &change); err != nil {
					c.logger.Warn("failed to decode stream event", "event", event, "error", err)
				} else if err := handler(&change); err != nil {
					return err
				}
			}
			event, data = "", ""
			continue
		}

		if strings.HasPrefix(line, "event:") {
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error reading stream: %w", err)
	}
	return nil
}

func walletPath(address, resource string) string {
	return "/api/v1/wallets/" + url.PathEscape(address) + "/" + resource
}

// call sends an optional JSON body and decodes the envelope.
func call[T any](ctx context.Context, c *Client, method, path string, q url.Values, in any) (gateway.Envelope[T], error) {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return gateway.Envelope[T]{}, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return send[T](ctx, c, method, path, q, body, contentType)
}

func send[T any](ctx context.Context, c *Client, method, path string, q url.Values, body io.Reader, contentType string) (gateway.Envelope[T], error) {
	var env gateway.Envelope[T]

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return env, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return env, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return env, fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Timestamp == 0 {
		return env, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	c.logger.Debug("proxy call", "method", method, "path", path, "status", resp.StatusCode, "success", env.Success)
	return env, nil
}

// parseErrorResponse attempts to parse an error response from the server.
func parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error *gateway.Error `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == nil {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %w", errResp.Error)
}
