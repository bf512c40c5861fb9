package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/caesarbot/service/birdeye"
	"github.com/brojonat/caesarbot/service/db"
	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/nats"
	"github.com/brojonat/caesarbot/service/pumpportal"
	"github.com/brojonat/caesarbot/service/realtime"
	"github.com/brojonat/caesarbot/service/temporal"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	testMint   = "So11111111111111111111111111111111111111112"
	usdcMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// statsStore is an in-memory realtime.Store.
type statsStore struct {
	mu    sync.Mutex
	stats map[string]*db.UserStats
}

func newStatsStore() *statsStore {
	return &statsStore{stats: make(map[string]*db.UserStats)}
}

func (s *statsStore) GetUserStats(ctx context.Context, wallet string) (*db.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.stats[wallet]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return row, nil
}

func (s *statsStore) UpsertUserStats(ctx context.Context, p db.UpsertUserStatsParams) (*db.UserStats, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.stats[p.WalletAddress]
	if !ok {
		row = &db.UserStats{WalletAddress: p.WalletAddress}
		s.stats[p.WalletAddress] = row
	}
	if p.XP != nil {
		row.XP = *p.XP
	}
	row.LastActivity = p.LastActivity
	return row, !ok, nil
}

func (s *statsStore) ListTopUserStats(ctx context.Context, limit int32) ([]*db.UserStats, error) {
	return nil, nil
}

func (s *statsStore) ListMissionProgress(ctx context.Context, wallet string) ([]*db.MissionProgress, error) {
	return []*db.MissionProgress{}, nil
}

func (s *statsStore) UpsertMissionProgress(ctx context.Context, p db.UpsertMissionProgressParams) (*db.MissionProgress, bool, error) {
	return &db.MissionProgress{
		WalletAddress: p.WalletAddress,
		MissionID:     p.MissionID,
		Progress:      p.Progress,
		Target:        p.Target,
		Completed:     p.Progress >= p.Target,
	}, true, nil
}

type testEnv struct {
	handler   http.Handler
	prices    *fakePrices
	wallets   *fakeWallets
	swaps     *fakeSwaps
	trades    *fakeTrades
	uploads   *fakeUploads
	feed      *fakeFeed
	stats     *realtime.Service
	bus       *nats.MockBus
	scheduler *temporal.MockScheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	bus := nats.NewMockBus()
	feed := &fakeFeed{
		events: []pumpportal.LaunchEvent{{Signature: "sig1", Mint: testMint, TxType: "create", Symbol: "CAESAR"}},
		gotSub: make(chan pumpportal.Subscription, 1),
	}
	env := &testEnv{
		prices:    &fakePrices{},
		wallets:   &fakeWallets{},
		swaps:     &fakeSwaps{},
		trades:    &fakeTrades{},
		uploads:   &fakeUploads{},
		feed:      feed,
		bus:       bus,
		stats:     realtime.NewService(newStatsStore(), bus, nil, logger),
		scheduler: temporal.NewMockScheduler(),
	}
	srv := New(":0", Deps{
		Prices:    env.prices,
		Wallets:   env.wallets,
		Swaps:     env.swaps,
		Trades:    env.trades,
		Stats:     env.stats,
		Uploads:   env.uploads,
		Launches:  env.feed,
		Scheduler: env.scheduler,
	}, Options{DefaultPollInterval: 5 * time.Minute, MinPollInterval: 30 * time.Second}, nil, logger)
	env.handler = srv.Handler()
	return env
}

// envelope is the decoded response body.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *gateway.Error  `json:"error"`
	Timestamp int64           `json:"timestamp"`
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, contentType string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var out envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		env    gateway.Envelope[*birdeye.PriceRecord]
		status int
	}{
		{"success", gateway.Ok(&birdeye.PriceRecord{Value: 1.5}), http.StatusOK},
		{"invalid request", gateway.Fail[*birdeye.PriceRecord](gateway.InvalidRequest(errors.New("bad address"))), http.StatusBadRequest},
		{"provider failure", gateway.Fail[*birdeye.PriceRecord](&gateway.ProviderError{Provider: "birdeye", StatusCode: 429, Message: "rate limited"}), http.StatusBadGateway},
		{"not implemented", gateway.NotImplemented[*birdeye.PriceRecord]("x"), http.StatusNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.prices.price = tt.env

			status, body := e.do(t, http.MethodGet, "/api/v1/tokens/"+testMint+"/price", nil, "")
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.env.Success, body.Success)
			assert.NotZero(t, body.Timestamp)
			if !tt.env.Success {
				require.NotNil(t, body.Error)
				assert.NotEmpty(t, body.Error.Message)
				assert.Equal(t, tt.env.Error.Code, body.Error.Code)
			}
		})
	}
}

func TestNotImplementedRoutes(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/api/v1/scan", "/api/v1/airdrops", "/api/v1/missions"} {
		status, body := e.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusNotImplemented, status, path)
		require.NotNil(t, body.Error)
		assert.Equal(t, gateway.CodeNotImplemented, body.Error.Code)
	}
}

func TestMultiPrice(t *testing.T) {
	e := newTestEnv(t)
	e.prices.multi = gateway.Ok(map[string]*birdeye.PriceRecord{testMint: {Address: testMint}})

	status, body := e.do(t, http.MethodPost, "/api/v1/prices",
		strings.NewReader(`{"addresses":["`+testMint+`","`+usdcMint+`"]}`), "application/json")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
	assert.Equal(t, []string{testMint, usdcMint}, e.prices.gotMulti)

	status, body = e.do(t, http.MethodPost, "/api/v1/prices", strings.NewReader(`{"addresses":`), "application/json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, gateway.CodeInvalidRequest, body.Error.Code)
	assert.Contains(t, body.Error.Message, "invalid request body")
}

func TestRequestBodyTooLarge(t *testing.T) {
	e := newTestEnv(t)
	huge := `{"addresses":["` + strings.Repeat("A", 2*maxRequestBodySize) + `"]}`

	status, body := e.do(t, http.MethodPost, "/api/v1/prices", strings.NewReader(huge), "application/json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body.Error.Message, "request body too large")
}

func TestOHLCVAndTrendingQueryParsing(t *testing.T) {
	e := newTestEnv(t)

	status, _ := e.do(t, http.MethodGet, "/api/v1/tokens/"+testMint+"/ohlcv?timeframe=1H&from=1700000000&to=1700003600", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1H", e.prices.gotFrame)
	require.NotNil(t, e.prices.gotFrom)
	assert.Equal(t, int64(1700000000), e.prices.gotFrom.Unix())
	assert.Equal(t, int64(1700003600), e.prices.gotTo.Unix())

	status, body := e.do(t, http.MethodGet, "/api/v1/tokens/"+testMint+"/ohlcv?from=yesterday", nil, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body.Error.Message, "unix seconds")

	status, _ = e.do(t, http.MethodGet, "/api/v1/tokens/trending?offset=20&limit=5", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 20, e.prices.gotOffset)
	assert.Equal(t, 5, e.prices.gotLimit)

	status, _ = e.do(t, http.MethodGet, "/api/v1/tokens/trending?limit=many", nil, "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWalletRoutes(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.do(t, http.MethodGet, "/api/v1/wallets/"+testWallet+"/balance", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `2.5`, string(body.Data))

	status, _ = e.do(t, http.MethodGet, "/api/v1/wallets/"+testWallet+"/transactions?limit=25", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 25, e.wallets.gotLimit)

	status, body = e.do(t, http.MethodGet, "/api/v1/assets/asset-1", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body.Data), `"asset-1"`)

	// A snapshot with one failed side is still delivered, with the failure inside.
	status, body = e.do(t, http.MethodGet, "/api/v1/wallets/"+testWallet+"/snapshot", nil, "")
	assert.Equal(t, http.StatusOK, status)
	var snap struct {
		Native gateway.Envelope[float64]  `json:"native"`
		Tokens gateway.Envelope[[]string] `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &snap))
	assert.True(t, snap.Native.Success)
	assert.False(t, snap.Tokens.Success)
	assert.Equal(t, "500", snap.Tokens.Error.Code)
}

func TestSwapRoutes(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.do(t, http.MethodGet,
		"/api/v1/swap/quote?input_mint="+testMint+"&output_mint="+usdcMint+"&amount=1000000&slippage_bps=100", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
	assert.Equal(t, uint64(1_000_000), e.swaps.gotParams.Amount)
	assert.Equal(t, 100, e.swaps.gotParams.SlippageBps)

	status, body = e.do(t, http.MethodGet, "/api/v1/swap/quote?input_mint="+testMint+"&amount=-5", nil, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, gateway.CodeInvalidRequest, body.Error.Code)

	// Stale quotes are the caller's problem, so they map to 400.
	status, body = e.do(t, http.MethodPost, "/api/v1/swap/transaction",
		strings.NewReader(`{"quote":{"inputMint":"`+testMint+`","inAmount":"5"},"wallet":"`+testWallet+`"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "QUOTE_STALE", body.Error.Code)
	require.NotNil(t, e.swaps.gotQuote)
	assert.Equal(t, uint64(5), e.swaps.gotQuote.InAmount)
	assert.Equal(t, testWallet, e.swaps.gotWallet)
}

func TestPumpTrade(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.do(t, http.MethodPost, "/api/v1/pump/trade", strings.NewReader(`{
		"publicKey": "`+testWallet+`",
		"action": "buy",
		"mint": "`+testMint+`",
		"amount": 0.5,
		"denominatedInSol": "true",
		"slippage": 10,
		"priorityFee": 0.0001
	}`), "application/json")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
	assert.True(t, e.trades.got.DenominatedInSol)
	assert.Equal(t, "buy", e.trades.got.Action)
}

func TestStatsRoutes(t *testing.T) {
	e := newTestEnv(t)

	// Unknown wallet is a success with no data.
	status, body := e.do(t, http.MethodGet, "/api/v1/stats/"+testWallet, nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
	assert.True(t, len(body.Data) == 0 || string(body.Data) == "null")

	status, body = e.do(t, http.MethodPut, "/api/v1/stats/"+testWallet, strings.NewReader(`{"xp": 120}`), "application/json")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
	assert.Contains(t, string(body.Data), testWallet)

	events := e.bus.GetPublishedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.TableUserStats, events[0].Table)
	assert.Equal(t, nats.ChangeInsert, events[0].Type)

	status, body = e.do(t, http.MethodPut, "/api/v1/stats/not-a-wallet", strings.NewReader(`{"xp": 1}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, gateway.CodeInvalidRequest, body.Error.Code)

	status, body = e.do(t, http.MethodPut, "/api/v1/missions/"+testWallet,
		strings.NewReader(`{"mission_id":"first-trade","progress":1,"target":1}`), "application/json")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body.Data), `"completed":true`)
}

func TestUploadRoutes(t *testing.T) {
	e := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "logo.png")
	require.NoError(t, err)
	part.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())

	status, body := e.do(t, http.MethodPost, "/api/v1/upload/image", &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body.Data), "ipfs://image")
	assert.Equal(t, "logo.png", e.uploads.gotFilename)
	assert.Equal(t, []byte("png-bytes"), e.uploads.gotData)

	status, body = e.do(t, http.MethodPost, "/api/v1/upload/image", strings.NewReader("x"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body.Error.Message, `"file"`)

	status, _ = e.do(t, http.MethodPost, "/api/v1/upload/metadata",
		strings.NewReader(`{"name":"Caesar","symbol":"CSR","showName":true}`), "application/json")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "CSR", e.uploads.gotMeta.Symbol)
}

func TestWatchRoutes(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name     string
		body     string
		status   int
		interval time.Duration
	}{
		{"default interval", `{"address":"` + testWallet + `"}`, http.StatusOK, 5 * time.Minute},
		{"custom interval", `{"address":"` + testWallet + `","poll_interval":"1m"}`, http.StatusOK, time.Minute},
		{"below minimum", `{"address":"` + testWallet + `","poll_interval":"5s"}`, http.StatusBadRequest, 0},
		{"above maximum", `{"address":"` + testWallet + `","poll_interval":"48h"}`, http.StatusBadRequest, 0},
		{"bad duration", `{"address":"` + testWallet + `","poll_interval":"soon"}`, http.StatusBadRequest, 0},
		{"bad address", `{"address":"0OIl"}`, http.StatusBadRequest, 0},
		{"malformed JSON", `{"address":`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := e.do(t, http.MethodPost, "/api/v1/watch", strings.NewReader(tt.body), "application/json")
			assert.Equal(t, tt.status, status)
			if tt.status == http.StatusOK {
				interval, ok := e.scheduler.ScheduleInterval(testWallet)
				require.True(t, ok)
				assert.Equal(t, tt.interval, interval)
				assert.Contains(t, string(body.Data), tt.interval.String())
			} else {
				assert.Equal(t, gateway.CodeInvalidRequest, body.Error.Code)
			}
		})
	}

	assert.Equal(t, 1, e.scheduler.ScheduleCount())

	status, _ := e.do(t, http.MethodDelete, "/api/v1/watch/"+testWallet, nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Zero(t, e.scheduler.ScheduleCount())

	// Deleting an unknown schedule is a scheduler failure.
	status, body := e.do(t, http.MethodDelete, "/api/v1/watch/"+testWallet, nil, "")
	assert.Equal(t, http.StatusBadGateway, status)
	assert.False(t, body.Success)
}

func TestWatchSchedulerError(t *testing.T) {
	e := newTestEnv(t)
	e.scheduler.SetUpsertError(errors.New("temporal unavailable"))

	status, body := e.do(t, http.MethodPost, "/api/v1/watch", strings.NewReader(`{"address":"`+testWallet+`"}`), "application/json")
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Contains(t, body.Error.Message, "temporal unavailable")
}

func TestHealthAndCORS(t *testing.T) {
	e := newTestEnv(t)

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/leaderboard", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_AllowedOrigins(t *testing.T) {
	srv := New(":0", Deps{}, Options{AllowedOrigins: []string{"https://app.caesarbot.io"}}, nil,
		slog.New(slog.NewJSONHandler(io.Discard, nil)))
	h := srv.Handler()

	for origin, want := range map[string]string{
		"https://app.caesarbot.io": "https://app.caesarbot.io",
		"https://evil.example.com": "",
	} {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/scan", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Header().Get("Access-Control-Allow-Origin"), origin)
	}
}

func TestDisabledRoutes(t *testing.T) {
	srv := New(":0", Deps{}, Options{}, nil, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/wallets/"+testWallet+"/balance", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
