package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/caesarbot/service/birdeye"
	"github.com/brojonat/caesarbot/service/db"
	"github.com/brojonat/caesarbot/service/dexscreener"
	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/helius"
	"github.com/brojonat/caesarbot/service/jupiter"
	"github.com/brojonat/caesarbot/service/metrics"
	"github.com/brojonat/caesarbot/service/nats"
	"github.com/brojonat/caesarbot/service/pumpfun"
	"github.com/brojonat/caesarbot/service/pumpportal"
	"github.com/brojonat/caesarbot/service/realtime"
	"github.com/brojonat/caesarbot/service/rugcheck"
	"github.com/brojonat/caesarbot/service/temporal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// PriceService is the price and market surface exposed by the proxy.
type PriceService interface {
	GetPrice(ctx context.Context, address string) gateway.Envelope[*birdeye.PriceRecord]
	GetMultiPrice(ctx context.Context, addresses []string) gateway.Envelope[map[string]*birdeye.PriceRecord]
	GetOHLCV(ctx context.Context, address, timeframe string, from, to *time.Time) gateway.Envelope[[]birdeye.Candle]
	GetTrending(ctx context.Context, sortKey, direction string, offset, limit int) gateway.Envelope[[]birdeye.TrendingToken]
}

// WalletService is the chain-state surface exposed by the proxy.
type WalletService interface {
	GetNativeBalance(ctx context.Context, address string) gateway.Envelope[float64]
	GetTokenAccounts(ctx context.Context, address string) gateway.Envelope[[]helius.TokenAccount]
	GetTransactionHistory(ctx context.Context, address string, limit int) gateway.Envelope[[]helius.Transaction]
	GetAsset(ctx context.Context, id string) gateway.Envelope[*helius.Asset]
	SearchAssets(ctx context.Context, owner string, page, limit int) gateway.Envelope[*helius.AssetPage]
	GetSnapshot(ctx context.Context, address string) helius.Snapshot
}

// SwapService builds quotes and unsigned swap transactions.
type SwapService interface {
	GetQuote(ctx context.Context, params jupiter.QuoteParams) gateway.Envelope[*jupiter.Quote]
	GetSwapTransaction(ctx context.Context, quote *jupiter.Quote, wallet string) gateway.Envelope[*jupiter.SwapTransaction]
}

// TradeService builds unsigned launchpad trades.
type TradeService interface {
	GetTradeTransaction(ctx context.Context, params pumpportal.TradeParams) gateway.Envelope[*pumpportal.TradeTransaction]
}

// StatsService serves the row store and its change subscriptions.
type StatsService interface {
	GetUserStats(ctx context.Context, wallet string) gateway.Envelope[*db.UserStats]
	UpsertUserStats(ctx context.Context, params db.UpsertUserStatsParams) gateway.Envelope[*db.UserStats]
	GetLeaderboard(ctx context.Context, limit int) gateway.Envelope[[]realtime.LeaderboardEntry]
	GetMissionProgress(ctx context.Context, wallet string) gateway.Envelope[[]*db.MissionProgress]
	UpsertMissionProgress(ctx context.Context, params db.UpsertMissionProgressParams) gateway.Envelope[*db.MissionProgress]
	GetMissions(ctx context.Context) gateway.Envelope[[]any]
	Subscribe(name string, filter realtime.Filter, callback func(*nats.ChangeEvent)) (*realtime.Handle, error)
}

// LaunchFeed streams launchpad events.
type LaunchFeed interface {
	Stream(ctx context.Context, sub pumpportal.Subscription, handler func(pumpportal.LaunchEvent)) error
}

// UploadService pins launch content.
type UploadService interface {
	UploadImage(ctx context.Context, data []byte, filename string) gateway.Envelope[*pumpfun.UploadResult]
	UploadMetadata(ctx context.Context, metadata pumpfun.TokenMetadata) gateway.Envelope[*pumpfun.UploadResult]
}

// ReportService serves token risk reports.
type ReportService interface {
	GetReportSummary(ctx context.Context, mint string) gateway.Envelope[*rugcheck.ReportSummary]
}

// PairService serves trading pair lookups.
type PairService interface {
	GetTokenPairs(ctx context.Context, address string) gateway.Envelope[[]dexscreener.Pair]
}

// Deps are the adapters behind the proxy routes. A nil dependency disables
// its routes.
type Deps struct {
	Prices    PriceService
	Wallets   WalletService
	Swaps     SwapService
	Trades    TradeService
	Stats     StatsService
	Uploads   UploadService
	Reports   ReportService
	Pairs     PairService
	Launches  LaunchFeed
	Scheduler temporal.Scheduler
}

// Options holds the server's tunables.
type Options struct {
	DefaultPollInterval time.Duration
	MinPollInterval     time.Duration
	AllowedOrigins      []string // defaults to all origins
}

// Server represents the HTTP proxy.
type Server struct {
	addr    string
	deps    Deps
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, deps Deps, opts Options, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultPollInterval == 0 {
		opts.DefaultPollInterval = 5 * time.Minute
	}
	if opts.MinPollInterval == 0 {
		opts.MinPollInterval = minPollInterval
	}
	return &Server{
		addr:    addr,
		deps:    deps,
		opts:    opts,
		metrics: m,
		logger:  logger,
	}
}

// Handler builds the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, pattern)(h))
	}
	d := s.deps

	if d.Prices != nil {
		handle("GET /api/v1/tokens/{address}/price", handleGetPrice(d.Prices))
		handle("POST /api/v1/prices", handleGetMultiPrice(d.Prices, s.logger))
		handle("GET /api/v1/tokens/{address}/ohlcv", handleGetOHLCV(d.Prices))
		handle("GET /api/v1/tokens/trending", handleGetTrending(d.Prices))
	}
	if d.Reports != nil {
		handle("GET /api/v1/tokens/{address}/report", handleGetReport(d.Reports))
	}
	if d.Pairs != nil {
		handle("GET /api/v1/tokens/{address}/pairs", handleGetPairs(d.Pairs))
	}
	if d.Wallets != nil {
		handle("GET /api/v1/wallets/{address}/balance", handleGetBalance(d.Wallets))
		handle("GET /api/v1/wallets/{address}/tokens", handleGetTokenAccounts(d.Wallets))
		handle("GET /api/v1/wallets/{address}/transactions", handleGetTransactions(d.Wallets))
		handle("GET /api/v1/wallets/{address}/assets", handleSearchAssets(d.Wallets))
		handle("GET /api/v1/wallets/{address}/snapshot", handleGetSnapshot(d.Wallets))
		handle("GET /api/v1/assets/{id}", handleGetAsset(d.Wallets))
	}
	if d.Swaps != nil {
		handle("GET /api/v1/swap/quote", handleGetQuote(d.Swaps))
		handle("POST /api/v1/swap/transaction", handleSwapTransaction(d.Swaps, s.logger))
	}
	if d.Trades != nil {
		handle("POST /api/v1/pump/trade", handlePumpTrade(d.Trades, s.logger))
	}
	if d.Stats != nil {
		handle("GET /api/v1/stats/{address}", handleGetUserStats(d.Stats))
		handle("PUT /api/v1/stats/{address}", handleUpsertUserStats(d.Stats, s.logger))
		handle("GET /api/v1/leaderboard", handleGetLeaderboard(d.Stats))
		handle("GET /api/v1/missions", handleGetMissions(d.Stats))
		handle("GET /api/v1/missions/{address}", handleGetMissionProgress(d.Stats))
		handle("PUT /api/v1/missions/{address}", handleUpsertMissionProgress(d.Stats, s.logger))
		// SSE streams are long-lived; the request histogram would only measure disconnects.
		mux.Handle("GET /api/v1/stream/stats/{address}", handleStreamStats(d.Stats, s.metrics, s.logger))
		mux.Handle("GET /api/v1/stream/snapshots/{address}", handleStreamSnapshots(d.Stats, s.metrics, s.logger))
	}
	if d.Launches != nil {
		mux.Handle("GET /api/v1/stream/launches", handleStreamLaunches(d.Launches, s.metrics, s.logger))
	}
	if d.Uploads != nil {
		handle("POST /api/v1/upload/image", handleUploadImage(d.Uploads, s.logger))
		handle("POST /api/v1/upload/metadata", handleUploadMetadata(d.Uploads, s.logger))
	}
	if d.Scheduler != nil {
		handle("POST /api/v1/watch", handleWatchWallet(d.Scheduler, s.opts, s.logger))
		handle("DELETE /api/v1/watch/{address}", handleUnwatchWallet(d.Scheduler, s.logger))
	}

	handle("GET /api/v1/scan", handleNotImplemented("scan_tokens"))
	handle("GET /api/v1/airdrops", handleNotImplemented("get_airdrops"))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         3600,
	}).Handler(mux)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: SSE responses stay open.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
