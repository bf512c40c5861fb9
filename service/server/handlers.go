package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/caesarbot/service/db"
	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/jupiter"
	"github.com/brojonat/caesarbot/service/pumpfun"
	"github.com/brojonat/caesarbot/service/pumpportal"
	"github.com/brojonat/caesarbot/service/temporal"
)

const (
	maxRequestBodySize = 1 << 20  // 1MB - plenty for JSON bodies
	maxUploadSize      = 10 << 20 // 10MB image uploads
	minPollInterval    = 10 * time.Second
	maxPollInterval    = 24 * time.Hour
	maxBatchAddresses  = 100
)

// Token routes

// GET /api/v1/tokens/{address}/price
func handleGetPrice(svc PriceService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, svc.GetPrice(r.Context(), r.PathValue("address")))
	})
}

// POST /api/v1/prices {"addresses": [...]}
func handleGetMultiPrice(svc PriceService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Addresses []string `json:"addresses"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			logger.Debug("failed to decode multi-price request", "error", err)
			writeBadRequest(w, err)
			return
		}
		if len(req.Addresses) > maxBatchAddresses {
			writeBadRequest(w, fmt.Errorf("at most %d addresses per request", maxBatchAddresses))
			return
		}
		writeEnvelope(w, svc.GetMultiPrice(r.Context(), req.Addresses))
	})
}

// GET /api/v1/tokens/{address}/ohlcv?timeframe=15m&from=UNIX&to=UNIX
func handleGetOHLCV(svc PriceService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		from, err := queryUnixTime(q, "from")
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		to, err := queryUnixTime(q, "to")
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		writeEnvelope(w, svc.GetOHLCV(r.Context(), r.PathValue("address"), q.Get("timeframe"), from, to))
	})
}

// GET /api/v1/tokens/trending?sort_by=&sort_type=&offset=&limit=
func handleGetTrending(svc PriceService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offset, err := queryInt(q, "offset", 0)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		limit, err := queryInt(q, "limit", 0)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		writeEnvelope(w, svc.GetTrending(r.Context(), q.Get("sort_by"), q.Get("sort_type"), offset, limit))
	})
}

// GET /api/v1/tokens/{address}/report
func handleGetReport(svc ReportService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, svc.GetReportSummary(r.Context(), r.PathValue("address")))
	})
}

// GET /api/v1/tokens/{address}/pairs
func handleGetPairs(svc PairService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, svc.GetTokenPairs(r.Context(), r.PathValue("address")))
	})
}

// Wallet routes

// GET /api/v1/wallets/{address}/balance
func handleGetBalance(svc WalletService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, svc.GetNativeBalance(r.Context(), r.PathValue("address")))
	})
}

// GET /api/v1/wallets/{address}/tokens
func handleGetTokenAccounts(svc WalletService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, svc.GetTokenAccounts(r.Context(), r.PathValue("address")))
	})
}

// GET /api/v1/wallets/{address}/transactions?limit=N
func handleGetTransactions(svc WalletService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r.URL.Query(), "limit", 0)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		writeEnvelope(w, svc.GetTransactionHistory(r.Context(), r.PathValue("address"), limit))
	})
}

// GET /api/v1/wallets/{address}/assets?page=N&limit=N
func handleSearchAssets(svc WalletService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, err := queryInt(q, "page", 1)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		limit, err := queryInt(q, "limit", 0)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		writeEnvelope(w, svc.SearchAssets(r.Context(), r.PathValue("address"), page, limit))
	})
}

// GET /api/v1/wallets/{address}/snapshot
// The snapshot carries one envelope per side, so the outer envelope always succeeds.
func handleGetSnapshot(svc WalletService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, gateway.Ok(svc.GetSnapshot(r.Context(), r.PathValue("address"))))
	})
}

// GET /api/v1/assets/{id}
func handleGetAsset(svc WalletService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, svc.GetAsset(r.Context(), r.PathValue("id")))
	})
}

// Swap routes

// GET /api/v1/swap/quote?input_mint=&output_mint=&amount=&slippage_bps=&swap_mode=
func handleGetQuote(svc SwapService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		amount, err := strconv.ParseUint(q.Get("amount"), 10, 64)
		if err != nil {
			writeBadRequest(w, fmt.Errorf("invalid amount: must be a positive integer in base units"))
			return
		}
		slippage, err := queryInt(q, "slippage_bps", 0)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		writeEnvelope(w, svc.GetQuote(r.Context(), jupiter.QuoteParams{
			InputMint:   q.Get("input_mint"),
			OutputMint:  q.Get("output_mint"),
			Amount:      amount,
			SlippageBps: slippage,
			SwapMode:    q.Get("swap_mode"),
		}))
	})
}

// POST /api/v1/swap/transaction {"quote": {...}, "wallet": "..."}
func handleSwapTransaction(svc SwapService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Quote  *jupiter.Quote `json:"quote"`
			Wallet string         `json:"wallet"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			logger.Debug("failed to decode swap request", "error", err)
			writeBadRequest(w, err)
			return
		}
		writeEnvelope(w, svc.GetSwapTransaction(r.Context(), req.Quote, req.Wallet))
	})
}

// POST /api/v1/pump/trade
func handlePumpTrade(svc TradeService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params pumpportal.TradeParams
		if err := decodeJSON(w, r, &params); err != nil {
			logger.Debug("failed to decode trade request", "error", err)
			writeBadRequest(w, err)
			return
		}
		writeEnvelope(w, svc.GetTradeTransaction(r.Context(), params))
	})
}

// Stats and mission routes

// GET /api/v1/stats/{address}
func handleGetUserStats(svc StatsService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, svc.GetUserStats(r.Context(), r.PathValue("address")))
	})
}

// PUT /api/v1/stats/{address}
func handleUpsertUserStats(svc StatsService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params db.UpsertUserStatsParams
		if err := decodeJSON(w, r, &params); err != nil {
			logger.Debug("failed to decode stats update", "error", err)
			writeBadRequest(w, err)
			return
		}
		params.WalletAddress = r.PathValue("address")
		writeEnvelope(w, svc.UpsertUserStats(r.Context(), params))
	})
}

// GET /api/v1/leaderboard?limit=N
func handleGetLeaderboard(svc StatsService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r.URL.Query(), "limit", 0)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		writeEnvelope(w, svc.GetLeaderboard(r.Context(), limit))
	})
}

// GET /api/v1/missions
func handleGetMissions(svc StatsService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, svc.GetMissions(r.Context()))
	})
}

// GET /api/v1/missions/{address}
func handleGetMissionProgress(svc StatsService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, svc.GetMissionProgress(r.Context(), r.PathValue("address")))
	})
}

// PUT /api/v1/missions/{address}
func handleUpsertMissionProgress(svc StatsService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params db.UpsertMissionProgressParams
		if err := decodeJSON(w, r, &params); err != nil {
			logger.Debug("failed to decode mission update", "error", err)
			writeBadRequest(w, err)
			return
		}
		params.WalletAddress = r.PathValue("address")
		writeEnvelope(w, svc.UpsertMissionProgress(r.Context(), params))
	})
}

// Upload routes

// POST /api/v1/upload/image (multipart, field "file")
func handleUploadImage(svc UploadService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		file, header, err := r.FormFile("file")
		if err != nil {
			logger.Debug("failed to read upload", "error", err)
			writeBadRequest(w, fmt.Errorf("multipart field \"file\" is required: %w", err))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeBadRequest(w, fmt.Errorf("failed to read upload: %w", err))
			return
		}
		writeEnvelope(w, svc.UploadImage(r.Context(), data, header.Filename))
	})
}

// POST /api/v1/upload/metadata
func handleUploadMetadata(svc UploadService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var metadata pumpfun.TokenMetadata
		if err := decodeJSON(w, r, &metadata); err != nil {
			logger.Debug("failed to decode metadata", "error", err)
			writeBadRequest(w, err)
			return
		}
		writeEnvelope(w, svc.UploadMetadata(r.Context(), metadata))
	})
}

// Watch routes

type watchResponse struct {
	Address      string `json:"address"`
	PollInterval string `json:"poll_interval"`
}

// POST /api/v1/watch {"address": "...", "poll_interval": "5m"}
// Creates or updates the wallet's snapshot schedule.
func handleWatchWallet(scheduler temporal.Scheduler, opts Options, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Address      string `json:"address" validate:"required,solana_pubkey"`
			PollInterval string `json:"poll_interval"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			logger.Debug("failed to decode watch request", "error", err)
			writeBadRequest(w, err)
			return
		}
		if err := gateway.Validate(req); err != nil {
			writeEnvelope(w, gateway.Fail[any](err))
			return
		}

		interval := opts.DefaultPollInterval
		if req.PollInterval != "" {
			d, err := time.ParseDuration(req.PollInterval)
			if err != nil {
				writeBadRequest(w, fmt.Errorf("invalid poll_interval: must be a valid duration (e.g. '30s', '1m')"))
				return
			}
			interval = d
		}
		if err := validatePollInterval(interval, opts.MinPollInterval); err != nil {
			writeBadRequest(w, err)
			return
		}

		if err := scheduler.UpsertSnapshotSchedule(r.Context(), req.Address, interval); err != nil {
			logger.Error("failed to upsert schedule", "address", req.Address, "error", err)
			writeEnvelope(w, gateway.Fail[any](err))
			return
		}

		logger.Info("wallet watched", "address", req.Address, "poll_interval", interval)
		writeEnvelope(w, gateway.Ok(watchResponse{Address: req.Address, PollInterval: interval.String()}))
	})
}

// DELETE /api/v1/watch/{address}
func handleUnwatchWallet(scheduler temporal.Scheduler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := scheduler.DeleteSnapshotSchedule(r.Context(), address); err != nil {
			logger.Error("failed to delete schedule", "address", address, "error", err)
			writeEnvelope(w, gateway.Fail[any](err))
			return
		}
		logger.Info("wallet unwatched", "address", address)
		writeEnvelope(w, gateway.Ok(watchResponse{Address: address}))
	})
}

func handleNotImplemented(operation string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, gateway.NotImplemented[any](operation))
	})
}

// Helpers

// writeEnvelope writes env with the HTTP status matching its error code.
func writeEnvelope[T any](w http.ResponseWriter, env gateway.Envelope[T]) {
	writeJSON(w, env, statusFor(env.Error))
}

// statusFor maps envelope error codes onto HTTP statuses. Anything not
// attributable to the caller is reported as an upstream failure.
func statusFor(e *gateway.Error) int {
	if e == nil {
		return http.StatusOK
	}
	switch e.Code {
	case gateway.CodeInvalidRequest, jupiter.CodeQuoteStale:
		return http.StatusBadRequest
	case gateway.CodeNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeEnvelope(w, gateway.Fail[any](gateway.InvalidRequest(err)))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON decodes a size-limited JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body too large: maximum size is 1MB")
		}
		return fmt.Errorf("invalid request body: must be valid JSON")
	}
	return nil
}

func queryInt(q url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: must be an integer", key)
	}
	return n, nil
}

func queryUnixTime(q url.Values, key string) (*time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: must be unix seconds", key)
	}
	t := time.Unix(secs, 0).UTC()
	return &t, nil
}

// validatePollInterval validates a poll interval for reasonable bounds.
func validatePollInterval(interval, minInterval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if interval < minInterval {
		return fmt.Errorf("poll_interval must be at least %v", minInterval)
	}
	if interval > maxPollInterval {
		return fmt.Errorf("poll_interval cannot exceed %v", maxPollInterval)
	}
	return nil
}
