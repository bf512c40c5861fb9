package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/metrics"
	"github.com/brojonat/caesarbot/service/nats"
	"github.com/brojonat/caesarbot/service/pumpportal"
	"github.com/brojonat/caesarbot/service/realtime"
)

const (
	sseKeepalive  = 10 * time.Second
	sseBufferSize = 16
)

// streamSeq makes subscription names unique per connection.
var streamSeq atomic.Uint64

// handleStreamStats streams user_stats changes for one wallet.
// GET /api/v1/stream/stats/{address}?jq=EXPR
func handleStreamStats(svc StatsService, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return handleStreamTable(svc, realtime.TableUserStats, "stats", m, logger)
}

// handleStreamSnapshots streams recorded wallet snapshots for one wallet.
// GET /api/v1/stream/snapshots/{address}?jq=EXPR
func handleStreamSnapshots(svc StatsService, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return handleStreamTable(svc, realtime.TableWalletSnapshots, "snapshot", m, logger)
}

// handleStreamTable subscribes to table changes for the wallet in the path and
// relays each event as an SSE message until the client disconnects. The
// optional jq query parameter further filters events by their record.
func handleStreamTable(svc StatsService, table, eventName string, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := gateway.Validate(struct {
			Address string `validate:"required,solana_pubkey"`
		}{address}); err != nil {
			writeEnvelope(w, gateway.Fail[any](err))
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeEnvelope(w, gateway.Fail[any](fmt.Errorf("streaming unsupported by response writer")))
			return
		}

		events := make(chan *nats.ChangeEvent, sseBufferSize)
		name := fmt.Sprintf("sse-%s-%s-%d", table, address, streamSeq.Add(1))
		filter := realtime.Filter{
			Table:  table,
			Column: "wallet_address",
			Value:  address,
			JQ:     r.URL.Query().Get("jq"),
		}

		handle, err := svc.Subscribe(name, filter, func(event *nats.ChangeEvent) {
			select {
			case events <- event:
			default:
				logger.Warn("SSE client too slow, dropping event",
					"channel", name,
					"table", event.Table,
				)
			}
		})
		if err != nil {
			logger.DebugContext(r.Context(), "failed to subscribe", "channel", name, "error", err)
			writeBadRequest(w, err)
			return
		}
		defer handle.Unsubscribe()

		if m != nil {
			m.RecordSSEConnectionChange(table, 1)
			defer m.RecordSSEConnectionChange(table, -1)
		}

		// Set SSE headers
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		fmt.Fprintf(w, "event: connected\ndata: {\"wallet\":%q,\"table\":%q}\n\n", address, table)
		flusher.Flush()

		logger.DebugContext(r.Context(), "SSE client connected",
			"wallet", address,
			"table", table,
			"remote_addr", r.RemoteAddr,
		)

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				// Send keepalive comment to prevent timeout
				fmt.Fprintf(w, ": keepalive\n\n")
				flusher.Flush()

			case event := <-events:
				data, err := json.Marshal(event)
				if err != nil {
					logger.WarnContext(r.Context(), "failed to marshal event", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventName, data)
				flusher.Flush()
				if m != nil {
					m.RecordSSEEventSent(table, event.Type)
				}

			case <-r.Context().Done():
				logger.DebugContext(r.Context(), "SSE client disconnected",
					"wallet", address,
					"table", table,
					"remote_addr", r.RemoteAddr,
				)
				return
			}
		}
	})
}

// handleStreamLaunches relays the launchpad feed as SSE. Each connection holds
// its own upstream subscription.
// GET /api/v1/stream/launches?new_tokens=false&token=MINT&account=WALLET
func handleStreamLaunches(feed LaunchFeed, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	const stream = "launches"
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		sub := pumpportal.Subscription{
			NewTokens:     q.Get("new_tokens") != "false",
			TokenTrades:   q["token"],
			AccountTrades: q["account"],
		}
		if err := gateway.Validate(struct {
			TokenTrades   []string `validate:"dive,solana_pubkey"`
			AccountTrades []string `validate:"dive,solana_pubkey"`
		}{sub.TokenTrades, sub.AccountTrades}); err != nil {
			writeEnvelope(w, gateway.Fail[any](err))
			return
		}
		if !sub.NewTokens && len(sub.TokenTrades) == 0 && len(sub.AccountTrades) == 0 {
			writeBadRequest(w, fmt.Errorf("nothing to subscribe to"))
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeEnvelope(w, gateway.Fail[any](fmt.Errorf("streaming unsupported by response writer")))
			return
		}

		ctx := r.Context()
		events := make(chan pumpportal.LaunchEvent, sseBufferSize)
		done := make(chan error, 1)
		go func() {
			done <- feed.Stream(ctx, sub, func(event pumpportal.LaunchEvent) {
				select {
				case events <- event:
				default:
					logger.Warn("SSE client too slow, dropping launch event", "mint", event.Mint)
				}
			})
		}()

		if m != nil {
			m.RecordSSEConnectionChange(stream, 1)
			defer m.RecordSSEConnectionChange(stream, -1)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		fmt.Fprintf(w, "event: connected\ndata: {\"stream\":%q}\n\n", stream)
		flusher.Flush()

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				flusher.Flush()

			case event := <-events:
				data, err := json.Marshal(event)
				if err != nil {
					logger.WarnContext(ctx, "failed to marshal launch event", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: launch\ndata: %s\n\n", data)
				flusher.Flush()
				if m != nil {
					m.RecordSSEEventSent(stream, event.TxType)
				}

			case err := <-done:
				if err != nil {
					logger.WarnContext(ctx, "launch feed ended", "error", err)
				}
				return

			case <-ctx.Done():
				return
			}
		}
	})
}
