package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/caesarbot/service/birdeye"
	"github.com/brojonat/caesarbot/service/db"
	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/brojonat/caesarbot/service/jupiter"
	"github.com/brojonat/caesarbot/service/nats"
	"github.com/brojonat/caesarbot/service/pumpfun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	testMint   = "So11111111111111111111111111111111111111112"
	usdcMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func writeEnvelope[T any](w http.ResponseWriter, status int, env gateway.Envelope[T]) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func TestGetPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/tokens/"+testMint+"/price", r.URL.Path)
		writeEnvelope(w, http.StatusOK, gateway.Ok(&birdeye.PriceRecord{Address: testMint, Value: 142.5}))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	env, err := c.GetPrice(context.Background(), testMint)
	require.NoError(t, err)
	require.True(t, env.Success)
	assert.Equal(t, 142.5, env.Data.Value)
	assert.NotZero(t, env.Timestamp)
}

func TestFailureEnvelopeIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusBadGateway,
			gateway.Fail[float64](&gateway.ProviderError{Provider: "helius", StatusCode: 429, Message: "rate limited"}))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	env, err := c.GetBalance(context.Background(), testWallet)
	require.NoError(t, err)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "429", env.Error.Code)

	_, err = env.Result()
	var envErr *gateway.Error
	require.True(t, errors.As(err, &envErr))
	assert.Equal(t, "429", envErr.Code)
}

func TestNonEnvelopeResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "404 page not found", http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	_, err := c.GetTokenAccounts(context.Background(), testWallet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestGetMultiPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req struct {
			Addresses []string `json:"addresses"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		out := make(map[string]*birdeye.PriceRecord)
		for _, a := range req.Addresses {
			out[a] = &birdeye.PriceRecord{Address: a, Value: 1}
		}
		writeEnvelope(w, http.StatusOK, gateway.Ok(out))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	env, err := c.GetMultiPrice(context.Background(), []string{testMint, usdcMint})
	require.NoError(t, err)
	assert.Len(t, env.Data, 2)
	assert.Contains(t, env.Data, usdcMint)
}

func TestGetTrending_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "v24hUSD", q.Get("sort_by"))
		assert.Empty(t, q.Get("sort_type"))
		assert.Equal(t, "20", q.Get("offset"))
		assert.Equal(t, "10", q.Get("limit"))
		writeEnvelope(w, http.StatusOK, gateway.Ok([]birdeye.TrendingToken{}))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	env, err := c.GetTrending(context.Background(), "v24hUSD", "", 20, 10)
	require.NoError(t, err)
	assert.True(t, env.Success)
}

func TestGetQuote_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, testMint, q.Get("input_mint"))
		assert.Equal(t, usdcMint, q.Get("output_mint"))
		assert.Equal(t, "1000000", q.Get("amount"))
		assert.Equal(t, "50", q.Get("slippage_bps"))
		assert.Equal(t, "ExactIn", q.Get("swap_mode"))
		writeEnvelope(w, http.StatusOK, gateway.Ok(&jupiter.Quote{InputMint: testMint, OutputMint: usdcMint}))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	env, err := c.GetQuote(context.Background(), jupiter.QuoteParams{
		InputMint:   testMint,
		OutputMint:  usdcMint,
		Amount:      1_000_000,
		SlippageBps: 50,
		SwapMode:    "ExactIn",
	})
	require.NoError(t, err)
	assert.Equal(t, usdcMint, env.Data.OutputMint)
}

func TestUpsertUserStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/stats/"+testWallet, r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"xp": 250}`, string(body))
		writeEnvelope(w, http.StatusOK, gateway.Ok(&db.UserStats{WalletAddress: testWallet, XP: 250}))
	}))
	defer server.Close()

	xp := int64(250)
	c := NewClient(server.URL, nil, nil)
	env, err := c.UpsertUserStats(context.Background(), db.UpsertUserStatsParams{WalletAddress: testWallet, XP: &xp})
	require.NoError(t, err)
	assert.Equal(t, int64(250), env.Data.XP)
}

func TestUploadImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "logo.png", header.Filename)
		assert.Equal(t, []byte("png-bytes"), data)
		writeEnvelope(w, http.StatusOK, gateway.Ok(&pumpfun.UploadResult{IPFS: "ipfs://abc"}))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	env, err := c.UploadImage(context.Background(), "logo.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "ipfs://abc", env.Data.IPFS)
}

func TestWatchAndUnwatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, testWallet, req["address"])
			assert.Equal(t, "1m0s", req["poll_interval"])
			writeEnvelope(w, http.StatusOK, gateway.Ok(WatchResult{Address: testWallet, PollInterval: "1m0s"}))
		case http.MethodDelete:
			assert.Equal(t, "/api/v1/watch/"+testWallet, r.URL.Path)
			writeEnvelope(w, http.StatusOK, gateway.Ok(WatchResult{Address: testWallet}))
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	env, err := c.Watch(context.Background(), testWallet, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "1m0s", env.Data.PollInterval)

	env, err = c.Unwatch(context.Background(), testWallet)
	require.NoError(t, err)
	assert.True(t, env.Success)
}

func TestStreamChanges(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stream/stats/"+testWallet, r.URL.Path)
		assert.Equal(t, ".record.xp > 10", r.URL.Query().Get("jq"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "event: connected\ndata: {\"wallet\":%q}\n\n", testWallet)
		fmt.Fprint(w, ": keepalive\n\n")
		for i := 1; i <= 3; i++ {
			fmt.Fprintf(w, "event: stats\ndata: {\"table\":\"user_stats\",\"type\":\"UPDATE\",\"wallet_address\":%q,\"record\":{\"xp\":%d}}\n\n", testWallet, i*100)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	var got []*nats.ChangeEvent
	err := c.StreamChanges(context.Background(), StreamStats, testWallet, ".record.xp > 10", func(e *nats.ChangeEvent) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "user_stats", got[0].Table)
	assert.JSONEq(t, `{"xp":300}`, string(got[2].Record))
}

func TestStreamChanges_HandlerStops(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 5; i++ {
			fmt.Fprint(w, "event: snapshot\ndata: {\"table\":\"wallet_snapshots\"}\n\n")
		}
	}))
	defer server.Close()

	stop := errors.New("stop")
	calls := 0
	c := NewClient(server.URL, nil, nil)
	err := c.StreamChanges(context.Background(), StreamSnapshots, testWallet, "", func(e *nats.ChangeEvent) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestStreamChanges_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusBadRequest,
			gateway.Fail[any](gateway.InvalidRequest(errors.New("invalid wallet address"))))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil)
	err := c.StreamChanges(context.Background(), StreamStats, "bogus", "", func(*nats.ChangeEvent) error { return nil })
	require.Error(t, err)
	var envErr *gateway.Error
	require.True(t, errors.As(err, &envErr))
	assert.Equal(t, gateway.CodeInvalidRequest, envErr.Code)
}
