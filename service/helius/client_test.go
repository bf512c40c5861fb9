package helius

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

// mockRPCClient implements RPCClient for testing.
type mockRPCClient struct {
	lamports uint64
	result   any
	err      error
	delay    time.Duration
	method   string
	params   []any
}

func (m *mockRPCClient) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &rpc.GetBalanceResult{Value: m.lamports}, nil
}

func (m *mockRPCClient) RPCCallForInto(ctx context.Context, out any, method string, params []any) error {
	m.method = method
	m.params = params
	if m.err != nil {
		return m.err
	}
	raw, err := json.Marshal(m.result)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, mock RPCClient, apiURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{APIKey: "test-key", RPC: mock, APIURL: apiURL}, nil, testLogger())
	require.NoError(t, err)
	return c
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	_, err := NewClient(Config{}, nil, testLogger())
	assert.ErrorIs(t, err, gateway.ErrMissingAPIKey)
}

func TestGetNativeBalance_OverJSONRPC(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params []any           `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getBalance", req.Method)
		require.NotEmpty(t, req.Params)
		assert.Equal(t, testWallet, req.Params[0])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":{"context":{"slot":1},"value":2500000000}}`))
	}))
	defer server.Close()

	c, err := NewClient(Config{APIKey: "test-key", RPCURL: server.URL}, nil, testLogger())
	require.NoError(t, err)

	before := time.Now().UnixMilli()
	env := c.GetNativeBalance(context.Background(), testWallet)
	require.True(t, env.Success, "error: %+v", env.Error)
	assert.Equal(t, 2.5, env.Data)
	assert.Nil(t, env.Error)
	assert.GreaterOrEqual(t, env.Timestamp, before)
}

func TestGetNativeBalance_RPCError(t *testing.T) {
	mock := &mockRPCClient{err: &jsonrpc.RPCError{Code: -32602, Message: "Invalid param: WrongSize"}}
	c := newTestClient(t, mock, "")

	env := c.GetNativeBalance(context.Background(), testWallet)
	require.False(t, env.Success)
	assert.Equal(t, "-32602", env.Error.Code)
	assert.NotEmpty(t, env.Error.Message)
}

func TestGetNativeBalance_InvalidAddress(t *testing.T) {
	c := newTestClient(t, &mockRPCClient{}, "")

	env := c.GetNativeBalance(context.Background(), "not-a-key")
	require.False(t, env.Success)
	assert.Equal(t, gateway.CodeInvalidRequest, env.Error.Code)
}

func TestErrors_HideAPIKey(t *testing.T) {
	const key = "SECRET-HELIUS-KEY"

	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer limited.Close()
	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closed.Close()

	t.Run("rpc status", func(t *testing.T) {
		c, err := NewClient(Config{APIKey: key, RPCURL: limited.URL + "/?api-key=" + key, APIURL: limited.URL}, nil, testLogger())
		require.NoError(t, err)

		for name, e := range map[string]*gateway.Error{
			"balance": c.GetNativeBalance(context.Background(), testWallet).Error,
			"asset":   c.GetAsset(context.Background(), testWallet).Error,
			"search":  c.SearchAssets(context.Background(), testWallet, 1, 10).Error,
		} {
			require.NotNil(t, e, name)
			assert.Equal(t, "429", e.Code, name)
			assert.NotContains(t, e.Message, key, name)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		c, err := NewClient(Config{APIKey: key, RPCURL: closed.URL + "/?api-key=" + key, APIURL: closed.URL}, nil, testLogger())
		require.NoError(t, err)

		native := c.GetNativeBalance(context.Background(), testWallet)
		require.False(t, native.Success)
		assert.NotContains(t, native.Error.Message, key)

		tokens := c.GetTokenAccounts(context.Background(), testWallet)
		require.False(t, tokens.Success)
		assert.Equal(t, gateway.CodeUnknown, tokens.Error.Code)
		assert.NotContains(t, tokens.Error.Message, key)
	})
}

type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return http.DefaultTransport.RoundTrip(r)
}

func TestNewClient_RPCUsesHTTPClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":{"context":{"slot":1},"value":0}}`))
	}))
	defer server.Close()

	transport := &countingTransport{}
	c, err := NewClient(Config{
		APIKey:     "test-key",
		RPCURL:     server.URL,
		HTTPClient: &http.Client{Transport: transport, Timeout: 5 * time.Second},
	}, nil, testLogger())
	require.NoError(t, err)

	env := c.GetNativeBalance(context.Background(), testWallet)
	require.True(t, env.Success, "error: %+v", env.Error)
	assert.Zero(t, env.Data)
	assert.Equal(t, int32(1), transport.calls.Load())
}

func TestGetTokenAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/addresses/"+testWallet+"/balances", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api-key"))
		w.Write([]byte(`{"nativeBalance":1000,"tokens":[
			{"mint":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","amount":1234567,"decimals":6,"tokenAccount":"acct1"},
			{"mint":"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263","amount":5,"decimals":0,"tokenAccount":"acct2"}
		]}`))
	}))
	defer server.Close()

	c := newTestClient(t, &mockRPCClient{}, server.URL)
	env := c.GetTokenAccounts(context.Background(), testWallet)
	require.True(t, env.Success, "error: %+v", env.Error)
	require.Len(t, env.Data, 2)
	assert.Equal(t, uint64(1234567), env.Data[0].Amount)
	assert.True(t, decimal.RequireFromString("1.234567").Equal(env.Data[0].UIAmount))
	assert.True(t, decimal.NewFromInt(5).Equal(env.Data[1].UIAmount))
}

func TestGetTransactionHistory_ClampsLimit(t *testing.T) {
	var gotLimit atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit.Store(r.URL.Query().Get("limit"))
		w.Write([]byte(`[{"signature":"sig1","slot":10,"timestamp":1700000000,"type":"TRANSFER","fee":5000}]`))
	}))
	defer server.Close()

	c := newTestClient(t, &mockRPCClient{}, server.URL)

	env := c.GetTransactionHistory(context.Background(), testWallet, 500)
	require.True(t, env.Success)
	assert.Equal(t, "100", gotLimit.Load())
	require.Len(t, env.Data, 1)
	assert.Equal(t, "sig1", env.Data[0].Signature)

	env = c.GetTransactionHistory(context.Background(), testWallet, 0)
	require.True(t, env.Success)
	assert.Equal(t, "1", gotLimit.Load())
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-5, 1},
		{0, 1},
		{1, 1},
		{50, 50},
		{100, 100},
		{101, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampLimit(tt.in), "ClampLimit(%d)", tt.in)
	}
}

func TestGetAsset(t *testing.T) {
	mock := &mockRPCClient{result: map[string]any{
		"interface": "FungibleToken",
		"id":        "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		"token_info": map[string]any{
			"symbol":   "USDC",
			"decimals": 6,
		},
	}}
	c := newTestClient(t, mock, "")

	env := c.GetAsset(context.Background(), "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	require.True(t, env.Success, "error: %+v", env.Error)
	assert.Equal(t, "getAsset", mock.method)
	assert.Equal(t, "FungibleToken", env.Data.Interface)
	require.NotNil(t, env.Data.TokenInfo)
	assert.Equal(t, "USDC", env.Data.TokenInfo.Symbol)
}

func TestSearchAssets_Defaults(t *testing.T) {
	mock := &mockRPCClient{result: map[string]any{"total": 1, "limit": 100, "page": 1, "items": []any{map[string]any{"id": "a"}}}}
	c := newTestClient(t, mock, "")

	env := c.SearchAssets(context.Background(), testWallet, 0, 0)
	require.True(t, env.Success)
	assert.Equal(t, "searchAssets", mock.method)
	params := mock.params[0].(map[string]any)
	assert.Equal(t, 1, params["page"])
	assert.Equal(t, 100, params["limit"])
	assert.Len(t, env.Data.Items, 1)
}

func TestGetSnapshot_IndependentHalves(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"indexer down"}`))
	}))
	defer server.Close()

	c := newTestClient(t, &mockRPCClient{lamports: 1_000_000_000}, server.URL)

	snap := c.GetSnapshot(context.Background(), testWallet)
	assert.Equal(t, testWallet, snap.Address)
	require.True(t, snap.Native.Success)
	assert.Equal(t, 1.0, snap.Native.Data)
	require.False(t, snap.Tokens.Success)
	assert.Equal(t, "500", snap.Tokens.Error.Code)
}
