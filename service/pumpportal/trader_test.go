package pumpportal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brojonat/caesarbot/service/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	testMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func TestGetTradeTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade-local", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "buy", body["action"])
		assert.Equal(t, "true", body["denominatedInSol"])
		assert.Equal(t, testMint, body["mint"])

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{1, 2, 3, 4})
	}))
	defer server.Close()

	trader := NewTrader(server.URL, nil, nil, testLogger())
	env := trader.GetTradeTransaction(context.Background(), TradeParams{
		PublicKey:        testWallet,
		Action:           "buy",
		Mint:             testMint,
		Amount:           0.5,
		DenominatedInSol: true,
		Slippage:         10,
		PriorityFee:      0.0001,
		Pool:             "pump",
	})
	require.True(t, env.Success, "error: %+v", env.Error)
	assert.Equal(t, "AQIDBA==", env.Data.Transaction)
}

func TestGetTradeTransaction_Invalid(t *testing.T) {
	trader := NewTrader("http://127.0.0.1:0", nil, nil, testLogger())

	env := trader.GetTradeTransaction(context.Background(), TradeParams{
		PublicKey: testWallet,
		Action:    "hold",
		Mint:      testMint,
		Amount:    1,
	})
	require.False(t, env.Success)
	assert.Equal(t, gateway.CodeInvalidRequest, env.Error.Code)
}

func TestGetTradeTransaction_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("Bad Request: mint not found"))
	}))
	defer server.Close()

	trader := NewTrader(server.URL, nil, nil, testLogger())
	env := trader.GetTradeTransaction(context.Background(), TradeParams{
		PublicKey: testWallet, Action: "sell", Mint: testMint, Amount: 100,
	})
	require.False(t, env.Success)
	assert.Equal(t, "400", env.Error.Code)
	assert.Equal(t, "Bad Request: mint not found", env.Error.Details)
}
