package dexscreener

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

func TestGetTokenPairs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/tokens/"+mint, r.URL.Path)
		w.Write([]byte(`{"schemaVersion":"1.0.0","pairs":[
			{"chainId":"solana","dexId":"raydium","pairAddress":"p1","baseToken":{"address":"` + mint + `","symbol":"BONK"},"quoteToken":{"symbol":"SOL"},"priceNative":"0.0000001","priceUsd":"0.00002","volume":{"h24":123456.7},"liquidity":{"usd":5000000}},
			{"chainId":"solana","dexId":"orca","pairAddress":"p2","baseToken":{"address":"` + mint + `","symbol":"BONK"},"quoteToken":{"symbol":"USDC"},"priceNative":"0.00002"}
		]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil, nil)
	env := c.GetTokenPairs(context.Background(), mint)
	require.True(t, env.Success, "error: %+v", env.Error)
	require.Len(t, env.Data, 2)
	assert.Equal(t, "raydium", env.Data[0].DexID)
	assert.Equal(t, 123456.7, env.Data[0].Volume.H24)
	require.NotNil(t, env.Data[0].Liquidity)
	assert.Equal(t, float64(5000000), env.Data[0].Liquidity.USD)
	assert.Nil(t, env.Data[1].Liquidity)
}

func TestGetTokenPairs_NoPairs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"schemaVersion":"1.0.0","pairs":null}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil, nil, nil)
	env := c.GetTokenPairs(context.Background(), mint)
	require.True(t, env.Success)
	assert.NotNil(t, env.Data)
	assert.Empty(t, env.Data)
}
