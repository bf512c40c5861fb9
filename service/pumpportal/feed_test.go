package pumpportal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFeedConfig() *FeedConfig {
	return &FeedConfig{
		ReconnectDelay:    10 * time.Millisecond,
		MaxReconnectDelay: 50 * time.Millisecond,
		PingInterval:      time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      time.Second,
	}
}

func TestFeed_StreamsLaunchEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub subscribeMessage
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		assert.Equal(t, MethodSubscribeNewToken, sub.Method)

		conn.WriteJSON(map[string]string{"message": "Successfully subscribed to token creation events."})
		conn.WriteJSON(LaunchEvent{
			Signature:    "sig1",
			Mint:         "mint1",
			TxType:       "create",
			Name:         "Caesar",
			Symbol:       "CSR",
			MarketCapSol: 28.5,
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	feed := NewFeed("ws"+strings.TrimPrefix(server.URL, "http"), testFeedConfig(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan LaunchEvent, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- feed.Stream(ctx, Subscription{NewTokens: true}, func(e LaunchEvent) { events <- e })
	}()

	select {
	case e := <-events:
		assert.Equal(t, "sig1", e.Signature)
		assert.Equal(t, "CSR", e.Symbol)
		assert.Equal(t, 28.5, e.MarketCapSol)
	case <-ctx.Done():
		t.Fatal("timeout waiting for launch event")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

func TestFeed_ReconnectsAndResubscribes(t *testing.T) {
	var connections atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := connections.Add(1)

		var msgs []subscribeMessage
		for i := 0; i < 2; i++ {
			var m subscribeMessage
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			msgs = append(msgs, m)
		}
		assert.Equal(t, MethodSubscribeNewToken, msgs[0].Method)
		assert.Equal(t, MethodSubscribeTokenTrade, msgs[1].Method)
		assert.Equal(t, []string{"mintA"}, msgs[1].Keys)

		if n == 1 {
			// drop the first connection without sending anything
			return
		}
		conn.WriteJSON(LaunchEvent{Signature: "sig2", Mint: "mintA", TxType: "buy"})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	feed := NewFeed("ws"+strings.TrimPrefix(server.URL, "http"), testFeedConfig(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan LaunchEvent, 1)
	go feed.Stream(ctx, Subscription{NewTokens: true, TokenTrades: []string{"mintA"}}, func(e LaunchEvent) { events <- e })

	select {
	case e := <-events:
		assert.Equal(t, "buy", e.TxType)
	case <-ctx.Done():
		t.Fatal("timeout waiting for trade event")
	}
	assert.GreaterOrEqual(t, connections.Load(), int32(2))
}

func TestFeed_EmptySubscription(t *testing.T) {
	feed := NewFeed("", nil, testLogger())
	err := feed.Stream(context.Background(), Subscription{}, func(LaunchEvent) {})
	require.Error(t, err)
}

func TestSubscriptionMessages(t *testing.T) {
	msgs := Subscription{AccountTrades: []string{"w1", "w2"}}.messages()
	require.Len(t, msgs, 1)
	raw, err := json.Marshal(msgs[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"subscribeAccountTrade","keys":["w1","w2"]}`, string(raw))
}
