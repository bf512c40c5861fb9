package pumpportal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
)

// DefaultFeedURL is the PumpPortal data websocket.
const DefaultFeedURL = "wss://pumpportal.fun/api/data"

// FeedConfig configures websocket behavior.
type FeedConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential reconnect delay.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is how long the connection may stay silent.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultFeedConfig returns default websocket configuration.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Feed streams launch and trade events.
type Feed struct {
	url    string
	config FeedConfig
	logger *slog.Logger
}

// NewFeed creates a Feed for url. A nil config uses DefaultFeedConfig.
func NewFeed(url string, config *FeedConfig, logger *slog.Logger) *Feed {
	if url == "" {
		url = DefaultFeedURL
	}
	cfg := DefaultFeedConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{url: url, config: cfg, logger: logger.With("provider", "pumpportal")}
}

// Stream connects, subscribes and calls handler for every event until ctx is
// done. Dropped connections are re-established with capped exponential
// backoff; the subscription is replayed on each new connection. It returns nil
// when ctx is cancelled.
func (f *Feed) Stream(ctx context.Context, sub Subscription, handler func(LaunchEvent)) error {
	msgs := sub.messages()
	if len(msgs) == 0 {
		return errors.New("subscription selects no streams")
	}

	backoff, err := f.newBackoff()
	if err != nil {
		return err
	}

	for {
		received, sessionErr := f.session(ctx, msgs, handler)
		if ctx.Err() != nil {
			return nil
		}
		if received {
			if backoff, err = f.newBackoff(); err != nil {
				return err
			}
		}

		delay, _ := backoff.Next()
		f.logger.Warn("feed disconnected, reconnecting", "error", sessionErr, "delay", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (f *Feed) newBackoff() (retry.Backoff, error) {
	b, err := retry.NewExponential(f.config.ReconnectDelay)
	if err != nil {
		return nil, fmt.Errorf("invalid reconnect delay: %w", err)
	}
	return retry.WithCappedDuration(f.config.MaxReconnectDelay, b), nil
}

// session runs one connection. It reports whether any event was received.
func (f *Feed) session(ctx context.Context, msgs []subscribeMessage, handler func(LaunchEvent)) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return false, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	for _, m := range msgs {
		conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
		if err := conn.WriteJSON(m); err != nil {
			return false, fmt.Errorf("write %s: %w", m.Method, err)
		}
	}
	f.logger.Info("feed subscribed", "url", f.url, "streams", len(msgs))

	conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
	})

	// Closing the connection unblocks ReadMessage on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(f.config.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(f.config.WriteTimeout))
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(f.config.WriteTimeout)); err != nil {
					f.logger.Debug("ping failed", "error", err)
				}
			}
		}
	}()

	received := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return received, fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		var event LaunchEvent
		if err := json.Unmarshal(data, &event); err != nil {
			f.logger.Debug("skipping undecodable message", "error", err)
			continue
		}
		// Subscription acknowledgements carry no signature.
		if event.Signature == "" {
			continue
		}
		received = true
		handler(event)
	}
}

func (s Subscription) messages() []subscribeMessage {
	var msgs []subscribeMessage
	if s.NewTokens {
		msgs = append(msgs, subscribeMessage{Method: MethodSubscribeNewToken})
	}
	if len(s.TokenTrades) > 0 {
		msgs = append(msgs, subscribeMessage{Method: MethodSubscribeTokenTrade, Keys: s.TokenTrades})
	}
	if len(s.AccountTrades) > 0 {
		msgs = append(msgs, subscribeMessage{Method: MethodSubscribeAccountTrade, Keys: s.AccountTrades})
	}
	return msgs
}
