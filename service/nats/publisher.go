package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/caesarbot/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher publishes row-change events.
type Publisher interface {
	// PublishChange publishes an event to "changes.{table}.{wallet_address}".
	PublishChange(ctx context.Context, event *ChangeEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// Subscription is a live subscription that can be cancelled.
type Subscription interface {
	Unsubscribe() error
}

// Subscriber delivers change events published on subjects matching a pattern.
type Subscriber interface {
	SubscribeChanges(subject string, handler func(*ChangeEvent)) (Subscription, error)
}

// Bus is both ends of the change-event stream.
type Bus interface {
	Publisher
	Subscriber
}

const (
	// StreamName is the name of the JetStream stream for row changes.
	StreamName = "CHANGES"

	// SubjectPrefix is the first token of every change subject.
	SubjectPrefix = "changes"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = SubjectPrefix + ".>"

	// StreamRetention is how long messages are retained.
	StreamRetention = 7 * 24 * time.Hour
)

// JetStreamBus publishes change events to NATS JetStream and delivers them to
// core NATS subscribers.
type JetStreamBus struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewBus connects to NATS and ensures the stream exists.
// If metrics is nil, no metrics will be recorded.
func NewBus(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamBus, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("caesarbot"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	bus := &JetStreamBus{
		nc:      nc,
		js:      js,
		logger:  logger,
		metrics: m,
	}

	if err := bus.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS bus initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return bus, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (b *JetStreamBus) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := b.js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			b.logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	b.logger.Info("creating JetStream stream", "stream", StreamName)

	_, err = b.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Row-store change events",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	b.logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// PublishChange publishes a single change event.
func (b *JetStreamBus) PublishChange(ctx context.Context, event *ChangeEvent) error {
	subject := ChangeSubject(event.Table, event.WalletAddress)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	start := time.Now()
	_, err = b.js.Publish(ctx, subject, data)
	if b.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		b.metrics.RecordNATSPublish(event.Table, status, time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}

	b.logger.Debug("published change event",
		"subject", subject,
		"type", event.Type,
	)
	return nil
}

// SubscribeChanges delivers events on subjects matching subject. Messages that
// fail to decode are logged and dropped.
func (b *JetStreamBus) SubscribeChanges(subject string, handler func(*ChangeEvent)) (Subscription, error) {
	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		var event ChangeEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.logger.Warn("dropping undecodable change event",
				"subject", msg.Subject,
				"error", err,
			)
			return
		}
		handler(&event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub, nil
}

// Close drains subscriptions and closes the connection to NATS.
func (b *JetStreamBus) Close() error {
	if b.nc != nil {
		if err := b.nc.Drain(); err != nil {
			b.nc.Close()
		}
		b.logger.Info("NATS bus closed")
	}
	return nil
}
