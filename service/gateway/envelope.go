// Package gateway defines the result contract shared by every upstream adapter.
//
// Each adapter method runs its provider call through Invoke, which never
// returns a bare error: success and failure are both delivered as an Envelope
// so callers can treat every provider identically and branch on Success.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/caesarbot/service/metrics"
)

// Envelope is the uniform {success, data, error, timestamp} result wrapper.
// Data is only meaningful when Success is true, Error only when it is false.
// data is always present on the wire, so an empty result encodes as null.
type Envelope[T any] struct {
	Success   bool   `json:"success"`
	Data      T      `json:"data"`
	Error     *Error `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Result converts the envelope back into Go's (value, error) form.
func (e Envelope[T]) Result() (T, error) {
	if !e.Success {
		var zero T
		if e.Error == nil {
			return zero, &Error{Message: "unknown error", Code: CodeUnknown}
		}
		return zero, e.Error
	}
	return e.Data, nil
}

// Ok builds a successful envelope stamped with the current time.
func Ok[T any](data T) Envelope[T] {
	return Envelope[T]{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Fail builds a failed envelope from err.
func Fail[T any](err error) Envelope[T] {
	return Envelope[T]{
		Success:   false,
		Error:     Normalize(err),
		Timestamp: time.Now().UnixMilli(),
	}
}

// NotImplemented builds the explicit failure returned by operations that have
// no backing logic yet (scanning, airdrops, mission catalog).
func NotImplemented[T any](operation string) Envelope[T] {
	return Fail[T](fmt.Errorf("%s: %w", operation, ErrNotImplemented))
}

// Provider identifies one upstream service. It carries the metrics and logger
// every Invoke call for that service reports to.
type Provider struct {
	name    string
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewProvider creates a Provider. A nil metrics disables metric recording and a
// nil logger falls back to slog.Default().
func NewProvider(name string, m *metrics.Metrics, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		name:    name,
		metrics: m,
		logger:  logger.With("provider", name),
		now:     time.Now,
	}
}

// Name returns the provider name used in logs and metric labels.
func (p *Provider) Name() string {
	return p.name
}

// Logger returns the provider-scoped logger.
func (p *Provider) Logger() *slog.Logger {
	return p.logger
}

// Invoke runs call and wraps its outcome in an Envelope. It always returns:
// provider errors are normalized and panics are recovered into failures.
func Invoke[T any](ctx context.Context, p *Provider, op string, call func(ctx context.Context) (T, error)) (env Envelope[T]) {
	start := p.now()

	defer func() {
		if r := recover(); r != nil {
			env = Envelope[T]{
				Success: false,
				Error:   &Error{Message: fmt.Sprintf("%s %s panicked: %v", p.name, op, r), Code: CodeUnknown},
			}
		}
		env.Timestamp = p.now().UnixMilli()

		status := "success"
		if !env.Success {
			status = "error"
			p.logger.WarnContext(ctx, "provider call failed",
				"operation", op,
				"code", env.Error.Code,
				"error", env.Error.Message,
			)
		}
		if p.metrics != nil {
			p.metrics.RecordProviderCall(p.name, op, status, p.now().Sub(start).Seconds())
		}
	}()

	data, err := call(ctx)
	if err != nil {
		return Envelope[T]{Success: false, Error: Normalize(err)}
	}
	return Envelope[T]{Success: true, Data: data}
}
