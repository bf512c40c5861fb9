package gateway

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/brojonat/caesarbot/service/metrics"
	"github.com/sethvargo/go-retry"
)

// Retry defaults: three attempts, one second base delay.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

type retryConfig struct {
	maxAttempts int
	baseDelay   time.Duration
	metrics     *metrics.Metrics
	operation   string
}

// RetryOption configures WithRetry.
type RetryOption func(*retryConfig)

// WithMaxAttempts sets the total number of attempts (first call included).
func WithMaxAttempts(n int) RetryOption {
	return func(c *retryConfig) {
		c.maxAttempts = n
	}
}

// WithBaseDelay sets the linear backoff unit.
func WithBaseDelay(d time.Duration) RetryOption {
	return func(c *retryConfig) {
		c.baseDelay = d
	}
}

// WithRetryMetrics records each retry under the given operation label.
func WithRetryMetrics(m *metrics.Metrics, operation string) RetryOption {
	return func(c *retryConfig) {
		c.metrics = m
		c.operation = operation
	}
}

// LinearBackoff waits base*n before the (n+1)th attempt. No jitter.
func LinearBackoff(base time.Duration) retry.Backoff {
	var attempt atomic.Int64
	return retry.BackoffFunc(func() (time.Duration, bool) {
		n := attempt.Add(1)
		return base * time.Duration(n), false
	})
}

// WithRetry calls call until it succeeds or the attempts are exhausted, in
// which case the last error is returned. The policy is deliberately minimal:
// linear backoff, no jitter, no circuit breaker. It suits low-volume
// interactive calls only.
func WithRetry[T any](ctx context.Context, call func(ctx context.Context) (T, error), opts ...RetryOption) (T, error) {
	cfg := retryConfig{
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxAttempts < 1 {
		cfg.maxAttempts = 1
	}

	var (
		out     T
		lastErr error
		calls   int
	)
	backoff := retry.WithMaxRetries(uint64(cfg.maxAttempts-1), LinearBackoff(cfg.baseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		calls++
		if calls > 1 && cfg.metrics != nil {
			cfg.metrics.RecordRetry(cfg.operation)
		}
		v, err := call(ctx)
		if err != nil {
			lastErr = err
			return retry.RetryableError(err)
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		return zero, lastErr
	}
	return out, nil
}

// RetryEnvelope retries an envelope-returning adapter call while it fails with
// a transient code (UNKNOWN, 429 or 5xx). Other failures are returned as-is.
func RetryEnvelope[T any](ctx context.Context, call func(ctx context.Context) Envelope[T], opts ...RetryOption) Envelope[T] {
	var last Envelope[T]
	_, err := WithRetry(ctx, func(ctx context.Context) (T, error) {
		last = call(ctx)
		if last.Success || (last.Error != nil && !IsTransient(last.Error.Code)) {
			return last.Data, nil
		}
		if last.Error == nil {
			return last.Data, errors.New("call failed without an error")
		}
		return last.Data, last.Error
	}, opts...)
	if err != nil && (last.Success || last.Error == nil) {
		return Fail[T](err)
	}
	return last
}

// IsTransient reports whether an envelope error code is worth retrying.
func IsTransient(code string) bool {
	if code == CodeUnknown || code == "429" {
		return true
	}
	return len(code) == 3 && code[0] == '5'
}
