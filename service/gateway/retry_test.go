package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry_FailTwiceThenSucceed(t *testing.T) {
	const base = 20 * time.Millisecond

	var calls []time.Time
	value, err := WithRetry(context.Background(), func(ctx context.Context) (string, error) {
		calls = append(calls, time.Now())
		if len(calls) < 3 {
			return "", errors.New("upstream unavailable")
		}
		return "ok", nil
	}, WithMaxAttempts(3), WithBaseDelay(base))

	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	require.Len(t, calls, 3)

	// Linear backoff: base before the second attempt, 2*base before the third.
	assert.GreaterOrEqual(t, calls[1].Sub(calls[0]), base)
	assert.GreaterOrEqual(t, calls[2].Sub(calls[1]), 2*base)
}

func TestWithRetry_ExhaustedReturnsLastError(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("attempt failed")
	}, WithMaxAttempts(3), WithBaseDelay(time.Millisecond))

	require.Error(t, err)
	assert.Equal(t, "attempt failed", err.Error())
	assert.Equal(t, 3, calls)
}

func TestWithRetry_SingleAttempt(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("nope")
	}, WithMaxAttempts(0), WithBaseDelay(time.Millisecond))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := WithRetry(ctx, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("nope")
	}, WithMaxAttempts(5), WithBaseDelay(time.Second))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestLinearBackoff(t *testing.T) {
	b := LinearBackoff(100 * time.Millisecond)
	for i := 1; i <= 4; i++ {
		next, stop := b.Next()
		assert.False(t, stop)
		assert.Equal(t, time.Duration(i)*100*time.Millisecond, next)
	}
}

func TestRetryEnvelope(t *testing.T) {
	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		env := RetryEnvelope(context.Background(), func(ctx context.Context) Envelope[int] {
			calls++
			if calls == 1 {
				return Fail[int](&ProviderError{Provider: "x", StatusCode: 503})
			}
			return Ok(7)
		}, WithBaseDelay(time.Millisecond))

		assert.True(t, env.Success)
		assert.Equal(t, 7, env.Data)
		assert.Equal(t, 2, calls)
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		calls := 0
		env := RetryEnvelope(context.Background(), func(ctx context.Context) Envelope[int] {
			calls++
			return Fail[int](&ProviderError{Provider: "x", StatusCode: 404})
		}, WithBaseDelay(time.Millisecond))

		assert.False(t, env.Success)
		assert.Equal(t, "404", env.Error.Code)
		assert.Equal(t, 1, calls)
	})

	t.Run("returns last failure when exhausted", func(t *testing.T) {
		calls := 0
		env := RetryEnvelope(context.Background(), func(ctx context.Context) Envelope[int] {
			calls++
			return Fail[int](errors.New("connection reset"))
		}, WithMaxAttempts(2), WithBaseDelay(time.Millisecond))

		assert.False(t, env.Success)
		assert.Equal(t, CodeUnknown, env.Error.Code)
		assert.Equal(t, 2, calls)
	})
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(CodeUnknown))
	assert.True(t, IsTransient("429"))
	assert.True(t, IsTransient("503"))
	assert.False(t, IsTransient("404"))
	assert.False(t, IsTransient(CodeInvalidRequest))
	assert.False(t, IsTransient("PGRST116"))
}
