package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func immediatePolicy(maxAttempts int, classify Classifier) *RetryPolicy {
	p := NewRetryPolicy(maxAttempts, time.Millisecond, classify, zap.NewNop())
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func TestRetryPolicy_Do(t *testing.T) {
	t.Parallel()

	t.Run("SucceedsFirstTry", func(t *testing.T) {
		calls := 0
		p := immediatePolicy(3, RetryableService)
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("RetriesTransientThenSucceeds", func(t *testing.T) {
		calls := 0
		p := immediatePolicy(5, RetryableService)
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			if calls <= 2 {
				return NewError(KindThrottled, "invoke", errors.New("slow down"))
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("FatalErrorNoRetry", func(t *testing.T) {
		calls := 0
		p := immediatePolicy(5, RetryableService)
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return NewError(KindBadResponse, "invoke", errors.New("not json"))
		})
		var exhausted *ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, 1, exhausted.Attempts)
		assert.Equal(t, 1, calls)
	})

	t.Run("BudgetExhausted", func(t *testing.T) {
		calls := 0
		p := immediatePolicy(3, RetryableService)
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return NewError(KindTimeout, "invoke", errors.New("deadline"))
		})
		var exhausted *ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, 4, calls) // initial attempt plus three retries
		assert.Equal(t, 4, exhausted.Attempts)
	})

	t.Run("ContextCanceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := immediatePolicy(3, RetryableService)
		err := p.Do(ctx, func(context.Context) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRetryPolicy_Backoff(t *testing.T) {
	t.Parallel()
	p := NewRetryPolicy(5, 3*time.Second, RetryableService, zap.NewNop())
	assert.Equal(t, 3*time.Second, p.Backoff(0))
	assert.Equal(t, 6*time.Second, p.Backoff(1))
	assert.Equal(t, 12*time.Second, p.Backoff(2))
	assert.Equal(t, 48*time.Second, p.Backoff(4))
}

func TestAttempt(t *testing.T) {
	t.Parallel()
	p := immediatePolicy(2, RetryableHTTP)
	calls := 0
	v, err := Attempt(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewHTTPError("fetch", 503)
		}
		return "body", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "body", v)
	assert.Equal(t, 2, calls)
}
