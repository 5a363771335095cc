// Package pipeline implements the resumable processing engine shared by
// every wikichron phase: retry with exponential backoff, checkpointed
// batch processing, content packing and identity-based deduplication.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Classifier reports whether an error is worth retrying.
type Classifier func(error) bool

// ExhaustedError wraps the final error after the retry budget is spent
// or after a fatal classification.
type ExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempt(s): %v", e.Attempts, e.Err)
}

// Unwrap exposes the final underlying error.
func (e *ExhaustedError) Unwrap() error { return e.Err }

// RetryPolicy retries an operation with exponential backoff. The loop is
// iterative; a fatal classification or an exhausted budget stops it.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Classify    Classifier

	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy builds a policy. A nil classifier treats every error
// as fatal.
func NewRetryPolicy(maxAttempts int, baseDelay time.Duration, classify Classifier, logger *zap.Logger) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Classify:    classify,
		logger:      logger,
		sleep:       sleepContext,
	}
}

// Do invokes op until it succeeds, fails fatally, or the attempt budget
// is exhausted. Retry attempts are logged to the durable sink only.
func (p *RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Classify == nil || !p.Classify(lastErr) {
			// Fatal errors spend no retry budget.
			return &ExhaustedError{Attempts: attempt + 1, Err: lastErr}
		}
		if attempt == p.MaxAttempts {
			break
		}
		delay := p.Backoff(attempt)
		p.logger.Info("retrying after transient error",
			zap.Error(lastErr),
			zap.String("kind", KindOf(lastErr).String()),
			zap.Duration("delay", delay),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", p.MaxAttempts),
		)
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return &ExhaustedError{Attempts: p.MaxAttempts + 1, Err: lastErr}
}

// Backoff returns the wait duration before the next attempt:
// BaseDelay * 2^attempt.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	return p.BaseDelay << uint(attempt)
}

// Attempt runs op under the policy and returns its value.
func Attempt[T any](ctx context.Context, p *RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// sleepContext pauses for d or until the context finishes.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Pause enforces the fixed politeness delay before an external fetch.
// It exists separately from retry backoff: the delay applies to every
// request, not only to failures.
func Pause(ctx context.Context, d time.Duration) {
	_ = sleepContext(ctx, d)
}
