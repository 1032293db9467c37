package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sleeper waits for d or until ctx is done. It returns ctx.Err() when
// interrupted. Tests substitute a recorder.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the wall-clock Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryConfig controls the fetcher's linear backoff: the wait before attempt
// n+1 is BaseDelay*(n+1).
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first.
	// Default: 5.
	MaxAttempts int

	// BaseDelay is the unit of the linear schedule. Default: 600ms.
	BaseDelay time.Duration

	// OnRetry is called before each retry sleep with attempt number and error.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the schedule used against the public API.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   600 * time.Millisecond,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 600 * time.Millisecond
	}
	return c
}

// Delay returns the wait after the given zero-based failed attempt.
func (c RetryConfig) Delay(attempt int) time.Duration {
	c = c.withDefaults()
	return c.BaseDelay * time.Duration(attempt+1)
}

// Schedule returns every wait a call that always fails will perform.
func (c RetryConfig) Schedule() []time.Duration {
	c = c.withDefaults()
	out := make([]time.Duration, 0, c.MaxAttempts-1)
	for i := 0; i < c.MaxAttempts-1; i++ {
		out = append(out, c.Delay(i))
	}
	return out
}

// Attempts returns MaxAttempts with defaults applied.
func (c RetryConfig) Attempts() int {
	return c.withDefaults().MaxAttempts
}

// DoVal runs fn until it succeeds, returns a non-retryable error, or the
// attempt ceiling is reached. Only errors for which Retryable is true are
// retried. Context cancellation stops retries immediately.
func DoVal[T any](ctx context.Context, cfg RetryConfig, sleep Sleeper, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	if sleep == nil {
		sleep = Sleep
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !Retryable(err) {
			return zero, lastErr
		}
		if attempt >= cfg.MaxAttempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}
		if err := sleep(ctx, cfg.Delay(attempt)); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// RetryLogger returns an OnRetry callback that logs each retry attempt with
// the failure's kind.
func RetryLogger(operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.String("kind", KindOf(err).String()),
			zap.Error(err),
		)
	}
}
