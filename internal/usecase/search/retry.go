package search

import (
	"context"
	"errors"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 50 * time.Millisecond
	DefaultMaxDelay    = time.Second
	DefaultMultiplier  = 2.0
)

// RetryConfig configures exponential backoff for transient backend failures.
type RetryConfig struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // upper bound on any single delay
	Multiplier  float64       // delay growth per attempt
}

// DefaultRetryConfig returns the defaults used when none are configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Multiplier:  DefaultMultiplier,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// retryWithBackoff calls fn until it succeeds, fails with a non-retryable
// error, or attempts run out. Only ErrBackendUnavailable is retried; timeouts,
// malformed replies and preconditions fail immediately. Each attempt runs
// under its own timeout when timeout > 0. onRetry (may be nil) is called
// before every repeated attempt.
func retryWithBackoff[T any](
	ctx context.Context, cfg RetryConfig, timeout time.Duration,
	onRetry func(attempt int, err error),
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	backoff := cfg.BaseDelay

	for attempt := 1; ; attempt++ {
		result, err := attemptWithTimeout(ctx, timeout, fn)
		if err == nil {
			return result, nil
		}

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !errors.Is(err, domain.ErrBackendUnavailable) || attempt >= cfg.MaxAttempts {
			return zero, err
		}

		if onRetry != nil {
			onRetry(attempt, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		backoff = min(time.Duration(float64(backoff)*cfg.Multiplier), cfg.MaxDelay)
	}
}

func attemptWithTimeout[T any](
	ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error),
) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(actx)
}
