package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"perch/pkg/backoff"
)

// Config holds retry behavior for one call site.
type Config struct {
	Enabled      bool
	MaxAttempts  int              // Retries after the first call
	InitialDelay time.Duration    // Delay before the first retry
	MaxDelay     time.Duration    // Upper bound for any delay
	Multiplier   float64          // Growth factor between retries (typically 2.0)
	Jitter       bool             // Spread delays to avoid retrying in lockstep
	IsRetryable  func(error) bool // nil retries every error
}

// DefaultConfig retries three times, 100ms initial delay doubling up
// to 5s, with jitter.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

func (cfg Config) plan() backoff.Plan {
	return backoff.Plan{
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   cfg.Multiplier,
	}
}

// delay follows the backoff schedule, widened by ±25% when jitter is
// on.
func (cfg Config) delay(attempt int) time.Duration {
	d := cfg.plan().NextDelay(attempt)
	if !cfg.Jitter || d <= 0 {
		return d
	}
	span := d / 2
	return d - d/4 + time.Duration(rand.Int63n(int64(span)+1))
}

// Retry runs fn until it succeeds, the attempts run out, the error is
// not retryable, or the context ends.
func Retry(ctx context.Context, cfg Config, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult is Retry for functions that produce a value.
func RetryWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T

	if !cfg.Enabled {
		return fn()
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if cfg.IsRetryable != nil && !cfg.IsRetryable(err) {
			return zero, fmt.Errorf("non-retryable error: %w", err)
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled during wait: %w", ctx.Err())
		case <-time.After(cfg.delay(attempt)):
		}
	}

	return zero, fmt.Errorf("max attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}
