// Package collector holds the adapters that fetch prices, sentiment, portfolio
// state and advisory recommendations from external services.
package collector

import (
	"context"
	"math"
	"time"

	decerrors "github.com/ducminhle1904/crypto-decision-engine/internal/errors"
)

// RetryPolicy is an exponential backoff owned by each adapter
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
}

// DefaultRetryPolicy returns a default retry configuration
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Factor:       2.0,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts-1 || !decerrors.IsRetryable(lastErr) {
			break
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(p.delay(attempt)):
		}
	}
	return lastErr
}

// delay calculates the wait before the next attempt
func (p RetryPolicy) delay(attempt int) time.Duration {
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	delay := time.Duration(float64(p.InitialDelay) * math.Pow(factor, float64(attempt)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
