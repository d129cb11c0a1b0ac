package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryConfig controls the exponential backoff applied by WithRetry.
type RetryConfig struct {
	MaxRetries        int           // Re-invocations after the initial attempt
	BaseDelay         time.Duration // Delay after the first failed attempt
	BackoffMultiplier float64
	MaxDelay          time.Duration
	Jitter            float64 // Fraction in [0,1); delay varies by +/- this share
}

// DefaultRetryConfig returns the standard pipeline retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		BaseDelay:         1 * time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          30 * time.Second,
		Jitter:            0.1,
	}
}

// DelayFor returns the backoff applied after the given failed attempt
// (1-based): min(maxDelay, baseDelay x multiplier^(attempt-1)), jittered.
func (c RetryConfig) DelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := c.BackoffMultiplier
	if mult <= 0 {
		mult = 2.0
	}
	d := float64(c.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if max := float64(c.MaxDelay); c.MaxDelay > 0 && d > max {
		d = max
	}
	if c.Jitter > 0 {
		spread := d * c.Jitter
		d = d - spread + rand.Float64()*2*spread
	}
	return time.Duration(d)
}

// WithRetry runs fn up to MaxRetries+1 times, backing off between attempts.
// It re-invokes only when the classified error is retryable; on exhaustion
// the last error is surfaced unchanged. Cancellation is surfaced as a
// non-retryable cancelled error.
func WithRetry(ctx context.Context, cfg RetryConfig, logger arbor.ILogger, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	attempts := cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return NewCancelled(op)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		classified := Classify(lastErr)
		if classified.Code == CodeCancelled {
			return classified
		}
		if !classified.Retryable || attempt == attempts {
			break
		}

		backoff := cfg.DelayFor(attempt)
		if logger != nil {
			logger.Warn().
				Str("operation", op).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("Retrying after failure")
		}

		select {
		case <-ctx.Done():
			return NewCancelled(op)
		case <-time.After(backoff):
		}
	}

	return lastErr
}
