package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// RetryConfig holds tuning knobs for [Retry].
type RetryConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// MaxAttempts is the total number of tries, including the first.
	// Default: 3.
	MaxAttempts int

	// BaseDelay is the backoff before the second attempt; each further
	// attempt doubles it. Default: 1s.
	BaseDelay time.Duration

	// Jitter adds up to this fraction of the delay as random noise so
	// concurrent callers don't retry in lockstep. Default: 0.25.
	Jitter float64
}

// Permanent wraps an error to tell [Retry] that further attempts are
// pointless (bad request, auth failure).
func Permanent(err error) error {
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Retry runs fn up to cfg.MaxAttempts times with exponential backoff.
// It stops early when fn succeeds, when fn returns a [Permanent] error, when
// ctx is cancelled, or when the remaining ctx deadline budget cannot cover
// the next backoff sleep. A live call would rather fall back to a template
// than wait out a retry it can no longer afford.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.Jitter <= 0 {
		cfg.Jitter = 0.25
	}

	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		sleep := delay + time.Duration(rand.Float64()*cfg.Jitter*float64(delay))
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= sleep {
			slog.Debug("retry abandoned, deadline budget exhausted",
				"name", cfg.Name, "attempt", attempt)
			return lastErr
		}

		slog.Debug("retrying after failure",
			"name", cfg.Name, "attempt", attempt, "sleep", sleep, "error", lastErr)

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return lastErr
}
