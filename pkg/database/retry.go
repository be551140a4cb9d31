package database

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBaseWait = 1 * time.Second
	retryJitterFraction  = 0.25
)

// retryBackoff returns the backoff duration for the given attempt (0-indexed)
// with ±25% jitter. Base delays: 1s, 2s, 4s.
func retryBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := defaultRetryBaseWait << attempt
	jitter := time.Duration(float64(base) * retryJitterFraction * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter
	return base + jitter
}

// retrier repeats an operation with exponential backoff. When retryable is
// set, errors it rejects are returned immediately.
type retrier struct {
	op        string
	warning   string
	attempts  int
	logger    *slog.Logger
	retryable func(error) bool
}

func (r retrier) do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if r.retryable != nil && !r.retryable(lastErr) {
			return lastErr
		}
		if attempt == r.attempts-1 {
			break
		}

		wait := retryBackoff(attempt)
		if r.logger != nil {
			r.logger.Warn(r.warning,
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", r.attempts),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: context canceled during retry: %w", r.op, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", r.op, r.attempts, lastErr)
}
