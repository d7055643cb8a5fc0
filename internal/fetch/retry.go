package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/inkfeed/inkfeed/internal/domain"
)

// Policy controls retry behavior for transient failures. MaxRetries is the
// number of retries after the first attempt, so an operation runs at most
// MaxRetries+1 times.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Do runs fn, retrying transient errors with exponential backoff and jitter.
// Permanent errors and context cancellation stop immediately.
func Do(ctx context.Context, p Policy, logger *slog.Logger, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(p.BaseDelay, attempt)); err != nil {
				return err
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !domain.IsTransient(lastErr) {
			return lastErr
		}
		if logger != nil && attempt < p.MaxRetries {
			logger.Debug("retrying", "op", op, "attempt", attempt+1, "error", lastErr)
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", op, p.MaxRetries+1, lastErr)
}

// backoff doubles the base delay per attempt and adds jitter in
// [delay/2, delay*3/2).
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	delay := base << (attempt - 1)
	return delay/2 + rand.N(delay)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
