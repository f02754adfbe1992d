// Package retry provides bounded retry with exponential backoff for calls to
// external providers.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes a bounded retry schedule. Backoff doubles after each failed
// attempt, starting at InitialBackoff and capped at MaxBackoff. The wait is
// applied between attempts, never before the first.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Do runs op until it succeeds or the policy is exhausted. Every error is
// retried; the last error is returned wrapped once all attempts fail. Waits
// are interrupted by context cancellation.
func Do(ctx context.Context, p Policy, op func(context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	backoff := p.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		}

		if err := op(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("all %d attempts failed: %w", p.MaxAttempts, lastErr)
}
