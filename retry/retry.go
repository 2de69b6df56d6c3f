// Package retry provides a small composable retry policy with bounded
// exponential backoff. The policy is parameterized by an error classifier,
// so the same mechanism serves any transient I/O, not one particular store.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Classifier reports whether an error is transient and worth retrying.
type Classifier func(error) bool

// Policy describes bounded exponential-backoff retry. The zero value is
// usable; unset fields fall back to the defaults.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first
	// (default 3).
	MaxAttempts int
	// BaseDelay is the wait before the first retry; each further retry
	// doubles it (default 100ms).
	BaseDelay time.Duration
	// Classify decides which errors are retried. A nil classifier retries
	// every error.
	Classify Classifier
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	return p
}

// Do runs fn under the policy, naming the operation for diagnostics.
//
// Non-transient errors propagate immediately without retry. When all
// attempts are exhausted, the last observed error is wrapped and returned,
// so callers keep the final failure kind (timeout vs connection) instead of
// one collapsed "retries exhausted" error.
func Do(ctx context.Context, op string, p Policy, fn func(context.Context) error) error {
	p = p.withDefaults()

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if p.Classify != nil && !p.Classify(lastErr) {
			return fmt.Errorf("%s: %w", op, lastErr)
		}

		if attempt == p.MaxAttempts {
			break
		}

		slog.Warn("transient failure, retrying",
			"op", op,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"retry_in", delay,
			"err", lastErr,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
	}

	return fmt.Errorf("%s (after %d attempts): %w", op, p.MaxAttempts, lastErr)
}
