// Package retry provides exponential-backoff retries for idempotent
// operations against remote collaborators. Settlement submissions are
// never retried: every settlement failure is terminal for that call.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Backoff describes the retry schedule.
type Backoff struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Initial is the delay before the second try.
	Initial time.Duration

	// Max caps the delay between tries.
	Max time.Duration

	// Factor multiplies the delay after each failed try.
	Factor float64
}

// DefaultBackoff is a conservative schedule for network reads.
var DefaultBackoff = Backoff{
	Attempts: 3,
	Initial:  100 * time.Millisecond,
	Max:      5 * time.Second,
	Factor:   2.0,
}

// Retryable reports whether an error is worth another try.
type Retryable func(error) bool

// Do runs fn until it succeeds, the error is not retryable, the schedule
// is exhausted, or the context ends.
func Do[T any](ctx context.Context, b Backoff, retryable Retryable, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	delay := b.Initial
	for attempt := 0; attempt < b.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("context cancelled: %w", err)
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if retryable != nil && !retryable(err) {
			return zero, err
		}
		if attempt == b.Attempts-1 {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
		delay = time.Duration(float64(delay) * b.Factor)
		if delay > b.Max {
			delay = b.Max
		}
	}

	return zero, fmt.Errorf("retries exhausted: %w", lastErr)
}
