// Package retry runs an operation a bounded number of times with a fixed
// pause between attempts.
//
// It is used for storage bring-up, where the database may still be starting
// when the service launches.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when every attempt failed.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Policy bounds the number of attempts and the pause between them.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// OnFailure is called after each failed attempt, before any pause.
	// attempt is 1-based.
	OnFailure func(attempt int, err error)
}

// Do calls fn until it succeeds, the attempts run out, or ctx is cancelled.
//
// The returned error wraps ErrExhausted and the last failure when all
// attempts fail, or the context error when cancelled during a pause.
// A policy with MaxAttempts below 1 makes a single attempt.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.OnFailure != nil {
			p.OnFailure(attempt, lastErr)
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}
