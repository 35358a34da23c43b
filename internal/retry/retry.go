// Package retry wraps fallible operations with bounded exponential backoff.
//
// It is used for reads that may lag behind provisioning (principal profiles,
// permission rules) and for provisioning writes. Entity mutations are never
// wrapped: those fail fast so a user retry stays explicit and visible.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes one backoff schedule. The zero value retries nothing.
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// Multiplier scales the delay after each failed attempt. No jitter,
	// no cap; attempts exhausting is the only bound.
	Multiplier float64
}

// DefaultPolicy matches the profile-fetch schedule: 1 attempt + 3 retries
// at 100ms, 200ms, 400ms.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, InitialDelay: 100 * time.Millisecond, Multiplier: 2}
}

// Do invokes op, retrying per policy until it succeeds, attempts exhaust,
// or ctx is done. The final failure is wrapped with the attempt count;
// context cancellation during a wait returns ctx.Err().
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	delay := policy.InitialDelay
	attempts := policy.MaxRetries + 1

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if policy.Multiplier > 0 {
			delay = time.Duration(float64(delay) * policy.Multiplier)
		}
	}
	return fmt.Errorf("retry: %d attempts exhausted: %w", attempts, err)
}

// Value runs op under Do and returns its result alongside the final error.
func Value[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, policy, func(ctx context.Context) error {
		var opErr error
		out, opErr = op(ctx)
		return opErr
	})
	return out, err
}
