// Package retry implements context-aware backoff for operations that
// are safe to repeat. Only idempotent reads qualify; mutating
// marketplace calls must never pass through here.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy defines how to retry an operation
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy is a sensible default for resynchronizing fetches
var DefaultPolicy = Policy{
	MaxAttempts:    3,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     3 * time.Second,
}

// IsTransientFunc reports whether an error is transient and worth retrying
type IsTransientFunc func(error) bool

// Do executes fn with retries according to the policy. Non-transient
// errors abort immediately; context cancellation wins over backoff sleeps.
func Do(ctx context.Context, policy Policy, isTransient IsTransientFunc, fn func() error) error {
	var err error
	backoff := policy.InitialBackoff

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if isTransient != nil && !isTransient(err) {
			return err
		}

		if attempt == policy.MaxAttempts-1 {
			break
		}

		// Jittered backoff: backoff + random(0, 50% of backoff)
		jitter := time.Duration(rand.Int63n(int64(backoff / 2)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
			backoff = min(backoff*2, policy.MaxBackoff)
		}
	}

	return err
}
