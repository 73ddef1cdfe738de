// Package retry provides bounded retries with jittered exponential backoff
// for boot-time operations like store connects. Hot-path delivery never
// retries; the circuit breaker owns that behavior.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy bounds the retry loop
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy suits startup dependencies that are usually reachable
var DefaultPolicy = RetryPolicy{
	MaxAttempts:    3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
}

// IsTransientFunc reports whether an error is worth retrying
type IsTransientFunc func(error) bool

// Do runs fn until it succeeds, a permanent error occurs, the attempt budget
// is spent or the context is cancelled. Backoff doubles each attempt up to
// MaxBackoff, with up to 50% jitter added to avoid thundering herds.
func Do(ctx context.Context, policy RetryPolicy, isTransient IsTransientFunc, fn func() error) error {
	backoff := policy.InitialBackoff

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isTransient(err) || attempt >= policy.MaxAttempts {
			return err
		}

		sleep := backoff
		if half := backoff / 2; half > 0 {
			sleep += time.Duration(rand.Int63n(int64(half)))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		if backoff *= 2; backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}
}
