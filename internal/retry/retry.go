// Package retry holds the bounded exponential-backoff policy every stage
// client applies to its external call.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy describes a bounded exponential backoff.
type Policy struct {
	MaxAttempts  uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Default mirrors the stage contract: up to 3 attempts, 4s initial delay
// doubling to a 10s ceiling.
func Default() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 4 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
	}
}

// Do runs op under the policy. Only errors are retried; callers signal
// expected absent-data outcomes with a zero value and a nil error, which
// returns immediately. Wrap an error with Permanent to stop retrying.
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialDelay
	bo.MaxInterval = p.MaxDelay
	bo.Multiplier = p.Multiplier

	return backoff.Retry(ctx, backoff.Operation[T](op),
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(p.MaxAttempts),
	)
}

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
