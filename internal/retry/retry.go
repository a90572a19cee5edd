// Package retry runs idempotent operations with bounded exponential backoff.
//
// Only reads belong here. Mutations must not be retried automatically since a
// response lost after the write reached the store would submit it twice.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Policy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Jitter is the fraction (0.0 to 1.0) of each backoff randomized.
	Jitter float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
	}
}

// None never retries.
func None() Policy {
	return Policy{}
}

// Permanent marks err as not worth retrying. Do returns the wrapped error
// unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// NewBackOff returns the policy's delay sequence. It never gives up on its
// own; callers bound it by retries or by a context.
func (p Policy) NewBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialBackoff,
		RandomizationFactor: p.Jitter,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.MaxBackoff,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	if b.MaxInterval <= 0 {
		b.MaxInterval = time.Duration(math.MaxInt64)
	}
	b.Reset()
	return b
}

// Backoff returns the delay before retry number attempt (starting at 1).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}

	b := p.NewBackOff()
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

// Do calls fn until it succeeds, returns a permanent error, the context ends,
// or the policy's retries are used up. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(p.NewBackOff(), uint64(retries)), ctx)

	var lastErr error
	err := backoff.Retry(func() error {
		lastErr = fn(ctx)
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return backoff.Permanent(lastErr)
		}
		return lastErr
	}, b)

	if err != nil && ctx.Err() != nil && lastErr != nil && !errors.Is(err, lastErr) {
		return errors.Join(ctx.Err(), lastErr)
	}
	return err
}
