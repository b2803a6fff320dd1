// Package retry runs an operation with bounded attempts and exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"time"
)

// Defaults used when a Policy field is left zero.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second
	DefaultMultiplier     = 2
)

// Policy controls how many times an operation is attempted and how long to
// wait between attempts.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	// MaxBackoff caps a single wait. Zero means DefaultMaxBackoff; negative
	// means uncapped.
	MaxBackoff time.Duration
	Multiplier float64

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry, if set, is called after a retriable failure and before the
	// wait that precedes the next attempt.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy returns the 3 attempts / 1s / x2 policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		Multiplier:     DefaultMultiplier,
	}
}

// Retriable is implemented by errors that know whether they are transient.
type Retriable interface {
	Retriable() bool
}

// IsRetriable reports whether err (or anything it wraps) is marked transient.
// Unclassified errors and context errors are not retriable.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var r Retriable
	if errors.As(err, &r) {
		return r.Retriable()
	}
	return false
}

// Do calls op until it succeeds, fails with a non-retriable error, or the
// attempts are exhausted. The last error is returned on failure.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	backoff := p.InitialBackoff

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !IsRetriable(err) || attempt >= p.MaxAttempts {
			return zero, err
		}

		wait := backoff
		if p.MaxBackoff > 0 && wait > p.MaxBackoff {
			wait = p.MaxBackoff
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		if serr := p.Sleep(ctx, wait); serr != nil {
			return zero, serr
		}

		backoff = p.next(backoff)
	}
}

// next grows backoff by the multiplier, saturating at MaxBackoff (or at the
// largest Duration when uncapped).
func (p Policy) next(backoff time.Duration) time.Duration {
	grown := float64(backoff) * p.Multiplier
	if grown >= float64(math.MaxInt64) {
		backoff = math.MaxInt64
	} else {
		backoff = time.Duration(grown)
	}
	if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	return backoff
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultInitialBackoff
	}
	if p.MaxBackoff == 0 {
		p.MaxBackoff = DefaultMaxBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
