// Package retry runs an operation with bounded exponential backoff.
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultRetries is the retry budget callers usually configure. A zero Policy.Retries means no retries.
const DefaultRetries = 3

// Defaults used when a Policy delay is zero.
const (
	DefaultBaseDelay = 500 * time.Millisecond
	DefaultMaxDelay  = 30 * time.Second
)

// Policy configures Do. The zero value makes a single attempt.
type Policy struct {
	// Retries is the number of extra attempts after the first call. Zero or negative disables retrying.
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Jitter adds up to Jitter*delay of random wait on top of each delay.
	Jitter float64
	// OnRetry is called before each wait with the 1-based number of the failed attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
	// Permanent reports errors that must be returned without another attempt.
	Permanent func(error) bool
	// Timer is used for waits. Nil uses a real timer.
	Timer backoff.Timer
}

func (p Policy) retries() uint64 {
	return uint64(max(p.Retries, 0))
}

// NoRetry is a policy that makes exactly one attempt.
var NoRetry = Policy{}

// Do calls fn until it succeeds, returns a permanent error, or the retry budget is spent.
// The error from the last attempt is returned unchanged. A cancelled ctx stops the chain
// before the next attempt and ctx.Err() is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var attempt int
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if p.Permanent != nil && p.Permanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, d time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, d)
		}
	}
	b := backoff.WithContext(backoff.WithMaxRetries(newExponential(p), p.retries()), ctx)
	return backoff.RetryNotifyWithTimer(op, b, notify, p.Timer)
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// exponential yields base*2^n for the n-th wait, capped at max, plus additive jitter.
type exponential struct {
	base, max time.Duration
	jitter    float64
	n         int
	rnd       func() float64
}

func newExponential(p Policy) *exponential {
	e := &exponential{base: p.BaseDelay, max: p.MaxDelay, jitter: p.Jitter, rnd: rand.Float64}
	if e.base <= 0 {
		e.base = DefaultBaseDelay
	}
	if e.max <= 0 {
		e.max = DefaultMaxDelay
	}
	return e
}

func (e *exponential) NextBackOff() time.Duration {
	d := e.base
	for i := 0; i < e.n && d < e.max; i++ {
		d *= 2
	}
	e.n++
	if d > e.max {
		d = e.max
	}
	if e.jitter > 0 {
		d += time.Duration(e.rnd() * e.jitter * float64(d))
	}
	return d
}

func (e *exponential) Reset() { e.n = 0 }
