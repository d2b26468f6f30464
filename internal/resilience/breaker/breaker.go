// Package breaker isolates callers from an upstream that keeps failing.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the upstream while the circuit is open.
var ErrCircuitOpen = errors.New("breaker: circuit open")

// State is the circuit state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Settings configures a Breaker.
type Settings struct {
	Name string
	// Threshold is the failure weight at which the circuit opens. Defaults to 5.
	Threshold int
	// Cooldown is how long the circuit stays open before a trial call. Defaults to 30s.
	Cooldown time.Duration
	// Weight returns how many failure units err counts for. Zero means the error is ignored.
	// Nil counts every error as 1.
	Weight func(err error) int
	// OnStateChange is called after the breaker lock is released, so it may call State or Failures.
	OnStateChange func(name string, from, to State)
}

type transition struct{ from, to State }

// Breaker is a three-state circuit breaker safe for concurrent use.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	weight    func(error) int
	onChange  func(string, State, State)

	mu         sync.Mutex
	state      State
	failures   int
	openedAt   time.Time
	generation uint64
	trial      bool
	pending    []transition
	nowF       func() time.Time
}

// New returns a closed Breaker.
func New(s Settings) *Breaker {
	b := &Breaker{
		name:      s.Name,
		threshold: s.Threshold,
		cooldown:  s.Cooldown,
		weight:    s.Weight,
		onChange:  s.OnStateChange,
		nowF:      time.Now,
	}
	if b.threshold < 1 {
		b.threshold = 5
	}
	if b.cooldown <= 0 {
		b.cooldown = 30 * time.Second
	}
	if b.weight == nil {
		b.weight = func(error) int { return 1 }
	}
	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// Execute runs fn if the circuit allows it and records the outcome.
// While open, or while a half-open trial is in flight, it returns ErrCircuitOpen without calling fn.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	gen, err := b.before()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.after(gen, err)
	return err
}

// Do is Execute for operations that return a value.
func Do[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}

func (b *Breaker) before() (uint64, error) {
	b.mu.Lock()
	defer b.unlock()

	switch b.state {
	case StateOpen:
		if b.nowF().Sub(b.openedAt) < b.cooldown {
			return 0, ErrCircuitOpen
		}
		b.setState(StateHalfOpen)
		b.trial = true
		return b.generation, nil
	case StateHalfOpen:
		if b.trial {
			return 0, ErrCircuitOpen
		}
		b.trial = true
		return b.generation, nil
	default:
		return b.generation, nil
	}
}

func (b *Breaker) after(gen uint64, err error) {
	b.mu.Lock()
	defer b.unlock()

	if gen != b.generation {
		// The state moved on while this call was running.
		return
	}
	if err == nil {
		if b.state == StateHalfOpen {
			b.setState(StateClosed)
		}
		b.failures = 0
		return
	}
	w := b.weight(err)
	if w <= 0 {
		if b.state == StateHalfOpen {
			b.trial = false
		}
		return
	}
	if b.state == StateHalfOpen {
		b.trip()
		return
	}
	b.failures += w
	if b.failures >= b.threshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.openedAt = b.nowF()
	b.setState(StateOpen)
}

// setState must be called with mu held. Every transition starts a new generation.
func (b *Breaker) setState(to State) {
	from := b.state
	b.state = to
	b.generation++
	b.trial = false
	if to == StateClosed {
		b.failures = 0
	}
	if from != to && b.onChange != nil {
		b.pending = append(b.pending, transition{from: from, to: to})
	}
}

// unlock releases mu and then reports the transitions made while it was held.
func (b *Breaker) unlock() {
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()
	for _, t := range pending {
		b.onChange(b.name, t.from, t.to)
	}
}

// State returns the current state. An open circuit whose cooldown has elapsed still reports open
// until the next call moves it to half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RetryAfter returns how long an open circuit keeps rejecting calls. It is zero unless the circuit is
// open and still cooling down.
func (b *Breaker) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateOpen {
		return 0
	}
	return max(b.cooldown-b.nowF().Sub(b.openedAt), 0)
}

// Failures returns the accumulated failure weight in the closed state.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset forces the circuit closed with no failures.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.unlock()
	b.setState(StateClosed)
	b.failures = 0
}
