// Package circuitbreaker guards calls to a remote dependency. After enough
// consecutive failures it rejects calls until a cool-down passes, then lets
// a few trial calls through before closing again.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config tunes a CircuitBreaker. Zero values fall back to one half-open
// trial call, a 60s open timeout, 5 failures to open and 2 successes to
// close.
type Config struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
	// IsFailure decides whether a non-nil error counts against the
	// dependency. Errors it rejects are ignored. Nil counts every error.
	IsFailure     func(err error) bool
	OnStateChange func(name string, from State, to State)
	Logger        *zap.Logger
}

// Counts holds the tallies of the current generation.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	Ignored              uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

type outcome int

const (
	success outcome = iota
	failure
	ignored
)

type CircuitBreaker struct {
	name string
	cfg  Config

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
}

func NewCircuitBreaker(name string, cfg Config) *CircuitBreaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(error) bool { return true }
	}

	cb := &CircuitBreaker{name: name, cfg: cfg}
	cb.reset(time.Now())
	return cb
}

// Execute runs fn unless the breaker is open. An error returned after ctx
// is done is the caller giving up, not the dependency failing, and is not
// counted.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	generation, err := cb.admit()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.record(generation, failure)
			panic(r)
		}
	}()

	err = fn()
	cb.record(generation, cb.classify(ctx, err))
	return err
}

func (cb *CircuitBreaker) classify(ctx context.Context, err error) outcome {
	switch {
	case err == nil:
		return success
	case ctx.Err() != nil, errors.Is(err, context.Canceled), !cb.cfg.IsFailure(err):
		return ignored
	default:
		return failure
	}
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.refresh(time.Now())
	switch {
	case state == StateOpen:
		return cb.generation, ErrCircuitOpen
	case state == StateHalfOpen && cb.counts.Requests >= cb.cfg.MaxRequests:
		return cb.generation, ErrTooManyRequests
	}

	cb.counts.Requests++
	return cb.generation, nil
}

func (cb *CircuitBreaker) record(generation uint64, o outcome) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state := cb.refresh(now)
	// A result from before the last transition says nothing about the
	// current state.
	if generation != cb.generation {
		return
	}

	switch o {
	case success:
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.cfg.SuccessThreshold {
			cb.transition(StateClosed, now)
		}
	case failure:
		cb.counts.TotalFailures++
		cb.counts.ConsecutiveFailures++
		cb.counts.ConsecutiveSuccesses = 0
		if state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen, now)
		}
	case ignored:
		cb.counts.Ignored++
		// Hand the half-open slot back so a trial call is not wasted.
		if state == StateHalfOpen && cb.counts.Requests > 0 {
			cb.counts.Requests--
		}
	}
}

// refresh applies time-based transitions and returns the current state.
func (cb *CircuitBreaker) refresh(now time.Time) State {
	switch cb.state {
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.reset(now)
		}
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.transition(StateHalfOpen, now)
		}
	}
	return cb.state
}

func (cb *CircuitBreaker) transition(to State, now time.Time) {
	if cb.state == to {
		return
	}

	from := cb.state
	failures := cb.counts.ConsecutiveFailures
	cb.state = to
	cb.reset(now)

	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
	if cb.cfg.Logger != nil {
		cb.cfg.Logger.Info("Circuit breaker state changed",
			zap.String("name", cb.name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Uint32("failures", failures),
		)
	}
}

// reset starts a new generation with empty counts.
func (cb *CircuitBreaker) reset(now time.Time) {
	cb.generation++
	cb.counts = Counts{}

	switch {
	case cb.state == StateOpen:
		cb.expiry = now.Add(cb.cfg.Timeout)
	case cb.state == StateClosed && cb.cfg.Interval > 0:
		cb.expiry = now.Add(cb.cfg.Interval)
	default:
		cb.expiry = time.Time{}
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.refresh(time.Now())
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.counts
}
