package resilience

import (
	"errors"
	"sync"
	"time"
)

// CircuitState is the admission state of a collaborator's breaker
type CircuitState int

const (
	StateClosed   CircuitState = iota // calls pass through
	StateOpen                         // calls are rejected until the cool-down ends
	StateHalfOpen                     // a few probe calls decide the next state
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// ErrCircuitOpen is returned by Call while the breaker rejects requests
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerStats is a point-in-time view of a breaker
type BreakerStats struct {
	State    CircuitState
	Requests int64
	Failures int64
}

// FailureRate returns failures as a percentage of requests
func (s BreakerStats) FailureRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Requests) * 100.0
}

// TransitionFunc observes breaker state changes. It runs with the
// breaker locked and must not call back into it.
type TransitionFunc func(name string, from, to CircuitState)

// CircuitBreaker stops calling a collaborator after consecutive failures
// and lets a few probes through once the cool-down has passed.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	probes       int
	now          func() time.Time
	onTransition TransitionFunc

	mu          sync.Mutex
	state       CircuitState
	consecutive int
	openedAt    time.Time
	admitted    int
	succeeded   int
	stats       BreakerStats
}

// BreakerOption configures a CircuitBreaker
type BreakerOption func(*CircuitBreaker)

// WithBreakerClock sets the time source for the cool-down
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// WithProbes sets how many half-open calls are admitted, and must
// succeed, before the breaker closes again.
func WithProbes(n int) BreakerOption {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.probes = n
		}
	}
}

// OnTransition registers fn to observe state changes
func OnTransition(fn TransitionFunc) BreakerOption {
	return func(cb *CircuitBreaker) { cb.onTransition = fn }
}

// NewCircuitBreaker creates a closed breaker that opens after
// maxFailures consecutive failures and probes again after resetTimeout.
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration, opts ...BreakerOption) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	cb := &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		probes:       3,
		now:          time.Now,
		state:        StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Name returns the collaborator this breaker protects
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Call runs fn unless the breaker is open. Only errors accepted by
// countsAsFailure are recorded as failures; a nil countsAsFailure counts
// every error.
func (cb *CircuitBreaker) Call(fn func() error, countsAsFailure func(error) bool) error {
	if !cb.admit() {
		return ErrCircuitOpen
	}

	err := fn()

	failed := err != nil && (countsAsFailure == nil || countsAsFailure(err))
	cb.RecordResult(!failed)
	return err
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			return false
		}
		cb.moveTo(StateHalfOpen)
		cb.admitted = 1
		return true

	case StateHalfOpen:
		if cb.admitted >= cb.probes {
			return false
		}
		cb.admitted++
		return true
	}
	return true
}

// RecordResult records the outcome of one call
func (cb *CircuitBreaker) RecordResult(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.Requests++
	if success {
		cb.consecutive = 0
		if cb.state == StateHalfOpen {
			cb.succeeded++
			if cb.succeeded >= cb.probes {
				cb.moveTo(StateClosed)
			}
		}
		return
	}

	cb.stats.Failures++
	cb.consecutive++
	switch cb.state {
	case StateClosed:
		if cb.consecutive >= cb.maxFailures {
			cb.trip()
		}
	case StateHalfOpen:
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.moveTo(StateOpen)
}

func (cb *CircuitBreaker) moveTo(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.admitted = 0
	cb.succeeded = 0
	if to == StateClosed {
		cb.consecutive = 0
	}
	if from != to && cb.onTransition != nil {
		cb.onTransition(cb.name, from, to)
	}
}

// State returns the current state. An open breaker whose cool-down has
// passed still reports open until the next call probes it.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns the state and lifetime counters
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	s := cb.stats
	s.State = cb.state
	return s
}
