package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/lexiqai/voice-character/internal/config"
	"github.com/lexiqai/voice-character/internal/faults"
	"github.com/lexiqai/voice-character/internal/observability"
)

// Guard protects one collaborator with a circuit breaker around a
// context-aware retry. Only network failures are retried; unauthorized
// calls never trip the breaker.
type Guard struct {
	breaker *CircuitBreaker
	retry   *RetryConfig
}

// NewGuard creates a guard for the named collaborator
func NewGuard(name string, maxFailures int, resetTimeout time.Duration, retry *RetryConfig) *Guard {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &Guard{
		breaker: NewCircuitBreaker(name, maxFailures, resetTimeout, OnTransition(reportTransition)),
		retry:   retry,
	}
}

func reportTransition(name string, from, to CircuitState) {
	observability.UpdateCircuitBreakerState(name, int(to))
	logger := observability.WithComponent("resilience")
	logger.Info().
		Str("collaborator", name).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("Circuit breaker state changed")
}

// NewGuardFromConfig creates a guard using the resilience settings in cfg
func NewGuardFromConfig(name string, cfg *config.Config) *Guard {
	return NewGuard(
		name,
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		&RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        2 * time.Second,
			BackoffMultiplier: 2.0,
		},
	)
}

// Breaker exposes the underlying circuit breaker
func (g *Guard) Breaker() *CircuitBreaker {
	return g.breaker
}

// Do runs fn under the breaker and retry policy. An open breaker is
// reported as a network failure of the collaborator.
func (g *Guard) Do(ctx context.Context, fn RetryableFunc) error {
	name := g.breaker.Name()

	err := g.breaker.Call(func() error {
		return Retry(ctx, fn, g.retry, faults.Retryable)
	}, tripsBreaker)

	if tripsBreaker(err) {
		observability.IncrementCircuitBreakerFailures(name)
	}

	if errors.Is(err, ErrCircuitOpen) {
		return faults.New(faults.NetworkFailure, name, err)
	}
	return err
}

func tripsBreaker(err error) bool {
	if err == nil || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	switch faults.KindOf(err) {
	case faults.NetworkFailure, faults.Timeout, faults.MalformedResponse:
		return true
	}
	return false
}
