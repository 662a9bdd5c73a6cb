package resilience

import (
	"errors"
	"testing"
	"time"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int, opts ...BreakerOption) (*CircuitBreaker, *manualClock) {
	clock := &manualClock{t: time.Unix(1700000000, 0)}
	opts = append([]BreakerOption{WithBreakerClock(clock.now)}, opts...)
	return NewCircuitBreaker("chat", maxFailures, time.Second, opts...), clock
}

func succeed() error { return nil }

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb, _ := newTestBreaker(3)

	if cb.State() != StateClosed {
		t.Errorf("Expected initial state to be closed, got %s", cb.State())
	}
	if cb.Name() != "chat" {
		t.Errorf("Expected name chat, got %s", cb.Name())
	}
	if err := cb.Call(succeed, nil); err != nil {
		t.Errorf("Expected call to pass, got %v", err)
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(3)

	cb.RecordResult(false)
	cb.RecordResult(false)
	if cb.State() != StateClosed {
		t.Error("Expected state to still be closed after 2 failures")
	}

	cb.RecordResult(false)
	if cb.State() != StateOpen {
		t.Error("Expected state to be open after 3 failures")
	}

	called := false
	err := cb.Call(func() error {
		called = true
		return nil
	}, nil)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Expected function not to run while open")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(3)

	cb.RecordResult(false)
	cb.RecordResult(false)
	cb.RecordResult(true)
	cb.RecordResult(false)
	cb.RecordResult(false)

	if cb.State() != StateClosed {
		t.Error("Expected a success to reset the consecutive failure count")
	}
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		probes []error
		want   CircuitState
	}{
		{"all probes succeed", []error{nil, nil, nil}, StateClosed},
		{"partial success", []error{nil, nil}, StateHalfOpen},
		{"probe fails", []error{nil, boom}, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock := newTestBreaker(1)
			cb.RecordResult(false)

			clock.advance(500 * time.Millisecond)
			if err := cb.Call(succeed, nil); !errors.Is(err, ErrCircuitOpen) {
				t.Fatalf("Expected rejection during cool-down, got %v", err)
			}

			clock.advance(time.Second)
			for i, probe := range tt.probes {
				probe := probe
				if err := cb.Call(func() error { return probe }, nil); !errors.Is(err, probe) {
					t.Fatalf("Probe %d: expected %v, got %v", i, probe, err)
				}
			}
			if cb.State() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, cb.State())
			}
		})
	}
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb, clock := newTestBreaker(1, WithProbes(1))
	cb.RecordResult(false)
	clock.advance(2 * time.Second)

	if !cb.admit() {
		t.Fatal("Expected the first probe to be admitted")
	}
	if cb.admit() {
		t.Error("Expected a second concurrent probe to be rejected")
	}
	cb.RecordResult(true)
	if cb.State() != StateClosed {
		t.Errorf("Expected closed after the single probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_CountsAsFailure(t *testing.T) {
	cb, _ := newTestBreaker(1)
	unauthorized := errors.New("unauthorized")
	counts := func(err error) bool { return !errors.Is(err, unauthorized) }

	// Errors the caller caused do not trip the breaker
	for i := 0; i < 5; i++ {
		_ = cb.Call(func() error { return unauthorized }, counts)
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected closed, got %s", cb.State())
	}

	_ = cb.Call(func() error { return errors.New("connection refused") }, counts)
	if cb.State() != StateOpen {
		t.Errorf("Expected open, got %s", cb.State())
	}
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	type change struct{ from, to CircuitState }
	var seen []change
	cb, clock := newTestBreaker(1, WithProbes(1), OnTransition(func(name string, from, to CircuitState) {
		if name != "chat" {
			t.Errorf("Unexpected breaker name %s", name)
		}
		seen = append(seen, change{from, to})
	}))

	cb.RecordResult(false)
	clock.advance(time.Second)
	_ = cb.Call(succeed, nil)

	want := []change{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}
	if len(seen) != len(want) {
		t.Fatalf("Expected %d transitions, got %+v", len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("Transition %d: expected %s->%s, got %s->%s", i, want[i].from, want[i].to, seen[i].from, seen[i].to)
		}
	}
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb, _ := newTestBreaker(10)

	cb.RecordResult(true)
	cb.RecordResult(false)
	cb.RecordResult(true)
	cb.RecordResult(false)

	stats := cb.Stats()
	if stats.State != StateClosed {
		t.Errorf("Expected closed, got %s", stats.State)
	}
	if stats.Requests != 4 || stats.Failures != 2 {
		t.Errorf("Expected 4 requests and 2 failures, got %+v", stats)
	}
	if stats.FailureRate() != 50.0 {
		t.Errorf("Expected 50%% failure rate, got %f", stats.FailureRate())
	}
	if (BreakerStats{}).FailureRate() != 0 {
		t.Error("Expected no failure rate without requests")
	}
}

func TestCircuitState_String(t *testing.T) {
	tests := map[CircuitState]string{
		StateClosed:      "closed",
		StateOpen:        "open",
		StateHalfOpen:    "half_open",
		CircuitState(42): "unknown",
	}
	for state, expected := range tests {
		if state.String() != expected {
			t.Errorf("Expected %s, got %s", expected, state.String())
		}
	}
}
