package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBackend = errors.New("backend unavailable")

func fastBreakerConfig() Config {
	return Config{
		FailureThreshold:    2,
		SuccessThreshold:    2,
		Timeout:             50 * time.Millisecond,
		MaxRequestsHalfOpen: 3,
	}
}

// trip drives a breaker built from fastBreakerConfig into the open
// state.
func trip(t *testing.T, cb *CircuitBreaker) {
	t.Helper()
	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func() error { return errBackend })
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open after repeated failures, got %v", cb.GetState())
	}
}

func TestBreakerClosed(t *testing.T) {
	ctx := context.Background()

	t.Run("success passes through", func(t *testing.T) {
		cb := New(DefaultConfig())

		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Errorf("expected no error, got: %v", err)
		}
		if cb.GetState() != StateClosed {
			t.Errorf("expected closed, got %v", cb.GetState())
		}
	})

	t.Run("failure error passes through unchanged", func(t *testing.T) {
		cb := New(DefaultConfig())

		err := cb.Execute(ctx, func() error { return errBackend })
		if !errors.Is(err, errBackend) {
			t.Errorf("expected the backend error, got: %v", err)
		}
		if cb.GetState() != StateClosed {
			t.Errorf("one failure must not open the circuit, got %v", cb.GetState())
		}
		if stats := cb.GetStats(); stats.FailureCount != 1 {
			t.Errorf("expected failure count 1, got %d", stats.FailureCount)
		}
	})
}

func TestBreakerOpens(t *testing.T) {
	cb := New(fastBreakerConfig())
	trip(t, cb)

	executed := false
	err := cb.Execute(context.Background(), func() error {
		executed = true
		return nil
	})

	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got: %v", err)
	}
	if executed {
		t.Error("function must not run while the circuit is open")
	}
}

func TestBreakerHalfOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("enough successes close the circuit", func(t *testing.T) {
		cb := New(fastBreakerConfig())
		trip(t, cb)

		time.Sleep(60 * time.Millisecond)

		for i := 0; i < 2; i++ {
			if err := cb.Execute(ctx, func() error { return nil }); err != nil {
				t.Fatalf("probe %d should be allowed, got: %v", i+1, err)
			}
		}
		if cb.GetState() != StateClosed {
			t.Errorf("expected closed after recovery, got %v", cb.GetState())
		}
	})

	t.Run("any failure reopens the circuit", func(t *testing.T) {
		cb := New(fastBreakerConfig())
		trip(t, cb)

		time.Sleep(60 * time.Millisecond)

		err := cb.Execute(ctx, func() error { return errBackend })
		if !errors.Is(err, errBackend) {
			t.Errorf("expected the backend error, got: %v", err)
		}
		if cb.GetState() != StateOpen {
			t.Errorf("expected open after half-open failure, got %v", cb.GetState())
		}
	})

	t.Run("request budget is enforced", func(t *testing.T) {
		// Success threshold is unreachable within the half-open budget, so
		// the budget rejection is observable before the circuit closes.
		cfg := fastBreakerConfig()
		cfg.SuccessThreshold = 5
		cfg.MaxRequestsHalfOpen = 2
		cb := New(cfg)
		trip(t, cb)

		time.Sleep(60 * time.Millisecond)

		// The transition probe plus the half-open budget are allowed
		for i := 0; i < 3; i++ {
			if err := cb.Execute(ctx, func() error { return nil }); err != nil {
				t.Fatalf("request %d should be allowed, got: %v", i+1, err)
			}
		}

		if cb.GetState() != StateHalfOpen {
			t.Fatalf("expected half-open, got %v", cb.GetState())
		}
		if err := cb.Execute(ctx, func() error { return nil }); !errors.Is(err, ErrOpen) {
			t.Errorf("expected ErrOpen past the half-open budget, got: %v", err)
		}
	})
}

func TestExecuteWithResult(t *testing.T) {
	ctx := context.Background()

	t.Run("value passes through on success", func(t *testing.T) {
		cb := New(DefaultConfig())

		result, err := ExecuteWithResult(ctx, cb, func() (string, error) {
			return "camera-list", nil
		})
		if err != nil {
			t.Errorf("expected no error, got: %v", err)
		}
		if result != "camera-list" {
			t.Errorf("expected 'camera-list', got %q", result)
		}
	})

	t.Run("failure yields the zero value", func(t *testing.T) {
		cb := New(DefaultConfig())

		result, err := ExecuteWithResult(ctx, cb, func() (string, error) {
			return "partial", errBackend
		})
		if !errors.Is(err, errBackend) {
			t.Errorf("expected the backend error, got: %v", err)
		}
		if result != "" {
			t.Errorf("expected zero value, got %q", result)
		}
	})

	t.Run("rejection yields ErrOpen and the zero value", func(t *testing.T) {
		cb := New(fastBreakerConfig())
		trip(t, cb)

		result, err := ExecuteWithResult(ctx, cb, func() (string, error) {
			return "should not run", nil
		})
		if !errors.Is(err, ErrOpen) {
			t.Errorf("expected ErrOpen, got: %v", err)
		}
		if result != "" {
			t.Errorf("expected zero value, got %q", result)
		}
	})
}

func TestBreakerStateChangeCallback(t *testing.T) {
	cb := New(fastBreakerConfig())

	type transition struct{ from, to State }
	var mu sync.Mutex
	var seen []transition

	cb.OnStateChange(func(from, to State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, transition{from, to})
	})

	ctx := context.Background()
	trip(t, cb)

	time.Sleep(60 * time.Millisecond)
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return nil })
	}

	// Callbacks run on their own goroutine
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if len(seen) < 3 {
		t.Fatalf("expected closed->open->half-open->closed, got %d transitions: %v", len(seen), seen)
	}
	if seen[0] != (transition{StateClosed, StateOpen}) {
		t.Errorf("first transition should be closed->open, got %v", seen[0])
	}
	last := seen[len(seen)-1]
	if last.to != StateClosed {
		t.Errorf("expected recovery to end closed, got %v", last)
	}
}

func TestBreakerStats(t *testing.T) {
	cb := New(DefaultConfig())
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return nil })
	_ = cb.Execute(ctx, func() error { return errBackend })

	stats := cb.GetStats()
	if stats.State != StateClosed {
		t.Errorf("expected closed, got %v", stats.State)
	}
	if stats.FailureCount != 1 {
		t.Errorf("expected failure count 1, got %d", stats.FailureCount)
	}
	if stats.LastFailureTime.IsZero() {
		t.Error("expected the failure time to be recorded")
	}
}

func TestBreakerReset(t *testing.T) {
	cb := New(fastBreakerConfig())
	trip(t, cb)

	cb.Reset()

	if cb.GetState() != StateClosed {
		t.Errorf("expected closed after reset, got %v", cb.GetState())
	}
	if stats := cb.GetStats(); stats.FailureCount != 0 {
		t.Errorf("expected failure count 0 after reset, got %d", stats.FailureCount)
	}
}

func TestBreakerConcurrentSuccesses(t *testing.T) {
	cb := New(DefaultConfig())
	ctx := context.Background()

	const goroutines = 10
	const perGoroutine = 10

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				_ = cb.Execute(ctx, func() error { return nil })
			}
		}()
	}
	wg.Wait()

	if cb.GetState() != StateClosed {
		t.Errorf("expected closed, got %v", cb.GetState())
	}
	if stats := cb.GetStats(); stats.SuccessCount != goroutines*perGoroutine {
		t.Errorf("expected %d successes, got %d", goroutines*perGoroutine, stats.SuccessCount)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.FailureThreshold != 5 || cfg.SuccessThreshold != 2 {
		t.Errorf("unexpected thresholds: %+v", cfg)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected 30s open timeout, got %v", cfg.Timeout)
	}
	if cfg.MaxRequestsHalfOpen != 3 {
		t.Errorf("expected half-open budget 3, got %d", cfg.MaxRequestsHalfOpen)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	}
	for state, expected := range cases {
		if state.String() != expected {
			t.Errorf("State(%d): expected %q, got %q", state, expected, state.String())
		}
	}
}
