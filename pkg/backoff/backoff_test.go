package backoff

import (
	"testing"
	"time"
)

func TestDefaultPlan_NextDelay(t *testing.T) {
	plan := DefaultPlan()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // 32s capped
		{6, 30 * time.Second},
		{10, 30 * time.Second},
		{100, 30 * time.Second},
	}

	for _, tt := range tests {
		got := plan.NextDelay(tt.attempt)
		if got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestNextDelay_Deterministic(t *testing.T) {
	plan := DefaultPlan()

	for attempt := 0; attempt < 8; attempt++ {
		first := plan.NextDelay(attempt)
		second := plan.NextDelay(attempt)
		if first != second {
			t.Errorf("NextDelay(%d) not deterministic: %v then %v", attempt, first, second)
		}
	}
}

func TestNextDelay_Monotonic(t *testing.T) {
	plan := DefaultPlan()

	prev := time.Duration(0)
	for attempt := 0; attempt < 12; attempt++ {
		delay := plan.NextDelay(attempt)
		if delay < prev {
			t.Errorf("NextDelay(%d) = %v decreased below %v", attempt, delay, prev)
		}
		prev = delay
	}
}

func TestNextDelay_NegativeAttempt(t *testing.T) {
	plan := DefaultPlan()

	if got := plan.NextDelay(-3); got != plan.InitialDelay {
		t.Errorf("NextDelay(-3) = %v, want %v", got, plan.InitialDelay)
	}
}

func TestNextDelay_CustomPlan(t *testing.T) {
	plan := Plan{
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   3.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 250 * time.Millisecond},
		{1, 750 * time.Millisecond},
		{2, 2 * time.Second}, // 2.25s capped
	}

	for _, tt := range tests {
		got := plan.NextDelay(tt.attempt)
		if got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
