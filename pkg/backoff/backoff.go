package backoff

import (
	"math"
	"time"
)

// Plan describes a deterministic exponential backoff schedule.
// Delays grow by Multiplier on every attempt and never exceed MaxDelay.
// The schedule carries no jitter, so a given attempt always maps to the
// same delay.
type Plan struct {
	InitialDelay time.Duration // Delay before attempt zero
	MaxDelay     time.Duration // Upper bound for any delay
	Multiplier   float64       // Growth factor between attempts (typically 2.0)
}

// DefaultPlan returns the schedule used for control channel reconnects:
// 1s, 2s, 4s, 8s, 16s, then capped at 30s.
func DefaultPlan() Plan {
	return Plan{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// NextDelay returns the delay to wait before the given attempt.
// Attempts are counted from zero.
func (p Plan) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Calculate exponential delay: initialDelay * (multiplier ^ attempt)
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))

	// Cap at max delay; also handles float overflow, which compares as +Inf
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	return time.Duration(delay)
}
