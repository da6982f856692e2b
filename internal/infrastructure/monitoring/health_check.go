package monitoring

import (
	"context"
	"sync"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Check probes one dependency. Critical failures make the service
// unready; the rest only degrade it.
type Check struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Probe    func(ctx context.Context) error
}

type CheckResult struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type Report struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type HealthChecker struct {
	mu     sync.RWMutex
	checks []Check
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

func (h *HealthChecker) Register(check Check) {
	if check.Timeout <= 0 {
		check.Timeout = 2 * time.Second
	}
	h.mu.Lock()
	h.checks = append(h.checks, check)
	h.mu.Unlock()
}

// Run probes every registered dependency once.
func (h *HealthChecker) Run(ctx context.Context) Report {
	h.mu.RLock()
	checks := make([]Check, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	report := Report{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}

	for _, check := range checks {
		probeCtx, cancel := context.WithTimeout(ctx, check.Timeout)
		start := time.Now()
		err := check.Probe(probeCtx)
		latency := time.Since(start)
		cancel()

		result := CheckResult{
			Status:    "ok",
			LatencyMS: latency.Milliseconds(),
		}
		if err != nil {
			result.Status = "failed"
			result.Detail = err.Error()
			if check.Critical {
				report.Status = StatusUnhealthy
			} else if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}
		report.Checks[check.Name] = result
	}

	return report
}

// Watch re-runs the checks on a fixed interval and calls onChange
// whenever the overall status moves.
func (h *HealthChecker) Watch(ctx context.Context, interval time.Duration, onChange func(Report)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := StatusHealthy
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := h.Run(ctx)
			if report.Status != last {
				last = report.Status
				if onChange != nil {
					onChange(report)
				}
			}
		}
	}
}
