// Package monitoring exposes the Prometheus collector and the aggregate
// health checker backing /health.
package monitoring

import (
	"context"
	"sync"
	"time"

	"tagfall/internal/core/domain"
)

// HealthChecker aggregates critical checks (storage) with the per-provider
// health the poll scheduler records. Provider trouble degrades the report
// without failing it: the engine keeps serving stored content while an
// upstream is down.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    []HealthCheck
	providers func() []domain.ProviderHealth
}

type HealthCheck struct {
	Name    string
	Check   func(ctx context.Context) (bool, error)
	Timeout time.Duration
}

type HealthStatus struct {
	Status    string                  `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Checks    map[string]string       `json:"checks"`
	Providers []domain.ProviderHealth `json:"providers,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make([]HealthCheck, 0),
	}
}

// AddCheck registers a critical check; a failure marks the whole report
// unhealthy.
func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) (bool, error), timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.checks = append(h.checks, HealthCheck{
		Name:    name,
		Check:   check,
		Timeout: timeout,
	})
}

// SetProviderSource wires the scheduler's health registry into the report.
func (h *HealthChecker) SetProviderSource(source func() []domain.ProviderHealth) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.providers = source
}

func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	for _, check := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
		healthy, err := check.Check(checkCtx)
		cancel()

		switch {
		case err != nil:
			status.Status = "unhealthy"
			status.Checks[check.Name] = err.Error()
		case !healthy:
			status.Status = "unhealthy"
			status.Checks[check.Name] = "check failed"
		default:
			status.Checks[check.Name] = "healthy"
		}
	}

	if h.providers != nil {
		status.Providers = h.providers()
		if status.Status == "healthy" && allProvidersDown(status.Providers) {
			status.Status = "degraded"
		}
	}
	return status
}

// allProvidersDown reports whether every enabled provider is unhealthy.
// Disabled providers do not count; a single healthy upstream keeps the
// report out of degraded.
func allProvidersDown(health []domain.ProviderHealth) bool {
	enabled := 0
	for _, h := range health {
		if h.Status == domain.ProviderStatusDisabled {
			continue
		}
		enabled++
		if h.Status != domain.ProviderStatusUnhealthy {
			return false
		}
	}
	return enabled > 0
}
