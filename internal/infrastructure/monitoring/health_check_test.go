package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"tagfall/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestHealthChecker_CriticalCheckFailureIsUnhealthy(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("storage", func(context.Context) (bool, error) {
		return false, errors.New("redis: connection refused")
	}, time.Second)

	status := h.CheckAll(context.Background())

	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "redis: connection refused", status.Checks["storage"])
}

func TestHealthChecker_AllProvidersDownDegrades(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("storage", func(context.Context) (bool, error) { return true, nil }, time.Second)
	h.SetProviderSource(func() []domain.ProviderHealth {
		return []domain.ProviderHealth{
			{Provider: "MASTODON", Status: domain.ProviderStatusUnhealthy},
			{Provider: "CHATRELAY", Status: domain.ProviderStatusDisabled},
		}
	})

	status := h.CheckAll(context.Background())

	assert.Equal(t, "degraded", status.Status, "stalled ingest degrades without failing the service")
	assert.Equal(t, "healthy", status.Checks["storage"])
	assert.Len(t, status.Providers, 2)
}

func TestHealthChecker_OneHealthyProviderKeepsHealthy(t *testing.T) {
	h := NewHealthChecker()
	h.SetProviderSource(func() []domain.ProviderHealth {
		return []domain.ProviderHealth{
			{Provider: "MASTODON", Status: domain.ProviderStatusUnhealthy},
			{Provider: "CHATRELAY", Status: domain.ProviderStatusHealthy},
		}
	})

	status := h.CheckAll(context.Background())
	assert.Equal(t, "healthy", status.Status)
}
