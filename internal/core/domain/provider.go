package domain

import "time"

type ProviderStatus int

const (
	ProviderStatusHealthy ProviderStatus = iota
	ProviderStatusDegraded
	ProviderStatusUnhealthy
	ProviderStatusDisabled
)

func (s ProviderStatus) String() string {
	switch s {
	case ProviderStatusHealthy:
		return "healthy"
	case ProviderStatusDegraded:
		return "degraded"
	case ProviderStatusUnhealthy:
		return "unhealthy"
	case ProviderStatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// ProviderHealth is the last observed health of one provider adapter.
type ProviderHealth struct {
	Provider  ProviderID     `json:"provider"`
	Status    ProviderStatus `json:"status"`
	Message   string         `json:"message"`
	CheckedAt time.Time      `json:"checked_at"`
}

// AvailableProvider is the subset of provider metadata exposed to clients.
type AvailableProvider struct {
	ID          ProviderID `json:"id"`
	DisplayName string     `json:"display_name"`
}
