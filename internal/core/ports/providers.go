package ports

import (
	"context"
	"time"

	"tagfall/internal/core/domain"
)

// SocialMediaProvider is one external content source. Poll-driven adapters
// fetch on demand; push-driven adapters drain an internal queue when
// FetchNew is called, so the scheduler treats both uniformly.
type SocialMediaProvider interface {
	ID() domain.ProviderID
	DisplayName() string
	Enabled() bool

	// FetchNew returns items for the tag published since the given instant.
	// Adapters may legitimately redeliver items; the merger deduplicates.
	FetchNew(ctx context.Context, tag string, since time.Time) ([]domain.Content, error)

	Health() domain.ProviderHealth

	// PollInterval is the adapter's own recommended fetch cadence.
	PollInterval() time.Duration
}
