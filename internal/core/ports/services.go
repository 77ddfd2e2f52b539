package ports

import (
	"context"
	"time"

	"tagfall/internal/core/domain"
)

// Dispatcher routes domain events to live subscriber sessions. Tag-scoped
// events reach only sessions whose tag groups contain the event's tag;
// broadcast events reach every session. Delivery is best-effort,
// at-most-once per live connection.
type Dispatcher interface {
	Publish(event domain.Event)
}

// MessagingService is the ingestion merger: one deduplicated,
// moderation-annotated stream per tracked tag.
type MessagingService interface {
	Ingest(ctx context.Context, items []domain.Content) error
	Query(ctx context.Context, tag string, filter ContentFilter) ([]*domain.Content, error)
	TagsTracked() []string
}

// ModerationService is the single source of truth for moderation decisions.
// Mutations on one content identity are linearized.
type ModerationService interface {
	SetStatus(ctx context.Context, id domain.ContentID, state domain.ModerationState, moderator domain.ModeratorID) error
	BlockUser(ctx context.Context, provider domain.ProviderID, userName string, moderator domain.ModeratorID, expiresAt *time.Time, capabilities domain.BlockedUserCapabilities) error
	BlockedUserCount(ctx context.Context) (int, error)
	StateOf(ctx context.Context, id domain.ContentID) (domain.ModerationState, error)

	AddToQueue(ctx context.Context, id domain.ContentID, speakerNotes string) error
	MarkQueueItemCompleted(ctx context.Context, id domain.ContentID) error
	QueueItems(ctx context.Context, includeCompleted bool) ([]*domain.QueueItem, error)
}

// PresenceService owns the moderator presence table, with lifecycle tied to
// session connect/disconnect.
type PresenceService interface {
	Join(sessionID domain.SessionID, moderator domain.Moderator)
	Leave(sessionID domain.SessionID)
	Current() []domain.Moderator
}
