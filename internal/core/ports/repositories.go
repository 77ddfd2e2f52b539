package ports

import (
	"context"
	"time"

	"tagfall/internal/core/domain"
)

// ContentFilter narrows Query results. Nil/empty slices mean "no filter";
// an empty States slice selects the default public filter, which also
// excludes content from Moderated-blocked authors.
type ContentFilter struct {
	Providers []domain.ProviderID
	States    []domain.ModerationState
	Limit     int
}

type ContentRepository interface {
	// Add appends content to the tag-scoped log. Returns
	// domain.ErrDuplicateContent when the identity was already ingested;
	// the first write wins and re-delivery never updates.
	Add(ctx context.Context, tag string, content *domain.Content) error
	GetByID(ctx context.Context, id domain.ContentID) (*domain.Content, error)
	// Query returns the most recent items for the tag, newest first,
	// optionally narrowed by provider. limit <= 0 returns the whole log;
	// moderation-state and blocked-user filtering happen above the
	// repository.
	Query(ctx context.Context, tag string, providers []domain.ProviderID, limit int) ([]*domain.Content, error)
	Remove(ctx context.Context, id domain.ContentID) error
}

type ModerationRepository interface {
	GetAction(ctx context.Context, id domain.ContentID) (*domain.ModerationAction, error)
	// GetActions bulk-loads actions; identities without an action are
	// absent from the result (implicitly pending).
	GetActions(ctx context.Context, ids []domain.ContentID) (map[domain.ContentID]*domain.ModerationAction, error)
	UpsertAction(ctx context.Context, action *domain.ModerationAction) error

	BlockUser(ctx context.Context, blocked *domain.BlockedUser) error
	// GetBlockedUser returns nil when the author has no unexpired block.
	GetBlockedUser(ctx context.Context, provider domain.ProviderID, userName string, now time.Time) (*domain.BlockedUser, error)
	ListBlockedUsers(ctx context.Context, now time.Time) ([]*domain.BlockedUser, error)
	CountBlockedUsers(ctx context.Context, now time.Time) (int, error)
}

type QueueRepository interface {
	// Upsert adds a queue item, or updates the speaker notes when the
	// content identity is already queued.
	Upsert(ctx context.Context, item *domain.QueueItem) error
	Get(ctx context.Context, id domain.ContentID) (*domain.QueueItem, error)
	MarkCompleted(ctx context.Context, id domain.ContentID) error
	// List returns items ordered by OrderBy, insertion order on ties.
	List(ctx context.Context, includeCompleted bool) ([]*domain.QueueItem, error)
}
