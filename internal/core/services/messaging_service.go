package services

import (
	"context"
	"fmt"
	"time"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"
	"tagfall/pkg/utils"

	"go.uber.org/zap"
)

// messagingService is the ingestion merger: it deduplicates items from all
// providers into one ordered, moderation-annotated stream per tracked tag.
type messagingService struct {
	contentRepo    ports.ContentRepository
	moderationRepo ports.ModerationRepository
	dispatcher     ports.Dispatcher
	tags           []string
	logger         *zap.SugaredLogger
	metrics        IngestMetrics
}

// IngestMetrics receives ingestion counters; a nil-safe no-op implementation
// is substituted when monitoring is disabled.
type IngestMetrics interface {
	ContentIngested(provider domain.ProviderID)
	ContentDuplicate(provider domain.ProviderID)
	ContentBlocked(provider domain.ProviderID)
}

type noopIngestMetrics struct{}

func (noopIngestMetrics) ContentIngested(domain.ProviderID)  {}
func (noopIngestMetrics) ContentDuplicate(domain.ProviderID) {}
func (noopIngestMetrics) ContentBlocked(domain.ProviderID)   {}

func NewMessagingService(
	contentRepo ports.ContentRepository,
	moderationRepo ports.ModerationRepository,
	dispatcher ports.Dispatcher,
	tags []string,
	logger *zap.SugaredLogger,
	metrics IngestMetrics,
) ports.MessagingService {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		normalized = append(normalized, domain.NormalizeTag(tag))
	}
	if metrics == nil {
		metrics = noopIngestMetrics{}
	}
	return &messagingService{
		contentRepo:    contentRepo,
		moderationRepo: moderationRepo,
		dispatcher:     dispatcher,
		tags:           normalized,
		logger:         logger,
		metrics:        metrics,
	}
}

func (s *messagingService) TagsTracked() []string {
	tags := make([]string, len(s.tags))
	copy(tags, s.tags)
	return tags
}

// Ingest admits each item at most once. Duplicates are absorbed silently,
// Hidden-blocked authors are dropped, Moderated-blocked authors are admitted
// but flagged filterable. Exactly one new-message event fires per admitted
// item.
func (s *messagingService) Ingest(ctx context.Context, items []domain.Content) error {
	for i := range items {
		item := items[i]
		tag := domain.NormalizeTag(item.HashtagSought)
		if tag == "" && len(s.tags) == 1 {
			tag = s.tags[0]
		}
		item.HashtagSought = tag
		item.Text = utils.SanitizeText(item.Text)

		blocked, err := s.moderationRepo.GetBlockedUser(ctx, item.Provider, item.Author.UserName, time.Now())
		if err != nil {
			return fmt.Errorf("blocked user lookup failed: %w", err)
		}
		if blocked != nil {
			if blocked.Capabilities == domain.BlockedUserHidden {
				s.metrics.ContentBlocked(item.Provider)
				continue
			}
			item.Filterable = true
		}

		err = s.contentRepo.Add(ctx, tag, &item)
		if err == domain.ErrDuplicateContent {
			// Adapters legitimately redeliver; the first write won.
			s.metrics.ContentDuplicate(item.Provider)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to append content %s/%s: %w", item.Provider, item.ProviderID, err)
		}

		s.metrics.ContentIngested(item.Provider)
		s.logger.Debugw("content admitted",
			"provider", item.Provider,
			"provider_id", item.ProviderID,
			"tag", tag,
		)

		s.dispatcher.Publish(domain.Event{
			Type:    domain.EventNewMessage,
			Tag:     tag,
			Content: &item,
		})
	}
	return nil
}

// Query returns the most recent admitted items for the tag, newest first.
// Hidden-blocked authors never appear; Moderated-blocked authors appear
// only when a moderation state is requested explicitly.
func (s *messagingService) Query(ctx context.Context, tag string, filter ports.ContentFilter) ([]*domain.Content, error) {
	tag = domain.NormalizeTag(tag)

	candidates, err := s.contentRepo.Query(ctx, tag, filter.Providers, 0)
	if err != nil {
		return nil, fmt.Errorf("content query failed: %w", err)
	}

	now := time.Now()
	hidden, err := s.moderationRepo.ListBlockedUsers(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("blocked user query failed: %w", err)
	}

	ids := make([]domain.ContentID, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID())
	}
	actions, err := s.moderationRepo.GetActions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("moderation action query failed: %w", err)
	}

	defaultFilter := len(filter.States) == 0
	limit := filter.Limit

	results := make([]*domain.Content, 0, len(candidates))
	for _, c := range candidates {
		if authorBlocked(hidden, c, domain.BlockedUserHidden) {
			continue
		}
		if defaultFilter && (c.Filterable || authorBlocked(hidden, c, domain.BlockedUserModerated)) {
			continue
		}
		if !defaultFilter {
			state := domain.ModerationStatePending
			if action, ok := actions[c.ID()]; ok {
				state = action.State
			}
			if !stateMatch(filter.States, state) {
				continue
			}
		}
		results = append(results, c)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

func authorBlocked(blocked []*domain.BlockedUser, c *domain.Content, capabilities domain.BlockedUserCapabilities) bool {
	for _, b := range blocked {
		if b.Capabilities == capabilities && b.Matches(c.Provider, c.Author.UserName) {
			return true
		}
	}
	return false
}

func stateMatch(states []domain.ModerationState, state domain.ModerationState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}
