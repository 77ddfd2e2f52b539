package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"

	"go.uber.org/zap"
)

const identityLockStripes = 64

// moderationService is the single source of truth for moderation decisions.
// Mutations on one content identity are serialized through striped locks so
// two near-simultaneous moderator actions cannot lose an update.
type moderationService struct {
	contentRepo    ports.ContentRepository
	moderationRepo ports.ModerationRepository
	queueRepo      ports.QueueRepository
	dispatcher     ports.Dispatcher
	logger         *zap.SugaredLogger

	locks [identityLockStripes]sync.Mutex
}

func NewModerationService(
	contentRepo ports.ContentRepository,
	moderationRepo ports.ModerationRepository,
	queueRepo ports.QueueRepository,
	dispatcher ports.Dispatcher,
	logger *zap.SugaredLogger,
) ports.ModerationService {
	return &moderationService{
		contentRepo:    contentRepo,
		moderationRepo: moderationRepo,
		queueRepo:      queueRepo,
		dispatcher:     dispatcher,
		logger:         logger,
	}
}

func (s *moderationService) lockFor(id domain.ContentID) *sync.Mutex {
	h := uint32(2166136261)
	for _, b := range []byte(string(id.Provider) + id.ProviderID) {
		h ^= uint32(b)
		h *= 16777619
	}
	return &s.locks[h%identityLockStripes]
}

// SetStatus upserts the moderation action for an ingested identity. Setting
// the state the item already holds is a no-op: no event fires and the
// moderation timestamp is untouched, which absorbs duplicate clicks and
// replayed requests.
func (s *moderationService) SetStatus(ctx context.Context, id domain.ContentID, state domain.ModerationState, moderator domain.ModeratorID) error {
	content, err := s.contentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	prior, err := s.moderationRepo.GetAction(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load moderation action: %w", err)
	}

	priorState := domain.ModerationStatePending
	if prior != nil {
		priorState = prior.State
	}
	if priorState == state {
		return nil
	}

	action := &domain.ModerationAction{
		Provider:            id.Provider,
		ProviderID:          id.ProviderID,
		State:               state,
		Moderator:           moderator,
		ModerationTimestamp: time.Now(),
	}
	if err := s.moderationRepo.UpsertAction(ctx, action); err != nil {
		return fmt.Errorf("failed to upsert moderation action: %w", err)
	}

	s.logger.Infow("moderation state changed",
		"provider", id.Provider,
		"provider_id", id.ProviderID,
		"from", priorState.String(),
		"to", state.String(),
		"moderator", moderator,
	)

	eventType := domain.EventRejected
	if state == domain.ModerationStateApproved {
		eventType = domain.EventApproved
	}
	if state == domain.ModerationStatePending {
		// Reverting to pending re-enters the review flow; subscribers see
		// it as a removal from approved/rejected views.
		eventType = domain.EventRemoved
	}

	event := domain.Event{
		Type:       eventType,
		Tag:        domain.NormalizeTag(content.HashtagSought),
		Content:    content,
		Action:     action,
		Provider:   id.Provider,
		ProviderID: id.ProviderID,
	}
	s.dispatcher.Publish(event)
	return nil
}

// StateOf reports the current state of an ingested identity.
func (s *moderationService) StateOf(ctx context.Context, id domain.ContentID) (domain.ModerationState, error) {
	if _, err := s.contentRepo.GetByID(ctx, id); err != nil {
		return domain.ModerationStatePending, err
	}
	action, err := s.moderationRepo.GetAction(ctx, id)
	if err != nil {
		return domain.ModerationStatePending, err
	}
	if action == nil {
		return domain.ModerationStatePending, nil
	}
	return action.State, nil
}

// BlockUser upserts the block and announces the new blocked count. Already
// dispatched items stay in live views; subsequent ingest and query calls
// honor the block.
func (s *moderationService) BlockUser(ctx context.Context, provider domain.ProviderID, userName string, moderator domain.ModeratorID, expiresAt *time.Time, capabilities domain.BlockedUserCapabilities) error {
	blocked := &domain.BlockedUser{
		Provider:     provider,
		UserName:     userName,
		BlockedBy:    moderator,
		Capabilities: capabilities,
		ExpiresAt:    expiresAt,
	}
	if err := s.moderationRepo.BlockUser(ctx, blocked); err != nil {
		return fmt.Errorf("failed to block user: %w", err)
	}

	count, err := s.moderationRepo.CountBlockedUsers(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to count blocked users: %w", err)
	}

	s.logger.Infow("user blocked",
		"provider", provider,
		"user_name", userName,
		"capabilities", capabilities,
		"moderator", moderator,
	)

	s.dispatcher.Publish(domain.Event{
		Type:         domain.EventBlockedCountChange,
		BlockedCount: count,
	})
	return nil
}

func (s *moderationService) BlockedUserCount(ctx context.Context) (int, error) {
	return s.moderationRepo.CountBlockedUsers(ctx, time.Now())
}

// AddToQueue promotes an ingested item to the on-screen queue. Re-adding an
// already queued identity updates the speaker notes instead of duplicating.
func (s *moderationService) AddToQueue(ctx context.Context, id domain.ContentID, speakerNotes string) error {
	content, err := s.contentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	item := &domain.QueueItem{
		Content:      *content,
		SpeakerNotes: speakerNotes,
		OrderBy:      1,
	}
	if err := s.queueRepo.Upsert(ctx, item); err != nil {
		return fmt.Errorf("failed to queue item: %w", err)
	}

	queued, err := s.queueRepo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read back queue item: %w", err)
	}

	s.dispatcher.Publish(domain.Event{
		Type:      domain.EventQueueItemAdded,
		Tag:       domain.NormalizeTag(content.HashtagSought),
		QueueItem: queued,
	})
	return nil
}

func (s *moderationService) MarkQueueItemCompleted(ctx context.Context, id domain.ContentID) error {
	queued, err := s.queueRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.queueRepo.MarkCompleted(ctx, id); err != nil {
		return err
	}

	s.dispatcher.Publish(domain.Event{
		Type:       domain.EventQueueItemCompleted,
		Tag:        domain.NormalizeTag(queued.Content.HashtagSought),
		Provider:   id.Provider,
		ProviderID: id.ProviderID,
	})
	return nil
}

func (s *moderationService) QueueItems(ctx context.Context, includeCompleted bool) ([]*domain.QueueItem, error) {
	return s.queueRepo.List(ctx, includeCompleted)
}
