package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"
)

type blockKey struct {
	provider string
	userName string
}

type MemoryModerationRepository struct {
	mu      sync.RWMutex
	actions map[domain.ContentID]*domain.ModerationAction
	blocked map[blockKey]*domain.BlockedUser
}

func NewMemoryModerationRepository() ports.ModerationRepository {
	return &MemoryModerationRepository{
		actions: make(map[domain.ContentID]*domain.ModerationAction),
		blocked: make(map[blockKey]*domain.BlockedUser),
	}
}

func (r *MemoryModerationRepository) GetAction(ctx context.Context, id domain.ContentID) (*domain.ModerationAction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	action, ok := r.actions[id]
	if !ok {
		return nil, nil
	}
	copied := *action
	return &copied, nil
}

func (r *MemoryModerationRepository) GetActions(ctx context.Context, ids []domain.ContentID) (map[domain.ContentID]*domain.ModerationAction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[domain.ContentID]*domain.ModerationAction, len(ids))
	for _, id := range ids {
		if action, ok := r.actions[id]; ok {
			copied := *action
			result[id] = &copied
		}
	}
	return result, nil
}

func (r *MemoryModerationRepository) UpsertAction(ctx context.Context, action *domain.ModerationAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *action
	r.actions[domain.ContentID{Provider: action.Provider, ProviderID: action.ProviderID}] = &copied
	return nil
}

func (r *MemoryModerationRepository) BlockUser(ctx context.Context, blocked *domain.BlockedUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *blocked
	r.blocked[newBlockKey(blocked.Provider, blocked.UserName)] = &copied
	return nil
}

func (r *MemoryModerationRepository) GetBlockedUser(ctx context.Context, provider domain.ProviderID, userName string, now time.Time) (*domain.BlockedUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	blocked, ok := r.blocked[newBlockKey(provider, userName)]
	if !ok || blocked.Expired(now) {
		return nil, nil
	}
	copied := *blocked
	return &copied, nil
}

func (r *MemoryModerationRepository) ListBlockedUsers(ctx context.Context, now time.Time) ([]*domain.BlockedUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.BlockedUser
	for _, blocked := range r.blocked {
		if blocked.Expired(now) {
			continue
		}
		copied := *blocked
		result = append(result, &copied)
	}
	return result, nil
}

func (r *MemoryModerationRepository) CountBlockedUsers(ctx context.Context, now time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, blocked := range r.blocked {
		if !blocked.Expired(now) {
			count++
		}
	}
	return count, nil
}

func newBlockKey(provider domain.ProviderID, userName string) blockKey {
	return blockKey{
		provider: strings.ToLower(string(provider)),
		userName: strings.ToLower(userName),
	}
}
