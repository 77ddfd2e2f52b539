package memory

import (
	"context"
	"sort"
	"sync"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"
)

type logEntry struct {
	sortKey string
	content *domain.Content
}

// MemoryContentRepository keeps one ordered content log per tracked tag,
// with a global identity index for dedup and point lookups.
type MemoryContentRepository struct {
	mu   sync.RWMutex
	logs map[string][]logEntry
	byID map[domain.ContentID]*domain.Content
	tags map[domain.ContentID]string
}

func NewMemoryContentRepository() ports.ContentRepository {
	return &MemoryContentRepository{
		logs: make(map[string][]logEntry),
		byID: make(map[domain.ContentID]*domain.Content),
		tags: make(map[domain.ContentID]string),
	}
}

func (r *MemoryContentRepository) Add(ctx context.Context, tag string, content *domain.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := content.ID()
	if _, exists := r.byID[id]; exists {
		return domain.ErrDuplicateContent
	}

	stored := *content
	entry := logEntry{sortKey: stored.SortKey(), content: &stored}

	log := r.logs[tag]
	// Insert keeping the log sorted by sort key; identities tie-break
	// inside the key itself, so insertion position is deterministic.
	pos := sort.Search(len(log), func(i int) bool {
		return log[i].sortKey > entry.sortKey
	})
	log = append(log, logEntry{})
	copy(log[pos+1:], log[pos:])
	log[pos] = entry
	r.logs[tag] = log

	r.byID[id] = &stored
	r.tags[id] = tag
	return nil
}

func (r *MemoryContentRepository) GetByID(ctx context.Context, id domain.ContentID) (*domain.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	content, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrContentNotFound
	}
	copied := *content
	return &copied, nil
}

func (r *MemoryContentRepository) Query(ctx context.Context, tag string, providers []domain.ProviderID, limit int) ([]*domain.Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log := r.logs[tag]
	results := make([]*domain.Content, 0, len(log))

	// Walk newest to oldest.
	for i := len(log) - 1; i >= 0; i-- {
		c := log[i].content
		if len(providers) > 0 && !providerMatch(providers, c.Provider) {
			continue
		}
		copied := *c
		results = append(results, &copied)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

func (r *MemoryContentRepository) Remove(ctx context.Context, id domain.ContentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	content, ok := r.byID[id]
	if !ok {
		return domain.ErrContentNotFound
	}

	tag := r.tags[id]
	key := content.SortKey()
	log := r.logs[tag]
	for i, entry := range log {
		if entry.sortKey == key {
			r.logs[tag] = append(log[:i], log[i+1:]...)
			break
		}
	}

	delete(r.byID, id)
	delete(r.tags, id)
	return nil
}

func providerMatch(providers []domain.ProviderID, p domain.ProviderID) bool {
	for _, candidate := range providers {
		if candidate == p {
			return true
		}
	}
	return false
}
