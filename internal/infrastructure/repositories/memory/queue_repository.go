package memory

import (
	"context"
	"sort"
	"sync"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"
)

type queueEntry struct {
	item      *domain.QueueItem
	insertSeq int
}

type MemoryQueueRepository struct {
	mu      sync.RWMutex
	items   map[domain.ContentID]*queueEntry
	nextSeq int
}

func NewMemoryQueueRepository() ports.QueueRepository {
	return &MemoryQueueRepository{
		items: make(map[domain.ContentID]*queueEntry),
	}
}

func (r *MemoryQueueRepository) Upsert(ctx context.Context, item *domain.QueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := item.Content.ID()
	if existing, ok := r.items[id]; ok {
		// Re-queueing updates notes only; completion state and order stay.
		existing.item.SpeakerNotes = item.SpeakerNotes
		return nil
	}

	copied := *item
	r.nextSeq++
	r.items[id] = &queueEntry{item: &copied, insertSeq: r.nextSeq}
	return nil
}

func (r *MemoryQueueRepository) Get(ctx context.Context, id domain.ContentID) (*domain.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.items[id]
	if !ok {
		return nil, domain.ErrQueueItemNotFound
	}
	copied := *entry.item
	return &copied, nil
}

func (r *MemoryQueueRepository) MarkCompleted(ctx context.Context, id domain.ContentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.items[id]
	if !ok {
		return domain.ErrQueueItemNotFound
	}
	entry.item.IsCompleted = true
	return nil
}

func (r *MemoryQueueRepository) List(ctx context.Context, includeCompleted bool) ([]*domain.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*queueEntry, 0, len(r.items))
	for _, entry := range r.items {
		if !includeCompleted && entry.item.IsCompleted {
			continue
		}
		entries = append(entries, entry)
	}

	// OrderBy first, insertion order on ties.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].item.OrderBy != entries[j].item.OrderBy {
			return entries[i].item.OrderBy < entries[j].item.OrderBy
		}
		return entries[i].insertSeq < entries[j].insertSeq
	})

	result := make([]*domain.QueueItem, 0, len(entries))
	for _, entry := range entries {
		copied := *entry.item
		result = append(result, &copied)
	}
	return result, nil
}
