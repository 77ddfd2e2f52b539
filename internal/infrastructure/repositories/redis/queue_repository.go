package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisQueueRepository keeps the speaker queue in one hash plus a counter
// that records insertion order for tie-breaking.
type RedisQueueRepository struct {
	client *redis.Client
	prefix string
}

type queueRecord struct {
	Item domain.QueueItem `json:"item"`
	Seq  int64            `json:"seq"`
}

func NewRedisQueueRepository(client *redis.Client) ports.QueueRepository {
	return &RedisQueueRepository{
		client: client,
		prefix: "tagfall:",
	}
}

func (r *RedisQueueRepository) queueKey() string { return r.prefix + "queue" }
func (r *RedisQueueRepository) seqKey() string   { return r.prefix + "queue:seq" }

func queueField(id domain.ContentID) string {
	return string(id.Provider) + "\x00" + id.ProviderID
}

func (r *RedisQueueRepository) Upsert(ctx context.Context, item *domain.QueueItem) error {
	field := queueField(item.Content.ID())

	existing, err := r.getRecord(ctx, field)
	if err != nil {
		return err
	}

	var record queueRecord
	if existing != nil {
		// Re-queueing only refreshes the notes.
		record = *existing
		record.Item.SpeakerNotes = item.SpeakerNotes
	} else {
		seq, err := r.client.Incr(ctx, r.seqKey()).Result()
		if err != nil {
			return fmt.Errorf("failed to allocate queue sequence: %w", err)
		}
		record = queueRecord{Item: *item, Seq: seq}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal queue item: %w", err)
	}
	if err := r.client.HSet(ctx, r.queueKey(), field, data).Err(); err != nil {
		return fmt.Errorf("failed to set queue item in Redis: %w", err)
	}
	return nil
}

func (r *RedisQueueRepository) Get(ctx context.Context, id domain.ContentID) (*domain.QueueItem, error) {
	record, err := r.getRecord(ctx, queueField(id))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrQueueItemNotFound
	}
	item := record.Item
	return &item, nil
}

func (r *RedisQueueRepository) MarkCompleted(ctx context.Context, id domain.ContentID) error {
	field := queueField(id)
	record, err := r.getRecord(ctx, field)
	if err != nil {
		return err
	}
	if record == nil {
		return domain.ErrQueueItemNotFound
	}

	record.Item.IsCompleted = true
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal queue item: %w", err)
	}
	if err := r.client.HSet(ctx, r.queueKey(), field, data).Err(); err != nil {
		return fmt.Errorf("failed to set queue item in Redis: %w", err)
	}
	return nil
}

func (r *RedisQueueRepository) List(ctx context.Context, includeCompleted bool) ([]*domain.QueueItem, error) {
	values, err := r.client.HGetAll(ctx, r.queueKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list queue items from Redis: %w", err)
	}

	records := make([]queueRecord, 0, len(values))
	for _, raw := range values {
		var record queueRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal queue item: %w", err)
		}
		if !includeCompleted && record.Item.IsCompleted {
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Item.OrderBy != records[j].Item.OrderBy {
			return records[i].Item.OrderBy < records[j].Item.OrderBy
		}
		return records[i].Seq < records[j].Seq
	})

	result := make([]*domain.QueueItem, len(records))
	for i := range records {
		item := records[i].Item
		result[i] = &item
	}
	return result, nil
}

func (r *RedisQueueRepository) getRecord(ctx context.Context, field string) (*queueRecord, error) {
	data, err := r.client.HGet(ctx, r.queueKey(), field).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue item from Redis: %w", err)
	}

	var record queueRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue item: %w", err)
	}
	return &record, nil
}
