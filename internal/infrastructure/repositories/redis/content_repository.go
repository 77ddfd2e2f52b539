package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisContentRepository stores each content item as a JSON value keyed by
// identity, plus one sorted set per tag whose members are sort-key-prefixed
// identity refs. Equal scores let Redis order members lexically, which is
// exactly the waterfall sort key order.
type RedisContentRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisContentRepository(client *redis.Client) ports.ContentRepository {
	return &RedisContentRepository{
		client: client,
		prefix: "tagfall:",
	}
}

func (r *RedisContentRepository) contentKey(id domain.ContentID) string {
	return fmt.Sprintf("%scontent:%s:%s", r.prefix, id.Provider, id.ProviderID)
}

func (r *RedisContentRepository) tagLogKey(tag string) string {
	return fmt.Sprintf("%stag:%s:log", r.prefix, tag)
}

// logMember encodes sort key plus identity so a ZSET range returns both
// the order and the lookup key.
func logMember(content *domain.Content) string {
	return content.SortKey() + "\x00" + string(content.Provider) + "\x00" + content.ProviderID
}

func parseLogMember(member string) (domain.ContentID, bool) {
	parts := strings.Split(member, "\x00")
	if len(parts) != 3 {
		return domain.ContentID{}, false
	}
	return domain.ContentID{Provider: domain.ProviderID(parts[1]), ProviderID: parts[2]}, true
}

func (r *RedisContentRepository) Add(ctx context.Context, tag string, content *domain.Content) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}

	// First write wins: SETNX refuses re-delivery of a known identity.
	set, err := r.client.SetNX(ctx, r.contentKey(content.ID()), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to set content in Redis: %w", err)
	}
	if !set {
		return domain.ErrDuplicateContent
	}

	member := redis.Z{Score: 0, Member: logMember(content)}
	if err := r.client.ZAdd(ctx, r.tagLogKey(tag), member).Err(); err != nil {
		return fmt.Errorf("failed to add content to tag log: %w", err)
	}

	return nil
}

func (r *RedisContentRepository) GetByID(ctx context.Context, id domain.ContentID) (*domain.Content, error) {
	data, err := r.client.Get(ctx, r.contentKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content from Redis: %w", err)
	}

	var content domain.Content
	if err := json.Unmarshal([]byte(data), &content); err != nil {
		return nil, fmt.Errorf("failed to unmarshal content: %w", err)
	}

	return &content, nil
}

func (r *RedisContentRepository) Query(ctx context.Context, tag string, providers []domain.ProviderID, limit int) ([]*domain.Content, error) {
	// Newest first: the sort key ascends with time, so walk the ZSET in
	// reverse lexical order.
	members, err := r.client.ZRevRange(ctx, r.tagLogKey(tag), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read tag log from Redis: %w", err)
	}

	wanted := make(map[domain.ProviderID]bool, len(providers))
	for _, p := range providers {
		wanted[p] = true
	}

	var result []*domain.Content
	for _, member := range members {
		if limit > 0 && len(result) >= limit {
			break
		}
		id, ok := parseLogMember(member)
		if !ok {
			continue
		}
		if len(wanted) > 0 && !wanted[id.Provider] {
			continue
		}
		content, err := r.GetByID(ctx, id)
		if err == domain.ErrContentNotFound {
			// Removed concurrently; the log entry is stale.
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, content)
	}

	return result, nil
}

func (r *RedisContentRepository) Remove(ctx context.Context, id domain.ContentID) error {
	content, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	logKey := r.tagLogKey(domain.NormalizeTag(content.HashtagSought))
	if err := r.client.ZRem(ctx, logKey, logMember(content)).Err(); err != nil {
		return fmt.Errorf("failed to remove content from tag log: %w", err)
	}
	if err := r.client.Del(ctx, r.contentKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete content from Redis: %w", err)
	}

	return nil
}
