package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisModerationRepository keeps one JSON value per moderation action and a
// single hash of blocked users. Expiry is evaluated on read, so indefinite
// and timed blocks share the same record shape.
type RedisModerationRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisModerationRepository(client *redis.Client) ports.ModerationRepository {
	return &RedisModerationRepository{
		client: client,
		prefix: "tagfall:",
	}
}

func (r *RedisModerationRepository) actionKey(id domain.ContentID) string {
	return fmt.Sprintf("%smoderation:%s:%s", r.prefix, id.Provider, id.ProviderID)
}

func (r *RedisModerationRepository) blockedKey() string {
	return r.prefix + "blocked"
}

func blockedField(provider domain.ProviderID, userName string) string {
	return string(provider) + "\x00" + strings.ToLower(userName)
}

func (r *RedisModerationRepository) GetAction(ctx context.Context, id domain.ContentID) (*domain.ModerationAction, error) {
	data, err := r.client.Get(ctx, r.actionKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get moderation action from Redis: %w", err)
	}

	var action domain.ModerationAction
	if err := json.Unmarshal([]byte(data), &action); err != nil {
		return nil, fmt.Errorf("failed to unmarshal moderation action: %w", err)
	}
	return &action, nil
}

func (r *RedisModerationRepository) GetActions(ctx context.Context, ids []domain.ContentID) (map[domain.ContentID]*domain.ModerationAction, error) {
	result := make(map[domain.ContentID]*domain.ModerationAction, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.actionKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to bulk-get moderation actions from Redis: %w", err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var action domain.ModerationAction
		if err := json.Unmarshal([]byte(raw), &action); err != nil {
			return nil, fmt.Errorf("failed to unmarshal moderation action: %w", err)
		}
		result[ids[i]] = &action
	}

	return result, nil
}

func (r *RedisModerationRepository) UpsertAction(ctx context.Context, action *domain.ModerationAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal moderation action: %w", err)
	}

	id := domain.ContentID{Provider: action.Provider, ProviderID: action.ProviderID}
	if err := r.client.Set(ctx, r.actionKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set moderation action in Redis: %w", err)
	}
	return nil
}

func (r *RedisModerationRepository) BlockUser(ctx context.Context, blocked *domain.BlockedUser) error {
	data, err := json.Marshal(blocked)
	if err != nil {
		return fmt.Errorf("failed to marshal blocked user: %w", err)
	}

	field := blockedField(blocked.Provider, blocked.UserName)
	if err := r.client.HSet(ctx, r.blockedKey(), field, data).Err(); err != nil {
		return fmt.Errorf("failed to set blocked user in Redis: %w", err)
	}
	return nil
}

func (r *RedisModerationRepository) GetBlockedUser(ctx context.Context, provider domain.ProviderID, userName string, now time.Time) (*domain.BlockedUser, error) {
	data, err := r.client.HGet(ctx, r.blockedKey(), blockedField(provider, userName)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blocked user from Redis: %w", err)
	}

	var blocked domain.BlockedUser
	if err := json.Unmarshal([]byte(data), &blocked); err != nil {
		return nil, fmt.Errorf("failed to unmarshal blocked user: %w", err)
	}
	if blocked.Expired(now) {
		return nil, nil
	}
	return &blocked, nil
}

func (r *RedisModerationRepository) ListBlockedUsers(ctx context.Context, now time.Time) ([]*domain.BlockedUser, error) {
	values, err := r.client.HGetAll(ctx, r.blockedKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked users from Redis: %w", err)
	}

	var result []*domain.BlockedUser
	for _, raw := range values {
		var blocked domain.BlockedUser
		if err := json.Unmarshal([]byte(raw), &blocked); err != nil {
			return nil, fmt.Errorf("failed to unmarshal blocked user: %w", err)
		}
		if blocked.Expired(now) {
			continue
		}
		copied := blocked
		result = append(result, &copied)
	}
	return result, nil
}

func (r *RedisModerationRepository) CountBlockedUsers(ctx context.Context, now time.Time) (int, error) {
	blocked, err := r.ListBlockedUsers(ctx, now)
	if err != nil {
		return 0, err
	}
	return len(blocked), nil
}
