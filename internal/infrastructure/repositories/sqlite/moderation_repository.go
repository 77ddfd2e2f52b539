package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"
)

type SqliteModerationRepository struct {
	db *sql.DB
}

func NewSqliteModerationRepository(db *sql.DB) ports.ModerationRepository {
	return &SqliteModerationRepository{db: db}
}

func (r *SqliteModerationRepository) GetAction(ctx context.Context, id domain.ContentID) (*domain.ModerationAction, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM moderation_actions WHERE provider = ? AND provider_id = ?`,
		string(id.Provider), id.ProviderID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query moderation action: %w", err)
	}

	var action domain.ModerationAction
	if err := json.Unmarshal([]byte(data), &action); err != nil {
		return nil, fmt.Errorf("failed to unmarshal moderation action: %w", err)
	}
	return &action, nil
}

func (r *SqliteModerationRepository) GetActions(ctx context.Context, ids []domain.ContentID) (map[domain.ContentID]*domain.ModerationAction, error) {
	result := make(map[domain.ContentID]*domain.ModerationAction, len(ids))
	for _, id := range ids {
		action, err := r.GetAction(ctx, id)
		if err != nil {
			return nil, err
		}
		if action != nil {
			result[id] = action
		}
	}
	return result, nil
}

func (r *SqliteModerationRepository) UpsertAction(ctx context.Context, action *domain.ModerationAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal moderation action: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO moderation_actions (provider, provider_id, data) VALUES (?, ?, ?)
		 ON CONFLICT (provider, provider_id) DO UPDATE SET data = excluded.data`,
		string(action.Provider), action.ProviderID, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert moderation action: %w", err)
	}
	return nil
}

func (r *SqliteModerationRepository) BlockUser(ctx context.Context, blocked *domain.BlockedUser) error {
	data, err := json.Marshal(blocked)
	if err != nil {
		return fmt.Errorf("failed to marshal blocked user: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO blocked_users (provider, user_name, data) VALUES (?, ?, ?)
		 ON CONFLICT (provider, user_name) DO UPDATE SET data = excluded.data`,
		strings.ToLower(string(blocked.Provider)), strings.ToLower(blocked.UserName), string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert blocked user: %w", err)
	}
	return nil
}

func (r *SqliteModerationRepository) GetBlockedUser(ctx context.Context, provider domain.ProviderID, userName string, now time.Time) (*domain.BlockedUser, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM blocked_users WHERE provider = ? AND user_name = ?`,
		strings.ToLower(string(provider)), strings.ToLower(userName),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query blocked user: %w", err)
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

func (r *SqliteModerationRepository) ListBlockedUsers(ctx context.Context, now time.Time) ([]*domain.BlockedUser, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data FROM blocked_users`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked users: %w", err)
	}
	defer rows.Close()

	var result []*domain.BlockedUser
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan blocked user row: %w", err)
		}
		var blocked domain.BlockedUser
		if err := json.Unmarshal([]byte(data), &blocked); err != nil {
			return nil, fmt.Errorf("failed to unmarshal blocked user: %w", err)
		}
		if blocked.Expired(now) {
			continue
		}
		copied := blocked
		result = append(result, &copied)
	}
	return result, rows.Err()
}

func (r *SqliteModerationRepository) CountBlockedUsers(ctx context.Context, now time.Time) (int, error) {
	blocked, err := r.ListBlockedUsers(ctx, now)
	if err != nil {
		return 0, err
	}
	return len(blocked), nil
}
