package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"
)

// SqliteContentRepository stores content rows as JSON with the sort key and
// tag broken out into indexed columns for range queries.
type SqliteContentRepository struct {
	db *sql.DB
}

func NewSqliteContentRepository(db *sql.DB) ports.ContentRepository {
	return &SqliteContentRepository{db: db}
}

func (r *SqliteContentRepository) Add(ctx context.Context, tag string, content *domain.Content) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}

	// INSERT OR IGNORE keeps the first write; re-delivery affects no rows.
	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO content (provider, provider_id, tag, sort_key, data) VALUES (?, ?, ?, ?, ?)`,
		string(content.Provider), content.ProviderID, tag, content.SortKey(), string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to insert content: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		return domain.ErrDuplicateContent
	}
	return nil
}

func (r *SqliteContentRepository) GetByID(ctx context.Context, id domain.ContentID) (*domain.Content, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM content WHERE provider = ? AND provider_id = ?`,
		string(id.Provider), id.ProviderID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, domain.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query content: %w", err)
	}

	var content domain.Content
	if err := json.Unmarshal([]byte(data), &content); err != nil {
		return nil, fmt.Errorf("failed to unmarshal content: %w", err)
	}
	return &content, nil
}

func (r *SqliteContentRepository) Query(ctx context.Context, tag string, providers []domain.ProviderID, limit int) ([]*domain.Content, error) {
	query := `SELECT data FROM content WHERE tag = ?`
	args := []any{tag}

	if len(providers) > 0 {
		placeholders := strings.Repeat("?,", len(providers))
		query += ` AND provider IN (` + placeholders[:len(placeholders)-1] + `)`
		for _, p := range providers {
			args = append(args, string(p))
		}
	}

	query += ` ORDER BY sort_key DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query content log: %w", err)
	}
	defer rows.Close()

	var result []*domain.Content
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}
		var content domain.Content
		if err := json.Unmarshal([]byte(data), &content); err != nil {
			return nil, fmt.Errorf("failed to unmarshal content: %w", err)
		}
		result = append(result, &content)
	}
	return result, rows.Err()
}

func (r *SqliteContentRepository) Remove(ctx context.Context, id domain.ContentID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM content WHERE provider = ? AND provider_id = ?`,
		string(id.Provider), id.ProviderID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrContentNotFound
	}
	return nil
}
