package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"
)

type SqliteQueueRepository struct {
	db *sql.DB
}

func NewSqliteQueueRepository(db *sql.DB) ports.QueueRepository {
	return &SqliteQueueRepository{db: db}
}

func (r *SqliteQueueRepository) Upsert(ctx context.Context, item *domain.QueueItem) error {
	id := item.Content.ID()

	var existingData string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM queue_items WHERE provider = ? AND provider_id = ?`,
		string(id.Provider), id.ProviderID,
	).Scan(&existingData)

	if err == nil {
		// Re-queueing only refreshes the notes.
		var existing domain.QueueItem
		if err := json.Unmarshal([]byte(existingData), &existing); err != nil {
			return fmt.Errorf("failed to unmarshal queue item: %w", err)
		}
		existing.SpeakerNotes = item.SpeakerNotes
		data, err := json.Marshal(&existing)
		if err != nil {
			return fmt.Errorf("failed to marshal queue item: %w", err)
		}
		_, err = r.db.ExecContext(ctx,
			`UPDATE queue_items SET data = ? WHERE provider = ? AND provider_id = ?`,
			string(data), string(id.Provider), id.ProviderID,
		)
		if err != nil {
			return fmt.Errorf("failed to update queue item: %w", err)
		}
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to query queue item: %w", err)
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal queue item: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO queue_items (provider, provider_id, seq, order_by, completed, data)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM queue_items), ?, ?, ?)`,
		string(id.Provider), id.ProviderID, item.OrderBy, boolToInt(item.IsCompleted), string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to insert queue item: %w", err)
	}
	return nil
}

func (r *SqliteQueueRepository) Get(ctx context.Context, id domain.ContentID) (*domain.QueueItem, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM queue_items WHERE provider = ? AND provider_id = ?`,
		string(id.Provider), id.ProviderID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, domain.ErrQueueItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query queue item: %w", err)
	}

	var item domain.QueueItem
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue item: %w", err)
	}
	return &item, nil
}

func (r *SqliteQueueRepository) MarkCompleted(ctx context.Context, id domain.ContentID) error {
	item, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	item.IsCompleted = true

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal queue item: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE queue_items SET completed = 1, data = ? WHERE provider = ? AND provider_id = ?`,
		string(data), string(id.Provider), id.ProviderID,
	)
	if err != nil {
		return fmt.Errorf("failed to update queue item: %w", err)
	}
	return nil
}

func (r *SqliteQueueRepository) List(ctx context.Context, includeCompleted bool) ([]*domain.QueueItem, error) {
	query := `SELECT data FROM queue_items`
	if !includeCompleted {
		query += ` WHERE completed = 0`
	}
	query += ` ORDER BY order_by, seq`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	defer rows.Close()

	var result []*domain.QueueItem
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan queue item row: %w", err)
		}
		var item domain.QueueItem
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal queue item: %w", err)
		}
		result = append(result, &item)
	}
	return result, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
