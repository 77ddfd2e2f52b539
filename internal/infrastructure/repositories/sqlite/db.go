// Package sqlite provides a single-file persistence backend for small
// deployments that outlive a process restart without running Redis.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS content (
	provider    TEXT NOT NULL,
	provider_id TEXT NOT NULL,
	tag         TEXT NOT NULL,
	sort_key    TEXT NOT NULL,
	data        TEXT NOT NULL,
	PRIMARY KEY (provider, provider_id)
);
CREATE INDEX IF NOT EXISTS idx_content_tag_sort ON content (tag, sort_key);

CREATE TABLE IF NOT EXISTS moderation_actions (
	provider    TEXT NOT NULL,
	provider_id TEXT NOT NULL,
	data        TEXT NOT NULL,
	PRIMARY KEY (provider, provider_id)
);

CREATE TABLE IF NOT EXISTS blocked_users (
	provider  TEXT NOT NULL,
	user_name TEXT NOT NULL,
	data      TEXT NOT NULL,
	PRIMARY KEY (provider, user_name)
);

CREATE TABLE IF NOT EXISTS queue_items (
	provider    TEXT NOT NULL,
	provider_id TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	order_by    INTEGER NOT NULL,
	completed   INTEGER NOT NULL DEFAULT 0,
	data        TEXT NOT NULL,
	PRIMARY KEY (provider, provider_id)
);
`

// Open opens (and creates if needed) the database file and applies the
// schema. WAL mode keeps reader queries from blocking the ingest path.
func Open(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// The pure-Go driver serializes writes; one writer connection avoids
	// SQLITE_BUSY under concurrent ingest.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	if logger != nil {
		logger.Infow("sqlite database ready", "path", path)
	}

	return db, nil
}
