package continuation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps continuation records in a single table. Like BoltStore it honours ttl
// on read.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSQLiteStore(ctx context.Context, path string, ttl time.Duration) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	// Pragmas in the DSN apply to every pooled connection, not only the first one.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer; one connection queues writes in the pool instead of
	// failing them with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE IF NOT EXISTS continuations (
			conversation_id TEXT PRIMARY KEY,
			response_id TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, conversationID string) (string, bool, error) {
	var (
		responseID string
		updatedAt  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT response_id, updated_at FROM continuations WHERE conversation_id = ?`,
		conversationID,
	).Scan(&responseID, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr("sqlite select", err)
	}
	if s.ttl > 0 && s.now().Sub(time.Unix(0, updatedAt)) > s.ttl {
		return "", false, nil
	}
	return responseID, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, conversationID, responseID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO continuations (conversation_id, response_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			response_id = excluded.response_id,
			updated_at = excluded.updated_at`,
		conversationID, responseID, s.now().UnixNano(),
	)
	if err != nil {
		return storeErr("sqlite upsert", err)
	}
	return nil
}

// Prune deletes expired records. It is a no-op without ttl.
func (s *SQLiteStore) Prune(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM continuations WHERE updated_at < ?`,
		s.now().Add(-s.ttl).UnixNano(),
	)
	if err != nil {
		return 0, storeErr("sqlite prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("sqlite prune", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

var (
	_ Backend = (*SQLiteStore)(nil)
	_ Pruner  = (*SQLiteStore)(nil)
)
