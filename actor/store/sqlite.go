package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed actor.StateStore, narrowed from
// workflow/store.SQLiteStore's per-superstep checkpoint schema down to a
// single row per actor holding its whole state blob.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (creating if absent) a SQLite database at path and
// migrates its schema. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("actor/store: open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("actor/store: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	const table = `
		CREATE TABLE IF NOT EXISTS actor_state (
			actor_id   TEXT NOT NULL PRIMARY KEY,
			state      TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("actor/store: create actor_state: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) ReadState(ctx context.Context, actorID string) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM actor_state WHERE actor_id = ?`, actorID).Scan(&raw)
	if err == sql.ErrNoRows {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("actor/store: read state: %w", err)
	}
	return unmarshalState(raw)
}

func (s *SQLiteStore) WriteState(ctx context.Context, actorID string, state map[string]any) error {
	raw, err := marshalState(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO actor_state (actor_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(actor_id) DO UPDATE SET state=excluded.state, updated_at=excluded.updated_at
	`, actorID, raw, time.Now())
	if err != nil {
		return fmt.Errorf("actor/store: write state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteState(ctx context.Context, actorID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM actor_state WHERE actor_id = ?`, actorID); err != nil {
		return fmt.Errorf("actor/store: delete state: %w", err)
	}
	return nil
}
