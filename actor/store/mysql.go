package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB-backed actor.StateStore, narrowed from
// workflow/store.MySQLStore's checkpoint schema to one row per actor.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore opens a connection pool for dsn (see
// github.com/go-sql-driver/mysql for DSN format) and migrates its schema.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("actor/store: open mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("actor/store: ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	const table = `
		CREATE TABLE IF NOT EXISTS actor_state (
			actor_id   VARCHAR(191) NOT NULL PRIMARY KEY,
			state      JSON NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB
	`
	if _, err := s.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("actor/store: create actor_state: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *MySQLStore) ReadState(ctx context.Context, actorID string) (map[string]any, error) {
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

func (s *MySQLStore) WriteState(ctx context.Context, actorID string, state map[string]any) error {
	raw, err := marshalState(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO actor_state (actor_id, state) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE state = VALUES(state)
	`, actorID, raw)
	if err != nil {
		return fmt.Errorf("actor/store: write state: %w", err)
	}
	return nil
}

func (s *MySQLStore) DeleteState(ctx context.Context, actorID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM actor_state WHERE actor_id = ?`, actorID); err != nil {
		return fmt.Errorf("actor/store: delete state: %w", err)
	}
	return nil
}
