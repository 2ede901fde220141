package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed Store, generalized from the teacher's
// SQLiteStore[S] (graph/store/sqlite.go): single-file persistence with WAL
// mode for concurrent reads, suitable for local development and
// single-process production deployments.
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
		return nil, fmt.Errorf("store: open sqlite: %w", err)
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
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
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
	const checkpointsTable = `
		CREATE TABLE IF NOT EXISTS workflow_checkpoints (
			run_id           TEXT NOT NULL,
			superstep        INTEGER NOT NULL,
			shared_state     TEXT NOT NULL,
			frontier         BLOB NOT NULL,
			pending_requests BLOB NOT NULL,
			idempotency_key  TEXT NOT NULL,
			label            TEXT NOT NULL DEFAULT '',
			created_at       TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, superstep)
		)
	`
	if _, err := s.db.ExecContext(ctx, checkpointsTable); err != nil {
		return fmt.Errorf("store: create workflow_checkpoints: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_checkpoints_run ON workflow_checkpoints(run_id)"); err != nil {
		return fmt.Errorf("store: create idx_checkpoints_run: %w", err)
	}

	const labeledTable = `
		CREATE TABLE IF NOT EXISTS workflow_labeled_checkpoints (
			label            TEXT NOT NULL PRIMARY KEY,
			run_id           TEXT NOT NULL,
			superstep        INTEGER NOT NULL,
			shared_state     TEXT NOT NULL,
			frontier         BLOB NOT NULL,
			pending_requests BLOB NOT NULL,
			idempotency_key  TEXT NOT NULL,
			created_at       TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, labeledTable); err != nil {
		return fmt.Errorf("store: create workflow_labeled_checkpoints: %w", err)
	}

	const idempotencyTable = `
		CREATE TABLE IF NOT EXISTS idempotency_keys (
			key_value  TEXT NOT NULL PRIMARY KEY,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, idempotencyTable); err != nil {
		return fmt.Errorf("store: create idempotency_keys: %w", err)
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

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, checkpoint Checkpoint) error {
	if checkpoint.IdempotencyKey != "" {
		exists, err := s.CheckIdempotency(ctx, checkpoint.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
	}

	stateJSON, err := marshalState(checkpoint.SharedState)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_checkpoints (run_id, superstep, shared_state, frontier, pending_requests, idempotency_key, label, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, superstep) DO UPDATE SET
			shared_state=excluded.shared_state, frontier=excluded.frontier,
			pending_requests=excluded.pending_requests, idempotency_key=excluded.idempotency_key, label=excluded.label
	`, checkpoint.RunID, checkpoint.Superstep, stateJSON, checkpoint.Frontier, checkpoint.PendingRequests, checkpoint.IdempotencyKey, checkpoint.Label, time.Now())
	if err != nil {
		return fmt.Errorf("store: insert checkpoint: %w", err)
	}

	if checkpoint.IdempotencyKey != "" {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO idempotency_keys (key_value) VALUES (?)`, checkpoint.IdempotencyKey); err != nil {
			return fmt.Errorf("store: insert idempotency key: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadLatest(ctx context.Context, runID string) (Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, superstep, shared_state, frontier, pending_requests, idempotency_key, label, created_at
		FROM workflow_checkpoints WHERE run_id = ? ORDER BY superstep DESC LIMIT 1
	`, runID)
	return scanCheckpoint(row)
}

func (s *SQLiteStore) LoadSuperstep(ctx context.Context, runID string, superstep int) (Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, superstep, shared_state, frontier, pending_requests, idempotency_key, label, created_at
		FROM workflow_checkpoints WHERE run_id = ? AND superstep = ?
	`, runID, superstep)
	return scanCheckpoint(row)
}

func (s *SQLiteStore) SaveLabeled(ctx context.Context, label string, checkpoint Checkpoint) error {
	stateJSON, err := marshalState(checkpoint.SharedState)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_labeled_checkpoints (label, run_id, superstep, shared_state, frontier, pending_requests, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET
			run_id=excluded.run_id, superstep=excluded.superstep, shared_state=excluded.shared_state,
			frontier=excluded.frontier, pending_requests=excluded.pending_requests, idempotency_key=excluded.idempotency_key
	`, label, checkpoint.RunID, checkpoint.Superstep, stateJSON, checkpoint.Frontier, checkpoint.PendingRequests, checkpoint.IdempotencyKey, time.Now())
	if err != nil {
		return fmt.Errorf("store: insert labeled checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadLabeled(ctx context.Context, label string) (Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, superstep, shared_state, frontier, pending_requests, idempotency_key, '' , created_at
		FROM workflow_labeled_checkpoints WHERE label = ?
	`, label)
	ck, err := scanCheckpoint(row)
	if err != nil {
		return Checkpoint{}, err
	}
	ck.Label = label
	return ck, nil
}

func (s *SQLiteStore) CheckIdempotency(ctx context.Context, key string) (bool, error) {
	var found string
	err := s.db.QueryRowContext(ctx, `SELECT key_value FROM idempotency_keys WHERE key_value = ?`, key).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: check idempotency: %w", err)
	}
	return true, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scannable) (Checkpoint, error) {
	var (
		ck        Checkpoint
		stateJSON string
		created   time.Time
	)
	err := row.Scan(&ck.RunID, &ck.Superstep, &stateJSON, &ck.Frontier, &ck.PendingRequests, &ck.IdempotencyKey, &ck.Label, &created)
	if err == sql.ErrNoRows {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("store: scan checkpoint: %w", err)
	}
	ck.Timestamp = created
	state, err := unmarshalState(stateJSON)
	if err != nil {
		return Checkpoint{}, err
	}
	ck.SharedState = state
	return ck, nil
}
