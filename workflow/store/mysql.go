package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB-backed Store, generalized from the
// teacher's MySQLStore[S] (graph/store/mysql.go), for production
// deployments where checkpoints must survive a process restart and be
// shared across multiple workers.
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
		return nil, fmt.Errorf("store: open mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	const checkpointsTable = `
		CREATE TABLE IF NOT EXISTS workflow_checkpoints (
			run_id           VARCHAR(191) NOT NULL,
			superstep        INT NOT NULL,
			shared_state     JSON NOT NULL,
			frontier         LONGBLOB NOT NULL,
			pending_requests LONGBLOB NOT NULL,
			idempotency_key  VARCHAR(191) NOT NULL,
			label            VARCHAR(191) NOT NULL DEFAULT '',
			created_at       TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, superstep),
			INDEX idx_checkpoints_run (run_id)
		) ENGINE=InnoDB
	`
	if _, err := s.db.ExecContext(ctx, checkpointsTable); err != nil {
		return fmt.Errorf("store: create workflow_checkpoints: %w", err)
	}

	const labeledTable = `
		CREATE TABLE IF NOT EXISTS workflow_labeled_checkpoints (
			label            VARCHAR(191) NOT NULL PRIMARY KEY,
			run_id           VARCHAR(191) NOT NULL,
			superstep        INT NOT NULL,
			shared_state     JSON NOT NULL,
			frontier         LONGBLOB NOT NULL,
			pending_requests LONGBLOB NOT NULL,
			idempotency_key  VARCHAR(191) NOT NULL,
			created_at       TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB
	`
	if _, err := s.db.ExecContext(ctx, labeledTable); err != nil {
		return fmt.Errorf("store: create workflow_labeled_checkpoints: %w", err)
	}

	const idempotencyTable = `
		CREATE TABLE IF NOT EXISTS idempotency_keys (
			key_value  VARCHAR(191) NOT NULL PRIMARY KEY,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB
	`
	if _, err := s.db.ExecContext(ctx, idempotencyTable); err != nil {
		return fmt.Errorf("store: create idempotency_keys: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *MySQLStore) SaveCheckpoint(ctx context.Context, checkpoint Checkpoint) error {
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
		ON DUPLICATE KEY UPDATE
			shared_state=VALUES(shared_state), frontier=VALUES(frontier),
			pending_requests=VALUES(pending_requests), idempotency_key=VALUES(idempotency_key), label=VALUES(label)
	`, checkpoint.RunID, checkpoint.Superstep, stateJSON, checkpoint.Frontier, checkpoint.PendingRequests, checkpoint.IdempotencyKey, checkpoint.Label, time.Now())
	if err != nil {
		return fmt.Errorf("store: insert checkpoint: %w", err)
	}

	if checkpoint.IdempotencyKey != "" {
		if _, err := tx.ExecContext(ctx, `INSERT IGNORE INTO idempotency_keys (key_value) VALUES (?)`, checkpoint.IdempotencyKey); err != nil {
			return fmt.Errorf("store: insert idempotency key: %w", err)
		}
	}

	return tx.Commit()
}

func (s *MySQLStore) LoadLatest(ctx context.Context, runID string) (Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, superstep, shared_state, frontier, pending_requests, idempotency_key, label, created_at
		FROM workflow_checkpoints WHERE run_id = ? ORDER BY superstep DESC LIMIT 1
	`, runID)
	return scanCheckpoint(row)
}

func (s *MySQLStore) LoadSuperstep(ctx context.Context, runID string, superstep int) (Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, superstep, shared_state, frontier, pending_requests, idempotency_key, label, created_at
		FROM workflow_checkpoints WHERE run_id = ? AND superstep = ?
	`, runID, superstep)
	return scanCheckpoint(row)
}

func (s *MySQLStore) SaveLabeled(ctx context.Context, label string, checkpoint Checkpoint) error {
	stateJSON, err := marshalState(checkpoint.SharedState)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_labeled_checkpoints (label, run_id, superstep, shared_state, frontier, pending_requests, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			run_id=VALUES(run_id), superstep=VALUES(superstep), shared_state=VALUES(shared_state),
			frontier=VALUES(frontier), pending_requests=VALUES(pending_requests), idempotency_key=VALUES(idempotency_key)
	`, label, checkpoint.RunID, checkpoint.Superstep, stateJSON, checkpoint.Frontier, checkpoint.PendingRequests, checkpoint.IdempotencyKey, time.Now())
	if err != nil {
		return fmt.Errorf("store: insert labeled checkpoint: %w", err)
	}
	return nil
}

func (s *MySQLStore) LoadLabeled(ctx context.Context, label string) (Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, superstep, shared_state, frontier, pending_requests, idempotency_key, '', created_at
		FROM workflow_labeled_checkpoints WHERE label = ?
	`, label)
	ck, err := scanCheckpoint(row)
	if err != nil {
		return Checkpoint{}, err
	}
	ck.Label = label
	return ck, nil
}

func (s *MySQLStore) CheckIdempotency(ctx context.Context, key string) (bool, error) {
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
