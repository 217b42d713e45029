// Package checkpoint persists pipeline run state between stages so a torn
// down process can resume a run without repeating side-effecting work.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Store saves and loads serialized run state under a caller-chosen key. The
// key identifies the checkpoint, typically "synthesis:<anima_id>:<run_id>".
type Store interface {
	// Save serializes state as JSON and stores it under key, replacing any
	// previous value.
	Save(ctx context.Context, key string, state interface{}) error

	// Load deserializes the stored state into out. Returns false when no
	// checkpoint exists for the key.
	Load(ctx context.Context, key string, out interface{}) (bool, error)

	// Delete removes the checkpoint. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-process Store for tests and single-shot runs that
// don't need durability.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, key string, state interface{}) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key] = data
	return nil
}

func (s *MemoryStore) Load(_ context.Context, key string, out interface{}) (bool, error) {
	s.mu.RLock()
	data, ok := s.states[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to deserialize checkpoint: %w", err)
	}
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
	return nil
}

// Dialect selects the placeholder style for SQLStore queries.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// SQLStore is a durable Store backed by the pipeline_checkpoints table. It
// shares the database handle with the storage backend so a run and its
// checkpoints live in the same database.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open database handle. The pipeline_checkpoints table
// must already exist (the storage backend creates it with the rest of the
// schema).
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Save(ctx context.Context, key string, state interface{}) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}
	query := `
		INSERT INTO pipeline_checkpoints (checkpoint_key, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(checkpoint_key) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`
	if s.dialect == DialectPostgres {
		query = `
		INSERT INTO pipeline_checkpoints (checkpoint_key, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT(checkpoint_key) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`
	}
	if _, err := s.db.ExecContext(ctx, query, key, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, key string, out interface{}) (bool, error) {
	query := `SELECT state FROM pipeline_checkpoints WHERE checkpoint_key = ?`
	if s.dialect == DialectPostgres {
		query = `SELECT state FROM pipeline_checkpoints WHERE checkpoint_key = $1`
	}
	var data string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, fmt.Errorf("failed to deserialize checkpoint: %w", err)
	}
	return true, nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM pipeline_checkpoints WHERE checkpoint_key = ?`
	if s.dialect == DialectPostgres {
		query = `DELETE FROM pipeline_checkpoints WHERE checkpoint_key = $1`
	}
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Compile-time assertions.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
)
