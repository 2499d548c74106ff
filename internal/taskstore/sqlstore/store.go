// Package sqlstore is a Task Store backend over database/sql +
// modernc.org/sqlite (pure Go, no cgo), grounded on the migrate-on-construct
// pattern used by nugget-thane-ai-agent's internal/watchlist.Store: one row
// per task id, a JSON blob column, and an index on context_id.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/theapemachine/a2a-engine/internal/taskstore"
	"github.com/theapemachine/a2a-engine/pkg/a2a"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and runs
// migrations. path may be ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", path, err)
	}
	return New(db)
}

// New wraps an existing *sql.DB and runs migrations before returning.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id         TEXT PRIMARY KEY,
			context_id TEXT NOT NULL,
			body       TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_context_id ON tasks(context_id);
	`)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*a2a.Task, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM tasks WHERE id = ?`, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, taskstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get %s: %w", id, err)
	}

	var task a2a.Task
	if err := json.Unmarshal([]byte(body), &task); err != nil {
		return nil, fmt.Errorf("sqlstore: decode %s: %w", id, err)
	}
	return &task, nil
}

func (s *Store) Save(ctx context.Context, task *a2a.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("sqlstore: encode %s: %w", task.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, context_id, body, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			context_id = excluded.context_id,
			body = excluded.body,
			updated_at = excluded.updated_at
	`, task.ID, task.ContextID, string(body))
	if err != nil {
		return fmt.Errorf("sqlstore: save %s: %w", task.ID, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ taskstore.Store = (*Store)(nil)
