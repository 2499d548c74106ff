// Package taskstore defines the Task Store contract (C2) and its
// in-memory, Redis, and SQLite implementations — the spec's "pluggable
// persistence (in-memory, database)" line (§1, §2).
package taskstore

import (
	"context"
	"errors"

	"github.com/theapemachine/a2a-engine/pkg/a2a"
)

var ErrNotFound = errors.New("taskstore: task not found")

// Store is the external Task Store interface (§3, §4.3): key→Task
// persistence with no interpretation of task contents.
type Store interface {
	Get(ctx context.Context, id string) (*a2a.Task, error)
	Save(ctx context.Context, task *a2a.Task) error
}
