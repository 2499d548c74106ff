// Package memstore is the default Task Store backend: an in-memory map
// guarded by a sync.RWMutex, adapted from the teacher's
// pkg/stores/task_store.go InMemoryTaskStore.
package memstore

import (
	"context"
	"sync"

	"github.com/theapemachine/a2a-engine/internal/taskstore"
	"github.com/theapemachine/a2a-engine/pkg/a2a"
)

type Store struct {
	mu    sync.RWMutex
	tasks map[string]*a2a.Task
}

func New() *Store {
	return &Store{tasks: make(map[string]*a2a.Task)}
}

func (s *Store) Get(_ context.Context, id string) (*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, taskstore.ErrNotFound
	}

	cp := *task
	return &cp, nil
}

func (s *Store) Save(_ context.Context, task *a2a.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

// List returns a copy of every stored task.
func (s *Store) List() []*a2a.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*a2a.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

var _ taskstore.Store = (*Store)(nil)
