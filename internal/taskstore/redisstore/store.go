// Package redisstore is a Task Store backend over go-redis/v9, wired in
// from the dependency set brought into the corpus by goadesign-goa-ai's
// registry package. Each task is one Redis hash: a JSON blob field plus a
// contextId field used as a secondary index (§2's "pluggable persistence").
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/theapemachine/a2a-engine/internal/taskstore"
	"github.com/theapemachine/a2a-engine/pkg/a2a"
)

const (
	fieldTask      = "task"
	fieldContextID = "contextId"
)

type Store struct {
	client *redis.Client
	prefix string
}

// New builds a redisstore.Store. prefix namespaces keys (e.g. "a2a:task:")
// so the engine can share a Redis instance with unrelated applications.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "a2a:task:"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) Get(ctx context.Context, id string) (*a2a.Task, error) {
	raw, err := s.client.HGet(ctx, s.key(id), fieldTask).Result()
	if err == redis.Nil {
		return nil, taskstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s: %w", id, err)
	}

	var task a2a.Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		return nil, fmt.Errorf("redisstore: decode %s: %w", id, err)
	}
	return &task, nil
}

func (s *Store) Save(ctx context.Context, task *a2a.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("redisstore: encode %s: %w", task.ID, err)
	}

	err = s.client.HSet(ctx, s.key(task.ID), map[string]any{
		fieldTask:      body,
		fieldContextID: task.ContextID,
	}).Err()
	if err != nil {
		return fmt.Errorf("redisstore: save %s: %w", task.ID, err)
	}
	return nil
}

var _ taskstore.Store = (*Store)(nil)
