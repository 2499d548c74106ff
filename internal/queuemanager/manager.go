// Package queuemanager implements the Queue Manager (C4): a registry
// binding a task id to its primary Event Queue, serialized under one
// sync.RWMutex — the same single-guard shape as the teacher's
// pkg/service/sse/broker.go clients map, generalized from HTTP-client
// channels to primary/tap Event Queues (§4.2).
package queuemanager

import (
	"errors"
	"sync"

	"github.com/theapemachine/a2a-engine/internal/eventqueue"
)

var (
	ErrQueueExists = errors.New("queuemanager: primary queue already exists for task")
	ErrNoQueue     = errors.New("queuemanager: no primary queue for task")
)

// Manager is the task id → primary Event Queue registry.
type Manager struct {
	mu       sync.RWMutex
	queues   map[string]*eventqueue.Queue
	capacity int
}

func New(capacity int) *Manager {
	return &Manager{
		queues:   make(map[string]*eventqueue.Queue),
		capacity: capacity,
	}
}

// Add registers queue as the primary for taskId. Fails with ErrQueueExists
// if one is already registered.
func (m *Manager) Add(taskID string, queue *eventqueue.Queue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.queues[taskID]; ok {
		return ErrQueueExists
	}
	m.queues[taskID] = queue
	return nil
}

// Get returns the primary queue for taskId, if any.
func (m *Manager) Get(taskID string) (*eventqueue.Queue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.queues[taskID]
	return q, ok
}

// Tap returns a new child queue of the primary for taskId, or false if
// there is no primary.
func (m *Manager) Tap(taskID string) (*eventqueue.Queue, bool) {
	m.mu.RLock()
	primary, ok := m.queues[taskID]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return primary.Tap(), true
}

// Close removes and closes the primary queue for taskId. Fails with
// ErrNoQueue if absent.
func (m *Manager) Close(taskID string) error {
	m.mu.Lock()
	q, ok := m.queues[taskID]
	if ok {
		delete(m.queues, taskID)
	}
	m.mu.Unlock()

	if !ok {
		return ErrNoQueue
	}
	q.Close()
	return nil
}

// CreateOrTap returns a fresh tap if a primary already exists for taskId;
// otherwise it creates, registers, and returns a new primary. The whole
// check-then-act sequence is atomic under the write lock, satisfying the
// concurrent createOrTap invariant (§4.2, §8): N concurrent callers for the
// same id yield exactly one primary and N-1 taps.
func (m *Manager) CreateOrTap(taskID string) *eventqueue.Queue {
	m.mu.Lock()
	defer m.mu.Unlock()

	if primary, ok := m.queues[taskID]; ok {
		return primary.Tap()
	}

	primary := eventqueue.New(m.capacity)
	m.queues[taskID] = primary
	return primary
}

// Len reports the number of registered primary queues — used by
// internal/sweeper to decide whether a GC pass has work to do.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.queues)
}

// Range calls fn for every (taskID, queue) pair currently registered. fn
// must not call back into the Manager.
func (m *Manager) Range(fn func(taskID string, queue *eventqueue.Queue)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, q := range m.queues {
		fn(id, q)
	}
}
