// Package taskmanager is the Task Manager (C5): the server's authority on
// Task state. It implements the task creation/selection policy of §4.3 and
// folds Events from the Event Consumer into the Task Store, adapted from
// the teacher's pkg/ai.TaskManager selectTask/createNewTask/handleUpdate
// trio — kept as the options-constructor shape and charmbracelet/log
// key-value logging, generalized from the teacher's single-provider
// request/response loop to the spec's event-folding model.
package taskmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/a2a-engine/internal/taskstore"
	"github.com/theapemachine/a2a-engine/pkg/a2a"
	rpcerrors "github.com/theapemachine/a2a-engine/pkg/errors"
)

type Manager struct {
	store taskstore.Store
}

type Option func(*Manager)

func New(options ...Option) *Manager {
	manager := &Manager{}

	for _, option := range options {
		option(manager)
	}

	return manager
}

func WithStore(store taskstore.Store) Option {
	return func(manager *Manager) {
		manager.store = store
	}
}

// Resolve implements §4.3's task creation/selection policy for an incoming
// message/send or message/stream call: a missing taskId creates a fresh
// task; a pinned taskId that doesn't exist yet creates a new task under
// that id; a pinned taskId that exists appends the incoming message to its
// history. A pinned taskId whose stored contextId conflicts with the
// caller's is InvalidParams — the engine refuses to silently reassign a
// task between contexts.
func (manager *Manager) Resolve(
	ctx context.Context, params a2a.MessageSendParams,
) (*a2a.Task, *rpcerrors.RpcError) {
	if params.TaskID == "" {
		return manager.createNewTask(ctx, "", params.ContextID, &params.Message)
	}

	existing, err := manager.store.Get(ctx, params.TaskID)
	if errors.Is(err, taskstore.ErrNotFound) {
		return manager.createNewTask(ctx, params.TaskID, params.ContextID, &params.Message)
	}
	if err != nil {
		log.Error("failed to load task", "task_id", params.TaskID, "error", err)
		return nil, rpcerrors.ErrInternal.WithMessagef("load task %s: %v", params.TaskID, err)
	}

	if params.ContextID != "" && existing.ContextID != params.ContextID {
		return nil, rpcerrors.ErrInvalidParams.WithMessagef(
			"task %s belongs to context %s, not %s", existing.ID, existing.ContextID, params.ContextID,
		)
	}

	existing.History = append(existing.History, params.Message)
	if err := manager.store.Save(ctx, existing); err != nil {
		log.Error("failed to save updated task", "task_id", existing.ID, "error", err)
		return nil, rpcerrors.ErrInternal.WithMessagef("save task %s: %v", existing.ID, err)
	}

	return existing, nil
}

func (manager *Manager) createNewTask(
	ctx context.Context, id, contextID string, initialMessage *a2a.Message,
) (*a2a.Task, *rpcerrors.RpcError) {
	task := a2a.NewTask(id, contextID, initialMessage)

	log.Info("creating new task", "task_id", task.ID, "context_id", task.ContextID)

	if err := manager.store.Save(ctx, task); err != nil {
		log.Error("failed to save new task", "task_id", task.ID, "error", err)
		return nil, rpcerrors.ErrInternal.WithMessagef("save task %s: %v", task.ID, err)
	}

	return task, nil
}

/*
Process folds one Event from the Event Consumer into its Task, per §4.3:

  - MessageEvent carries no task reference and is never persisted — it
    passes straight through to the caller.
  - TaskEvent replaces the stored task verbatim (an executor snapshot).
  - StatusUpdate folds via Task.ApplyStatus, displacing the prior
    status.Message into history.
  - ArtifactUpdate folds via Task.ApplyArtifact, merging by artifact id
    when Append is set.

pinnedTaskID is the task id the current call is bound to (the Request
Context's resolved task id, or the task being canceled) — an empty string
means no pin is in force. When set, an event whose own taskId disagrees
is rejected as InvalidParams per §4.3 point 3 rather than silently folded
against the wrong task: an Agent Executor must never redirect an event at
a task other than the one it was invoked for.

The returned Task is nil for MessageEvent; callers distinguish "no task to
report" from an error by checking err first.
*/
func (manager *Manager) Process(ctx context.Context, pinnedTaskID string, event a2a.Event) (*a2a.Task, error) {
	if pinnedTaskID != "" {
		if id, ok := event.TaskID(); ok && id != pinnedTaskID {
			return nil, rpcerrors.ErrInvalidParams.WithMessagef(
				"event carries taskId %s, does not match pinned task %s", id, pinnedTaskID,
			)
		}
	}

	switch event.Kind {
	case a2a.EventKindMessage:
		return nil, nil

	case a2a.EventKindTask:
		if err := manager.store.Save(ctx, event.Task); err != nil {
			return nil, fmt.Errorf("taskmanager: save task %s: %w", event.Task.ID, err)
		}
		return event.Task, nil

	case a2a.EventKindStatusUpdate:
		task, err := manager.store.Get(ctx, event.Status.TaskID)
		if err != nil {
			return nil, fmt.Errorf("taskmanager: load task %s: %w", event.Status.TaskID, err)
		}
		task.ApplyStatus(event.Status.Status)
		if err := manager.store.Save(ctx, task); err != nil {
			return nil, fmt.Errorf("taskmanager: save task %s: %w", task.ID, err)
		}
		return task, nil

	case a2a.EventKindArtifactUpdate:
		task, err := manager.store.Get(ctx, event.Artifact.TaskID)
		if err != nil {
			return nil, fmt.Errorf("taskmanager: load task %s: %w", event.Artifact.TaskID, err)
		}
		task.ApplyArtifact(event.Artifact.Artifact, event.Artifact.Append)
		if err := manager.store.Save(ctx, task); err != nil {
			return nil, fmt.Errorf("taskmanager: save task %s: %w", task.ID, err)
		}
		return task, nil

	default:
		return nil, fmt.Errorf("taskmanager: unknown event kind %q", event.Kind)
	}
}

// Get returns the current snapshot of a task, truncated to historyLength
// entries per §4.7 (0 or negative returns the full history unchanged).
func (manager *Manager) Get(ctx context.Context, id string, historyLength int) (*a2a.Task, *rpcerrors.RpcError) {
	task, err := manager.store.Get(ctx, id)
	if errors.Is(err, taskstore.ErrNotFound) {
		return nil, rpcerrors.ErrTaskNotFound.WithMessagef("task %s not found", id)
	}
	if err != nil {
		log.Error("failed to load task", "task_id", id, "error", err)
		return nil, rpcerrors.ErrInternal.WithMessagef("load task %s: %v", id, err)
	}

	return task.WithHistoryLength(historyLength), nil
}

// Cancel transitions a task to canceled, rejecting the attempt with
// TaskNotCancelable if the task is already in a terminal state (§4.5).
func (manager *Manager) Cancel(ctx context.Context, id string) (*a2a.Task, *rpcerrors.RpcError) {
	task, err := manager.store.Get(ctx, id)
	if errors.Is(err, taskstore.ErrNotFound) {
		return nil, rpcerrors.ErrTaskNotFound.WithMessagef("task %s not found", id)
	}
	if err != nil {
		log.Error("failed to load task", "task_id", id, "error", err)
		return nil, rpcerrors.ErrInternal.WithMessagef("load task %s: %v", id, err)
	}

	if task.Status.State.Terminal() {
		return nil, rpcerrors.ErrTaskNotCancelable.WithMessagef("task %s is already %s", id, task.Status.State)
	}

	task.ApplyStatus(a2a.TaskStatus{State: a2a.TaskStateCanceled, Timestamp: time.Now()})
	if err := manager.store.Save(ctx, task); err != nil {
		log.Error("failed to save canceled task", "task_id", id, "error", err)
		return nil, rpcerrors.ErrInternal.WithMessagef("save task %s: %v", id, err)
	}

	return task, nil
}

// TerminalSince reports the time a task entered a terminal state, letting
// internal/sweeper prune push-notification configs without importing this
// package — it satisfies sweeper.TaskState.
func (manager *Manager) TerminalSince(taskID string) (time.Time, bool) {
	task, err := manager.store.Get(context.Background(), taskID)
	if err != nil || !task.Status.State.Terminal() {
		return time.Time{}, false
	}
	return task.Status.Timestamp, true
}
