// Package echoexecutor is the engine's bundled default a2a.Executor,
// grounded on the teacher's pkg/tasks.EchoTaskManager: it completes every
// task by echoing the caller's text back as the agent's response,
// letting the engine be smoke-tested standalone before a real executor is
// wired in.
package echoexecutor

import (
	"context"
	"time"

	"github.com/theapemachine/a2a-engine/pkg/a2a"
)

// Executor completes a task synchronously by echoing the incoming
// message's text back to the caller.
type Executor struct{}

func New() *Executor {
	return &Executor{}
}

func (e *Executor) Execute(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
	if err := queue.Enqueue(ctx, a2a.NewStatusUpdateEvent(reqCtx.TaskID, reqCtx.ContextID,
		a2a.TaskStatus{State: a2a.TaskStateWorking, Timestamp: time.Now()}, false)); err != nil {
		return err
	}

	reply := a2a.NewTextMessage("agent", reqCtx.UserInput("\n"))
	return queue.Enqueue(ctx, a2a.NewStatusUpdateEvent(reqCtx.TaskID, reqCtx.ContextID,
		a2a.TaskStatus{State: a2a.TaskStateCompleted, Message: reply, Timestamp: time.Now()}, true))
}

func (e *Executor) Cancel(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
	return queue.Enqueue(ctx, a2a.NewStatusUpdateEvent(reqCtx.TaskID, reqCtx.ContextID,
		a2a.TaskStatus{State: a2a.TaskStateCanceled, Timestamp: time.Now()}, true))
}

func (e *Executor) Initialize(ctx context.Context) error { return nil }
func (e *Executor) Cleanup(ctx context.Context) error    { return nil }
