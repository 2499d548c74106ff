package a2a

import "context"

// EventQueue is the minimal surface an Agent Executor needs against an
// Event Queue (§4.1); the concrete type lives in internal/eventqueue and
// satisfies this interface, keeping the executor contract free of an
// internal-package import.
type EventQueue interface {
	Enqueue(ctx context.Context, event Event) error
}

// RequestContext is the normalized view of an incoming request passed to
// an Agent Executor (§4.8): the resolved params, task/context ids, the
// current Task snapshot if one exists, and an opaque call context (e.g. the
// caller's identity) threaded through without interpretation by the engine.
type RequestContext struct {
	Params      MessageSendParams
	TaskID      string
	ContextID   string
	CurrentTask *Task
	CallContext any
}

// UserInput concatenates the text parts of the incoming message, joined by
// delimiter (default "\n").
func (rc *RequestContext) UserInput(delimiter string) string {
	return rc.Params.Message.UserInput(delimiter)
}

/*
Executor is the contract fulfilled by application code (§4.9). The engine
never interprets an executor's business logic — it only guarantees
delivery and folding of the events the executor enqueues.

Execute must end by enqueuing at least one terminal event (§4.4) before
returning. Cancel must enqueue a terminal event too — typically a
StatusUpdate{State: canceled, Final: true}, or the current Task if
cancellation isn't possible.
*/
type Executor interface {
	Execute(ctx context.Context, reqCtx *RequestContext, queue EventQueue) error
	Cancel(ctx context.Context, reqCtx *RequestContext, queue EventQueue) error

	// Initialize and Cleanup are best-effort lifecycle hooks; side effects
	// only, errors are logged by the caller and never fail a request.
	Initialize(ctx context.Context) error
	Cleanup(ctx context.Context) error
}
