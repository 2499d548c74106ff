// Package server implements the Request Handler / JSON-RPC Router (C9):
// the method-name dispatch table §4.7 describes, mirroring the teacher's
// pkg/service.A2AServer.registerRPCHandlers/RPCServer.Register shape but
// generalized from the teacher's fixed tasks/send-style methods to the
// full message/task method set, and driven by the engine's own
// taskmanager/consumer/queuemanager/push packages instead of a single
// TaskManager interface.
//
// internal/transport mounts Router.Dispatch for unary methods and
// Router.Stream for the two SSE methods over fiber; this package has no
// HTTP dependency of its own.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/a2a-engine/internal/consumer"
	"github.com/theapemachine/a2a-engine/internal/eventqueue"
	"github.com/theapemachine/a2a-engine/internal/push"
	"github.com/theapemachine/a2a-engine/internal/queuemanager"
	"github.com/theapemachine/a2a-engine/internal/reqctx"
	"github.com/theapemachine/a2a-engine/internal/taskmanager"
	"github.com/theapemachine/a2a-engine/internal/telemetry"
	"github.com/theapemachine/a2a-engine/pkg/a2a"
	rpcerrors "github.com/theapemachine/a2a-engine/pkg/errors"
)

// Method names, per §4.7's table.
const (
	MethodMessageSend         = "message/send"
	MethodMessageStream       = "message/stream"
	MethodTasksGet            = "tasks/get"
	MethodTasksCancel         = "tasks/cancel"
	MethodTasksResubscribe    = "tasks/resubscribe"
	MethodPushNotificationSet = "tasks/pushNotificationConfig/set"
	MethodPushNotificationGet = "tasks/pushNotificationConfig/get"
)

// UnaryHandler serves one request/response JSON-RPC method.
type UnaryHandler func(ctx context.Context, callContext any, raw json.RawMessage) (any, *rpcerrors.RpcError)

// StreamHandler serves one SSE-bound JSON-RPC method, relaying events to
// emit until the stream terminates or ctx is canceled.
type StreamHandler func(ctx context.Context, callContext any, raw json.RawMessage, emit func(a2a.Event) error) *rpcerrors.RpcError

// Router is the C9 dispatch table, built once over the engine's core
// components and held by internal/transport for the lifetime of the
// process.
type Router struct {
	executor    a2a.Executor
	taskManager *taskmanager.Manager
	queues      *queuemanager.Manager
	aggregator  *consumer.Aggregator
	notifier    *push.Notifier
	telemetry   *telemetry.Provider
	pollTimeout time.Duration

	unary  map[string]UnaryHandler
	stream map[string]StreamHandler
}

// New builds a Router wired against the engine's core components. executor
// is the single application-supplied Agent Executor this engine drives —
// the A2A methods this package implements all reduce to invoking it and
// folding its events (§4.9). pollTimeout is §6's consumer.pollTimeout,
// bounding how long a single ConsumeOne wait blocks before surfacing
// NoResponse; zero disables the bound.
func New(
	executor a2a.Executor,
	taskManager *taskmanager.Manager,
	queues *queuemanager.Manager,
	notifier *push.Notifier,
	tel *telemetry.Provider,
	pollTimeout time.Duration,
) *Router {
	r := &Router{
		executor:    executor,
		taskManager: taskManager,
		queues:      queues,
		aggregator:  consumer.NewAggregator(taskManager),
		notifier:    notifier,
		telemetry:   tel,
		pollTimeout: pollTimeout,
	}

	r.unary = map[string]UnaryHandler{
		MethodMessageSend:        r.handleMessageSend,
		MethodTasksGet:           r.handleTasksGet,
		MethodTasksCancel:        r.handleTasksCancel,
		MethodPushNotificationSet: r.handlePushNotificationSet,
		MethodPushNotificationGet: r.handlePushNotificationGet,
	}

	r.stream = map[string]StreamHandler{
		MethodMessageStream:    r.handleMessageStream,
		MethodTasksResubscribe: r.handleTasksResubscribe,
	}

	return r
}

// IsStreaming reports whether method is served over SSE rather than a
// single JSON-RPC response (§4.7).
func (r *Router) IsStreaming(method string) bool {
	_, ok := r.stream[method]
	return ok
}

// Dispatch serves a unary method. An unknown method is MethodNotFound; a
// method registered only as streaming is UnsupportedOperation, per §6's
// error table, not MethodNotFound. internal/transport is responsible for
// routing to Stream instead when it sees a streaming method name.
func (r *Router) Dispatch(ctx context.Context, callContext any, method string, raw json.RawMessage) (any, *rpcerrors.RpcError) {
	handler, ok := r.unary[method]
	if !ok {
		if r.IsStreaming(method) {
			return nil, rpcerrors.ErrUnsupportedOperation.WithMessagef(
				"method %s must be called over the streaming transport", method,
			)
		}
		return nil, rpcerrors.ErrMethodNotFound.WithMessagef("unknown method %s", method)
	}

	ctx, span := telemetry.StartSpan(ctx, r.telemetry.Tracer, method)
	defer span.End()
	r.telemetry.Metrics.DispatchedCalls.Add(ctx, 1)

	return handler(ctx, callContext, raw)
}

// Stream serves a streaming method, relaying events to emit until Dispatch
// would have returned a final result.
func (r *Router) Stream(ctx context.Context, callContext any, method string, raw json.RawMessage, emit func(a2a.Event) error) *rpcerrors.RpcError {
	handler, ok := r.stream[method]
	if !ok {
		return rpcerrors.ErrMethodNotFound.WithMessagef("unknown streaming method %s", method)
	}

	ctx, span := telemetry.StartSpan(ctx, r.telemetry.Tracer, method)
	defer span.End()
	r.telemetry.Metrics.DispatchedCalls.Add(ctx, 1)

	return handler(ctx, callContext, raw, emit)
}

func (r *Router) handleMessageSend(ctx context.Context, callContext any, raw json.RawMessage) (any, *rpcerrors.RpcError) {
	reqCtx, rpcErr := r.buildRequestContext(ctx, raw, callContext)
	if rpcErr != nil {
		return nil, rpcErr
	}

	queue := r.queues.CreateOrTap(reqCtx.TaskID)
	c := consumer.New(queue.Subscribe(), r.pollTimeout)

	go r.runExecute(reqCtx, queue, c)

	task, message, _, err := r.aggregator.ConsumeAndBreakOnInterrupt(ctx, c, reqCtx.CurrentTask)
	if err != nil {
		return nil, executionError(reqCtx.TaskID, err)
	}

	if message != nil {
		return message, nil
	}

	if task != nil {
		r.notifier.SendNotification(task)
	}
	return task, nil
}

func (r *Router) handleMessageStream(ctx context.Context, callContext any, raw json.RawMessage, emit func(a2a.Event) error) *rpcerrors.RpcError {
	reqCtx, rpcErr := r.buildRequestContext(ctx, raw, callContext)
	if rpcErr != nil {
		return rpcErr
	}

	queue := r.queues.CreateOrTap(reqCtx.TaskID)
	c := consumer.New(queue.Subscribe(), r.pollTimeout)

	go r.runExecute(reqCtx, queue, c)

	if err := r.aggregator.ConsumeAndEmit(ctx, c, reqCtx.TaskID, r.emitAndNotify(emit)); err != nil {
		return executionError(reqCtx.TaskID, err)
	}
	return nil
}

// buildRequestContext implements the shared normalize-then-resolve
// sequence of message/send and message/stream (§4.3, §4.8): a Request
// Context is built first so any missing taskId/contextId/message id is
// given a UUID v4 before the Task Manager ever touches the Task Store,
// guaranteeing the ids the executor sees are exactly the ids that get
// persisted.
func (r *Router) buildRequestContext(ctx context.Context, raw json.RawMessage, callContext any) (*a2a.RequestContext, *rpcerrors.RpcError) {
	var params a2a.MessageSendParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, rpcerrors.ErrInvalidParams.WithMessagef("invalid message/send params: %v", err)
	}

	reqCtx, rpcErr := reqctx.Build(params, nil, callContext)
	if rpcErr != nil {
		return nil, rpcErr
	}

	task, rpcErr := r.taskManager.Resolve(ctx, reqCtx.Params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	reqCtx.CurrentTask = task
	reqCtx.TaskID = task.ID
	reqCtx.ContextID = task.ContextID

	return reqCtx, nil
}

// runExecute drives the Agent Executor for a message/send or message/stream
// call. It runs on context.Background() rather than the caller's request
// context: an auth-required interruption returns control to the caller
// long before the executor finishes, and the executor must keep running
// to completion regardless of whether that caller's connection is still
// open (§4.4 mode 3, §7 "Connection loss mid-stream").
func (r *Router) runExecute(reqCtx *a2a.RequestContext, queue *eventqueue.Queue, c *consumer.Consumer) {
	defer r.closeQueue(reqCtx.TaskID)
	if err := r.executor.Execute(context.Background(), reqCtx, queue); err != nil {
		c.SetExecutorErr(err)
	}
}

// closeQueue releases a task's primary queue through the Queue Manager
// rather than calling eventqueue.Queue.Close directly — that also drops
// the manager's registry entry, so a later tasks/cancel or message/send on
// the same id gets a fresh primary instead of a Tap of an already-closed
// one (§4.2's createOrTap contract assumes a closed primary is gone).
func (r *Router) closeQueue(taskID string) {
	if err := r.queues.Close(taskID); err != nil {
		log.Debug("router: queue already closed", "task_id", taskID, "error", err)
	}
}

func (r *Router) handleTasksGet(ctx context.Context, _ any, raw json.RawMessage) (any, *rpcerrors.RpcError) {
	var params a2a.TaskQueryParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, rpcerrors.ErrInvalidParams.WithMessagef("invalid tasks/get params: %v", err)
	}

	historyLength := 0
	if params.HistoryLength != nil {
		historyLength = *params.HistoryLength
	}

	return r.taskManager.Get(ctx, params.ID, historyLength)
}

func (r *Router) handleTasksCancel(ctx context.Context, callContext any, raw json.RawMessage) (any, *rpcerrors.RpcError) {
	var params a2a.TaskIDParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, rpcerrors.ErrInvalidParams.WithMessagef("invalid tasks/cancel params: %v", err)
	}

	task, rpcErr := r.taskManager.Get(ctx, params.ID, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if task.Status.State.Terminal() {
		return nil, rpcerrors.ErrTaskNotCancelable.WithMessagef("task %s is already %s", params.ID, task.Status.State)
	}

	queue := r.queues.CreateOrTap(task.ID)
	reqCtx := &a2a.RequestContext{
		TaskID: task.ID, ContextID: task.ContextID, CurrentTask: task, CallContext: callContext,
	}

	go func() {
		defer r.closeQueue(task.ID)
		if err := r.executor.Cancel(context.Background(), reqCtx, queue); err != nil {
			log.Error("executor cancel failed", "task_id", task.ID, "error", err)
		}
	}()

	c := consumer.New(queue.Subscribe(), r.pollTimeout)
	event, err := c.ConsumeOne(ctx)
	if err != nil {
		return nil, executionError(task.ID, err)
	}

	processed, procErr := r.taskManager.Process(ctx, task.ID, event)
	if procErr != nil {
		return nil, executionError(task.ID, procErr)
	}
	if processed == nil {
		processed = task
	}

	r.notifier.SendNotification(processed)
	return processed, nil
}

func (r *Router) handleTasksResubscribe(ctx context.Context, _ any, raw json.RawMessage, emit func(a2a.Event) error) *rpcerrors.RpcError {
	var params a2a.TaskIDParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return rpcerrors.ErrInvalidParams.WithMessagef("invalid tasks/resubscribe params: %v", err)
	}

	if _, rpcErr := r.taskManager.Get(ctx, params.ID, 0); rpcErr != nil {
		return rpcErr
	}

	tap, ok := r.queues.Tap(params.ID)
	if !ok {
		tap = r.queues.CreateOrTap(params.ID)
	}

	c := consumer.New(tap.Subscribe(), r.pollTimeout)
	if err := r.aggregator.ConsumeAndEmit(ctx, c, params.ID, emit); err != nil {
		return executionError(params.ID, err)
	}
	return nil
}

func (r *Router) handlePushNotificationSet(ctx context.Context, _ any, raw json.RawMessage) (any, *rpcerrors.RpcError) {
	var cfg a2a.TaskPushNotificationConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, rpcerrors.ErrInvalidParams.WithMessagef("invalid pushNotificationConfig/set params: %v", err)
	}
	if cfg.TaskID == "" {
		return nil, rpcerrors.ErrInvalidParams.WithMessagef("taskId is required")
	}

	if _, rpcErr := r.taskManager.Get(ctx, cfg.TaskID, 0); rpcErr != nil {
		return nil, rpcErr
	}

	r.notifier.SetConfig(cfg)
	return cfg, nil
}

func (r *Router) handlePushNotificationGet(ctx context.Context, _ any, raw json.RawMessage) (any, *rpcerrors.RpcError) {
	var params a2a.GetTaskPushNotificationConfigParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, rpcerrors.ErrInvalidParams.WithMessagef("invalid pushNotificationConfig/get params: %v", err)
	}

	taskID := params.TaskID
	if taskID == "" {
		taskID = params.ID
	}
	if taskID == "" {
		return nil, rpcerrors.ErrInvalidParams.WithMessagef("id or taskId is required")
	}

	if _, rpcErr := r.taskManager.Get(ctx, taskID, 0); rpcErr != nil {
		return nil, rpcErr
	}

	cfg, ok := r.notifier.GetConfig(taskID)
	if !ok {
		return nil, rpcerrors.ErrPushNotificationNotSupported.WithMessagef("no push notification config set for task %s", taskID)
	}

	// §4.6 keeps one config per task, so a pushNotificationConfigId is only
	// ever a corroborating check, not a lookup key: it must name the config
	// actually on file, or the caller is asking for a config that doesn't
	// exist under that task.
	if params.PushNotificationConfigID != "" {
		id := cfg.PushNotificationConfig.ID
		if id == nil || *id != params.PushNotificationConfigID {
			return nil, rpcerrors.ErrPushNotificationNotSupported.WithMessagef(
				"no push notification config %s set for task %s", params.PushNotificationConfigID, taskID,
			)
		}
	}

	return cfg, nil
}

// emitAndNotify wraps a streaming emit callback so a best-effort push
// notification fires alongside every Task-carrying event, matching
// message/send's post-completion notification for the streaming path too.
func (r *Router) emitAndNotify(emit func(a2a.Event) error) func(a2a.Event) error {
	return func(event a2a.Event) error {
		if event.Kind == a2a.EventKindTask {
			r.notifier.SendNotification(event.Task)
		}
		return emit(event)
	}
}

// executionError maps a Consumer/Aggregator fold error to the A2A error
// code a caller sees. A stream ending with no event at all is a typed
// InvalidAgentResponse (-32006) rather than a generic InternalError: it
// means the executor returned without enqueuing the terminal event §4.9
// requires, which is a contract violation by the agent, not an engine
// fault. Decided per the Open Question in §9 ("do not guess") — recorded
// in DESIGN.md. A Task Manager fold error that is already a typed
// RpcError (e.g. the pinned-taskId mismatch InvalidParams of §4.3 point
// 3) passes through unchanged rather than being flattened to InternalError.
func executionError(taskID string, err error) *rpcerrors.RpcError {
	if errors.Is(err, consumer.ErrNoResponse) {
		return rpcerrors.ErrInvalidAgentResponse.WithMessagef("agent executor for task %s produced no event", taskID)
	}
	var rpcErr *rpcerrors.RpcError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return rpcerrors.ErrInternal.WithMessagef("execute task %s: %v", taskID, err)
}
