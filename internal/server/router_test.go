package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"

	"github.com/theapemachine/a2a-engine/internal/push"
	"github.com/theapemachine/a2a-engine/internal/queuemanager"
	"github.com/theapemachine/a2a-engine/internal/taskmanager"
	"github.com/theapemachine/a2a-engine/internal/taskstore/memstore"
	"github.com/theapemachine/a2a-engine/internal/telemetry"
	"github.com/theapemachine/a2a-engine/pkg/a2a"
	rpcerrors "github.com/theapemachine/a2a-engine/pkg/errors"
)

// dynamicExecutor lets a test supply Execute/Cancel as closures — the
// resolved task/context id isn't known until reqctx.Build and
// taskmanager.Resolve have run, so events have to be built from reqCtx
// rather than fixed up front.
type dynamicExecutor struct {
	onExecute func(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error
	onCancel  func(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error
}

func (e *dynamicExecutor) Execute(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
	if e.onExecute == nil {
		return nil
	}
	return e.onExecute(ctx, reqCtx, queue)
}

func (e *dynamicExecutor) Cancel(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
	if e.onCancel == nil {
		return queue.Enqueue(ctx, a2a.NewStatusUpdateEvent(reqCtx.TaskID, reqCtx.ContextID, a2a.TaskStatus{
			State: a2a.TaskStateCanceled, Timestamp: time.Now(),
		}, true))
	}
	return e.onCancel(ctx, reqCtx, queue)
}

func (e *dynamicExecutor) Initialize(ctx context.Context) error { return nil }
func (e *dynamicExecutor) Cleanup(ctx context.Context) error    { return nil }

func newRouter(t *testing.T, executor a2a.Executor) *Router {
	t.Helper()

	tm := taskmanager.New(taskmanager.WithStore(memstore.New()))
	queues := queuemanager.New(0)
	notifier := push.New(0)

	tel, err := telemetry.Init(context.Background(), telemetry.Config{Enabled: false})
	require.NoError(t, err)

	return New(executor, tm, queues, notifier, tel, 0)
}

func rawParams(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestMessageSendCompletesSynchronously(t *testing.T) {
	Convey("Given an executor that completes a task in one shot", t, func() {
		executor := &dynamicExecutor{
			onExecute: func(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
				if err := queue.Enqueue(ctx, a2a.NewStatusUpdateEvent(reqCtx.TaskID, reqCtx.ContextID,
					a2a.TaskStatus{State: a2a.TaskStateWorking, Timestamp: time.Now()}, false)); err != nil {
					return err
				}
				return queue.Enqueue(ctx, a2a.NewStatusUpdateEvent(reqCtx.TaskID, reqCtx.ContextID,
					a2a.TaskStatus{State: a2a.TaskStateCompleted, Message: a2a.NewTextMessage("agent", "hi"), Timestamp: time.Now()}, true))
			},
		}
		r := newRouter(t, executor)

		Convey("When message/send is dispatched for a brand new task", func() {
			params := a2a.MessageSendParams{Message: *a2a.NewTextMessage("user", "hello")}

			result, rpcErr := dispatchWithTimeout(t, r, MethodMessageSend, rawParams(t, params))

			So(rpcErr, ShouldBeNil)
			task, ok := result.(*a2a.Task)
			So(ok, ShouldBeTrue)
			So(task.Status.State, ShouldEqual, a2a.TaskStateCompleted)
			So(task.Status.Message.String(), ShouldEqual, "hi")
			So(len(task.History), ShouldEqual, 1)
			So(task.History[0].String(), ShouldEqual, "hello")
		})
	})
}

func TestMessageSendInterruptionReturnsPromptlyThenCompletesInBackground(t *testing.T) {
	Convey("Given an executor that pauses for auth then completes much later", t, func() {
		releaseCompletion := make(chan struct{})

		executor := &dynamicExecutor{
			onExecute: func(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
				if err := queue.Enqueue(ctx, a2a.NewStatusUpdateEvent(reqCtx.TaskID, reqCtx.ContextID,
					a2a.TaskStatus{State: a2a.TaskStateWorking, Timestamp: time.Now()}, false)); err != nil {
					return err
				}
				if err := queue.Enqueue(ctx, a2a.NewStatusUpdateEvent(reqCtx.TaskID, reqCtx.ContextID,
					a2a.TaskStatus{State: a2a.TaskStateAuthReq, Timestamp: time.Now()}, false)); err != nil {
					return err
				}

				<-releaseCompletion
				return queue.Enqueue(ctx, a2a.NewStatusUpdateEvent(reqCtx.TaskID, reqCtx.ContextID,
					a2a.TaskStatus{State: a2a.TaskStateCompleted, Timestamp: time.Now()}, true))
			},
		}
		r := newRouter(t, executor)

		Convey("When message/send is dispatched", func() {
			params := a2a.MessageSendParams{Message: *a2a.NewTextMessage("user", "need auth")}
			result, rpcErr := dispatchWithTimeout(t, r, MethodMessageSend, rawParams(t, params))

			So(rpcErr, ShouldBeNil)
			task := result.(*a2a.Task)
			So(task.Status.State, ShouldEqual, a2a.TaskStateAuthReq)

			Convey("And the background executor eventually finishes", func() {
				close(releaseCompletion)

				getParams := a2a.TaskQueryParams{TaskIDParams: a2a.TaskIDParams{ID: task.ID}}
				So(func() bool {
					deadline := time.Now().Add(2 * time.Second)
					for time.Now().Before(deadline) {
						got, rpcErr := r.Dispatch(context.Background(), nil, MethodTasksGet, rawParams(t, getParams))
						if rpcErr == nil && got.(*a2a.Task).Status.State == a2a.TaskStateCompleted {
							return true
						}
						time.Sleep(10 * time.Millisecond)
					}
					return false
				}(), ShouldBeTrue)
			})
		})
	})
}

func dispatchWithTimeout(t *testing.T, r *Router, method string, raw json.RawMessage) (any, *rpcerrors.RpcError) {
	t.Helper()

	type outcome struct {
		result any
		rpcErr *rpcerrors.RpcError
	}
	done := make(chan outcome, 1)

	go func() {
		result, rpcErr := r.Dispatch(context.Background(), nil, method, raw)
		done <- outcome{result, rpcErr}
	}()

	select {
	case o := <-done:
		return o.result, o.rpcErr
	case <-time.After(2 * time.Second):
		t.Fatal(method + " did not complete")
		return nil, nil
	}
}

func TestTasksGetUnknownIDFails(t *testing.T) {
	r := newRouter(t, &dynamicExecutor{})

	_, rpcErr := r.Dispatch(context.Background(), nil, MethodTasksGet, rawParams(t, a2a.TaskQueryParams{
		TaskIDParams: a2a.TaskIDParams{ID: "nope"},
	}))

	require.NotNil(t, rpcErr)
	require.Equal(t, rpcerrors.ErrTaskNotFound.Code, rpcErr.Code)
}

func TestTasksCancelThenRecancelFails(t *testing.T) {
	r := newRouter(t, &dynamicExecutor{})
	ctx := context.Background()

	task, rpcErr := r.taskManager.Resolve(ctx, a2a.MessageSendParams{
		Message: *a2a.NewTextMessage("user", "start"),
	})
	require.Nil(t, rpcErr)
	require.Equal(t, a2a.TaskStateSubmitted, task.Status.State)

	cancelResult, rpcErr := r.Dispatch(ctx, nil, MethodTasksCancel, rawParams(t, a2a.TaskIDParams{ID: task.ID}))
	require.Nil(t, rpcErr)
	canceled := cancelResult.(*a2a.Task)
	require.Equal(t, a2a.TaskStateCanceled, canceled.Status.State)

	_, rpcErr = r.Dispatch(ctx, nil, MethodTasksCancel, rawParams(t, a2a.TaskIDParams{ID: task.ID}))
	require.NotNil(t, rpcErr)
	require.Equal(t, rpcerrors.ErrTaskNotCancelable.Code, rpcErr.Code)
}

func TestPushNotificationSetGetRoundTrip(t *testing.T) {
	r := newRouter(t, &dynamicExecutor{})
	ctx := context.Background()

	task, rpcErr := r.taskManager.Resolve(ctx, a2a.MessageSendParams{
		Message: *a2a.NewTextMessage("user", "hi"),
	})
	require.Nil(t, rpcErr)

	var received int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	setResult, rpcErr := r.Dispatch(ctx, nil, MethodPushNotificationSet, rawParams(t, a2a.TaskPushNotificationConfig{
		TaskID:                 task.ID,
		PushNotificationConfig: a2a.PushNotificationConfig{URL: server.URL},
	}))
	require.Nil(t, rpcErr)
	require.Equal(t, task.ID, setResult.(a2a.TaskPushNotificationConfig).TaskID)

	getResult, rpcErr := r.Dispatch(ctx, nil, MethodPushNotificationGet, rawParams(t, a2a.GetTaskPushNotificationConfigParams{
		ID: task.ID,
	}))
	require.Nil(t, rpcErr)
	require.Equal(t, server.URL, getResult.(a2a.TaskPushNotificationConfig).PushNotificationConfig.URL)
}

func TestPushNotificationGetWrongConfigIDFails(t *testing.T) {
	r := newRouter(t, &dynamicExecutor{})
	ctx := context.Background()

	task, rpcErr := r.taskManager.Resolve(ctx, a2a.MessageSendParams{
		Message: *a2a.NewTextMessage("user", "hi"),
	})
	require.Nil(t, rpcErr)

	configID := "webhook-1"
	_, rpcErr = r.Dispatch(ctx, nil, MethodPushNotificationSet, rawParams(t, a2a.TaskPushNotificationConfig{
		TaskID: task.ID,
		PushNotificationConfig: a2a.PushNotificationConfig{
			URL: "https://example.test",
			ID:  &configID,
		},
	}))
	require.Nil(t, rpcErr)

	_, rpcErr = r.Dispatch(ctx, nil, MethodPushNotificationGet, rawParams(t, a2a.GetTaskPushNotificationConfigParams{
		TaskID:                   task.ID,
		PushNotificationConfigID: "some-other-id",
	}))
	require.NotNil(t, rpcErr)
	require.Equal(t, rpcerrors.ErrPushNotificationNotSupported.Code, rpcErr.Code)

	getResult, rpcErr := r.Dispatch(ctx, nil, MethodPushNotificationGet, rawParams(t, a2a.GetTaskPushNotificationConfigParams{
		TaskID:                   task.ID,
		PushNotificationConfigID: configID,
	}))
	require.Nil(t, rpcErr)
	require.Equal(t, configID, *getResult.(a2a.TaskPushNotificationConfig).PushNotificationConfig.ID)
}

func TestPushNotificationSetUnknownTaskFails(t *testing.T) {
	r := newRouter(t, &dynamicExecutor{})

	_, rpcErr := r.Dispatch(context.Background(), nil, MethodPushNotificationSet, rawParams(t, a2a.TaskPushNotificationConfig{
		TaskID:                 "nope",
		PushNotificationConfig: a2a.PushNotificationConfig{URL: "https://example.test"},
	}))

	require.NotNil(t, rpcErr)
	require.Equal(t, rpcerrors.ErrTaskNotFound.Code, rpcErr.Code)
}

func TestMessageStreamRelaysEveryEventInOrder(t *testing.T) {
	executor := &dynamicExecutor{
		onExecute: func(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
			artifact := a2a.Artifact{ID: "A", Parts: []a2a.Part{a2a.NewTextPart("foo")}}
			if err := queue.Enqueue(ctx, a2a.NewArtifactUpdateEvent(reqCtx.TaskID, reqCtx.ContextID, artifact, false, false)); err != nil {
				return err
			}
			return queue.Enqueue(ctx, a2a.NewStatusUpdateEvent(reqCtx.TaskID, reqCtx.ContextID,
				a2a.TaskStatus{State: a2a.TaskStateCompleted, Timestamp: time.Now()}, true))
		},
	}
	r := newRouter(t, executor)

	var kinds []a2a.EventKind
	rpcErr := r.Stream(context.Background(), nil, MethodMessageStream, rawParams(t, a2a.MessageSendParams{
		Message: *a2a.NewTextMessage("user", "stream please"),
	}), func(evt a2a.Event) error {
		kinds = append(kinds, evt.Kind)
		return nil
	})

	require.Nil(t, rpcErr)
	require.Equal(t, []a2a.EventKind{a2a.EventKindArtifactUpdate, a2a.EventKindStatusUpdate}, kinds)
}

func TestDispatchUnknownMethodFails(t *testing.T) {
	r := newRouter(t, &dynamicExecutor{})

	_, rpcErr := r.Dispatch(context.Background(), nil, "tasks/teleport", json.RawMessage(`{}`))
	require.NotNil(t, rpcErr)
	require.Equal(t, rpcerrors.ErrMethodNotFound.Code, rpcErr.Code)
}

func TestDispatchStreamingMethodOverUnaryFails(t *testing.T) {
	r := newRouter(t, &dynamicExecutor{})

	_, rpcErr := r.Dispatch(context.Background(), nil, MethodMessageStream, json.RawMessage(`{}`))
	require.NotNil(t, rpcErr)
	require.Equal(t, rpcerrors.ErrUnsupportedOperation.Code, rpcErr.Code)
}
