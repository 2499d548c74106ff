package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/theapemachine/a2a-engine/internal/push"
	"github.com/theapemachine/a2a-engine/internal/queuemanager"
	"github.com/theapemachine/a2a-engine/internal/server"
	"github.com/theapemachine/a2a-engine/internal/taskmanager"
	"github.com/theapemachine/a2a-engine/internal/taskstore/memstore"
	"github.com/theapemachine/a2a-engine/internal/telemetry"
	"github.com/theapemachine/a2a-engine/pkg/a2a"
	rpcerrors "github.com/theapemachine/a2a-engine/pkg/errors"
	"github.com/theapemachine/a2a-engine/pkg/jsonrpc"
)

type echoExecutor struct{}

func (echoExecutor) Execute(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
	if err := queue.Enqueue(ctx, a2a.NewStatusUpdateEvent(reqCtx.TaskID, reqCtx.ContextID,
		a2a.TaskStatus{State: a2a.TaskStateWorking, Timestamp: time.Now()}, false)); err != nil {
		return err
	}
	return queue.Enqueue(ctx, a2a.NewStatusUpdateEvent(reqCtx.TaskID, reqCtx.ContextID,
		a2a.TaskStatus{State: a2a.TaskStateCompleted, Message: a2a.NewTextMessage("agent", "done"), Timestamp: time.Now()}, true))
}

func (echoExecutor) Cancel(ctx context.Context, reqCtx *a2a.RequestContext, queue a2a.EventQueue) error {
	return queue.Enqueue(ctx, a2a.NewStatusUpdateEvent(reqCtx.TaskID, reqCtx.ContextID,
		a2a.TaskStatus{State: a2a.TaskStateCanceled, Timestamp: time.Now()}, true))
}

func (echoExecutor) Initialize(ctx context.Context) error { return nil }
func (echoExecutor) Cleanup(ctx context.Context) error    { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	tm := taskmanager.New(taskmanager.WithStore(memstore.New()))
	queues := queuemanager.New(0)
	notifier := push.New(0)

	tel, err := telemetry.Init(context.Background(), telemetry.Config{Enabled: false})
	require.NoError(t, err)

	router := server.New(echoExecutor{}, tm, queues, notifier, tel, 0)
	card := &a2a.AgentCard{Name: "test-agent", URL: "http://localhost", Version: "0.0.0"}
	return New(router, card)
}

func TestHandleAgentCard(t *testing.T) {
	s := newTestServer(t)
	s.Mount()

	req := httptest.NewRequest(http.MethodGet, "/.well-known/agent.json", nil)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var card a2a.AgentCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	require.Equal(t, "test-agent", card.Name)
}

func TestRPCUnaryMessageSend(t *testing.T) {
	s := newTestServer(t)

	body, err := json.Marshal(jsonrpc.Request{
		Message: jsonrpc.Message{JSONRPC: "2.0", MessageIdentifier: jsonrpc.MessageIdentifier{ID: json.RawMessage(`1`)}},
		Method:  server.MethodMessageSend,
		Params:  marshal(t, a2a.MessageSendParams{Message: *a2a.NewTextMessage("user", "hi")}),
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(string(body)))
	s.handleRPC(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)

	var task a2a.Task
	require.NoError(t, json.Unmarshal(marshalAny(t, resp.Result), &task))
	require.Equal(t, a2a.TaskStateCompleted, task.Status.State)
}

func TestRPCUnknownMethodReturnsJSONRPCError(t *testing.T) {
	s := newTestServer(t)

	body := `{"jsonrpc":"2.0","id":1,"method":"tasks/teleport","params":{}}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	s.handleRPC(w, r)

	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, rpcerrors.ErrMethodNotFound.Code, resp.Error.Code)
}

func TestRPCStreamRelaysSSEFrames(t *testing.T) {
	s := newTestServer(t)

	body, err := json.Marshal(jsonrpc.Request{
		Message: jsonrpc.Message{JSONRPC: "2.0", MessageIdentifier: jsonrpc.MessageIdentifier{ID: json.RawMessage(`2`)}},
		Method:  server.MethodMessageStream,
		Params:  marshal(t, a2a.MessageSendParams{Message: *a2a.NewTextMessage("user", "stream please")}),
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(string(body)))
	s.handleRPC(w, r)

	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	scanner := bufio.NewScanner(w.Body)
	var frames int
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "data: ") {
			frames++
		}
	}
	require.Equal(t, 2, frames)
}

func marshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func marshalAny(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
