// Package transport mounts the Request Handler / Router (internal/server)
// over HTTP, grounded on the teacher's pkg/service.A2AServer: the same
// fiber.New config (AppName, ServerHeader, StreamRequestBody), the same
// logger+healthcheck middleware pair, and the same
// GET "/" / GET "/.well-known/agent.json" routes.
//
// The teacher serves streaming methods by broadcasting onto a long-lived
// GET /events SSE connection decoupled from the POST /rpc call that
// started them. This engine's message/stream and tasks/resubscribe are
// themselves POST-then-stream-the-response methods (§4.7, §6) — the SSE
// frames belong on the same connection as the request that asked for
// them, the way sammcj/go-a2a's handleTaskSendSubscribe/handleSSE pair
// writes directly to the request's http.ResponseWriter. POST /rpc is
// therefore mounted as a raw net/http handler via the teacher's
// fiberadaptor.HTTPHandler bridge (the same bridge the teacher uses for
// /events) rather than as a fiber.Ctx route, so a streaming method can
// reach the underlying http.Flusher.
package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/theapemachine/a2a-engine/internal/server"
	"github.com/theapemachine/a2a-engine/pkg/a2a"
	rpcerrors "github.com/theapemachine/a2a-engine/pkg/errors"
	"github.com/theapemachine/a2a-engine/pkg/jsonrpc"
)

// Server is the engine's HTTP front door: one fiber.App mounting the
// discovery document, a health probe, and the unified JSON-RPC endpoint
// that serves both unary and SSE-streaming A2A methods.
type Server struct {
	app     *fiber.App
	router  *server.Router
	card    *a2a.AgentCard
	mounted bool
}

// New builds a Server over an already-wired Router and the AgentCard it
// should publish at the well-known discovery path.
func New(router *server.Router, card *a2a.AgentCard) *Server {
	return &Server{
		app: fiber.New(fiber.Config{
			AppName:           card.Name,
			ServerHeader:      "A2A-Engine",
			StreamRequestBody: true,
		}),
		router: router,
		card:   card,
	}
}

// App exposes the underlying fiber.App, mainly so tests can drive routes
// with fiber's own test helpers without going through a real listener.
func (s *Server) App() *fiber.App {
	return s.app
}

// Mount registers every route. Separated from New so tests can mount
// against a Server built with custom fiber.Config in the future without
// duplicating route wiring.
func (s *Server) Mount() {
	if s.mounted {
		return
	}
	s.mounted = true

	s.app.Use(logger.New(logger.Config{
		// the RPC endpoint carries its own per-call tracing via telemetry;
		// the access log would otherwise fire once per SSE chunk.
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/rpc"
		},
	}), healthcheck.NewHealthChecker())

	s.app.Get("/", s.handleRoot)
	s.app.Get("/.well-known/agent.json", s.handleAgentCard)
	s.app.Post("/rpc", fiberadaptor.HTTPHandler(http.HandlerFunc(s.handleRPC)))
}

// Listen mounts the routes (if not already mounted) and starts serving on
// addr.
func (s *Server) Listen(addr string) error {
	s.Mount()
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) handleRoot(ctx fiber.Ctx) error {
	return ctx.SendString("OK")
}

func (s *Server) handleAgentCard(ctx fiber.Ctx) error {
	return ctx.JSON(s.card)
}

// handleRPC is the single entry point for every JSON-RPC method (§4.7).
// It is a raw net/http handler, not a fiber.Ctx route, so a streaming
// method can take over w as an SSE connection via its http.Flusher.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var request jsonrpc.Request
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, nil, rpcerrors.ErrParseError.WithMessagef("invalid request body: %v", err))
		return
	}

	if s.router.IsStreaming(request.Method) {
		s.handleStream(w, r, &request)
		return
	}

	result, rpcErr := s.router.Dispatch(r.Context(), nil, request.Method, request.Params)
	if rpcErr != nil {
		writeError(w, request.ID, rpcErr)
		return
	}
	writeResult(w, request.ID, result)
}

// handleStream serves message/stream and tasks/resubscribe by writing SSE
// frames directly onto r's connection as the Router folds events, the way
// sammcj/go-a2a's HandleSSE streams a single POST response rather than
// broadcasting onto a separate long-lived connection.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, request *jsonrpc.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, request.ID, rpcerrors.ErrInternal.WithMessagef("streaming not supported by this connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	bw := bufio.NewWriter(w)
	emit := func(event a2a.Event) error {
		if _, err := fmt.Fprintf(bw, "data: %s\n\n", marshalEvent(event)); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	rpcErr := s.router.Stream(r.Context(), nil, request.Method, request.Params, emit)
	if rpcErr != nil {
		log.Error("rpc stream ended with error", "method", request.Method, "error", rpcErr)
		_ = emit(a2a.NewMessageEvent(a2a.NewTextMessage("engine", rpcErr.Error())))
	}
}

func marshalEvent(event a2a.Event) []byte {
	b, err := json.Marshal(event)
	if err != nil {
		log.Error("failed to marshal stream event", "error", err)
		return []byte(`{"kind":"status-update"}`)
	}
	return b
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	writeResponse(w, http.StatusOK, jsonrpc.NewResult(id, result))
}

func writeError(w http.ResponseWriter, id json.RawMessage, rpcErr *rpcerrors.RpcError) {
	writeResponse(w, statusForError(rpcErr), jsonrpc.NewError(id, rpcErr))
}

func writeResponse(w http.ResponseWriter, status int, resp jsonrpc.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("failed to encode rpc response", "error", err)
	}
}

// statusForError maps an RpcError to an HTTP status. The JSON-RPC error
// code in the body is authoritative; the HTTP status is advisory context
// for intermediaries that don't parse JSON-RPC.
func statusForError(rpcErr *rpcerrors.RpcError) int {
	switch rpcErr.Code {
	case rpcerrors.ErrParseError.Code, rpcerrors.ErrInvalidRequest.Code, rpcerrors.ErrInvalidParams.Code:
		return http.StatusBadRequest
	case rpcerrors.ErrMethodNotFound.Code, rpcerrors.ErrTaskNotFound.Code:
		return http.StatusNotFound
	case rpcerrors.ErrTaskNotCancelable.Code, rpcerrors.ErrUnsupportedOperation.Code, rpcerrors.ErrPushNotificationNotSupported.Code:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
