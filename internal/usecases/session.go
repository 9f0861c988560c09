// Package usecases implements the gateway session and the registry that
// manages gateway lifecycles.
package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
	"github.com/FreePeak/golang-mcp-gateway/internal/domain/gatewayuri"
	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/logging"
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/server"
)

// DefaultServerInfo is advertised in the initialize result unless overridden.
var DefaultServerInfo = shared.ServerInfo{
	Name:    "mcp-gateway",
	Version: "0.1.0",
}

// Session is one gateway: a JSON-RPC endpoint in front of an invoker that
// enforces the initialize handshake and fans change notifications out to
// attached SSE streams.
type Session struct {
	id           string
	invoker      domain.Invoker
	streams      domain.ConnectionManager
	logger       *logging.Logger
	info         shared.ServerInfo
	instructions string
	streamBuffer int
	onDispose    func()

	state          atomic.Int32
	disposed       atomic.Bool
	disposeOnce    sync.Once
	done           chan struct{}
	unsubscribers  []func()
	resourceEvents bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *logging.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServerInfo sets the implementation info returned by initialize.
func WithServerInfo(info shared.ServerInfo) SessionOption {
	return func(s *Session) {
		s.info = info
	}
}

// WithInstructions sets the instructions returned by initialize.
func WithInstructions(instructions string) SessionOption {
	return func(s *Session) {
		s.instructions = instructions
	}
}

// WithDisposeCallback sets the function invoked once when the session is disposed.
func WithDisposeCallback(fn func()) SessionOption {
	return func(s *Session) {
		s.onDispose = fn
	}
}

// WithStreamBuffer sets how many frames each SSE stream may queue.
func WithStreamBuffer(n int) SessionOption {
	return func(s *Session) {
		s.streamBuffer = n
	}
}

// WithConnectionManager replaces the SSE connection manager.
func WithConnectionManager(cm domain.ConnectionManager) SessionOption {
	return func(s *Session) {
		if cm != nil {
			s.streams = cm
		}
	}
}

// NewSession creates a session over invoker and subscribes to its change
// events. The invoker is borrowed, not owned.
func NewSession(id string, invoker domain.Invoker, opts ...SessionOption) *Session {
	s := &Session{
		id:           id,
		invoker:      invoker,
		logger:       logging.Default(),
		info:         DefaultServerInfo,
		streamBuffer: server.DefaultStreamBuffer,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logging.Fields{"gateway_id": id})
	if s.streams == nil {
		s.streams = server.NewSSEConnectionManager(s.logger)
	}

	s.unsubscribers = append(s.unsubscribers, invoker.OnDidChangeTools(func() {
		s.broadcast(shared.MethodNotificationToolsListChanged)
	}))
	if notifier, ok := invoker.(domain.ResourceChangeNotifier); ok {
		s.resourceEvents = true
		s.unsubscribers = append(s.unsubscribers, notifier.OnDidChangeResources(func() {
			s.broadcast(shared.MethodNotificationResourcesListChanged)
		}))
	}

	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// State returns the protocol state.
func (s *Session) State() domain.SessionState {
	return domain.SessionState(s.state.Load())
}

// IsDisposed reports whether Dispose has been called.
func (s *Session) IsDisposed() bool {
	return s.disposed.Load()
}

// Done is closed when the session is disposed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// StreamCount returns the number of attached SSE streams.
func (s *Session) StreamCount() int {
	return s.streams.Count()
}

// HandleMessage parses a raw JSON-RPC message and handles it.
func (s *Session) HandleMessage(ctx context.Context, raw json.RawMessage) []shared.JSONRPCResponse {
	if !json.Valid(raw) {
		return []shared.JSONRPCResponse{shared.NewErrorResponse(nil, shared.ParseError, "")}
	}

	var req shared.JSONRPCRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return []shared.JSONRPCResponse{shared.NewErrorResponse(nil, shared.InvalidRequest, "")}
	}
	if req.JSONRPC != shared.JSONRPCVersion || req.Method == "" {
		return []shared.JSONRPCResponse{shared.NewErrorResponse(req.ID, shared.InvalidRequest, "")}
	}

	return s.HandleIncoming(ctx, req)
}

// HandleIncoming handles one JSON-RPC message. Requests produce exactly one
// response and notifications produce none.
func (s *Session) HandleIncoming(ctx context.Context, req shared.JSONRPCRequest) []shared.JSONRPCResponse {
	logging.LogJSONRPCRequest(s.logger, req)

	resp, ok := s.dispatch(ctx, req)
	if !ok {
		return nil
	}
	logging.LogJSONRPCResponse(s.logger, resp)
	return []shared.JSONRPCResponse{resp}
}

func (s *Session) dispatch(ctx context.Context, req shared.JSONRPCRequest) (shared.JSONRPCResponse, bool) {
	if s.disposed.Load() {
		if req.IsNotification() {
			return shared.JSONRPCResponse{}, false
		}
		return shared.NewErrorResponse(req.ID, shared.InternalError, "Session disposed"), true
	}

	switch req.Method {
	case shared.MethodNotificationInitialized:
		if s.state.CompareAndSwap(int32(domain.StateUninitialized), int32(domain.StateInitialized)) {
			s.logger.Debug("session initialized")
		}
		return shared.JSONRPCResponse{}, false
	case shared.MethodInitialize:
		if req.IsNotification() {
			return shared.JSONRPCResponse{}, false
		}
		return s.call(ctx, req, s.handleInitialize), true
	}

	if req.IsNotification() {
		return shared.JSONRPCResponse{}, false
	}

	if s.State() != domain.StateInitialized {
		return shared.NewErrorResponse(req.ID, shared.InvalidRequest, "Session not initialized"), true
	}

	var handle requestHandler
	switch req.Method {
	case shared.MethodPing:
		handle = s.handlePing
	case shared.MethodListTools:
		handle = s.handleListTools
	case shared.MethodCallTool:
		handle = s.handleCallTool
	case shared.MethodListResources:
		handle = s.handleListResources
	case shared.MethodReadResource:
		handle = s.handleReadResource
	case shared.MethodListResourceTemplates:
		handle = s.handleListResourceTemplates
	default:
		return shared.NewErrorResponse(req.ID, shared.MethodNotFound, ""), true
	}
	return s.call(ctx, req, handle), true
}

type requestHandler func(ctx context.Context, req shared.JSONRPCRequest) (interface{}, error)

func (s *Session) call(ctx context.Context, req shared.JSONRPCRequest, handle requestHandler) shared.JSONRPCResponse {
	result, err := handle(ctx, req)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	return shared.NewResponse(req.ID, result)
}

// invalidParamsError marks a request whose params could not be used.
type invalidParamsError struct {
	err error
}

func (e *invalidParamsError) Error() string { return e.err.Error() }
func (e *invalidParamsError) Unwrap() error { return e.err }

func errorResponse(id interface{}, err error) shared.JSONRPCResponse {
	var rpcErr *shared.JSONRPCError
	if errors.As(err, &rpcErr) {
		return shared.JSONRPCResponse{JSONRPC: shared.JSONRPCVersion, ID: id, Error: rpcErr}
	}

	var paramsErr *invalidParamsError
	if errors.As(err, &paramsErr) || errors.Is(err, gatewayuri.ErrMalformedURI) || errors.Is(err, domain.ErrInvalidInput) {
		return shared.NewErrorResponse(id, shared.InvalidParams, err.Error())
	}

	return shared.NewErrorResponse(id, shared.InternalError, err.Error())
}

func decodeParams(raw json.RawMessage, target interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return &invalidParamsError{err: fmt.Errorf("invalid params: %w", err)}
	}
	return nil
}

func (s *Session) handleInitialize(_ context.Context, req shared.JSONRPCRequest) (interface{}, error) {
	var params shared.InitializeParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}

	s.logger.Info("client initializing", logging.Fields{
		"client":           params.ClientInfo.Name,
		"client_version":   params.ClientInfo.Version,
		"protocol_version": params.ProtocolVersion,
	})

	return shared.InitializeResult{
		ProtocolVersion: shared.NegotiateProtocolVersion(params.ProtocolVersion),
		Capabilities: shared.Capabilities{
			Tools:     &shared.ToolsCapability{ListChanged: true},
			Resources: &shared.ResourcesCapability{ListChanged: s.resourceEvents},
		},
		ServerInfo:   s.info,
		Instructions: s.instructions,
	}, nil
}

func (s *Session) handlePing(context.Context, shared.JSONRPCRequest) (interface{}, error) {
	return struct{}{}, nil
}

func (s *Session) handleListTools(ctx context.Context, _ shared.JSONRPCRequest) (interface{}, error) {
	tools, err := s.invoker.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	if tools == nil {
		tools = []shared.Tool{}
	}
	return shared.ListToolsResult{Tools: tools}, nil
}

func (s *Session) handleCallTool(ctx context.Context, req shared.JSONRPCRequest) (interface{}, error) {
	var params shared.CallToolParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	if params.Name == "" {
		return nil, &invalidParamsError{err: errors.New("tool name is required")}
	}

	res, err := s.invoker.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return nil, err
	}
	if res == nil || res.Result == nil {
		return shared.CallToolResult{Content: []shared.Content{}}, nil
	}
	return encodeToolResult(*res.Result, res.ServerIndex), nil
}

func (s *Session) handleListResources(ctx context.Context, _ shared.JSONRPCRequest) (interface{}, error) {
	groups, err := s.invoker.ListResources(ctx)
	if err != nil {
		return nil, err
	}

	resources := make([]shared.Resource, 0)
	for _, group := range groups {
		for _, r := range group.Resources {
			r.URI = gatewayuri.Encode(r.URI, group.ServerIndex)
			resources = append(resources, r)
		}
	}
	return shared.ListResourcesResult{Resources: resources}, nil
}

func (s *Session) handleReadResource(ctx context.Context, req shared.JSONRPCRequest) (interface{}, error) {
	var params shared.ReadResourceParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}

	ref, err := gatewayuri.Decode(params.URI)
	if err != nil {
		return nil, err
	}

	res, err := s.invoker.ReadResource(ctx, ref.ServerIndex, ref.URI)
	if err != nil {
		return nil, err
	}

	contents := make([]shared.ResourceContents, 0)
	if res != nil {
		for _, c := range res.Contents {
			c.URI = gatewayuri.Encode(c.URI, ref.ServerIndex)
			contents = append(contents, c)
		}
	}
	return shared.ReadResourceResult{Contents: contents}, nil
}

func (s *Session) handleListResourceTemplates(ctx context.Context, _ shared.JSONRPCRequest) (interface{}, error) {
	groups, err := s.invoker.ListResourceTemplates(ctx)
	if err != nil {
		return nil, err
	}

	templates := make([]shared.ResourceTemplate, 0)
	for _, group := range groups {
		for _, t := range group.Templates {
			t.URITemplate = gatewayuri.EncodeTemplate(t.URITemplate, group.ServerIndex)
			templates = append(templates, t)
		}
	}
	return shared.ListResourceTemplatesResult{ResourceTemplates: templates}, nil
}

// encodeToolResult namespaces every resource URI in a tool result with the
// index of the server that produced it. The input is not modified.
func encodeToolResult(result shared.CallToolResult, serverIndex int) shared.CallToolResult {
	content := make([]shared.Content, 0, len(result.Content))
	for _, c := range result.Content {
		switch {
		case c.Type == shared.ContentTypeResourceLink && c.URI != "":
			c.URI = gatewayuri.Encode(c.URI, serverIndex)
		case c.Resource != nil:
			embedded := *c.Resource
			embedded.URI = gatewayuri.Encode(embedded.URI, serverIndex)
			c.Resource = &embedded
		}
		content = append(content, c)
	}
	result.Content = content
	return result
}

func (s *Session) broadcast(method string) {
	if s.disposed.Load() {
		return
	}

	delivered, err := s.streams.Broadcast(shared.NewNotification(method))
	if err != nil {
		s.logger.Warn("failed to broadcast notification", logging.Fields{
			"method": method,
			"error":  err,
		})
		return
	}
	s.logger.Debug("notification broadcast", logging.Fields{
		"method":    method,
		"delivered": delivered,
		"streams":   s.streams.Count(),
	})
}

// AttachSSEClient turns the response into an SSE stream that receives this
// session's notifications. It blocks until the client goes away, the stream
// fails, or the session is disposed. Notifications raised before the stream
// was attached are not replayed.
func (s *Session) AttachSSEClient(w http.ResponseWriter, r *http.Request) error {
	stream, err := server.NewSSEStream(w, s.streamBuffer)
	if err != nil {
		return err
	}
	if err := server.Open(w); err != nil {
		return err
	}

	if s.disposed.Load() {
		stream.Close()
		return domain.ErrSessionDisposed
	}
	s.streams.Add(stream)
	defer s.streams.Remove(stream.ID())

	// Dispose may have run CloseAll between the check above and Add.
	if s.disposed.Load() {
		stream.Close()
		return domain.ErrSessionDisposed
	}

	log := s.logger.With(logging.Fields{"stream_id": stream.ID()})
	log.Debug("sse client attached")

	err = stream.Serve(r.Context())
	log.Debug("sse client detached", logging.Fields{"error": err})
	return err
}

// Dispose tears the session down: it stops listening to the invoker, closes
// every SSE stream and runs the dispose callback. Only the first call has
// any effect.
func (s *Session) Dispose() {
	s.disposeOnce.Do(func() {
		s.disposed.Store(true)

		for _, off := range s.unsubscribers {
			off()
		}
		s.streams.CloseAll()
		close(s.done)

		if s.onDispose != nil {
			s.onDispose()
		}
		s.logger.Info("gateway disposed")
	})
}
