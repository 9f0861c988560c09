// Package rest provides the HTTP interface of the gateway.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/rs/cors"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/logging"
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/server"
	"github.com/FreePeak/golang-mcp-gateway/internal/usecases"
)

const (
	// ClientIDHeader identifies the client that owns a new gateway.
	ClientIDHeader = "Mcp-Client-Id"

	// maxMessageBytes bounds the body of a message POST.
	maxMessageBytes = 4 << 20
)

var (
	jsonMediaType         = contenttype.NewMediaType("application/json")
	eventStreamMediaType  = contenttype.NewMediaType("text/event-stream")
	eventStreamMediaTypes = []contenttype.MediaType{eventStreamMediaType}
)

// Option configures a GatewayServer.
type Option func(*GatewayServer)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *GatewayServer) {
		s.httpServer.Addr = addr
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *GatewayServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAllowedOrigins enables CORS for the given origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *GatewayServer) {
		s.allowedOrigins = append(s.allowedOrigins, origins...)
	}
}

// WithServerInfo sets the name and version reported by /status.
func WithServerInfo(info shared.ServerInfo) Option {
	return func(s *GatewayServer) {
		s.info = info
	}
}

// GatewayServer exposes the gateway registry over HTTP.
type GatewayServer struct {
	registry       *usecases.Registry
	logger         *logging.Logger
	info           shared.ServerInfo
	allowedOrigins []string
	httpServer     *http.Server
	connections    *ConnectionChannel
	clientStreams  domain.ConnectionManager
	startedAt      time.Time
}

// NewGatewayServer creates the HTTP server for registry.
func NewGatewayServer(registry *usecases.Registry, opts ...Option) *GatewayServer {
	s := &GatewayServer{
		registry:   registry,
		logger:     logging.Default(),
		info:       usecases.DefaultServerInfo,
		httpServer: &http.Server{Addr: ":8080"},
		startedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.connections = NewConnectionChannel(func(client string) {
		n := registry.DisposeGatewaysForClient(client)
		s.logger.Info("client disconnected", logging.Fields{"client": client, "disposed": n})
	})
	s.clientStreams = server.NewSSEConnectionManager(s.logger.Named("clients"))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /gateways", s.handleCreateGateway)
	mux.HandleFunc("DELETE /gateways/{id}", s.handleDisposeGateway)
	mux.HandleFunc("POST /gateways/{id}/message", s.handleMessage)
	mux.HandleFunc("GET /gateways/{id}/sse", s.handleSSE)
	mux.HandleFunc("GET /clients/{client}/connect", s.handleClientConnect)
	mux.HandleFunc("GET /status", s.handleStatus)

	var handler http.Handler = mux
	if len(s.allowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: s.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", "Accept", ClientIDHeader},
			ExposedHeaders: []string{"X-Request-Id"},
		}).Handler(handler)
	}
	s.httpServer.Handler = logging.Middleware(s.logger)(handler)

	return s
}

// Handler returns the root HTTP handler.
func (s *GatewayServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured listen address.
func (s *GatewayServer) Addr() string {
	return s.httpServer.Addr
}

// Connections returns the client connection channel.
func (s *GatewayServer) Connections() *ConnectionChannel {
	return s.connections
}

// Start listens and serves until Stop is called.
func (s *GatewayServer) Start() error {
	logging.LogStartup(s.logger, s.info.Name, s.info.Version, s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop disposes every gateway, ends client connections and shuts the HTTP
// server down.
func (s *GatewayServer) Stop(ctx context.Context) error {
	s.registry.Close()
	s.clientStreams.CloseAll()
	return s.httpServer.Shutdown(ctx)
}

func (s *GatewayServer) handleCreateGateway(w http.ResponseWriter, r *http.Request) {
	owner := r.Header.Get(ClientIDHeader)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing "+ClientIDHeader+" header")
		return
	}

	session, err := s.registry.CreateGateway(r.Context(), owner)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, usecases.ErrRegistryClosed):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			logging.GetLogger(r.Context()).Error("create gateway failed", logging.Fields{"owner": owner, "error": err})
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":              session.ID(),
		"messageEndpoint": "/gateways/" + session.ID() + "/message",
		"sseEndpoint":     "/gateways/" + session.ID() + "/sse",
	})
}

func (s *GatewayServer) handleDisposeGateway(w http.ResponseWriter, r *http.Request) {
	err := s.registry.DisposeGateway(r.PathValue("id"))
	var notFound *domain.SessionNotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *GatewayServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookup(w, r)
	if !ok {
		return
	}

	if r.Header.Get("Content-Type") != "" {
		ctype, err := contenttype.GetMediaType(r)
		if err != nil || !ctype.Matches(jsonMediaType) {
			writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "message too large")
		return
	}

	responses := session.HandleMessage(r.Context(), body)
	if len(responses) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, responses[0])
}

func (s *GatewayServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
		writeError(w, http.StatusNotAcceptable, "client must accept text/event-stream")
		return
	}
	session, ok := s.lookup(w, r)
	if !ok {
		return
	}

	err := session.AttachSSEClient(w, r)
	if errors.Is(err, server.ErrResponseWriterNotFlusher) {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	if err != nil {
		logging.GetLogger(r.Context()).Debug("sse stream ended", logging.Fields{"gateway_id": session.ID(), "error": err})
	}
}

// handleClientConnect holds a long-lived stream open for a client. The
// client's gateways are disposed once its last stream ends.
func (s *GatewayServer) handleClientConnect(w http.ResponseWriter, r *http.Request) {
	if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
		writeError(w, http.StatusNotAcceptable, "client must accept text/event-stream")
		return
	}
	client := r.PathValue("client")

	stream, err := server.NewSSEStream(w, 1)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	if err := server.Open(w); err != nil {
		return
	}

	release := s.connections.Connect(client)
	defer release()
	s.clientStreams.Add(stream)
	defer s.clientStreams.Remove(stream.ID())

	log := logging.GetLogger(r.Context()).With(logging.Fields{"client": client})
	log.Debug("client connected")
	_ = stream.Serve(r.Context())
	log.Debug("client connection closed")
}

func (s *GatewayServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"name":        s.info.Name,
		"version":     s.info.Version,
		"protocol":    shared.LatestProtocolVersion,
		"gateways":    s.registry.Count(),
		"clients":     s.registry.ClientCount(),
		"connections": s.connections.Clients(),
		"uptime":      time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *GatewayServer) lookup(w http.ResponseWriter, r *http.Request) (*usecases.Session, bool) {
	id := r.PathValue("id")
	session, ok := s.registry.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, domain.NewSessionNotFoundError(id).Error())
		return nil, false
	}
	return session, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
