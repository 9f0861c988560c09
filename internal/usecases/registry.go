package usecases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/logging"
)

// ErrRegistryClosed is returned by CreateGateway after Close.
var ErrRegistryClosed = errors.New("gateway registry is closed")

// InvokerFactory builds the invoker for a new gateway owned by owner.
type InvokerFactory func(ctx context.Context, owner string) (domain.Invoker, error)

// Registry creates gateway sessions and tracks which client owns each one.
// A gateway's invoker is owned by the registry and closed, when it
// implements io.Closer, once the gateway is disposed.
type Registry struct {
	factory     InvokerFactory
	logger      *logging.Logger
	sessionOpts []SessionOption

	mu       sync.RWMutex
	closed   bool
	sessions map[string]*Session
	owners   map[string]map[string]struct{}
	ownerOf  map[string]string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the registry logger. Sessions log through a
// child of it.
func WithRegistryLogger(logger *logging.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSessionOptions adds options applied to every session the registry
// creates. A dispose callback given here is replaced by the registry's own.
func WithSessionOptions(opts ...SessionOption) RegistryOption {
	return func(r *Registry) {
		r.sessionOpts = append(r.sessionOpts, opts...)
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(factory InvokerFactory, opts ...RegistryOption) *Registry {
	r := &Registry{
		factory:  factory,
		logger:   logging.Default(),
		sessions: make(map[string]*Session),
		owners:   make(map[string]map[string]struct{}),
		ownerOf:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateGateway builds a fresh invoker and a session on top of it and
// records the session against owner.
func (r *Registry) CreateGateway(ctx context.Context, owner string) (*Session, error) {
	if owner == "" {
		return nil, domain.NewValidationError("owner", "cannot be empty")
	}

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, ErrRegistryClosed
	}

	invoker, err := r.factory(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("create invoker for %s: %w", owner, err)
	}

	id := uuid.New().String()
	opts := make([]SessionOption, 0, len(r.sessionOpts)+2)
	opts = append(opts, WithLogger(r.logger.Named("session")))
	opts = append(opts, r.sessionOpts...)
	opts = append(opts, WithDisposeCallback(func() {
		r.forget(id)
		closeInvoker(r.logger, id, invoker)
	}))
	session := NewSession(id, invoker, opts...)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		session.Dispose()
		return nil, ErrRegistryClosed
	}
	r.sessions[id] = session
	r.ownerOf[id] = owner
	if r.owners[owner] == nil {
		r.owners[owner] = make(map[string]struct{})
	}
	r.owners[owner][id] = struct{}{}
	r.mu.Unlock()

	r.logger.Info("gateway created", logging.Fields{
		"gateway_id": id,
		"owner":      owner,
	})
	return session, nil
}

// Lookup returns the gateway with the given id.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

// DisposeGateway disposes one gateway.
func (r *Registry) DisposeGateway(id string) error {
	session, ok := r.Lookup(id)
	if !ok {
		return domain.NewSessionNotFoundError(id)
	}
	session.Dispose()
	return nil
}

// DisposeGatewaysForClient disposes every gateway owned by owner and returns
// how many there were.
func (r *Registry) DisposeGatewaysForClient(owner string) int {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.owners[owner]))
	for id := range r.owners[owner] {
		sessions = append(sessions, r.sessions[id])
	}
	r.mu.RUnlock()

	for _, session := range sessions {
		session.Dispose()
	}

	if len(sessions) > 0 {
		r.logger.Info("client gateways disposed", logging.Fields{
			"owner": owner,
			"count": len(sessions),
		})
	}
	return len(sessions)
}

// Count returns the number of live gateways.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ClientCount returns the number of owners with at least one live gateway.
func (r *Registry) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}

// Close disposes every gateway and rejects new ones.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	r.mu.Unlock()

	for _, session := range sessions {
		session.Dispose()
	}
}

func (r *Registry) forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	owner, ok := r.ownerOf[id]
	if !ok {
		return
	}
	delete(r.ownerOf, id)
	delete(r.owners[owner], id)
	if len(r.owners[owner]) == 0 {
		delete(r.owners, owner)
	}
}

func closeInvoker(logger *logging.Logger, id string, invoker domain.Invoker) {
	closer, ok := invoker.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn("failed to close invoker", logging.Fields{
			"gateway_id": id,
			"error":      err,
		})
	}
}
