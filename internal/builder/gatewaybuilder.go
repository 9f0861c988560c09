package builder

import (
	"context"
	"errors"

	"github.com/FreePeak/golang-mcp-gateway/internal/config"
	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/logging"
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/mcpclient"
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/server"
	"github.com/FreePeak/golang-mcp-gateway/internal/interfaces/rest"
	"github.com/FreePeak/golang-mcp-gateway/internal/usecases"
)

// ErrMixedBackends is returned when both remote backends and local servers
// are configured.
var ErrMixedBackends = errors.New("remote backends and local servers cannot be combined")

// GatewayBuilder implements the Builder pattern for creating gateways
type GatewayBuilder struct {
	name           string
	version        string
	instructions   string
	address        string
	allowedOrigins []string
	streamBuffer   int
	logger         *logging.Logger
	backends       []mcpclient.BackendConfig
	localServers   []*server.InMemoryServer
	invokerFactory usecases.InvokerFactory
}

// NewGatewayBuilder creates a new gateway builder with default values
func NewGatewayBuilder() *GatewayBuilder {
	return &GatewayBuilder{
		name:         usecases.DefaultServerInfo.Name,
		version:      usecases.DefaultServerInfo.Version,
		address:      config.DefaultAddr,
		streamBuffer: server.DefaultStreamBuffer,
	}
}

// WithName sets the name announced in initialize results
func (b *GatewayBuilder) WithName(name string) *GatewayBuilder {
	b.name = name
	return b
}

// WithVersion sets the version announced in initialize results
func (b *GatewayBuilder) WithVersion(version string) *GatewayBuilder {
	b.version = version
	return b
}

// WithInstructions sets the instructions returned by initialize
func (b *GatewayBuilder) WithInstructions(instructions string) *GatewayBuilder {
	b.instructions = instructions
	return b
}

// WithAddress sets the HTTP listen address
func (b *GatewayBuilder) WithAddress(address string) *GatewayBuilder {
	b.address = address
	return b
}

// WithAllowedOrigins enables CORS for origins
func (b *GatewayBuilder) WithAllowedOrigins(origins ...string) *GatewayBuilder {
	b.allowedOrigins = append(b.allowedOrigins, origins...)
	return b
}

// WithStreamBuffer sets the per-stream SSE queue size
func (b *GatewayBuilder) WithStreamBuffer(n int) *GatewayBuilder {
	b.streamBuffer = n
	return b
}

// WithLogger sets the logger shared by every component
func (b *GatewayBuilder) WithLogger(logger *logging.Logger) *GatewayBuilder {
	b.logger = logger
	return b
}

// WithInvokerFactory replaces the invoker construction entirely
func (b *GatewayBuilder) WithInvokerFactory(factory usecases.InvokerFactory) *GatewayBuilder {
	b.invokerFactory = factory
	return b
}

// AddBackend adds a downstream MCP server. Backends are indexed in the
// order they are added.
func (b *GatewayBuilder) AddBackend(backend mcpclient.BackendConfig) *GatewayBuilder {
	b.backends = append(b.backends, backend)
	return b
}

// AddLocalServer adds an in-process server. Local servers are indexed in the
// order they are added.
func (b *GatewayBuilder) AddLocalServer(s *server.InMemoryServer) *GatewayBuilder {
	b.localServers = append(b.localServers, s)
	return b
}

// WithConfig applies a loaded configuration
func (b *GatewayBuilder) WithConfig(cfg *config.Config) *GatewayBuilder {
	b.address = cfg.Server.Addr
	b.allowedOrigins = append(b.allowedOrigins, cfg.Server.AllowedOrigins...)
	if cfg.Gateway.Name != "" {
		b.name = cfg.Gateway.Name
	}
	if cfg.Gateway.Version != "" {
		b.version = cfg.Gateway.Version
	}
	if cfg.Gateway.Instructions != "" {
		b.instructions = cfg.Gateway.Instructions
	}
	if cfg.Gateway.StreamBuffer > 0 {
		b.streamBuffer = cfg.Gateway.StreamBuffer
	}
	for _, backend := range cfg.Backends {
		b.AddBackend(mcpclient.BackendConfig{
			Name:       backend.Name,
			Transport:  backend.Transport,
			Command:    backend.Command,
			Args:       backend.Args,
			Env:        backend.Env,
			Endpoint:   backend.Endpoint,
			Headers:    backend.Headers,
			MaxRetries: backend.MaxRetries,
			Timeout:    backend.Timeout,
		})
	}
	return b
}

func (b *GatewayBuilder) log() *logging.Logger {
	if b.logger != nil {
		return b.logger
	}
	return logging.Default()
}

// ServerInfo returns the identity the gateway announces
func (b *GatewayBuilder) ServerInfo() shared.ServerInfo {
	return shared.ServerInfo{Name: b.name, Version: b.version}
}

// BuildInvokerFactory returns the factory that gives every new gateway its
// own invoker. Remote backends get fresh client sessions per gateway; local
// servers are shared and only the aggregation is per gateway.
func (b *GatewayBuilder) BuildInvokerFactory() (usecases.InvokerFactory, error) {
	if b.invokerFactory != nil {
		return b.invokerFactory, nil
	}
	if len(b.backends) > 0 && len(b.localServers) > 0 {
		return nil, ErrMixedBackends
	}

	if len(b.localServers) > 0 {
		servers := append([]*server.InMemoryServer(nil), b.localServers...)
		return func(context.Context, string) (domain.Invoker, error) {
			return server.NewInMemoryInvoker(servers...), nil
		}, nil
	}

	backends := append([]mcpclient.BackendConfig(nil), b.backends...)
	for _, backend := range backends {
		if err := backend.Validate(); err != nil {
			return nil, err
		}
	}
	logger := b.log().Named("mcpclient")
	name, version := b.name, b.version
	return func(ctx context.Context, owner string) (domain.Invoker, error) {
		return mcpclient.Dial(ctx, backends,
			mcpclient.WithLogger(logger.With(logging.Fields{"owner": owner})),
			mcpclient.WithClientInfo(name, version),
		)
	}, nil
}

// BuildRegistry builds the gateway registry
func (b *GatewayBuilder) BuildRegistry() (*usecases.Registry, error) {
	factory, err := b.BuildInvokerFactory()
	if err != nil {
		return nil, err
	}
	return usecases.NewRegistry(factory,
		usecases.WithRegistryLogger(b.log().Named("registry")),
		usecases.WithSessionOptions(
			usecases.WithServerInfo(b.ServerInfo()),
			usecases.WithInstructions(b.instructions),
			usecases.WithStreamBuffer(b.streamBuffer),
		),
	), nil
}

// BuildGatewayServer builds the registry and the HTTP server in front of it
func (b *GatewayBuilder) BuildGatewayServer() (*rest.GatewayServer, error) {
	registry, err := b.BuildRegistry()
	if err != nil {
		return nil, err
	}
	return rest.NewGatewayServer(registry,
		rest.WithAddr(b.address),
		rest.WithLogger(b.log().Named("http")),
		rest.WithAllowedOrigins(b.allowedOrigins...),
		rest.WithServerInfo(b.ServerInfo()),
	), nil
}
