// Package gateway embeds an MCP gateway that serves in-process tools and
// resources over the gateway HTTP interface.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/FreePeak/golang-mcp-gateway/internal/builder"
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/logging"
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/server"
	"github.com/FreePeak/golang-mcp-gateway/internal/interfaces/rest"
	"github.com/FreePeak/golang-mcp-gateway/pkg/types"
)

// Gateway serves a single in-process MCP server to gateway clients.
type Gateway struct {
	builder *builder.GatewayBuilder
	local   *server.InMemoryServer

	once   sync.Once
	server *rest.GatewayServer
	err    error
}

// New creates a gateway with the specified name and version.
func New(name, version string) *Gateway {
	local := server.NewInMemoryServer(name)
	return &Gateway{
		builder: builder.NewGatewayBuilder().
			WithName(name).
			WithVersion(version).
			AddLocalServer(local),
		local: local,
	}
}

// AddTool registers a tool. Connected gateway sessions are notified that
// the tool list changed.
func (g *Gateway) AddTool(tool types.Tool, handler types.ToolHandler) error {
	if handler == nil {
		return fmt.Errorf("handler for tool %q cannot be nil", tool.Name)
	}
	return g.local.AddTool(tool, handler)
}

// RemoveTool unregisters a tool.
func (g *Gateway) RemoveTool(name string) error {
	return g.local.RemoveTool(name)
}

// AddResource registers a static resource.
func (g *Gateway) AddResource(resource types.Resource, reader types.ResourceReader) error {
	if reader == nil {
		return fmt.Errorf("reader for resource %q cannot be nil", resource.URI)
	}
	return g.local.AddResource(resource, reader)
}

// AddResourceTemplate registers a resource template. Reads of URIs matching
// the template are served by reader.
func (g *Gateway) AddResourceTemplate(template types.ResourceTemplate, reader types.ResourceReader) error {
	if reader == nil {
		return fmt.Errorf("reader for template %q cannot be nil", template.URITemplate)
	}
	return g.local.AddResourceTemplate(template, reader)
}

// SetAddress sets the listen address used by ListenAndServe.
func (g *Gateway) SetAddress(addr string) *Gateway {
	g.builder.WithAddress(addr)
	return g
}

// SetInstructions sets the instructions returned from initialize.
func (g *Gateway) SetInstructions(instructions string) *Gateway {
	g.builder.WithInstructions(instructions)
	return g
}

// AllowOrigins enables CORS for the given browser origins.
func (g *Gateway) AllowOrigins(origins ...string) *Gateway {
	g.builder.WithAllowedOrigins(origins...)
	return g
}

// SetLogger replaces the default logger.
func (g *Gateway) SetLogger(logger *logging.Logger) *Gateway {
	g.builder.WithLogger(logger)
	return g
}

func (g *Gateway) build() (*rest.GatewayServer, error) {
	g.once.Do(func() {
		g.server, g.err = g.builder.BuildGatewayServer()
	})
	return g.server, g.err
}

// Handler returns the gateway HTTP handler. Configuration changes made after
// the first call to Handler or ListenAndServe have no effect.
func (g *Gateway) Handler() (http.Handler, error) {
	s, err := g.build()
	if err != nil {
		return nil, err
	}
	return s.Handler(), nil
}

// ListenAndServe serves the gateway until Shutdown is called.
func (g *Gateway) ListenAndServe() error {
	s, err := g.build()
	if err != nil {
		return err
	}
	return s.Start()
}

// Shutdown disposes every gateway session and stops the HTTP server.
func (g *Gateway) Shutdown(ctx context.Context) error {
	s, err := g.build()
	if err != nil {
		return err
	}
	return s.Stop(ctx)
}
