package domain

import (
	"context"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
)

// Invoker aggregates one or more downstream MCP servers. Servers are
// identified by their position (index) in the aggregated set.
type Invoker interface {
	// OnDidChangeTools registers a listener for tool list changes and returns
	// a function that removes it.
	OnDidChangeTools(listener func()) (unsubscribe func())

	// ListTools returns the tools of every server.
	ListTools(ctx context.Context) ([]shared.Tool, error)

	// CallTool routes a call to the server that exposes name.
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*ToolCallResult, error)

	// ListResources returns resources grouped by server.
	ListResources(ctx context.Context) ([]ResourceGroup, error)

	// ReadResource reads uri from the server at serverIndex.
	ReadResource(ctx context.Context, serverIndex int, uri string) (*shared.ReadResourceResult, error)

	// ListResourceTemplates returns resource templates grouped by server.
	ListResourceTemplates(ctx context.Context) ([]ResourceTemplateGroup, error)
}

// ResourceChangeNotifier is implemented by invokers that can report resource
// list changes.
type ResourceChangeNotifier interface {
	OnDidChangeResources(listener func()) (unsubscribe func())
}
