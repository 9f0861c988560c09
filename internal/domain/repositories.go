package domain

import (
	"context"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
)

// ToolHandler executes a tool call on an in-process server.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (*shared.CallToolResult, error)

// ResourceReader produces the contents of a resource on an in-process server.
type ResourceReader func(ctx context.Context, uri string) ([]shared.ResourceContents, error)

// RegisteredTool is a tool definition together with its handler.
type RegisteredTool struct {
	Tool    shared.Tool
	Handler ToolHandler
}

// RegisteredResource is a resource definition together with its reader.
type RegisteredResource struct {
	Resource shared.Resource
	Reader   ResourceReader
}

// RegisteredTemplate is a resource template together with the reader used
// for URIs that match it.
type RegisteredTemplate struct {
	Template shared.ResourceTemplate
	Reader   ResourceReader
}

// ToolRepository defines the interface for managing tools.
type ToolRepository interface {
	// GetTool retrieves a tool by its name.
	GetTool(ctx context.Context, name string) (*RegisteredTool, error)

	// ListTools returns all available tools.
	ListTools(ctx context.Context) ([]*RegisteredTool, error)

	// AddTool adds or replaces a tool.
	AddTool(ctx context.Context, tool *RegisteredTool) error

	// DeleteTool removes a tool from the repository.
	DeleteTool(ctx context.Context, name string) error
}

// ResourceRepository defines the interface for managing resources and
// resource templates.
type ResourceRepository interface {
	// GetResource retrieves a resource by its URI.
	GetResource(ctx context.Context, uri string) (*RegisteredResource, error)

	// ListResources returns all available resources.
	ListResources(ctx context.Context) ([]*RegisteredResource, error)

	// AddResource adds or replaces a resource.
	AddResource(ctx context.Context, resource *RegisteredResource) error

	// DeleteResource removes a resource from the repository.
	DeleteResource(ctx context.Context, uri string) error

	// ListTemplates returns all resource templates.
	ListTemplates(ctx context.Context) ([]*RegisteredTemplate, error)

	// AddTemplate adds or replaces a resource template.
	AddTemplate(ctx context.Context, template *RegisteredTemplate) error
}
