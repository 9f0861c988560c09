package server

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
)

// InMemoryResourceRepository implements a ResourceRepository using in-memory storage.
type InMemoryResourceRepository struct {
	resources sync.Map
	templates sync.Map
}

// NewInMemoryResourceRepository creates a new InMemoryResourceRepository.
func NewInMemoryResourceRepository() *InMemoryResourceRepository {
	return &InMemoryResourceRepository{}
}

// GetResource retrieves a resource by its URI.
func (r *InMemoryResourceRepository) GetResource(ctx context.Context, uri string) (*domain.RegisteredResource, error) {
	if resource, ok := r.resources.Load(uri); ok {
		return resource.(*domain.RegisteredResource), nil
	}
	return nil, fmt.Errorf("resource %s: %w", uri, domain.ErrNotFound)
}

// ListResources returns all available resources ordered by URI.
func (r *InMemoryResourceRepository) ListResources(ctx context.Context) ([]*domain.RegisteredResource, error) {
	var resources []*domain.RegisteredResource
	r.resources.Range(func(_, value interface{}) bool {
		resources = append(resources, value.(*domain.RegisteredResource))
		return true
	})
	sort.Slice(resources, func(i, j int) bool {
		return resources[i].Resource.URI < resources[j].Resource.URI
	})
	return resources, nil
}

// AddResource adds or replaces a resource.
func (r *InMemoryResourceRepository) AddResource(ctx context.Context, resource *domain.RegisteredResource) error {
	if resource == nil {
		return domain.NewValidationError("resource", "cannot be nil")
	}
	if resource.Resource.URI == "" {
		return domain.NewValidationError("uri", "cannot be empty")
	}
	if resource.Reader == nil {
		return domain.NewValidationError("reader", "cannot be nil")
	}
	r.resources.Store(resource.Resource.URI, resource)
	return nil
}

// DeleteResource removes a resource from the repository.
func (r *InMemoryResourceRepository) DeleteResource(ctx context.Context, uri string) error {
	if _, loaded := r.resources.LoadAndDelete(uri); !loaded {
		return fmt.Errorf("resource %s: %w", uri, domain.ErrNotFound)
	}
	return nil
}

// ListTemplates returns all resource templates ordered by template.
func (r *InMemoryResourceRepository) ListTemplates(ctx context.Context) ([]*domain.RegisteredTemplate, error) {
	var templates []*domain.RegisteredTemplate
	r.templates.Range(func(_, value interface{}) bool {
		templates = append(templates, value.(*domain.RegisteredTemplate))
		return true
	})
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].Template.URITemplate < templates[j].Template.URITemplate
	})
	return templates, nil
}

// AddTemplate adds or replaces a resource template.
func (r *InMemoryResourceRepository) AddTemplate(ctx context.Context, template *domain.RegisteredTemplate) error {
	if template == nil {
		return domain.NewValidationError("template", "cannot be nil")
	}
	if template.Template.URITemplate == "" {
		return domain.NewValidationError("uriTemplate", "cannot be empty")
	}
	r.templates.Store(template.Template.URITemplate, template)
	return nil
}

// InMemoryToolRepository implements a ToolRepository using in-memory storage.
type InMemoryToolRepository struct {
	tools sync.Map
}

// NewInMemoryToolRepository creates a new InMemoryToolRepository.
func NewInMemoryToolRepository() *InMemoryToolRepository {
	return &InMemoryToolRepository{}
}

// GetTool retrieves a tool by its name.
func (r *InMemoryToolRepository) GetTool(ctx context.Context, name string) (*domain.RegisteredTool, error) {
	if tool, ok := r.tools.Load(name); ok {
		return tool.(*domain.RegisteredTool), nil
	}
	return nil, domain.NewToolNotFoundError(name)
}

// ListTools returns all available tools ordered by name.
func (r *InMemoryToolRepository) ListTools(ctx context.Context) ([]*domain.RegisteredTool, error) {
	var tools []*domain.RegisteredTool
	r.tools.Range(func(_, value interface{}) bool {
		tools = append(tools, value.(*domain.RegisteredTool))
		return true
	})
	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Tool.Name < tools[j].Tool.Name
	})
	return tools, nil
}

// AddTool adds or replaces a tool.
func (r *InMemoryToolRepository) AddTool(ctx context.Context, tool *domain.RegisteredTool) error {
	if tool == nil {
		return domain.NewValidationError("tool", "cannot be nil")
	}
	if tool.Tool.Name == "" {
		return domain.NewValidationError("name", "cannot be empty")
	}
	if tool.Handler == nil {
		return domain.NewValidationError("handler", "cannot be nil")
	}
	r.tools.Store(tool.Tool.Name, tool)
	return nil
}

// DeleteTool removes a tool from the repository.
func (r *InMemoryToolRepository) DeleteTool(ctx context.Context, name string) error {
	if _, loaded := r.tools.LoadAndDelete(name); !loaded {
		return domain.NewToolNotFoundError(name)
	}
	return nil
}
