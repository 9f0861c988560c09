package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/yosida95/uritemplate/v3"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
)

var defaultInputSchema = json.RawMessage(`{"type":"object"}`)

// InMemoryServer is an in-process MCP server that can be aggregated by an
// InMemoryInvoker. Changing its tools or resources raises change events.
type InMemoryServer struct {
	name      string
	tools     domain.ToolRepository
	resources domain.ResourceRepository

	toolsChanged     domain.Emitter
	resourcesChanged domain.Emitter
}

// NewInMemoryServer creates an empty in-process server.
func NewInMemoryServer(name string) *InMemoryServer {
	return &InMemoryServer{
		name:      name,
		tools:     NewInMemoryToolRepository(),
		resources: NewInMemoryResourceRepository(),
	}
}

// Name returns the server name.
func (s *InMemoryServer) Name() string {
	return s.name
}

// AddTool registers a tool and announces the change.
func (s *InMemoryServer) AddTool(tool shared.Tool, handler domain.ToolHandler) error {
	if len(tool.InputSchema) == 0 {
		tool.InputSchema = defaultInputSchema
	}
	if err := s.tools.AddTool(context.Background(), &domain.RegisteredTool{Tool: tool, Handler: handler}); err != nil {
		return err
	}
	s.toolsChanged.Fire()
	return nil
}

// RemoveTool unregisters a tool and announces the change.
func (s *InMemoryServer) RemoveTool(name string) error {
	if err := s.tools.DeleteTool(context.Background(), name); err != nil {
		return err
	}
	s.toolsChanged.Fire()
	return nil
}

// AddResource registers a resource and announces the change.
func (s *InMemoryServer) AddResource(resource shared.Resource, reader domain.ResourceReader) error {
	err := s.resources.AddResource(context.Background(), &domain.RegisteredResource{Resource: resource, Reader: reader})
	if err != nil {
		return err
	}
	s.resourcesChanged.Fire()
	return nil
}

// RemoveResource unregisters a resource and announces the change.
func (s *InMemoryServer) RemoveResource(uri string) error {
	if err := s.resources.DeleteResource(context.Background(), uri); err != nil {
		return err
	}
	s.resourcesChanged.Fire()
	return nil
}

// AddResourceTemplate registers a resource template. Reads of URIs that
// match the template and are not registered as resources go to reader.
func (s *InMemoryServer) AddResourceTemplate(template shared.ResourceTemplate, reader domain.ResourceReader) error {
	if _, err := uritemplate.New(template.URITemplate); err != nil {
		return domain.NewValidationError("uriTemplate", err.Error())
	}
	err := s.resources.AddTemplate(context.Background(), &domain.RegisteredTemplate{Template: template, Reader: reader})
	if err != nil {
		return err
	}
	s.resourcesChanged.Fire()
	return nil
}

func (s *InMemoryServer) read(ctx context.Context, uri string) ([]shared.ResourceContents, error) {
	registered, err := s.resources.GetResource(ctx, uri)
	if err == nil {
		return registered.Reader(ctx, uri)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	templates, err := s.resources.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range templates {
		if t.Reader == nil {
			continue
		}
		tmpl, err := uritemplate.New(t.Template.URITemplate)
		if err != nil {
			continue
		}
		if tmpl.Match(uri) != nil {
			return t.Reader(ctx, uri)
		}
	}
	return nil, domain.ErrNotFound
}

// InMemoryInvoker aggregates in-process servers. The server index is the
// position in the slice given to NewInMemoryInvoker.
type InMemoryInvoker struct {
	servers []*InMemoryServer

	toolsChanged     domain.Emitter
	resourcesChanged domain.Emitter

	closeOnce     sync.Once
	unsubscribers []func()
}

// NewInMemoryInvoker creates an invoker over servers. Change events from any
// server are re-raised by the invoker until Close is called.
func NewInMemoryInvoker(servers ...*InMemoryServer) *InMemoryInvoker {
	inv := &InMemoryInvoker{servers: servers}
	for _, s := range servers {
		inv.unsubscribers = append(inv.unsubscribers,
			s.toolsChanged.Subscribe(inv.toolsChanged.Fire),
			s.resourcesChanged.Subscribe(inv.resourcesChanged.Fire),
		)
	}
	return inv
}

// OnDidChangeTools implements domain.Invoker.
func (i *InMemoryInvoker) OnDidChangeTools(listener func()) func() {
	return i.toolsChanged.Subscribe(listener)
}

// OnDidChangeResources implements domain.ResourceChangeNotifier.
func (i *InMemoryInvoker) OnDidChangeResources(listener func()) func() {
	return i.resourcesChanged.Subscribe(listener)
}

// ListTools returns the tools of every server. When two servers expose the
// same name, the lower index wins.
func (i *InMemoryInvoker) ListTools(ctx context.Context) ([]shared.Tool, error) {
	seen := make(map[string]struct{})
	tools := make([]shared.Tool, 0)
	for _, s := range i.servers {
		registered, err := s.tools.ListTools(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tools of %s: %w", s.name, err)
		}
		for _, r := range registered {
			if _, dup := seen[r.Tool.Name]; dup {
				continue
			}
			seen[r.Tool.Name] = struct{}{}
			tools = append(tools, r.Tool)
		}
	}
	return tools, nil
}

// CallTool runs the tool on the first server that exposes it. A handler
// error is reported as a tool result with isError set.
func (i *InMemoryInvoker) CallTool(ctx context.Context, name string, args map[string]interface{}) (*domain.ToolCallResult, error) {
	for index, s := range i.servers {
		registered, err := s.tools.GetTool(ctx, name)
		if err != nil {
			continue
		}

		result, err := registered.Handler(ctx, args)
		if err != nil {
			result = &shared.CallToolResult{
				Content: []shared.Content{shared.NewTextContent(err.Error())},
				IsError: true,
			}
		}
		if result == nil {
			result = &shared.CallToolResult{}
		}
		if result.Content == nil {
			result.Content = []shared.Content{}
		}
		return &domain.ToolCallResult{Result: result, ServerIndex: index}, nil
	}
	return nil, domain.NewToolNotFoundError(name)
}

// ListResources returns one group per server.
func (i *InMemoryInvoker) ListResources(ctx context.Context) ([]domain.ResourceGroup, error) {
	groups := make([]domain.ResourceGroup, 0, len(i.servers))
	for index, s := range i.servers {
		registered, err := s.resources.ListResources(ctx)
		if err != nil {
			return nil, fmt.Errorf("list resources of %s: %w", s.name, err)
		}
		resources := make([]shared.Resource, 0, len(registered))
		for _, r := range registered {
			resources = append(resources, r.Resource)
		}
		groups = append(groups, domain.ResourceGroup{ServerIndex: index, Resources: resources})
	}
	return groups, nil
}

// ReadResource reads uri from the server at serverIndex.
func (i *InMemoryInvoker) ReadResource(ctx context.Context, serverIndex int, uri string) (*shared.ReadResourceResult, error) {
	if serverIndex < 0 || serverIndex >= len(i.servers) {
		return nil, domain.NewBackendNotFoundError(serverIndex)
	}

	contents, err := i.servers[serverIndex].read(ctx, uri)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewResourceNotFoundError(serverIndex, uri)
	}
	if err != nil {
		return nil, err
	}
	if contents == nil {
		contents = []shared.ResourceContents{}
	}
	return &shared.ReadResourceResult{Contents: contents}, nil
}

// ListResourceTemplates returns one group per server.
func (i *InMemoryInvoker) ListResourceTemplates(ctx context.Context) ([]domain.ResourceTemplateGroup, error) {
	groups := make([]domain.ResourceTemplateGroup, 0, len(i.servers))
	for index, s := range i.servers {
		registered, err := s.resources.ListTemplates(ctx)
		if err != nil {
			return nil, fmt.Errorf("list resource templates of %s: %w", s.name, err)
		}
		templates := make([]shared.ResourceTemplate, 0, len(registered))
		for _, r := range registered {
			templates = append(templates, r.Template)
		}
		groups = append(groups, domain.ResourceTemplateGroup{ServerIndex: index, Templates: templates})
	}
	return groups, nil
}

// Close detaches the invoker from its servers' change events.
func (i *InMemoryInvoker) Close() error {
	i.closeOnce.Do(func() {
		for _, off := range i.unsubscribers {
			off()
		}
	})
	return nil
}
