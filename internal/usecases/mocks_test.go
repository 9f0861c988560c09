package usecases

import (
	"context"
	"sync"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
)

type readCall struct {
	serverIndex int
	uri         string
}

// mockInvoker is a configurable domain.Invoker and domain.ResourceChangeNotifier.
type mockInvoker struct {
	mu sync.Mutex

	tools     []shared.Tool
	call      *domain.ToolCallResult
	resources []domain.ResourceGroup
	read      *shared.ReadResourceResult
	templates []domain.ResourceTemplateGroup
	err       error

	calls  []string
	reads  []readCall
	closed int

	toolsChanged     domain.Emitter
	resourcesChanged domain.Emitter
}

func (m *mockInvoker) record(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
	return m.err
}

func (m *mockInvoker) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockInvoker) OnDidChangeTools(listener func()) func() {
	return m.toolsChanged.Subscribe(listener)
}

func (m *mockInvoker) OnDidChangeResources(listener func()) func() {
	return m.resourcesChanged.Subscribe(listener)
}

func (m *mockInvoker) ListTools(ctx context.Context) ([]shared.Tool, error) {
	if err := m.record("ListTools"); err != nil {
		return nil, err
	}
	return m.tools, nil
}

func (m *mockInvoker) CallTool(ctx context.Context, name string, args map[string]interface{}) (*domain.ToolCallResult, error) {
	if err := m.record("CallTool:" + name); err != nil {
		return nil, err
	}
	return m.call, nil
}

func (m *mockInvoker) ListResources(ctx context.Context) ([]domain.ResourceGroup, error) {
	if err := m.record("ListResources"); err != nil {
		return nil, err
	}
	return m.resources, nil
}

func (m *mockInvoker) ReadResource(ctx context.Context, serverIndex int, uri string) (*shared.ReadResourceResult, error) {
	if err := m.record("ReadResource"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.reads = append(m.reads, readCall{serverIndex: serverIndex, uri: uri})
	m.mu.Unlock()
	return m.read, nil
}

func (m *mockInvoker) ListResourceTemplates(ctx context.Context) ([]domain.ResourceTemplateGroup, error) {
	if err := m.record("ListResourceTemplates"); err != nil {
		return nil, err
	}
	return m.templates, nil
}

func (m *mockInvoker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockInvoker) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// toolsOnlyInvoker hides the resource change notifier of the wrapped invoker.
type toolsOnlyInvoker struct {
	domain.Invoker
}
