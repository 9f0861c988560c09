// Package testutil holds test doubles shared across packages.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
)

// MockInvoker is a testify mock of domain.Invoker.
type MockInvoker struct {
	mock.Mock
}

var _ domain.Invoker = (*MockInvoker)(nil)

// OnDidChangeTools records the subscription and returns a no-op unsubscribe.
func (m *MockInvoker) OnDidChangeTools(listener func()) func() {
	m.Called()
	return func() {}
}

// ListTools implements domain.Invoker.
func (m *MockInvoker) ListTools(ctx context.Context) ([]shared.Tool, error) {
	args := m.Called(ctx)
	tools, _ := args.Get(0).([]shared.Tool)
	return tools, args.Error(1)
}

// CallTool implements domain.Invoker.
func (m *MockInvoker) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*domain.ToolCallResult, error) {
	args := m.Called(ctx, name, arguments)
	result, _ := args.Get(0).(*domain.ToolCallResult)
	return result, args.Error(1)
}

// ListResources implements domain.Invoker.
func (m *MockInvoker) ListResources(ctx context.Context) ([]domain.ResourceGroup, error) {
	args := m.Called(ctx)
	groups, _ := args.Get(0).([]domain.ResourceGroup)
	return groups, args.Error(1)
}

// ReadResource implements domain.Invoker.
func (m *MockInvoker) ReadResource(ctx context.Context, serverIndex int, uri string) (*shared.ReadResourceResult, error) {
	args := m.Called(ctx, serverIndex, uri)
	result, _ := args.Get(0).(*shared.ReadResourceResult)
	return result, args.Error(1)
}

// ListResourceTemplates implements domain.Invoker.
func (m *MockInvoker) ListResourceTemplates(ctx context.Context) ([]domain.ResourceTemplateGroup, error) {
	args := m.Called(ctx)
	groups, _ := args.Get(0).([]domain.ResourceTemplateGroup)
	return groups, args.Error(1)
}

// FlushRecorder is a goroutine-safe http.ResponseWriter and http.Flusher.
type FlushRecorder struct {
	mu      sync.Mutex
	header  http.Header
	status  int
	body    bytes.Buffer
	flushes int
	failing bool
}

// NewFlushRecorder creates an empty recorder.
func NewFlushRecorder() *FlushRecorder {
	return &FlushRecorder{header: http.Header{}}
}

func (w *FlushRecorder) Header() http.Header {
	return w.header
}

func (w *FlushRecorder) WriteHeader(status int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
}

func (w *FlushRecorder) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failing {
		return 0, errors.New("broken pipe")
	}
	return w.body.Write(p)
}

func (w *FlushRecorder) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

// Fail makes every following write return an error.
func (w *FlushRecorder) Fail() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failing = true
}

func (w *FlushRecorder) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.body.String()
}

func (w *FlushRecorder) Status() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *FlushRecorder) Flushes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushes
}

// NonFlusher implements http.ResponseWriter but not http.Flusher.
type NonFlusher struct{}

func (NonFlusher) Header() http.Header         { return http.Header{} }
func (NonFlusher) Write(p []byte) (int, error) { return len(p), nil }
func (NonFlusher) WriteHeader(int)             {}
