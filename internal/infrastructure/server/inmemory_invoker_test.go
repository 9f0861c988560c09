package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
)

func echoHandler(prefix string) domain.ToolHandler {
	return func(ctx context.Context, args map[string]interface{}) (*shared.CallToolResult, error) {
		msg, _ := args["message"].(string)
		return &shared.CallToolResult{Content: []shared.Content{shared.NewTextContent(prefix + msg)}}, nil
	}
}

func newTestInvoker(t *testing.T) (*InMemoryInvoker, *InMemoryServer, *InMemoryServer) {
	t.Helper()

	files := NewInMemoryServer("files")
	require.NoError(t, files.AddTool(shared.Tool{Name: "echo"}, echoHandler("files:")))
	require.NoError(t, files.AddResource(shared.Resource{URI: "file:///readme.md", Name: "readme"}, textReader("# readme")))
	require.NoError(t, files.AddResourceTemplate(shared.ResourceTemplate{URITemplate: "file:///logs/{name}", Name: "logs"}, textReader("log")))

	cache := NewInMemoryServer("cache")
	require.NoError(t, cache.AddTool(shared.Tool{Name: "echo"}, echoHandler("cache:")))
	require.NoError(t, cache.AddTool(shared.Tool{Name: "get"}, echoHandler("get:")))
	require.NoError(t, cache.AddResource(shared.Resource{URI: "mem://cache/key", Name: "key"}, textReader("value")))

	inv := NewInMemoryInvoker(files, cache)
	t.Cleanup(func() { _ = inv.Close() })
	return inv, files, cache
}

func TestInMemoryInvoker_ListTools(t *testing.T) {
	inv, _, _ := newTestInvoker(t)

	tools, err := inv.ListTools(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"echo", "get"}, names)
	assert.JSONEq(t, `{"type":"object"}`, string(tools[0].InputSchema))
}

func TestInMemoryInvoker_CallTool(t *testing.T) {
	inv, _, _ := newTestInvoker(t)
	ctx := context.Background()

	res, err := inv.CallTool(ctx, "echo", map[string]interface{}{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ServerIndex)
	assert.Equal(t, "files:hi", res.Result.Content[0].Text)

	res, err = inv.CallTool(ctx, "get", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ServerIndex)

	_, err = inv.CallTool(ctx, "missing", nil)
	var notFound *domain.ToolNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestInMemoryInvoker_CallToolHandlerError(t *testing.T) {
	srv := NewInMemoryServer("failing")
	require.NoError(t, srv.AddTool(shared.Tool{Name: "boom"}, func(ctx context.Context, args map[string]interface{}) (*shared.CallToolResult, error) {
		return nil, errors.New("exploded")
	}))
	inv := NewInMemoryInvoker(srv)

	res, err := inv.CallTool(context.Background(), "boom", nil)
	require.NoError(t, err)
	assert.True(t, res.Result.IsError)
	assert.Equal(t, "exploded", res.Result.Content[0].Text)
}

func TestInMemoryInvoker_Resources(t *testing.T) {
	inv, _, _ := newTestInvoker(t)
	ctx := context.Background()

	groups, err := inv.ListResources(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, 0, groups[0].ServerIndex)
	assert.Equal(t, "file:///readme.md", groups[0].Resources[0].URI)
	assert.Equal(t, 1, groups[1].ServerIndex)
	assert.Equal(t, "mem://cache/key", groups[1].Resources[0].URI)

	read, err := inv.ReadResource(ctx, 1, "mem://cache/key")
	require.NoError(t, err)
	require.Len(t, read.Contents, 1)
	assert.Equal(t, "value", read.Contents[0].Text)

	read, err = inv.ReadResource(ctx, 0, "file:///logs/today")
	require.NoError(t, err)
	assert.Equal(t, "file:///logs/today", read.Contents[0].URI)

	_, err = inv.ReadResource(ctx, 0, "mem://cache/key")
	var resourceNotFound *domain.ResourceNotFoundError
	assert.ErrorAs(t, err, &resourceNotFound)

	_, err = inv.ReadResource(ctx, 5, "mem://cache/key")
	var backendNotFound *domain.BackendNotFoundError
	assert.ErrorAs(t, err, &backendNotFound)
}

func TestInMemoryInvoker_ListResourceTemplates(t *testing.T) {
	inv, _, _ := newTestInvoker(t)

	groups, err := inv.ListResourceTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	require.Len(t, groups[0].Templates, 1)
	assert.Equal(t, "file:///logs/{name}", groups[0].Templates[0].URITemplate)
	assert.Empty(t, groups[1].Templates)
}

func TestInMemoryInvoker_ChangeEvents(t *testing.T) {
	inv, files, cache := newTestInvoker(t)

	var toolEvents, resourceEvents int32
	offTools := inv.OnDidChangeTools(func() { atomic.AddInt32(&toolEvents, 1) })
	inv.OnDidChangeResources(func() { atomic.AddInt32(&resourceEvents, 1) })

	require.NoError(t, files.AddTool(shared.Tool{Name: "new"}, echoHandler("")))
	require.NoError(t, cache.RemoveTool("get"))
	require.NoError(t, cache.AddResource(shared.Resource{URI: "mem://cache/other", Name: "other"}, textReader("")))

	assert.Equal(t, int32(2), atomic.LoadInt32(&toolEvents))
	assert.Equal(t, int32(1), atomic.LoadInt32(&resourceEvents))

	offTools()
	require.NoError(t, files.RemoveTool("new"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&toolEvents))

	require.NoError(t, inv.Close())
	require.NoError(t, cache.RemoveResource("mem://cache/other"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&resourceEvents))
}

func TestInMemoryServer_InvalidTemplate(t *testing.T) {
	srv := NewInMemoryServer("bad")

	err := srv.AddResourceTemplate(shared.ResourceTemplate{URITemplate: "file:///{unclosed", Name: "bad"}, nil)
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestInMemoryInvokerImplementsInterfaces(t *testing.T) {
	var _ domain.Invoker = (*InMemoryInvoker)(nil)
	var _ domain.ResourceChangeNotifier = (*InMemoryInvoker)(nil)
}
