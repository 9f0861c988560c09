package rest

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/logging"
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/server"
	"github.com/FreePeak/golang-mcp-gateway/internal/usecases"
)

type testEnv struct {
	backend  *server.InMemoryServer
	registry *usecases.Registry
	gateway  *GatewayServer
	http     *httptest.Server
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	backend := server.NewInMemoryServer("local")
	require.NoError(t, backend.AddTool(shared.Tool{Name: "echo", Description: "Echo text"},
		func(ctx context.Context, args map[string]interface{}) (*shared.CallToolResult, error) {
			text, _ := args["text"].(string)
			return &shared.CallToolResult{Content: []shared.Content{shared.NewTextContent(text)}}, nil
		}))

	factory := func(ctx context.Context, owner string) (domain.Invoker, error) {
		return server.NewInMemoryInvoker(backend), nil
	}
	registry := usecases.NewRegistry(factory, usecases.WithRegistryLogger(logging.NewNop()))

	opts = append([]Option{WithLogger(logging.NewNop())}, opts...)
	gs := NewGatewayServer(registry, opts...)
	ts := httptest.NewServer(gs.Handler())
	t.Cleanup(func() {
		registry.Close()
		ts.Close()
	})
	return &testEnv{backend: backend, registry: registry, gateway: gs, http: ts}
}

func (e *testEnv) createGateway(t *testing.T, client string) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.http.URL+"/gateways", nil)
	require.NoError(t, err)
	req.Header.Set(ClientIDHeader, client)

	resp, err := e.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body["id"])
	assert.Equal(t, "/gateways/"+body["id"]+"/message", body["messageEndpoint"])
	return body["id"]
}

func (e *testEnv) post(t *testing.T, id, message string) *http.Response {
	t.Helper()
	resp, err := e.http.Client().Post(e.http.URL+"/gateways/"+id+"/message", "application/json", strings.NewReader(message))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) shared.JSONRPCResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out shared.JSONRPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func openStream(t *testing.T, ctx context.Context, url string) (*http.Response, *bufio.Reader) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)
	_, err = reader.ReadString('\n')
	require.NoError(t, err)
	return resp, reader
}

func TestCreateGatewayRequiresClientID(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.http.Client().Post(env.http.URL+"/gateways", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, env.registry.Count())
}

func TestMessageFlow(t *testing.T) {
	env := newTestEnv(t)
	id := env.createGateway(t, "client-1")

	// Requests before the initialized notification are rejected.
	out := decodeResponse(t, env.post(t, id, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	require.NotNil(t, out.Error)
	assert.Equal(t, int(shared.InvalidRequest), out.Error.Code)

	out = decodeResponse(t, env.post(t, id, `{"jsonrpc":"2.0","id":2,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`))
	require.Nil(t, out.Error)
	result := out.Result.(map[string]interface{})
	assert.Equal(t, "2025-03-26", result["protocolVersion"])

	resp := env.post(t, id, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	out = decodeResponse(t, env.post(t, id, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hello"}}}`))
	require.Nil(t, out.Error)
	assert.Equal(t, float64(3), out.ID)
	content := out.Result.(map[string]interface{})["content"].([]interface{})
	require.Len(t, content, 1)
	assert.Equal(t, "hello", content[0].(map[string]interface{})["text"])

	out = decodeResponse(t, env.post(t, id, `{not json`))
	require.NotNil(t, out.Error)
	assert.Equal(t, int(shared.ParseError), out.Error.Code)
}

func TestMessageRejectsNonJSONContentType(t *testing.T) {
	env := newTestEnv(t)
	id := env.createGateway(t, "client-1")

	resp, err := env.http.Client().Post(env.http.URL+"/gateways/"+id+"/message", "text/plain", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestUnknownGateway(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "nope", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, env.http.URL+"/gateways/nope", nil)
	require.NoError(t, err)
	dresp, err := env.http.Client().Do(req)
	require.NoError(t, err)
	defer dresp.Body.Close()
	assert.Equal(t, http.StatusNotFound, dresp.StatusCode)
}

func TestDisposeGateway(t *testing.T) {
	env := newTestEnv(t)
	id := env.createGateway(t, "client-1")

	req, err := http.NewRequest(http.MethodDelete, env.http.URL+"/gateways/"+id, nil)
	require.NoError(t, err)
	resp, err := env.http.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, env.registry.Count())

	again := env.post(t, id, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusNotFound, again.StatusCode)
}

func TestSSERequiresEventStreamAccept(t *testing.T) {
	env := newTestEnv(t)
	id := env.createGateway(t, "client-1")

	req, err := http.NewRequest(http.MethodGet, env.http.URL+"/gateways/"+id+"/sse", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	resp, err := env.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotAcceptable, resp.StatusCode)
}

func TestSSEReceivesToolListChanged(t *testing.T) {
	env := newTestEnv(t)
	id := env.createGateway(t, "client-1")
	session, ok := env.registry.Lookup(id)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	resp, reader := openStream(t, ctx, env.http.URL+"/gateways/"+id+"/sse")
	defer resp.Body.Close()

	require.Eventually(t, func() bool { return session.StreamCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, env.backend.AddTool(shared.Tool{Name: "late"},
		func(ctx context.Context, args map[string]interface{}) (*shared.CallToolResult, error) {
			return &shared.CallToolResult{}, nil
		}))

	event, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: message\n", event)
	data, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, `data: {"jsonrpc":"2.0","method":"notifications/tools/list_changed"}`+"\n", data)
}

func TestSSEEndsWhenGatewayDisposed(t *testing.T) {
	env := newTestEnv(t)
	id := env.createGateway(t, "client-1")
	session, _ := env.registry.Lookup(id)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, reader := openStream(t, ctx, env.http.URL+"/gateways/"+id+"/sse")
	defer resp.Body.Close()
	require.Eventually(t, func() bool { return session.StreamCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, env.registry.DisposeGateway(id))

	_, err := reader.ReadString('\n')
	assert.Error(t, err, "stream should end after dispose")
}

func TestClientDisconnectDisposesGateways(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	resp, _ := openStream(t, ctx, env.http.URL+"/clients/client-9/connect")
	defer resp.Body.Close()
	require.Eventually(t, func() bool { return env.gateway.Connections().Connections("client-9") == 1 }, 2*time.Second, 10*time.Millisecond)

	env.createGateway(t, "client-9")
	env.createGateway(t, "client-9")
	other := env.createGateway(t, "client-10")
	require.Equal(t, 3, env.registry.Count())

	cancel()

	require.Eventually(t, func() bool { return env.registry.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	_, ok := env.registry.Lookup(other)
	assert.True(t, ok, "other clients keep their gateways")
	assert.Equal(t, 0, env.gateway.Connections().Clients())
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, WithServerInfo(shared.ServerInfo{Name: "edge", Version: "9.9.9"}))
	env.createGateway(t, "client-1")

	resp, err := env.http.Client().Get(env.http.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, "edge", status["name"])
	assert.Equal(t, "9.9.9", status["version"])
	assert.Equal(t, float64(1), status["gateways"])
	assert.Equal(t, float64(1), status["clients"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, WithAllowedOrigins("https://app.example.com"))

	req, err := http.NewRequest(http.MethodOptions, env.http.URL+"/gateways", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "mcp-client-id")

	resp, err := env.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example.com")
	resp2, err := env.http.Client().Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestStopDisposesGateways(t *testing.T) {
	env := newTestEnv(t)
	env.createGateway(t, "client-1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, env.gateway.Stop(ctx))
	assert.Equal(t, 0, env.registry.Count())
}
