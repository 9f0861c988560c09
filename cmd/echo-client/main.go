// Command echo-client walks through a gateway session over HTTP: it creates a
// gateway, initializes it, lists the tools and calls the echo tool.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/logging"
	"github.com/FreePeak/golang-mcp-gateway/internal/interfaces/rest"
)

type client struct {
	baseURL  string
	clientID string
	http     *http.Client
	nextID   int
}

type createResponse struct {
	ID              string `json:"id"`
	MessageEndpoint string `json:"messageEndpoint"`
	SSEEndpoint     string `json:"sseEndpoint"`
}

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "gateway base URL")
	clientID := flag.String("client", "echo-client", "value of the client id header")
	tool := flag.String("tool", "echo", "tool to call")
	message := flag.String("message", "Hello from echo client!", "message to echo")
	flag.Parse()

	logger, err := logging.New(logging.DevelopmentConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "echo-client: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	c := &client{
		baseURL:  strings.TrimRight(*serverURL, "/"),
		clientID: *clientID,
		http:     &http.Client{Timeout: 10 * time.Second},
	}

	gw, err := c.createGateway()
	if err != nil {
		logger.Fatal("Failed to create gateway", logging.Fields{"error": err})
	}
	logger.Info("Gateway created", logging.Fields{"id": gw.ID})
	defer func() {
		if err := c.disposeGateway(gw.ID); err != nil {
			logger.Warn("Failed to dispose gateway", logging.Fields{"error": err})
		}
	}()

	initResult, err := c.call(gw.MessageEndpoint, shared.MethodInitialize, map[string]interface{}{
		"protocolVersion": shared.LatestProtocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo":      map[string]interface{}{"name": "echo-client", "version": "1.0.0"},
	})
	if err != nil {
		logger.Fatal("Initialize failed", logging.Fields{"error": err})
	}
	logger.Info("Initialized", logging.Fields{"result": string(initResult)})

	if err := c.notify(gw.MessageEndpoint, shared.MethodNotificationInitialized); err != nil {
		logger.Fatal("Initialized notification failed", logging.Fields{"error": err})
	}

	tools, err := c.call(gw.MessageEndpoint, shared.MethodListTools, nil)
	if err != nil {
		logger.Fatal("tools/list failed", logging.Fields{"error": err})
	}
	logger.Info("Tools", logging.Fields{"result": string(tools)})

	result, err := c.call(gw.MessageEndpoint, shared.MethodCallTool, map[string]interface{}{
		"name":      *tool,
		"arguments": map[string]interface{}{"message": *message},
	})
	if err != nil {
		logger.Fatal("tools/call failed", logging.Fields{"error": err})
	}

	var callResult shared.CallToolResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		logger.Fatal("Unexpected result format", logging.Fields{"error": err})
	}
	for _, content := range callResult.Content {
		if content.Type == shared.ContentTypeText {
			fmt.Printf("Server echoed: %s\n", content.Text)
		}
	}
}

func (c *client) do(method, path, contentType string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(rest.ClientIDHeader, c.clientID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

func (c *client) createGateway() (*createResponse, error) {
	data, status, err := c.do(http.MethodPost, "/gateways", "", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", status, data)
	}

	var out createResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &out, nil
}

func (c *client) disposeGateway(id string) error {
	data, status, err := c.do(http.MethodDelete, "/gateways/"+id, "", nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return fmt.Errorf("unexpected status code: %d, body: %s", status, data)
	}
	return nil
}

func (c *client) send(endpoint string, msg shared.JSONRPCRequest) ([]byte, int, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(http.MethodPost, endpoint, "application/json", payload)
}

func (c *client) call(endpoint, method string, params interface{}) (json.RawMessage, error) {
	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		raw = encoded
	}

	c.nextID++
	data, status, err := c.send(endpoint, shared.JSONRPCRequest{
		JSONRPC: shared.JSONRPCVersion,
		ID:      c.nextID,
		Method:  method,
		Params:  raw,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", status, data)
	}

	var resp struct {
		Result json.RawMessage      `json:"result"`
		Error  *shared.JSONRPCError `json:"error"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, data)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("RPC error: %s (code: %d)", resp.Error.Message, resp.Error.Code)
	}
	return resp.Result, nil
}

func (c *client) notify(endpoint, method string) error {
	data, status, err := c.send(endpoint, shared.JSONRPCRequest{JSONRPC: shared.JSONRPCVersion, Method: method})
	if err != nil {
		return err
	}
	if status != http.StatusAccepted {
		return fmt.Errorf("unexpected status code: %d, body: %s", status, data)
	}
	return nil
}
