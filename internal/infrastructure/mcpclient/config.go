package mcpclient

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
)

// Transport kinds understood by BackendConfig.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportSSE   = "sse"
)

// DefaultMaxRetries is used for streamable HTTP backends.
const DefaultMaxRetries = 3

// BackendConfig describes how to reach one downstream MCP server.
type BackendConfig struct {
	Name      string
	Transport string

	// stdio
	Command string
	Args    []string
	Env     map[string]string

	// http and sse
	Endpoint   string
	Headers    map[string]string
	MaxRetries int

	// Timeout bounds every call made to the backend. Zero means no limit.
	Timeout time.Duration
}

// Validate checks that the fields required by the transport are present.
func (c BackendConfig) Validate() error {
	switch c.Transport {
	case TransportStdio, "":
		if c.Command == "" {
			return domain.NewValidationError("command", fmt.Sprintf("required for stdio backend %q", c.Name))
		}
	case TransportHTTP, TransportSSE:
		if c.Endpoint == "" {
			return domain.NewValidationError("endpoint", fmt.Sprintf("required for %s backend %q", c.Transport, c.Name))
		}
	default:
		return domain.NewValidationError("transport", fmt.Sprintf("unsupported transport %q for backend %q", c.Transport, c.Name))
	}
	if c.Timeout < 0 {
		return domain.NewValidationError("timeout", "cannot be negative")
	}
	return nil
}

// Target is a backend ready to be connected. Transports are attempted in
// order and the first one that connects is kept.
type Target struct {
	Name       string
	Timeout    time.Duration
	Transports []mcp.Transport
}

// TargetFor builds the transports for cfg. HTTP backends try streamable HTTP
// first and fall back to the legacy SSE transport.
func TargetFor(cfg BackendConfig) (Target, error) {
	if err := cfg.Validate(); err != nil {
		return Target{}, err
	}
	target := Target{Name: cfg.Name, Timeout: cfg.Timeout}

	switch cfg.Transport {
	case TransportStdio, "":
		cmd := exec.Command(cfg.Command, cfg.Args...)
		if len(cfg.Env) > 0 {
			env := os.Environ()
			for k, v := range cfg.Env {
				env = append(env, fmt.Sprintf("%s=%s", k, v))
			}
			cmd.Env = env
		}
		target.Transports = []mcp.Transport{&mcp.CommandTransport{Command: cmd}}
	case TransportHTTP:
		retries := cfg.MaxRetries
		if retries <= 0 {
			retries = DefaultMaxRetries
		}
		client := httpClient(cfg.Headers)
		target.Transports = []mcp.Transport{
			&mcp.StreamableClientTransport{Endpoint: cfg.Endpoint, HTTPClient: client, MaxRetries: retries},
			&mcp.SSEClientTransport{Endpoint: cfg.Endpoint, HTTPClient: client},
		}
	case TransportSSE:
		target.Transports = []mcp.Transport{
			&mcp.SSEClientTransport{Endpoint: cfg.Endpoint, HTTPClient: httpClient(cfg.Headers)},
		}
	}
	return target, nil
}

func httpClient(headers map[string]string) *http.Client {
	if len(headers) == 0 {
		return http.DefaultClient
	}
	return &http.Client{Transport: &headerTransport{headers: headers, base: http.DefaultTransport}}
}

// headerTransport adds static headers to every outgoing request.
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		if clone.Header.Get(k) == "" {
			clone.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(clone)
}
