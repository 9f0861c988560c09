// Package domain defines the entities and contracts of an MCP gateway: the
// invoker that aggregates downstream servers, the change events it raises, and
// the SSE streams a session fans notifications out to.
package domain

import "github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"

// SessionState is the protocol state of a gateway session.
type SessionState int32

const (
	// StateUninitialized is the state before notifications/initialized.
	StateUninitialized SessionState = iota
	// StateInitialized is entered once and never left.
	StateInitialized
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	default:
		return "unknown"
	}
}

// ToolCallResult is a tool result together with the index of the server
// that produced it.
type ToolCallResult struct {
	Result      *shared.CallToolResult
	ServerIndex int
}

// ResourceGroup holds the resources of one downstream server.
type ResourceGroup struct {
	ServerIndex int
	Resources   []shared.Resource
}

// ResourceTemplateGroup holds the resource templates of one downstream server.
type ResourceTemplateGroup struct {
	ServerIndex int
	Templates   []shared.ResourceTemplate
}
