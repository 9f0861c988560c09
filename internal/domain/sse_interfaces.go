package domain

import (
	"context"
	"encoding/json"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
)

// MessageHandler processes one raw JSON-RPC message and returns the responses
// to send back. Notifications produce no responses.
type MessageHandler interface {
	HandleMessage(ctx context.Context, rawMessage json.RawMessage) []shared.JSONRPCResponse
}

// SSEStream is a single attached Server-Sent-Events listener.
type SSEStream interface {
	// ID returns the stream identifier.
	ID() string

	// Send queues a preformatted SSE frame. It never blocks.
	Send(frame string) error

	// Close terminates the stream. It is safe to call more than once.
	Close()

	// Done is closed once the stream has terminated.
	Done() <-chan struct{}
}

// ConnectionManager tracks the SSE streams attached to one gateway session.
type ConnectionManager interface {
	// Add registers a stream.
	Add(stream SSEStream)

	// Remove deregisters a stream without closing it.
	Remove(streamID string)

	// Get retrieves a stream by ID.
	Get(streamID string) (SSEStream, bool)

	// Broadcast sends an event to every stream and returns how many accepted it.
	Broadcast(event interface{}) (int, error)

	// CloseAll closes and deregisters every stream.
	CloseAll()

	// Count returns the number of attached streams.
	Count() int
}
