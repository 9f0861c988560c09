package server

import (
	"sync"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain"
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/logging"
)

// sseConnectionManager implements the domain.ConnectionManager interface
// for the streams attached to one gateway session.
type sseConnectionManager struct {
	mu      sync.RWMutex
	streams map[string]domain.SSEStream
	logger  *logging.Logger
}

// NewSSEConnectionManager creates a new connection manager for SSE streams.
func NewSSEConnectionManager(logger *logging.Logger) domain.ConnectionManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &sseConnectionManager{
		streams: make(map[string]domain.SSEStream),
		logger:  logger,
	}
}

// Add adds a stream to the connection manager.
func (m *sseConnectionManager) Add(stream domain.SSEStream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[stream.ID()] = stream
}

// Remove removes a stream from the connection manager.
func (m *sseConnectionManager) Remove(streamID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.streams, streamID)
}

// Get retrieves a stream by its ID.
func (m *sseConnectionManager) Get(streamID string) (domain.SSEStream, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stream, ok := m.streams[streamID]
	return stream, ok
}

// Broadcast sends an event to all attached streams. A stream that rejects the
// frame is skipped.
func (m *sseConnectionManager) Broadcast(event interface{}) (int, error) {
	frame, err := MarshalMessageEvent(event)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, stream := range m.snapshot() {
		if err := stream.Send(frame); err != nil {
			m.logger.Debug("dropping event for sse stream", logging.Fields{
				"stream_id": stream.ID(),
				"error":     err,
			})
			continue
		}
		delivered++
	}

	return delivered, nil
}

func (m *sseConnectionManager) snapshot() []domain.SSEStream {
	m.mu.RLock()
	defer m.mu.RUnlock()

	streams := make([]domain.SSEStream, 0, len(m.streams))
	for _, stream := range m.streams {
		streams = append(streams, stream)
	}
	return streams
}

// CloseAll closes all attached streams.
func (m *sseConnectionManager) CloseAll() {
	m.mu.Lock()
	streams := m.streams
	m.streams = make(map[string]domain.SSEStream)
	m.mu.Unlock()

	for _, stream := range streams {
		stream.Close()
	}
}

// Count returns the number of attached streams.
func (m *sseConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.streams)
}
