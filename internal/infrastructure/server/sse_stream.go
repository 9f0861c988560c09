package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// DefaultStreamBuffer is the number of frames a stream queues before Send
// starts failing with ErrChannelFull.
const DefaultStreamBuffer = 64

// connectedComment is written as soon as a stream is opened.
const connectedComment = ": connected\n\n"

// FormatMessageEvent renders a JSON payload as an SSE "message" event.
func FormatMessageEvent(data []byte) string {
	return fmt.Sprintf("event: message\ndata: %s\n\n", data)
}

// MarshalMessageEvent marshals v and renders it as an SSE "message" event.
func MarshalMessageEvent(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}
	return FormatMessageEvent(data), nil
}

// SSEStream is one attached Server-Sent-Events listener. Frames are queued by
// Send and written by Serve, so writers never block on a slow client.
type SSEStream struct {
	id      string
	writer  io.Writer
	flusher http.Flusher
	queue   chan string
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewSSEStream wraps w. It fails if w cannot flush.
func NewSSEStream(w http.ResponseWriter, bufferSize int) (*SSEStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrResponseWriterNotFlusher
	}
	if bufferSize <= 0 {
		bufferSize = DefaultStreamBuffer
	}

	return &SSEStream{
		id:      uuid.New().String(),
		writer:  w,
		flusher: flusher,
		queue:   make(chan string, bufferSize),
		done:    make(chan struct{}),
	}, nil
}

// Open writes the SSE response headers and the connected comment.
func Open(w http.ResponseWriter) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return ErrResponseWriterNotFlusher
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if _, err := io.WriteString(w, connectedComment); err != nil {
		return fmt.Errorf("write sse preamble: %w", err)
	}
	flusher.Flush()
	return nil
}

// ID returns the stream ID.
func (s *SSEStream) ID() string {
	return s.id
}

// Send queues frame for delivery.
func (s *SSEStream) Send(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}

	select {
	case s.queue <- frame:
		return nil
	default:
		return ErrChannelFull
	}
}

// Close terminates the stream. Queued frames that were not yet written are
// dropped.
func (s *SSEStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

// Done is closed when the stream terminates.
func (s *SSEStream) Done() <-chan struct{} {
	return s.done
}

// Serve writes queued frames until ctx ends or the stream is closed. A write
// failure closes the stream and is returned.
func (s *SSEStream) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return nil
		case <-s.done:
			return nil
		case frame := <-s.queue:
			if _, err := io.WriteString(s.writer, frame); err != nil {
				s.Close()
				return fmt.Errorf("write sse frame: %w", err)
			}
			s.flusher.Flush()
		}
	}
}
