package server

import (
	"sync"
)

// mockStream is a domain.SSEStream that records frames.
type mockStream struct {
	id     string
	mu     sync.Mutex
	frames []string
	closed bool
	err    error
	done   chan struct{}
}

func newMockStream(id string) *mockStream {
	return &mockStream{id: id, done: make(chan struct{})}
}

func (m *mockStream) ID() string { return m.id }

func (m *mockStream) Send(frame string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.closed {
		return ErrStreamClosed
	}
	m.frames = append(m.frames, frame)
	return nil
}

func (m *mockStream) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
}

func (m *mockStream) Done() <-chan struct{} { return m.done }

func (m *mockStream) Frames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.frames...)
}

func (m *mockStream) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
