package domain

import (
	"sync"

	"github.com/google/uuid"
)

// Emitter is a minimal multi-listener event source. The zero value is ready
// to use.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[string]func()
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (e *Emitter) Subscribe(fn func()) func() {
	id := uuid.NewString()

	e.mu.Lock()
	if e.listeners == nil {
		e.listeners = make(map[string]func())
	}
	e.listeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Fire calls every listener. Listeners run outside the lock so they may
// subscribe or unsubscribe.
func (e *Emitter) Fire() {
	e.mu.RLock()
	snapshot := make([]func(), 0, len(e.listeners))
	for _, fn := range e.listeners {
		snapshot = append(snapshot, fn)
	}
	e.mu.RUnlock()

	for _, fn := range snapshot {
		fn()
	}
}

// Len returns the number of registered listeners.
func (e *Emitter) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}
