package rest

import (
	"sync"
)

// ConnectionChannel counts the live connections of each client and reports
// when a client's last connection goes away.
type ConnectionChannel struct {
	mu        sync.Mutex
	counts    map[string]int
	onRemoved func(client string)
}

// NewConnectionChannel creates a channel that calls onRemoved, outside any
// lock, when a client drops to zero connections.
func NewConnectionChannel(onRemoved func(client string)) *ConnectionChannel {
	return &ConnectionChannel{
		counts:    make(map[string]int),
		onRemoved: onRemoved,
	}
}

// Connect records a new connection for client. The returned function ends
// it; calling it more than once has no further effect.
func (c *ConnectionChannel) Connect(client string) (release func()) {
	c.mu.Lock()
	c.counts[client]++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.release(client) })
	}
}

func (c *ConnectionChannel) release(client string) {
	c.mu.Lock()
	c.counts[client]--
	last := c.counts[client] <= 0
	if last {
		delete(c.counts, client)
	}
	c.mu.Unlock()

	if last && c.onRemoved != nil {
		c.onRemoved(client)
	}
}

// Connections returns the number of live connections of client.
func (c *ConnectionChannel) Connections(client string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[client]
}

// Clients returns the number of clients with at least one connection.
func (c *ConnectionChannel) Clients() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counts)
}
