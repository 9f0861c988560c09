package rest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionChannelRefcount(t *testing.T) {
	var removed []string
	ch := NewConnectionChannel(func(client string) { removed = append(removed, client) })

	first := ch.Connect("a")
	second := ch.Connect("a")
	other := ch.Connect("b")
	assert.Equal(t, 2, ch.Connections("a"))
	assert.Equal(t, 2, ch.Clients())

	first()
	assert.Empty(t, removed, "one connection of a is still live")
	first()
	assert.Equal(t, 1, ch.Connections("a"), "release is idempotent")

	second()
	assert.Equal(t, []string{"a"}, removed)
	assert.Equal(t, 0, ch.Connections("a"))

	other()
	assert.Equal(t, []string{"a", "b"}, removed)
	assert.Equal(t, 0, ch.Clients())
}

func TestConnectionChannelReconnect(t *testing.T) {
	count := 0
	ch := NewConnectionChannel(func(string) { count++ })

	ch.Connect("a")()
	ch.Connect("a")()
	assert.Equal(t, 2, count, "each drop to zero is reported")
}

func TestConnectionChannelConcurrent(t *testing.T) {
	var mu sync.Mutex
	removed := 0
	ch := NewConnectionChannel(func(string) {
		mu.Lock()
		removed++
		mu.Unlock()
	})

	hold := ch.Connect("a")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch.Connect("a")()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, removed)

	hold()
	assert.Equal(t, 1, removed)
}
