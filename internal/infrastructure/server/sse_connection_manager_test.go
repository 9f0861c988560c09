package server

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/golang-mcp-gateway/internal/domain/shared"
)

func TestSSEConnectionManager_AddGetRemove(t *testing.T) {
	manager := NewSSEConnectionManager(nil)

	s1 := newMockStream("s1")
	s2 := newMockStream("s2")
	manager.Add(s1)
	manager.Add(s2)
	assert.Equal(t, 2, manager.Count())

	got, ok := manager.Get("s1")
	require.True(t, ok)
	assert.Equal(t, s1, got)

	manager.Remove("s1")
	_, ok = manager.Get("s1")
	assert.False(t, ok)
	assert.Equal(t, 1, manager.Count())
	assert.False(t, s1.IsClosed(), "Remove must not close the stream")
}

func TestSSEConnectionManager_Broadcast(t *testing.T) {
	manager := NewSSEConnectionManager(nil)

	healthy := newMockStream("healthy")
	full := newMockStream("full")
	full.err = ErrChannelFull
	closed := newMockStream("closed")
	closed.Close()

	manager.Add(healthy)
	manager.Add(full)
	manager.Add(closed)

	delivered, err := manager.Broadcast(shared.NewNotification(shared.MethodNotificationToolsListChanged))
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	frames := healthy.Frames()
	require.Len(t, frames, 1)
	assert.Equal(t,
		"event: message\ndata: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/tools/list_changed\"}\n\n",
		frames[0])
}

func TestSSEConnectionManager_BroadcastMarshalError(t *testing.T) {
	manager := NewSSEConnectionManager(nil)
	manager.Add(newMockStream("s"))

	_, err := manager.Broadcast(make(chan int))
	assert.Error(t, err)
}

func TestSSEConnectionManager_CloseAll(t *testing.T) {
	manager := NewSSEConnectionManager(nil)

	streams := make([]*mockStream, 0, 3)
	for i := 0; i < 3; i++ {
		s := newMockStream(fmt.Sprintf("s%d", i))
		streams = append(streams, s)
		manager.Add(s)
	}

	manager.CloseAll()

	assert.Equal(t, 0, manager.Count())
	for _, s := range streams {
		assert.True(t, s.IsClosed())
	}
}

func TestSSEConnectionManager_Concurrency(t *testing.T) {
	manager := NewSSEConnectionManager(nil)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s := newMockStream(fmt.Sprintf("s%d", i))
			manager.Add(s)
			manager.Remove(s.ID())
		}(i)
		go func() {
			defer wg.Done()
			_, err := manager.Broadcast(shared.NewNotification(shared.MethodNotificationResourcesListChanged))
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, manager.Count())
}

func TestSSEConnectionManager_BroadcastSkipsFailingStream(t *testing.T) {
	manager := NewSSEConnectionManager(nil)

	bad := newMockStream("bad")
	bad.err = errors.New("boom")
	good := newMockStream("good")
	manager.Add(bad)
	manager.Add(good)

	delivered, err := manager.Broadcast(shared.NewNotification(shared.MethodNotificationToolsListChanged))
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Len(t, good.Frames(), 1)
}
