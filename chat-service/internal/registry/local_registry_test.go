package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/domain"
)

type stubConn struct {
	id     string
	mu     sync.Mutex
	events []domain.Event
	closed bool
}

func (c *stubConn) ID() string { return c.id }

func (c *stubConn) SendEvent(ev domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *stubConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

type recordingMirror struct {
	mu      sync.Mutex
	online  []string
	offline []string
}

func (m *recordingMirror) MarkOnline(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online = append(m.online, userID)
	return nil
}

func (m *recordingMirror) MarkOffline(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = append(m.offline, userID)
	return nil
}

func TestLocalRegistry_RegisterLookup(t *testing.T) {
	ctx := context.Background()
	r := NewLocalRegistry(nil)

	_, ok := r.Lookup("alice")
	assert.False(t, ok)

	c1 := &stubConn{id: "c1"}
	assert.Nil(t, r.Register(ctx, "alice", c1))

	got, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "c1", got.ID())
	assert.Equal(t, 1, r.Count())
}

func TestLocalRegistry_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	r := NewLocalRegistry(nil)

	c1 := &stubConn{id: "c1"}
	c2 := &stubConn{id: "c2"}
	r.Register(ctx, "alice", c1)

	previous := r.Register(ctx, "alice", c2)
	require.NotNil(t, previous)
	assert.Equal(t, "c1", previous.ID())

	got, _ := r.Lookup("alice")
	assert.Equal(t, "c2", got.ID())
	assert.Equal(t, 1, r.Count())

	// Re-registering the same connection displaces nothing.
	assert.Nil(t, r.Register(ctx, "alice", c2))
}

func TestLocalRegistry_RemoveIgnoresStaleConnection(t *testing.T) {
	ctx := context.Background()
	mirror := &recordingMirror{}
	r := NewLocalRegistry(mirror)

	c1 := &stubConn{id: "c1"}
	c2 := &stubConn{id: "c2"}
	r.Register(ctx, "alice", c1)
	r.Register(ctx, "alice", c2)

	assert.False(t, r.Remove(ctx, "alice", c1), "stale connection must not evict its replacement")
	got, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "c2", got.ID())

	assert.True(t, r.Remove(ctx, "alice", c2))
	_, ok = r.Lookup("alice")
	assert.False(t, ok)

	assert.Equal(t, []string{"alice", "alice"}, mirror.online)
	assert.Equal(t, []string{"alice"}, mirror.offline)
}

func TestLocalRegistry_ConcurrentRegisterKeepsOneEntry(t *testing.T) {
	ctx := context.Background()
	r := NewLocalRegistry(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Register(ctx, "alice", &stubConn{id: fmt.Sprintf("c%d", i)})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, r.Count())
}
