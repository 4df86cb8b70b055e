package services

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLiveConn records frames written by the hub's writer. Setting fail makes
// every write error; a non-nil gate makes writes block until it closes.
type fakeLiveConn struct {
	mu     sync.Mutex
	frames [][]byte
	pings  int
	closed bool
	fail   bool
	gate   chan struct{}
}

func (c *fakeLiveConn) WriteMessage(messageType int, data []byte) error {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	if messageType == websocket.PingMessage {
		c.pings++
		return nil
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, buf)
	return nil
}

func (c *fakeLiveConn) SetWriteDeadline(t time.Time) error { return nil }

func (c *fakeLiveConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeLiveConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeLiveConn) frameAt(i int) LivePayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	var payload LivePayload
	_ = json.Unmarshal(c.frames[i], &payload)
	return payload
}

func (c *fakeLiveConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func (c *fakeLiveConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestSubscribeSendsGreetingFirst(t *testing.T) {
	hub := NewLiveHub()
	conn := &fakeLiveConn{}

	sub := hub.Subscribe(conn)
	defer hub.Unsubscribe(sub)

	require.Eventually(t, func() bool { return conn.frameCount() == 1 }, time.Second, 5*time.Millisecond)

	greeting := conn.frameAt(0)
	assert.Equal(t, "connected", greeting.Type)
	assert.Equal(t, "Connected to live leaderboard updates", greeting.Message)
	assert.NotEmpty(t, greeting.Timestamp)
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	hub := NewLiveHub()
	conn1 := &fakeLiveConn{}
	conn2 := &fakeLiveConn{}
	sub1 := hub.Subscribe(conn1)
	sub2 := hub.Subscribe(conn2)
	defer hub.Unsubscribe(sub1)
	defer hub.Unsubscribe(sub2)

	hub.Broadcast("leaderboard_update", []string{"alice", "bob"})

	require.Eventually(t, func() bool {
		return conn1.frameCount() == 2 && conn2.frameCount() == 2
	}, time.Second, 5*time.Millisecond)

	for _, conn := range []*fakeLiveConn{conn1, conn2} {
		update := conn.frameAt(1)
		assert.Equal(t, "leaderboard_update", update.Type)
		assert.NotEmpty(t, update.Timestamp)
		assert.NotNil(t, update.Data)
	}
}

func TestSlowSubscriberMissesBroadcastsInsteadOfBlocking(t *testing.T) {
	hub := NewLiveHub()
	conn := &fakeLiveConn{gate: make(chan struct{})}
	sub := hub.Subscribe(conn)
	defer hub.Unsubscribe(sub)

	// The writer is stuck on the greeting, so the send buffer can fill. Extra
	// broadcasts beyond the buffer are dropped for this subscriber and the
	// calls still return immediately.
	for i := 0; i < liveSendBuffer*3; i++ {
		hub.Broadcast("leaderboard_update", i)
	}
	close(conn.gate)

	require.Eventually(t, func() bool {
		return conn.frameCount() >= liveSendBuffer
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	assert.LessOrEqual(t, conn.frameCount(), liveSendBuffer+1)
	assert.Equal(t, 1, hub.ConnectedClients(), "a slow subscriber is skipped, not evicted")
}

func TestWriteFailureEvictsSubscriber(t *testing.T) {
	hub := NewLiveHub()
	conn := &fakeLiveConn{fail: true}

	hub.Subscribe(conn)

	require.Eventually(t, func() bool { return hub.ConnectedClients() == 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, conn.isClosed())
}

func TestPingSweepPingsEverySubscriber(t *testing.T) {
	hub := NewLiveHub()
	conn := &fakeLiveConn{}
	sub := hub.Subscribe(conn)
	defer hub.Unsubscribe(sub)

	require.Eventually(t, func() bool { return conn.frameCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.PingSweep()

	require.Eventually(t, func() bool { return conn.pingCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.ConnectedClients())
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewLiveHub()
	conn := &fakeLiveConn{}
	sub := hub.Subscribe(conn)

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)

	assert.Equal(t, 0, hub.ConnectedClients())
	assert.True(t, conn.isClosed())
}
