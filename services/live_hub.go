package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const (
	liveWriteDeadline = 5 * time.Second
	liveSendBuffer    = 8
)

// liveConn is the slice of *websocket.Conn the hub needs. Narrowed to an
// interface so tests can stand in a fake transport.
type liveConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// LivePayload is the wire shape of every frame the hub sends.
type LivePayload struct {
	Type      string      `json:"type"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// LiveSubscriber is one observer connection. A buffered send channel decouples
// broadcasts from slow sockets: a subscriber whose buffer is full is skipped
// for that broadcast. No buffering beyond the channel, no retry.
type LiveSubscriber struct {
	conn  liveConn
	send  chan []byte
	pings chan struct{}
}

// LiveHub fans leaderboard updates out to all connected WebSocket clients.
type LiveHub struct {
	mu          sync.Mutex
	subscribers map[*LiveSubscriber]bool
}

func NewLiveHub() *LiveHub {
	return &LiveHub{subscribers: make(map[*LiveSubscriber]bool)}
}

// Subscribe registers a connection, starts its writer and queues the
// "connected" greeting so clients can tell confirmation from data frames.
func (h *LiveHub) Subscribe(conn liveConn) *LiveSubscriber {
	sub := &LiveSubscriber{
		conn:  conn,
		send:  make(chan []byte, liveSendBuffer),
		pings: make(chan struct{}, 1),
	}

	// Queue the greeting before the writer starts so it is always the first
	// frame and can never race an eviction.
	greeting, _ := json.Marshal(LivePayload{
		Type:      "connected",
		Message:   "Connected to live leaderboard updates",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	sub.send <- greeting

	h.mu.Lock()
	h.subscribers[sub] = true
	count := len(h.subscribers)
	h.mu.Unlock()

	go h.writeLoop(sub)

	log.Printf("🔌 [LIVE] Client connected (%d total)", count)
	return sub
}

// Unsubscribe removes a subscriber and closes its transport. Safe to call
// more than once.
func (h *LiveHub) Unsubscribe(sub *LiveSubscriber) {
	h.mu.Lock()
	if !h.subscribers[sub] {
		h.mu.Unlock()
		return
	}
	delete(h.subscribers, sub)
	close(sub.send)
	count := len(h.subscribers)
	h.mu.Unlock()

	_ = sub.conn.Close()
	log.Printf("🔌 [LIVE] Client disconnected (%d total)", count)
}

// Broadcast sends a payload of the given type to every open subscriber.
func (h *LiveHub) Broadcast(payloadType string, data interface{}) {
	message, err := json.Marshal(LivePayload{
		Type:      payloadType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("❌ [LIVE] Failed to marshal %s payload: %v", payloadType, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for sub := range h.subscribers {
		select {
		case sub.send <- message:
			sent++
		default:
			// Buffer full, this subscriber misses this broadcast.
		}
	}
	log.Printf("📣 [LIVE] Broadcasted %s to %d client(s)", payloadType, sent)
}

// ConnectedClients returns the current subscriber count.
func (h *LiveHub) ConnectedClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// PingSweep queues a ping to every subscriber. Writers that fail the ping
// evict the connection, which bounds growth of the subscriber set when
// clients vanish without closing.
func (h *LiveHub) PingSweep() {
	h.mu.Lock()
	subs := make([]*LiveSubscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.pings <- struct{}{}:
		default:
		}
	}
}

// writeLoop is the only writer to a subscriber's connection. Any write
// failure evicts the subscriber.
func (h *LiveHub) writeLoop(sub *LiveSubscriber) {
	for {
		select {
		case message, ok := <-sub.send:
			if !ok {
				return
			}
			_ = sub.conn.SetWriteDeadline(time.Now().Add(liveWriteDeadline))
			if err := sub.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("⚠️ [LIVE] Write failed, dropping client: %v", err)
				h.Unsubscribe(sub)
				return
			}
		case <-sub.pings:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(liveWriteDeadline))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("⚠️ [LIVE] Ping failed, dropping client: %v", err)
				h.Unsubscribe(sub)
				return
			}
		}
	}
}

// HandleConnection is the fiber websocket handler for /stats/live. It blocks
// reading until the client goes away, then unregisters.
func (h *LiveHub) HandleConnection(conn *websocket.Conn) {
	sub := h.Subscribe(conn)
	defer h.Unsubscribe(sub)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
