// Package wshub fans bus events out to connected UI clients over
// WebSocket, following the same subscribe-a-mailbox-and-drain idiom
// internal/bus already uses for in-process subscribers.
package wshub

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/arpi-project/monitord/internal/bus"
)

// Event is the envelope written to every connected client.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// forwardedTags lists the bus tags the UI cares about; anything else
// published on the bus never reaches a WebSocket client.
var forwardedTags = []string{
	"alert_state_change",
	"arm_state_change",
	"area_state_change",
	"sensors_state_change",
	"sensors_error_change",
	"syren_state_change",
	"system_state_change",
	"power_state_change",
	"output_state_change",
	"card_registered",
	"card_registration_expired",
	"public_access_change",
}

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// Hub upgrades incoming HTTP connections to WebSocket and rebroadcasts
// forwardedTags bus events to every connected client.
type Hub struct {
	bus      *bus.Bus
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[uuid.UUID]*client

	subID   uuid.UUID
	msgs    <-chan bus.Message
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// New builds a Hub bound to b; CheckOrigin is left permissive since the
// socket is only ever exposed on a loopback/LAN admin interface.
func New(b *bus.Bus, logger *log.Logger) *Hub {
	msgs, subID := b.Subscribe(64, forwardedTags...)
	return &Hub{
		bus:      b,
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[uuid.UUID]*client),
		subID:    subID,
		msgs:     msgs,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// ServeHTTP upgrades the connection and registers it for fan-out until
// the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Printf("wshub: upgrade failed: %v", err)
		}
		return
	}

	id := uuid.New()
	c := &client{conn: conn}

	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, id)
		h.mu.Unlock()
		conn.Close()
	}()

	// Clients are fan-out-only; drain and discard anything they send
	// so control frames (close, pong) are still processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Run drains bus events and fans them out until ctx is canceled or Stop
// is called.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.bus.Unsubscribe(h.subID)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case msg, ok := <-h.msgs:
			if !ok {
				return
			}
			h.broadcast(Event{Type: msg.Tag, Payload: msg.Payload})
		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop requests Run to exit.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.stop) })
}

// Done reports when Run has exited.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) broadcast(ev Event) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.writeJSON(ev); err != nil && h.logger != nil {
			h.logger.Printf("wshub: write failed: %v", err)
		}
	}
}

func (h *Hub) ping() {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.mu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = c.conn.WriteMessage(websocket.PingMessage, nil)
		c.mu.Unlock()
	}
}

// ClientCount reports the number of currently connected clients, used
// by tests and status reporting.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
