package transport

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielpatrickdp/exergate/internal/governance"
)

// #region hub
// Hub fans published states out to websocket subscribers. Clients that
// cannot keep up are dropped rather than allowed to stall the broadcast.
type Hub struct {
	mu      sync.Mutex
	clients map[*hubClient]bool

	upgrader websocket.Upgrader
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

const (
	clientSendBuffer = 16
	writeWait        = 5 * time.Second
)

// NewHub creates an empty broadcast hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*hubClient]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Broadcast sends the state to every connected subscriber. Call from the
// engine's state-change subscription.
func (h *Hub) Broadcast(st governance.State) {
	payload, err := json.Marshal(NewStatePayload(st))
	if err != nil {
		log.Printf("[WS] marshal state: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow consumer: disconnect instead of blocking the engine.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection and streams state updates until the
// client disconnects. The latest state should be broadcast by the caller
// after registration so new clients never start blind.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] state upgrade: %v", err)
		return
	}
	c := &hubClient{conn: conn, send: make(chan []byte, clientSendBuffer)}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	log.Printf("[WS] state subscriber connected (%s)", conn.RemoteAddr())

	go c.writePump()
	c.readPump(h)
}

func (c *hubClient) writePump() {
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			c.conn.Close()
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
	c.conn.Close()
}

// readPump discards inbound frames; its job is to notice the disconnect.
func (c *hubClient) readPump(h *Hub) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		c.conn.Close()
		log.Printf("[WS] state subscriber disconnected (%s)", c.conn.RemoteAddr())
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// #endregion hub
