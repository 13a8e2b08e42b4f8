// Package ws pushes realtime events (notifications, wallet updates,
// maintenance) to the browser sessions of signed-in users.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origins are checked by middleware.WebSocketCORSCheck
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket connection. A user may hold several (tabs, devices).
type Client struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// Hub maintains the set of active clients
type Hub struct {
	clients    map[string]map[*Client]struct{} // userID -> connections
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes registrations until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.clients[c.userID] == nil {
				h.clients[c.userID] = make(map[*Client]struct{})
			}
			h.clients[c.userID][c] = struct{}{}
			n := len(h.clients[c.userID])
			h.mu.Unlock()
			log.Printf("[WS] User %s connected (%d open)", c.userID, n)

		case c := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[c.userID]; ok {
				if _, ok := conns[c]; ok {
					delete(conns, c)
					close(c.send)
					if len(conns) == 0 {
						delete(h.clients, c.userID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("[WS] User %s disconnected", c.userID)

		case <-ctx.Done():
			h.mu.Lock()
			for _, conns := range h.clients {
				for c := range conns {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			h.mu.Unlock()
			log.Printf("[WS] Hub stopped")
			return
		}
	}
}

// SendToUser queues data on every connection of userID and returns how many got it.
func (h *Hub) SendToUser(userID string, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients[userID] {
		if c.enqueue(data) {
			delivered++
		}
	}
	return delivered
}

// Broadcast queues data on every connection.
func (h *Hub) Broadcast(data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, conns := range h.clients {
		for c := range conns {
			if c.enqueue(data) {
				delivered++
			}
		}
	}
	return delivered
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

type envelope struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// Dispatch routes a published event: targeted when it names a user, broadcast otherwise.
func (h *Hub) Dispatch(payload []byte) {
	var ev envelope
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Printf("[WS] invalid event payload: %v", err)
		return
	}
	if ev.UserID != "" {
		n := h.SendToUser(ev.UserID, payload)
		log.Printf("[WS] %s event for user %s delivered to %d connection(s)", ev.Type, ev.UserID, n)
		return
	}
	n := h.Broadcast(payload)
	log.Printf("[WS] %s event broadcast to %d connection(s)", ev.Type, n)
}

func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		log.Printf("[WS] send buffer full for user %s, dropping message", c.userID)
		return false
	}
}

// HandleWebSocket upgrades an authenticated request. The auth middleware must
// have set user_id.
func HandleWebSocket(h *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade error: %v", err)
			return
		}

		client := &Client{conn: conn, userID: userID, send: make(chan []byte, sendBuffer)}
		h.register <- client

		go client.writePump()
		go client.readPump(h)
	}
}

// readPump only services control frames; clients do not send commands.
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] read error for user %s: %v", c.userID, err)
			}
			return
		}
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] write error for user %s: %v", c.userID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[WS] ping error for user %s: %v", c.userID, err)
				return
			}
		}
	}
}
