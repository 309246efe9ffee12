package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

// Event is the payload pushed to connected screens.
type Event struct {
	Type   string `json:"type"`
	ID     any    `json:"id"`
	Action string `json:"action"`
	Data   any    `json:"data,omitempty"`
}

// client wraps a WebSocket connection with a mutex for thread-safe writes.
// userID is 0 for connections that only follow master-data changes.
type client struct {
	conn   *ws.Conn
	mu     sync.Mutex
	userID int
}

// Hub maintains connected WebSocket clients and pushes events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{clients: make(map[*client]struct{}), log: log}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok && c.conn != nil {
		_ = c.conn.Close()
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) send(evt Event, match func(*client) bool) {
	if h == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		h.log.Error("ws: marshal event", "type", evt.Type, "err", err)
		return
	}
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if match(c) {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		writeErr := func() (writeErr error) {
			defer func() {
				if r := recover(); r != nil {
					writeErr = fmt.Errorf("ws: write panic: %v", r)
				}
			}()
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			return c.conn.WriteMessage(ws.TextMessage, data)
		}()
		c.mu.Unlock()

		if writeErr != nil {
			h.log.Debug("ws: dropping client", "user_id", c.userID, "err", writeErr)
			h.unregister(c)
		}
	}
}

// Broadcast sends an event to all connected clients. Safe on a nil Hub.
func (h *Hub) Broadcast(evt Event) {
	h.send(evt, func(*client) bool { return true })
}

// SendToUser sends an event to every connection of one operator, so a second
// scanner or tab of the same user refreshes its workflow view.
func (h *Hub) SendToUser(userID int, evt Event) {
	h.send(evt, func(c *client) bool { return c.userID == userID })
}

// BroadcastChange is a convenience helper for broadcasting resource changes.
func (h *Hub) BroadcastChange(resourceType, action string, id any) {
	h.Broadcast(Event{
		Type:   resourceType + "_" + action + "d",
		ID:     id,
		Action: action,
	})
}

// Upgrader is the default WebSocket upgrader.
var Upgrader = ws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWebSocket upgrades the connection for userID and keeps it alive with pings.
func HandleWebSocket(hub *Hub, userID int, w http.ResponseWriter, r *http.Request) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Warn("ws: upgrade error", "err", err)
		return
	}

	c := &client{conn: conn, userID: userID}
	hub.register(c)
	hub.log.Info("ws: client connected", "user_id", userID, "total", hub.Count())

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.mu.Lock()
				err := conn.WriteControl(ws.PingMessage, nil, time.Now().Add(5*time.Second))
				c.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
	hub.unregister(c)
	hub.log.Info("ws: client disconnected", "user_id", userID)
}
