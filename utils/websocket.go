package utils

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type WebSocketHub struct {
	clients map[*websocket.Conn]string // conn -> client id
	mu      sync.Mutex
	events  chan WebSocketEvent
}

func NewWebSocketHub() *WebSocketHub {
	h := &WebSocketHub{
		clients: make(map[*websocket.Conn]string),
		events:  make(chan WebSocketEvent, 64),
	}
	go h.broadcastLoop()
	return h
}

// broadcastLoop drains the event queue one event at a time, so each
// connection only ever has a single concurrent writer and events reach
// clients in publish order.
func (h *WebSocketHub) broadcastLoop() {
	for event := range h.events {
		h.Broadcast(event)
	}
}

// AddClient registers a connection and returns its client id.
func (h *WebSocketHub) AddClient(conn *websocket.Conn) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.NewString()
	h.clients[conn] = id
	return id
}

func (h *WebSocketHub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

func (h *WebSocketHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish queues an engine event for broadcast without blocking the caller.
// The engine loop must never wait on a slow monitoring client; when the
// queue is full the event is dropped.
func (h *WebSocketHub) Publish(eventType string, payload map[string]interface{}) {
	select {
	case h.events <- WebSocketEvent{Type: eventType, Payload: payload}:
	default:
	}
}

func (h *WebSocketHub) Broadcast(event WebSocketEvent) {
	h.mu.Lock()
	// Create a snapshot of current clients
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	var failedClients []*websocket.Conn
	var failedMu sync.Mutex

	for _, conn := range clients {
		wg.Add(1)
		go func(c *websocket.Conn) {
			defer wg.Done()

			// Set write deadline to prevent slow clients from blocking too long
			c.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
			if err := c.WriteJSON(event); err != nil {
				failedMu.Lock()
				failedClients = append(failedClients, c)
				failedMu.Unlock()
			}
		}(conn)
	}

	wg.Wait()

	// Remove failed clients
	if len(failedClients) > 0 {
		h.mu.Lock()
		for _, conn := range failedClients {
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
		}
		h.mu.Unlock()
	}
}
