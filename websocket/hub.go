package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Notification represents a message sent over WebSocket
type Notification struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	UserID  string      `json:"userID,omitempty"`
}

// Client represents a connected admin dashboard
type Client struct {
	UserID string
	Conn   *websocket.Conn
	send   chan Notification
}

// Hub fans engine events out to every connected admin. It implements
// services.EventPublisher.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan Notification
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Notification, 64),
		logger:     logger,
	}
}

// Run starts the hub's event loop
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case n := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- n:
				default:
					// slow consumer
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected admins.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues an event for every connected admin. Events are dropped when the queue is full.
func (h *Hub) Publish(eventType string, data interface{}) {
	select {
	case h.broadcast <- Notification{Type: eventType, Data: data}:
	default:
		h.logger.Warn("event dropped, hub queue full", zap.String("type", eventType))
	}
}
