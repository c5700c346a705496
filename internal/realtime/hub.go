package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/indexlab/backend/pkg/logger"
)

// IndexTick is the payload streamed to dashboard clients whenever an
// index value is computed.
type IndexTick struct {
	IndexID    int64     `json:"index_id,omitempty"`
	Name       string    `json:"name"`
	Date       time.Time `json:"date"`
	IndexValue float64   `json:"index_value"`
}

// Hub fans computed index values out to connected WebSocket clients.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	logger     *logger.Logger
}

// NewHub creates a new broadcast hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		logger:     log,
	}
}

// Run processes register/unregister/broadcast events until ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.WithField("clients", len(h.clients)).Debug("WebSocket client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.WithField("clients", len(h.clients)).Debug("WebSocket client disconnected")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop it
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Publish broadcasts an index tick to all connected clients
func (h *Hub) Publish(tick IndexTick) {
	payload, err := json.Marshal(tick)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode index tick")
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("Broadcast queue full, tick dropped")
	}
}
