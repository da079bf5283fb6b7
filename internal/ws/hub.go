// Package ws implements the realtime channel: a websocket hub with
// per-ticket rooms. Clients subscribe to the tickets they are viewing and
// receive new conversation messages as they are persisted.
//
// Delivery is best-effort and at-most-once. A client that is not subscribed
// when a message is broadcast simply misses it; the durable thread in the
// database remains the source of truth.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/qsrdesk/go-support-backend/internal/domain"
)

// newMessageType is the event type clients receive for fresh ticket messages.
const newMessageType = "newMessage"

type subscription struct {
	client   *Client
	ticketID string
}

type envelope struct {
	room string
	data []byte
}

// Hub tracks connected clients and their room memberships and fans
// broadcasts out to room subscribers.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	join       chan subscription
	leave      chan subscription
	broadcast  chan envelope

	// clients and rooms are owned by the Run loop; the mutex guards the
	// reads done by ClientCount and Stop.
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
}

// NewHub creates a hub bound to ctx. Run must be started for the hub to
// process registrations and broadcasts.
func NewHub(ctx context.Context, log zerolog.Logger) *Hub {
	hctx, cancel := context.WithCancel(ctx)
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan subscription),
		leave:      make(chan subscription),
		broadcast:  make(chan envelope, 256),
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		ctx:        hctx,
		cancel:     cancel,
		log:        log,
	}
}

// Run processes hub events until the hub's context is cancelled.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()

		case s := <-h.join:
			h.mu.Lock()
			if h.clients[s.client] {
				room := h.rooms[s.ticketID]
				if room == nil {
					room = make(map[*Client]bool)
					h.rooms[s.ticketID] = room
				}
				room[s.client] = true
			}
			h.mu.Unlock()

		case s := <-h.leave:
			h.mu.Lock()
			if room := h.rooms[s.ticketID]; room != nil {
				delete(room, s.client)
				if len(room) == 0 {
					delete(h.rooms, s.ticketID)
				}
			}
			h.mu.Unlock()

		case e := <-h.broadcast:
			h.mu.Lock()
			for c := range h.rooms[e.room] {
				select {
				case c.send <- e.data:
				default:
					// Slow consumer; drop the connection.
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes a client from the hub and every room. Callers hold h.mu.
func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for id, room := range h.rooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, id)
		}
	}
	close(c.send)
}

// Stop shuts the hub down and disconnects all clients.
func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.drop(c)
	}
}

// PublishNewMessage sends a "newMessage" event to every client subscribed
// to the ticket's room.
func (h *Hub) PublishNewMessage(ticketID string, msg *domain.TicketMessage) error {
	data, err := json.Marshal(struct {
		Type      string                `json:"type"`
		Payload   *domain.TicketMessage `json:"payload"`
		Timestamp time.Time             `json:"timestamp"`
	}{
		Type:      newMessageType,
		Payload:   msg,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- envelope{room: ticketID, data: data}:
		return nil
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
