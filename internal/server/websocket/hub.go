// Package websocket streams fleet events to WebSocket clients.
//
// A Hub owns the set of connected clients. Each client carries an
// events.Match and only receives the events it selected. Clients that
// cannot keep up are disconnected rather than slowing the others down.
package websocket

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/fleetmap/pkg/events"
)

// Hub fans events out to connected clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	events chan events.Event
	joins  chan *Client
	leaves chan *Client
	done   chan struct{}

	logger *zerolog.Logger
}

// NewHub creates a hub. Clients may join before Run starts.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		events:  make(chan events.Event, 256),
		joins:   make(chan *Client, 16),
		leaves:  make(chan *Client, 16),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run processes joins, leaves and events until ctx is cancelled. On exit
// every client's send channel is closed, which ends its WritePump.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			clear(h.clients)
			h.mu.Unlock()
			h.logger.Info().Msg("WebSocket hub stopped")
			return

		case c := <-h.joins:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info().
				Str("client_id", c.id).
				Strs("vins", c.match.VINs).
				Int("clients", n).
				Msg("WebSocket client joined")

		case c := <-h.leaves:
			h.mu.Lock()
			h.remove(c)
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info().Str("client_id", c.id).Int("clients", n).Msg("WebSocket client left")

		case e := <-h.events:
			h.fanOut(e)
		}
	}
}

func (h *Hub) fanOut(e events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.match.Allows(e) {
			continue
		}
		select {
		case c.send <- e:
		default:
			h.logger.Warn().
				Str("client_id", c.id).
				Str("event_type", string(e.Type)).
				Msg("WebSocket client too slow, disconnecting")
			h.remove(c)
		}
	}
}

// remove drops c and closes its send channel. Callers hold mu.
func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Register adds a client. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.joins <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.leaves <- c:
	case <-h.done:
	}
}

// Broadcast queues e for delivery. It never blocks; when the queue is full
// the event is dropped and logged.
func (h *Hub) Broadcast(e events.Event) {
	select {
	case h.events <- e:
	default:
		h.logger.Warn().Str("event_type", string(e.Type)).Msg("WebSocket queue full, event dropped")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
