// Package adapters connects the event broker to the streaming transports.
package adapters

import (
	"github.com/agentstation/fleetmap/internal/server/sse"
	"github.com/agentstation/fleetmap/internal/server/websocket"
	"github.com/agentstation/fleetmap/pkg/events"
)

// WebSocketSubscriber forwards broker events to a WebSocket hub.
type WebSocketSubscriber struct {
	hub *websocket.Hub
}

// NewWebSocketSubscriber creates a subscriber for hub.
func NewWebSocketSubscriber(hub *websocket.Hub) *WebSocketSubscriber {
	return &WebSocketSubscriber{hub: hub}
}

// Send queues the event on the hub. Per-client filtering happens there.
func (s *WebSocketSubscriber) Send(e events.Event) error {
	s.hub.Broadcast(e)
	return nil
}

// Close is a no-op; the hub stops with its own context.
func (s *WebSocketSubscriber) Close() error { return nil }

// SSESubscriber forwards broker events to an SSE broadcaster.
type SSESubscriber struct {
	broadcaster *sse.Broadcaster
}

// NewSSESubscriber creates a subscriber for b.
func NewSSESubscriber(b *sse.Broadcaster) *SSESubscriber {
	return &SSESubscriber{broadcaster: b}
}

// Send queues the event on the broadcaster.
func (s *SSESubscriber) Send(e events.Event) error {
	s.broadcaster.Broadcast(e)
	return nil
}

// Close is a no-op.
func (s *SSESubscriber) Close() error { return nil }

var (
	_ events.Subscriber = (*WebSocketSubscriber)(nil)
	_ events.Subscriber = (*SSESubscriber)(nil)
)
