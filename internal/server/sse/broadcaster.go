// Package sse streams fleet events as Server-Sent Events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/fleetmap/pkg/events"
)

const clientBuffer = 256

type client struct {
	ch    chan events.Event
	match events.Match
}

// Broadcaster fans events out to open SSE responses.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	events chan events.Event
	joins  chan *client
	leaves chan *client
	done   chan struct{}

	logger *zerolog.Logger
}

// NewBroadcaster creates a broadcaster. Streams may open before Run starts.
func NewBroadcaster(logger *zerolog.Logger) *Broadcaster {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Broadcaster{
		clients: make(map[*client]struct{}),
		events:  make(chan events.Event, 256),
		joins:   make(chan *client, 16),
		leaves:  make(chan *client, 16),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run delivers events until ctx is cancelled, then ends every open stream.
func (b *Broadcaster) Run(ctx context.Context) {
	defer close(b.done)

	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for c := range b.clients {
				close(c.ch)
			}
			clear(b.clients)
			b.mu.Unlock()
			b.logger.Info().Msg("SSE broadcaster stopped")
			return

		case c := <-b.joins:
			b.mu.Lock()
			b.clients[c] = struct{}{}
			n := len(b.clients)
			b.mu.Unlock()
			b.logger.Info().Strs("vins", c.match.VINs).Int("clients", n).Msg("SSE client joined")

		case c := <-b.leaves:
			b.mu.Lock()
			if _, ok := b.clients[c]; ok {
				delete(b.clients, c)
				close(c.ch)
			}
			n := len(b.clients)
			b.mu.Unlock()
			b.logger.Info().Int("clients", n).Msg("SSE client left")

		case e := <-b.events:
			b.mu.RLock()
			for c := range b.clients {
				if !c.match.Allows(e) {
					continue
				}
				select {
				case c.ch <- e:
				default:
					b.logger.Warn().Str("event_type", string(e.Type)).Msg("SSE client buffer full, event skipped")
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Broadcast queues e for delivery without blocking.
func (b *Broadcaster) Broadcast(e events.Event) {
	select {
	case b.events <- e:
	default:
		b.logger.Warn().Str("event_type", string(e.Type)).Msg("SSE queue full, event dropped")
	}
}

// ClientCount returns the number of open streams.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// ServeHTTP streams every event.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.Serve(w, r, events.Match{})
}

// Serve streams the events selected by match until the request ends or
// the broadcaster stops. A "connected" event is written first.
func (b *Broadcaster) Serve(w http.ResponseWriter, r *http.Request, match events.Match) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	c := &client{ch: make(chan events.Event, clientBuffer), match: match}
	if !b.join(c) {
		http.Error(w, "Event stream closed", http.StatusServiceUnavailable)
		return
	}
	defer func() {
		select {
		case b.leaves <- c:
		case <-b.done:
		}
	}()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	now := time.Now().UTC()
	b.write(w, events.Event{
		Type:      "connected",
		Timestamp: now,
		Data: map[string]any{
			"message":   "Connected to fleetmap updates stream",
			"timestamp": now,
			"vins":      match.VINs,
			"types":     match.Types,
		},
	})
	flusher.Flush()

	for {
		select {
		case e, ok := <-c.ch:
			if !ok {
				return
			}
			b.write(w, e)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (b *Broadcaster) join(c *client) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.joins <- c:
		return true
	case <-b.done:
		return false
	}
}

// write emits one SSE frame. The id is the event timestamp in nanoseconds.
func (b *Broadcaster) write(w io.Writer, e events.Event) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		b.logger.Error().Err(err).Str("event_type", string(e.Type)).Msg("Failed to encode SSE event")
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", e.Type)
	if !e.Timestamp.IsZero() {
		_, _ = fmt.Fprintf(w, "id: %s\n", strconv.FormatInt(e.Timestamp.UnixNano(), 10))
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}
