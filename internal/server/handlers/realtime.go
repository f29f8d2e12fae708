package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/agentstation/fleetmap/internal/server/filter"
	"github.com/agentstation/fleetmap/internal/server/response"
	ws "github.com/agentstation/fleetmap/internal/server/websocket"
	"github.com/agentstation/fleetmap/pkg/events"
)

// HandleWebSocket handles WebSocket connections at /api/v1/updates/ws.
// @Summary WebSocket updates
// @Description WebSocket connection for real-time fleet updates. Optional vin and type parameters narrow the stream.
// @Tags updates
// @Param vin query string false "VINs to follow, comma separated"
// @Param type query string false "Event types to receive, comma separated"
// @Success 101 "Switching Protocols"
// @Failure 400 {object} response.Response
// @Router /api/v1/updates/ws [get].
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	match, err := filter.ParseStreamMatch(r.URL.Query())
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log(r).Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(uuid.NewString(), h.wsHub, conn, match)
	if !h.wsHub.Register(client) {
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	h.broker.Publish(events.ClientConnected, map[string]any{
		"client_id": client.ID(),
		"transport": "websocket",
		"vins":      match.VINs,
	})
}

// HandleSSE handles Server-Sent Events at /api/v1/updates/stream.
// @Summary SSE updates stream
// @Description Server-Sent Events stream for fleet change notifications
// @Tags updates
// @Produce text/event-stream
// @Param vin query string false "VINs to follow, comma separated"
// @Param type query string false "Event types to receive, comma separated"
// @Success 200 "Event stream"
// @Failure 400 {object} response.Response
// @Router /api/v1/updates/stream [get].
func (h *Handlers) HandleSSE(w http.ResponseWriter, r *http.Request) {
	match, err := filter.ParseStreamMatch(r.URL.Query())
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}
	h.sseBroadcaster.Serve(w, r, match)
}
