package handlers

import (
	"net/http"
	"time"

	"github.com/agentstation/fleetmap/internal/server/response"
)

// Health is the liveness payload.
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Uptime  string `json:"uptime"`
}

// Readiness reports whether the fleet view has been loaded and how many
// realtime clients are attached.
type Readiness struct {
	Status           string    `json:"status"`
	Vehicles         int       `json:"vehicles"`
	Loading          bool      `json:"loading"`
	LoadedAt         time.Time `json:"loadedAt"`
	RollbackReady    bool      `json:"rollbackAvailable"`
	WebSocketClients int       `json:"websocketClients"`
	SSEClients       int       `json:"sseClients"`
	EventSubscribers int       `json:"eventSubscribers"`
}

// HandleHealth handles GET /health and GET /api/v1/health.
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} response.Response{data=Health}
// @Router /api/v1/health [get].
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, Health{
		Status:  "healthy",
		Service: "fleetmap-api",
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
	})
}

// HandleReady handles GET /api/v1/ready. The server is ready once the
// fleet view has loaded from the repository at least once.
// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} response.Response{data=Readiness}
// @Failure 503 {object} response.Response{error=response.Error}
// @Router /api/v1/ready [get].
func (h *Handlers) HandleReady(w http.ResponseWriter, _ *http.Request) {
	loadedAt := h.fleet.LoadedAt()
	if loadedAt.IsZero() {
		response.ServiceUnavailable(w, "Fleet view not loaded")
		return
	}

	response.OK(w, Readiness{
		Status:           "ready",
		Vehicles:         h.fleet.Len(),
		Loading:          h.fleet.Loading(),
		LoadedAt:         loadedAt,
		RollbackReady:    h.fleet.RollbackAvailable(),
		WebSocketClients: h.wsHub.ClientCount(),
		SSEClients:       h.sseBroadcaster.ClientCount(),
		EventSubscribers: h.broker.SubscriberCount(),
	})
}
