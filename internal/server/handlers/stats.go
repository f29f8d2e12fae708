package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/agentstation/fleetmap/internal/server/response"
	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/reconciler"
)

// DefaultExpiringDays is the window used when days is not given.
const DefaultExpiringDays = 30

// StatsResponse is fleet statistics plus server counters.
type StatsResponse struct {
	reconciler.Stats
	Server ServerStats `json:"server"`
}

// ServerStats describes the running server.
type ServerStats struct {
	UptimeSeconds    int `json:"uptimeSeconds"`
	FleetVehicles    int `json:"fleetVehicles"`
	WebSocketClients int `json:"websocketClients"`
	SSEClients       int `json:"sseClients"`
}

// ExpiringList is the result of an expiration query.
type ExpiringList struct {
	Days     int                          `json:"days"`
	Count    int                          `json:"count"`
	Vehicles []reconciler.ExpiringVehicle `json:"vehicles"`
}

// HandleStats handles GET /api/v1/stats.
// @Summary Fleet statistics
// @Tags stats
// @Produce json
// @Success 200 {object} response.Response{data=StatsResponse}
// @Router /api/v1/stats [get].
func (h *Handlers) HandleStats(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, StatsResponse{
		Stats: h.fleet.Reconciler().GetStats(),
		Server: ServerStats{
			UptimeSeconds:    int(time.Since(h.startTime).Seconds()),
			FleetVehicles:    h.fleet.Len(),
			WebSocketClients: h.wsHub.ClientCount(),
			SSEClients:       h.sseBroadcaster.ClientCount(),
		},
	})
}

// HandleExpiring handles GET /api/v1/compliance/expiring.
// @Summary Vehicles with expiring compliance
// @Description Expired categories are included. Soonest first.
// @Tags compliance
// @Produce json
// @Param days query int false "Window in days (default 30)"
// @Success 200 {object} response.Response{data=ExpiringList}
// @Failure 400 {object} response.Response{error=response.Error}
// @Router /api/v1/compliance/expiring [get].
func (h *Handlers) HandleExpiring(w http.ResponseWriter, r *http.Request) {
	days := DefaultExpiringDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.ErrorFromType(w, errors.NewValidationError("days", v, "must be a non-negative integer"))
			return
		}
		days = n
	}

	list := h.fleet.Reconciler().GetExpiringVehicles(days)
	if list == nil {
		list = []reconciler.ExpiringVehicle{}
	}
	response.OK(w, ExpiringList{Days: days, Count: len(list), Vehicles: list})
}

// HandleBreakdown handles GET /api/v1/compliance/breakdown.
// @Summary Compliance breakdown
// @Tags compliance
// @Produce json
// @Success 200 {object} response.Response{data=reconciler.Breakdown}
// @Router /api/v1/compliance/breakdown [get].
func (h *Handlers) HandleBreakdown(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, h.fleet.Reconciler().GetComplianceBreakdown())
}
