package handlers

import (
	"net/http"

	"github.com/agentstation/fleetmap/internal/server/response"
)

// HandleDashboard handles GET /api/v1/dashboard.
// @Summary Fleet dashboard
// @Description Cached aggregate of compliance, conflicts and upcoming expirations
// @Tags dashboard
// @Produce json
// @Success 200 {object} response.Response{data=dashboard.FleetDashboard}
// @Router /api/v1/dashboard [get].
func (h *Handlers) HandleDashboard(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, h.dashboard.GetFleetDashboard())
}

// HandleClearDashboardCache handles DELETE /api/v1/dashboard/cache.
// @Summary Clear the dashboard cache
// @Tags dashboard
// @Produce json
// @Success 200 {object} response.Response{data=object}
// @Router /api/v1/dashboard/cache [delete].
func (h *Handlers) HandleClearDashboardCache(w http.ResponseWriter, _ *http.Request) {
	h.dashboard.ClearCache()

	response.OK(w, map[string]any{
		"cleared": true,
		"ttl":     h.dashboard.TTL().String(),
	})
}
