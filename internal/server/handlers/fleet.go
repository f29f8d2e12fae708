package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentstation/fleetmap/internal/server/response"
	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/fleetview"
)

// FleetList is the unified fleet view.
type FleetList struct {
	Vehicles          []fleetview.UnifiedVehicleView `json:"vehicles"`
	Total             int                            `json:"total"`
	LoadedAt          time.Time                      `json:"loadedAt"`
	RollbackAvailable bool                           `json:"rollbackAvailable"`
}

// AddVehiclesRequest is the body of POST /api/v1/fleet/vehicles.
type AddVehiclesRequest struct {
	Vehicles []fleetview.VehicleInput `json:"vehicles"`
}

// HandleListFleet handles GET /api/v1/fleet.
// @Summary List the unified fleet
// @Description Repository rows merged with reconciled vehicles. Reloads when the view is stale.
// @Tags fleet
// @Produce json
// @Success 200 {object} response.Response{data=FleetList}
// @Failure 503 {object} response.Response{error=response.Error}
// @Router /api/v1/fleet [get].
func (h *Handlers) HandleListFleet(w http.ResponseWriter, r *http.Request) {
	if _, err := h.fleet.InitializeData(r.Context()); err != nil {
		h.log(r).Error().Err(err).Msg("Fleet view reload failed")
		response.ErrorFromType(w, err)
		return
	}

	list := h.fleet.List()
	if list == nil {
		list = []fleetview.UnifiedVehicleView{}
	}
	response.OK(w, FleetList{
		Vehicles:          list,
		Total:             len(list),
		LoadedAt:          h.fleet.LoadedAt(),
		RollbackAvailable: h.fleet.RollbackAvailable(),
	})
}

// HandleAddVehicles handles POST /api/v1/fleet/vehicles.
// @Summary Add a batch of vehicles
// @Description Persists records and ingests their documents. Per-item failures are reported in the result; a catastrophic failure rolls the whole batch back.
// @Tags fleet
// @Accept json
// @Produce json
// @Param batch body AddVehiclesRequest true "Batch"
// @Success 200 {object} response.Response{data=fleetview.SyncResult}
// @Failure 400 {object} response.Response{error=response.Error}
// @Failure 500 {object} response.Response{data=fleetview.SyncResult,error=response.Error} "Rolled back"
// @Router /api/v1/fleet/vehicles [post].
func (h *Handlers) HandleAddVehicles(w http.ResponseWriter, r *http.Request) {
	var req AddVehiclesRequest
	if err := decode(w, r, &req); err != nil {
		response.ErrorFromType(w, err)
		return
	}
	if len(req.Vehicles) == 0 {
		response.ErrorFromType(w, errors.NewValidationError("vehicles", nil, "at least one vehicle is required"))
		return
	}

	result, err := h.fleet.AddVehicles(r.Context(), req.Vehicles)
	h.writeSync(w, r, result, err)
}

// HandleDeleteVehicle handles DELETE /api/v1/fleet/vehicles/{id}.
// @Summary Delete a vehicle row
// @Description Removes one repository row. Documents reconciled for the vehicle are kept. Reversible with a rollback.
// @Tags fleet
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Response{data=fleetview.SyncResult}
// @Failure 404 {object} response.Response{error=response.Error}
// @Router /api/v1/fleet/vehicles/{id} [delete].
func (h *Handlers) HandleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	result, err := h.fleet.DeleteVehicle(r.Context(), chi.URLParam(r, "id"))
	h.writeSync(w, r, result, err)
}

// HandleClearFleet handles DELETE /api/v1/fleet.
// @Summary Clear all fleet data
// @Description Deletes every repository row and reconciled document. Reversible with a rollback.
// @Tags fleet
// @Produce json
// @Success 200 {object} response.Response{data=fleetview.SyncResult}
// @Failure 500 {object} response.Response{data=fleetview.SyncResult,error=response.Error} "Rolled back"
// @Router /api/v1/fleet [delete].
func (h *Handlers) HandleClearFleet(w http.ResponseWriter, r *http.Request) {
	result, err := h.fleet.ClearAllFleetData(r.Context())
	h.writeSync(w, r, result, err)
}

// HandleRollback handles POST /api/v1/fleet/rollback.
// @Summary Undo the last batch or clear
// @Tags fleet
// @Produce json
// @Success 200 {object} response.Response{data=fleetview.SyncResult}
// @Failure 409 {object} response.Response{error=response.Error} "Nothing to roll back"
// @Router /api/v1/fleet/rollback [post].
func (h *Handlers) HandleRollback(w http.ResponseWriter, r *http.Request) {
	result, err := h.fleet.Rollback(r.Context())
	h.writeSync(w, r, result, err)
}

// writeSync writes a batch result. A catastrophic failure still carries
// the result so callers see what was attempted before the rollback.
func (h *Handlers) writeSync(w http.ResponseWriter, r *http.Request, result *fleetview.SyncResult, err error) {
	if err != nil {
		h.log(r).Error().Err(err).Msg("Fleet operation failed")
		if result != nil && errors.IsCatastrophic(err) {
			response.RolledBack(w, result, err)
			return
		}
		response.ErrorFromType(w, err)
		return
	}
	response.OK(w, result)
}
