package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentstation/fleetmap/internal/server/filter"
	"github.com/agentstation/fleetmap/internal/server/response"
	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// VehicleList is a page of reconciled vehicles.
type VehicleList struct {
	Vehicles []*vehicles.VehicleState `json:"vehicles"`
	Total    int                      `json:"total"`
	Limit    int                      `json:"limit"`
	Offset   int                      `json:"offset"`
}

// HandleSearchVehicles handles GET /api/v1/vehicles.
// @Summary Search reconciled vehicles
// @Tags vehicles
// @Produce json
// @Param vin query string false "VIN substring"
// @Param make query string false "Make"
// @Param model query string false "Model"
// @Param plate query string false "License plate"
// @Param status query string false "Compliance level"
// @Param risk query string false "Risk level"
// @Param lifecycle query string false "Lifecycle state"
// @Param document_type query string false "Has a document of this type"
// @Param has_conflicts query bool false "Only vehicles with active conflicts"
// @Param needs_review query bool false "Only vehicles needing review"
// @Param expires_within query int false "Expiring within N days"
// @Param sort query string false "vin, score, risk or make"
// @Param order query string false "asc or desc"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} response.Response{data=VehicleList}
// @Failure 400 {object} response.Response{error=response.Error}
// @Router /api/v1/vehicles [get].
func (h *Handlers) HandleSearchVehicles(w http.ResponseWriter, r *http.Request) {
	q, err := filter.ParseVehicleQuery(r)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	page, total := q.Apply(h.fleet.Reconciler())
	response.OK(w, VehicleList{
		Vehicles: page,
		Total:    total,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
}

// HandleGetVehicle handles GET /api/v1/vehicles/{vin}.
// @Summary Get a reconciled vehicle
// @Tags vehicles
// @Produce json
// @Param vin path string true "VIN"
// @Success 200 {object} response.Response{data=vehicles.VehicleState}
// @Failure 400 {object} response.Response{error=response.Error}
// @Failure 404 {object} response.Response{error=response.Error}
// @Router /api/v1/vehicles/{vin} [get].
func (h *Handlers) HandleGetVehicle(w http.ResponseWriter, r *http.Request) {
	vin, err := vehicles.ParseVIN(chi.URLParam(r, "vin"))
	if err != nil {
		response.ErrorFromType(w, errors.WrapValidation("vin", err))
		return
	}

	state, ok := h.fleet.Reconciler().GetVehicleSummary(vin)
	if !ok {
		response.ErrorFromType(w, errors.NewNotFoundError("vehicle", vin.String()))
		return
	}
	response.OK(w, state)
}

// HandleVehicleProvenance handles GET /api/v1/vehicles/{vin}/provenance.
// With format=text the report is rendered as plain text.
// @Summary Explain how each field was resolved
// @Tags vehicles
// @Produce json
// @Produce plain
// @Param vin path string true "VIN"
// @Param format query string false "json (default) or text"
// @Success 200 {object} response.Response{data=provenance.Report}
// @Failure 404 {object} response.Response{error=response.Error}
// @Router /api/v1/vehicles/{vin}/provenance [get].
func (h *Handlers) HandleVehicleProvenance(w http.ResponseWriter, r *http.Request) {
	vin, err := vehicles.ParseVIN(chi.URLParam(r, "vin"))
	if err != nil {
		response.ErrorFromType(w, errors.WrapValidation("vin", err))
		return
	}

	report, err := h.fleet.Reconciler().Explain(vin)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(report.String()))
		return
	}
	response.OK(w, report)
}
