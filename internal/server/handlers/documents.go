package handlers

import (
	"net/http"

	"github.com/agentstation/fleetmap/internal/server/response"
	"github.com/agentstation/fleetmap/pkg/reconciler"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// DocumentResponse is the outcome of ingesting one extraction.
type DocumentResponse struct {
	*reconciler.AddResult
	Vehicle *vehicles.VehicleState `json:"vehicle,omitempty"`
}

// HandleProcessDocument handles POST /api/v1/documents.
// @Summary Ingest a document extraction
// @Description Adds one extraction and re-reconciles its vehicle. Identical resubmissions are reported as duplicates.
// @Tags documents
// @Accept json
// @Produce json
// @Param extraction body vehicles.DocumentExtraction true "Extraction"
// @Success 201 {object} response.Response{data=DocumentResponse}
// @Success 200 {object} response.Response{data=DocumentResponse} "Duplicate"
// @Failure 400 {object} response.Response{error=response.Error}
// @Router /api/v1/documents [post].
func (h *Handlers) HandleProcessDocument(w http.ResponseWriter, r *http.Request) {
	var ext vehicles.DocumentExtraction
	if err := decode(w, r, &ext); err != nil {
		response.ErrorFromType(w, err)
		return
	}
	if ext.ReceivedAt.IsZero() {
		ext.ReceivedAt = h.fleet.Reconciler().Now()
	}
	if ext.Source == "" {
		ext.Source = vehicles.SourceAPIImport
	}
	if ext.DocumentType != "" && !ext.DocumentType.Valid() {
		if t, ok := vehicles.ParseDocumentType(string(ext.DocumentType)); ok {
			ext.DocumentType = t
		}
	}

	res, err := h.fleet.ProcessDocument(r.Context(), ext)
	if err != nil {
		h.log(r).Warn().Err(err).Str("document_id", ext.DocumentID).Msg("Document rejected")
		response.ErrorFromType(w, err)
		return
	}

	body := DocumentResponse{AddResult: res, Vehicle: res.Vehicle}
	if res.Duplicate {
		response.OK(w, body)
		return
	}
	response.Created(w, body)
}
