package fleetview

import (
	"time"

	"github.com/agentstation/fleetmap/pkg/repository"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// Operation names used in results, logs and metrics.
const (
	OperationAddVehicles = "add_vehicles"
	OperationClear       = "clear_fleet"
	OperationDelete      = "delete_vehicle"
	OperationRollback    = "rollback"
)

// VehicleInput is one item of an AddVehicles batch: a row to persist and
// any documents that came with it. Documents without a VIN inherit the
// record VIN.
type VehicleInput struct {
	Record    repository.VehicleRecord      `json:"record" yaml:"record"`
	Documents []vehicles.DocumentExtraction `json:"documents,omitempty" yaml:"documents,omitempty"`
}

// ItemResult is the outcome of one batch item.
type ItemResult struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	VIN   string `json:"vin,omitempty"`
	Error string `json:"error,omitempty"`
}

// SyncResult summarizes a batch operation. Per-item failures are counted
// here; only catastrophic failures are also returned as errors. Rejected
// counts documents the reconciler refused; a batch with rejections is not
// a success even when every row was saved.
type SyncResult struct {
	Operation         string        `json:"operation"`
	Success           bool          `json:"success"`
	Processed         int           `json:"processed"`
	Failed            int           `json:"failed"`
	Conflicts         int           `json:"conflicts"`
	Rejected          int           `json:"rejected"`
	Errors            []string      `json:"errors"`
	Items             []ItemResult  `json:"items,omitempty"`
	RollbackAvailable bool          `json:"rollbackAvailable"`
	RolledBack        bool          `json:"rolledBack"`
	Duration          time.Duration `json:"duration"`

	started time.Time
}

// Total returns the number of items handled.
func (r *SyncResult) Total() int {
	return r.Processed + r.Failed
}

func (r *SyncResult) fail(err string) {
	r.Failed++
	r.Errors = append(r.Errors, err)
}
