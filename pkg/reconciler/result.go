package reconciler

import (
	"time"

	"github.com/agentstation/fleetmap/pkg/documents"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// AddResult represents the outcome of ingesting one extraction.
type AddResult struct {
	Success   bool                   `json:"success"`
	VIN       vehicles.VIN           `json:"vin"`
	Created   bool                   `json:"created"`   // first document for this VIN
	Duplicate bool                   `json:"duplicate"` // identical document already stored
	Conflicts []vehicles.Conflict    `json:"conflicts"` // conflicts this document introduced
	Warnings  []string               `json:"warnings"`
	Vehicle   *vehicles.VehicleState `json:"-"`
}

// HasConflicts returns true if the document introduced conflicts.
func (r *AddResult) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// ExpirationAlerts buckets dated categories by how soon they expire.
// Buckets are disjoint.
type ExpirationAlerts struct {
	Expired   int `json:"expired"`
	Today     int `json:"today"`
	ThisWeek  int `json:"thisWeek"`  // 1..7 days
	ThisMonth int `json:"thisMonth"` // 8..30 days
}

// Total returns the number of alerts.
func (a ExpirationAlerts) Total() int {
	return a.Expired + a.Today + a.ThisWeek + a.ThisMonth
}

// Stats contains fleet-wide reconciliation statistics.
type Stats struct {
	TotalVehicles         int                           `json:"totalVehicles"`
	TotalDocuments        int                           `json:"totalDocuments"`
	ActiveConflicts       int                           `json:"activeConflicts"`
	VehiclesWithConflicts int                           `json:"vehiclesWithConflicts"`
	VehiclesNeedingReview int                           `json:"vehiclesNeedingReview"`
	AverageScore          float64                       `json:"averageScore"`
	Alerts                ExpirationAlerts              `json:"alerts"`
	ByRisk                map[vehicles.RiskLevel]int    `json:"byRisk"`
	ByLevel               map[vehicles.Level]int        `json:"byLevel"`
	ByLifecycle           map[vehicles.Lifecycle]int    `json:"byLifecycle"`
	ByDocumentType        map[vehicles.DocumentType]int `json:"byDocumentType"`
	GeneratedAt           time.Time                     `json:"generatedAt"`
}

// ExpiringVehicle is a vehicle with at least one category expiring
// within the requested window.
type ExpiringVehicle struct {
	VIN             vehicles.VIN              `json:"vin"`
	Make            string                    `json:"make,omitempty"`
	Model           string                    `json:"model,omitempty"`
	LicensePlate    string                    `json:"licensePlate,omitempty"`
	DaysUntilExpiry int                       `json:"daysUntilExpiry"` // soonest
	Urgency         vehicles.Urgency          `json:"urgency"`         // of the soonest
	Categories      []vehicles.CategoryStatus `json:"categories"`      // soonest first
}

// Breakdown counts compliance outcomes across the fleet.
type Breakdown struct {
	Total      int                                           `json:"total"`
	Categories map[vehicles.Category]map[vehicles.Status]int `json:"categories"`
	Levels     map[vehicles.Level]int                        `json:"levels"`
	Risks      map[vehicles.RiskLevel]int                    `json:"risks"`
}

// Snapshot captures reconciler state for rollback.
type Snapshot struct {
	documents documents.Snapshot
	states    map[vehicles.VIN]*vehicles.VehicleState
}

// Len returns the number of vehicles in the snapshot.
func (s Snapshot) Len() int {
	return len(s.states)
}
