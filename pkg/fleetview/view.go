package fleetview

import (
	"sort"
	"strconv"
	"time"

	"github.com/agentstation/fleetmap/pkg/compliance"
	"github.com/agentstation/fleetmap/pkg/repository"
	"github.com/agentstation/fleetmap/pkg/standardize"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// DataSource tells where a unified vehicle came from.
type DataSource string

// Data sources.
const (
	// SourcePersistent is a repository row with no reconciled documents.
	SourcePersistent DataSource = "persistent"
	// SourceReconciled is a vehicle known only from documents.
	SourceReconciled DataSource = "reconciled"
	// SourceLegacy is a repository row without a valid VIN.
	SourceLegacy DataSource = "legacy"
	// SourceMerged is a repository row joined with its reconciled state.
	SourceMerged DataSource = "merged"
)

const legacyKeyPrefix = "legacy:"

// UnifiedVehicleView is one vehicle as shown to operators.
type UnifiedVehicleView struct {
	Key             string                                        `json:"key" yaml:"key"`
	ID              string                                        `json:"id,omitempty" yaml:"id,omitempty"`
	VIN             string                                        `json:"vin,omitempty" yaml:"vin,omitempty"`
	Make            string                                        `json:"make,omitempty" yaml:"make,omitempty"`
	Model           string                                        `json:"model,omitempty" yaml:"model,omitempty"`
	Year            int                                           `json:"year,omitempty" yaml:"year,omitempty"`
	LicensePlate    string                                        `json:"licensePlate,omitempty" yaml:"licensePlate,omitempty"`
	TruckNumber     string                                        `json:"truckNumber,omitempty" yaml:"truckNumber,omitempty"`
	Status          string                                        `json:"status" yaml:"status"`
	DataSource      DataSource                                    `json:"dataSource" yaml:"dataSource"`
	ComplianceScore int                                           `json:"complianceScore" yaml:"complianceScore"`
	ComplianceLevel vehicles.Level                                `json:"complianceLevel" yaml:"complianceLevel"`
	RiskLevel       vehicles.RiskLevel                            `json:"riskLevel" yaml:"riskLevel"`
	Lifecycle       vehicles.Lifecycle                            `json:"lifecycle" yaml:"lifecycle"`
	Categories      map[vehicles.Category]vehicles.CategoryStatus `json:"categories" yaml:"categories"`
	ActiveConflicts int                                           `json:"activeConflicts" yaml:"activeConflicts"`
	DocumentCount   int                                           `json:"documentCount" yaml:"documentCount"`
	NeedsReview     bool                                          `json:"needsReview" yaml:"needsReview"`
	LastUpdated     time.Time                                     `json:"lastUpdated" yaml:"lastUpdated"`
}

// snapshot is an immutable generation of the view.
type snapshot struct {
	vehicles map[string]*UnifiedVehicleView
	keys     []string
	loadedAt time.Time
	loaded   bool
}

func emptySnapshot() *snapshot {
	return &snapshot{vehicles: map[string]*UnifiedVehicleView{}}
}

func (s *snapshot) len() int {
	return len(s.vehicles)
}

// buildSnapshot joins repository rows with reconciled states. Rows with a
// valid VIN pair with the state for that VIN; when several rows share a
// VIN the first by ID is used.
func buildSnapshot(rows []repository.VehicleRecord, states []*vehicles.VehicleState, now time.Time) *snapshot {
	byVIN := make(map[vehicles.VIN]*vehicles.VehicleState, len(states))
	for _, st := range states {
		byVIN[st.VIN] = st
	}

	snap := &snapshot{
		vehicles: make(map[string]*UnifiedVehicleView, len(rows)+len(states)),
		loadedAt: now,
		loaded:   true,
	}
	for _, row := range rows {
		vin, ok := row.NormalizedVIN()
		if !ok {
			v := fromRecord(row, now)
			snap.vehicles[v.Key] = v
			continue
		}
		if _, seen := snap.vehicles[string(vin)]; seen {
			continue
		}
		if st, ok := byVIN[vin]; ok {
			snap.vehicles[string(vin)] = merge(row, st)
			continue
		}
		snap.vehicles[string(vin)] = fromRecord(row, now)
	}
	for _, st := range states {
		if _, seen := snap.vehicles[string(st.VIN)]; !seen {
			snap.vehicles[string(st.VIN)] = fromState(st)
		}
	}

	snap.keys = make([]string, 0, len(snap.vehicles))
	for k := range snap.vehicles {
		snap.keys = append(snap.keys, k)
	}
	sort.Strings(snap.keys)
	return snap
}

func fromState(st *vehicles.VehicleState) *UnifiedVehicleView {
	year, _ := strconv.Atoi(st.Value(vehicles.FieldYear))
	return &UnifiedVehicleView{
		Key:             string(st.VIN),
		VIN:             string(st.VIN),
		Make:            st.Value(vehicles.FieldMake),
		Model:           st.Value(vehicles.FieldModel),
		Year:            year,
		LicensePlate:    st.Value(vehicles.FieldLicensePlate),
		TruckNumber:     st.Value(vehicles.FieldTruckNumber),
		Status:          repository.StatusActive,
		DataSource:      SourceReconciled,
		ComplianceScore: st.Compliance.Score,
		ComplianceLevel: st.Compliance.Level,
		RiskLevel:       st.Compliance.Risk,
		Lifecycle:       st.Lifecycle(),
		Categories:      st.Compliance.Clone().Categories,
		ActiveConflicts: len(st.ActiveConflicts),
		DocumentCount:   len(st.Documents),
		NeedsReview:     st.NeedsReview(),
		LastUpdated:     st.LastUpdated.Time,
	}
}

// fromRecord evaluates compliance from the dates stored on the row.
func fromRecord(row repository.VehicleRecord, now time.Time) *UnifiedVehicleView {
	values := make(map[vehicles.FieldName]string, len(row.Dates))
	for name, raw := range row.Dates {
		if !name.IsDate() {
			continue
		}
		if d, err := standardize.Date(raw); err == nil {
			values[name] = d
		}
	}
	report := compliance.Evaluate(compliance.Input{Values: values}, now)

	v := &UnifiedVehicleView{
		Key:             legacyKeyPrefix + row.ID,
		ID:              row.ID,
		VIN:             row.VIN,
		Make:            standardize.Name(row.Make),
		Model:           standardize.Name(row.Model),
		Year:            row.Year,
		LicensePlate:    standardize.Plate(row.LicensePlate),
		TruckNumber:     row.TruckNumber,
		Status:          row.Status,
		DataSource:      SourceLegacy,
		ComplianceScore: report.Score,
		ComplianceLevel: report.Level,
		RiskLevel:       report.Risk,
		Lifecycle:       vehicles.LifecycleUnknown,
		Categories:      report.Categories,
		LastUpdated:     row.UpdatedAt,
	}
	if vin, ok := row.NormalizedVIN(); ok {
		v.Key = string(vin)
		v.VIN = string(vin)
		v.DataSource = SourcePersistent
	}
	return v
}

// merge prefers reconciled values and falls back to the row for fields
// no document has supplied.
func merge(row repository.VehicleRecord, st *vehicles.VehicleState) *UnifiedVehicleView {
	v := fromState(st)
	v.ID = row.ID
	v.DataSource = SourceMerged
	if row.Status != "" {
		v.Status = row.Status
	}
	if v.Make == "" {
		v.Make = standardize.Name(row.Make)
	}
	if v.Model == "" {
		v.Model = standardize.Name(row.Model)
	}
	if v.Year == 0 {
		v.Year = row.Year
	}
	if v.LicensePlate == "" {
		v.LicensePlate = standardize.Plate(row.LicensePlate)
	}
	if v.TruckNumber == "" {
		v.TruckNumber = row.TruckNumber
	}
	if row.UpdatedAt.After(v.LastUpdated) {
		v.LastUpdated = row.UpdatedAt
	}
	return v
}
