// Package repository defines the persistence boundary of the fleet view.
//
// The fleet view stores one VehicleRecord per vehicle row through a
// Repository. Adapters live in subpackages (memory, files, sqlstore,
// redisstore); callers never branch on which one is in use.
package repository

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// Repository persists vehicle records. Each call reports success or
// failure for exactly one item.
type Repository interface {
	// Save inserts or replaces the record with rec.ID. An empty ID is
	// assigned. The stored record is returned.
	Save(ctx context.Context, rec VehicleRecord) (VehicleRecord, error)

	// Delete removes the record with id. Deleting a missing record
	// returns a NotFoundError.
	Delete(ctx context.Context, id string) error

	// List returns every record sorted by ID.
	List(ctx context.Context) ([]VehicleRecord, error)
}

// Clearer is implemented by repositories that can wipe every record in
// one call. Others are cleared by listing and deleting.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Closer is implemented by repositories holding connections.
type Closer interface {
	Close() error
}

// Record status values.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// VehicleRecord is a CRUD-layer vehicle row.
type VehicleRecord struct {
	ID           string                        `json:"id" yaml:"id"`
	VIN          string                        `json:"vin,omitempty" yaml:"vin,omitempty"`
	Make         string                        `json:"make,omitempty" yaml:"make,omitempty"`
	Model        string                        `json:"model,omitempty" yaml:"model,omitempty"`
	Year         int                           `json:"year,omitempty" yaml:"year,omitempty"`
	LicensePlate string                        `json:"licensePlate,omitempty" yaml:"licensePlate,omitempty"`
	TruckNumber  string                        `json:"truckNumber,omitempty" yaml:"truckNumber,omitempty"`
	Status       string                        `json:"status,omitempty" yaml:"status,omitempty"`
	Source       vehicles.Source               `json:"source,omitempty" yaml:"source,omitempty"`
	Confidence   float64                       `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Dates        map[vehicles.FieldName]string `json:"dates,omitempty" yaml:"dates,omitempty"`
	CreatedAt    time.Time                     `json:"createdAt" yaml:"createdAt"`
	UpdatedAt    time.Time                     `json:"updatedAt" yaml:"updatedAt"`
}

// Clone returns a deep copy of the record.
func (r VehicleRecord) Clone() VehicleRecord {
	out := r
	if r.Dates != nil {
		out.Dates = make(map[vehicles.FieldName]string, len(r.Dates))
		for k, v := range r.Dates {
			out.Dates[k] = v
		}
	}
	return out
}

// NormalizedVIN returns the record VIN when it is valid.
func (r VehicleRecord) NormalizedVIN() (vehicles.VIN, bool) {
	if r.VIN == "" {
		return "", false
	}
	vin, err := vehicles.ParseVIN(r.VIN)
	if err != nil {
		return "", false
	}
	return vin, true
}

// Extraction converts the record into a manual-entry extraction so the
// reconciler can weigh it against documents. Records without a valid VIN
// cannot be reconciled.
func (r VehicleRecord) Extraction(receivedAt time.Time) (vehicles.DocumentExtraction, bool) {
	vin, ok := r.NormalizedVIN()
	if !ok {
		return vehicles.DocumentExtraction{}, false
	}

	fields := vehicles.GenericFields{
		vehicles.FieldMake:         r.Make,
		vehicles.FieldModel:        r.Model,
		vehicles.FieldLicensePlate: r.LicensePlate,
		vehicles.FieldTruckNumber:  r.TruckNumber,
	}
	if r.Year > 0 {
		fields[vehicles.FieldYear] = strconv.Itoa(r.Year)
	}
	for name, value := range r.Dates {
		if name.IsDate() {
			fields[name] = value
		}
	}

	source := r.Source
	if source == "" {
		source = vehicles.SourceManualEntry
	}
	confidence := r.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 1
	}

	ext := vehicles.NewExtraction("", vin, fields, source, confidence, receivedAt)
	ext.DocumentID = "record-" + r.ID + "-" + strconv.FormatInt(r.UpdatedAt.UnixNano(), 36)
	return ext, true
}

// Prepare assigns an ID and timestamps before a save.
func Prepare(rec VehicleRecord, now time.Time) VehicleRecord {
	out := rec.Clone()
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.VIN != "" {
		if vin, ok := out.NormalizedVIN(); ok {
			out.VIN = vin.String()
		}
	}
	if out.Status == "" {
		out.Status = StatusActive
	}
	now = now.UTC()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.UpdatedAt = now
	return out
}

// Sort orders records by ID in place.
func Sort(records []VehicleRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
}

// ClearAll wipes repo, using Clearer when available.
func ClearAll(ctx context.Context, repo Repository) error {
	if c, ok := repo.(Clearer); ok {
		return c.Clear(ctx)
	}
	records, err := repo.List(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := repo.Delete(ctx, rec.ID); err != nil {
			return err
		}
	}
	return nil
}
