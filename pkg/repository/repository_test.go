package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/fleetmap/pkg/repository"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

var now = time.Date(2025, time.June, 10, 9, 30, 0, 0, time.UTC)

func TestPrepare(t *testing.T) {
	rec := repository.Prepare(repository.VehicleRecord{VIN: "1hgcm8263-3a004352"}, now)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "1HGCM82633A004352", rec.VIN)
	assert.Equal(t, repository.StatusActive, rec.Status)
	assert.Equal(t, now, rec.CreatedAt)
	assert.Equal(t, now, rec.UpdatedAt)

	later := repository.Prepare(rec, now.Add(time.Hour))
	assert.Equal(t, rec.ID, later.ID)
	assert.Equal(t, now, later.CreatedAt)
	assert.Equal(t, now.Add(time.Hour), later.UpdatedAt)

	invalid := repository.Prepare(repository.VehicleRecord{VIN: "not-a-vin"}, now)
	assert.Equal(t, "not-a-vin", invalid.VIN, "invalid VINs are kept verbatim")
}

func TestExtraction(t *testing.T) {
	rec := repository.Prepare(repository.VehicleRecord{
		ID:           "row-1",
		VIN:          "1HGCM82633A004352",
		Make:         "honda",
		Year:         2003,
		LicensePlate: "abc 123",
		Source:       vehicles.SourceBulkUpload,
		Confidence:   0.85,
		Dates: map[vehicles.FieldName]string{
			vehicles.FieldInsuranceExpirationDate: "2025-12-31",
			vehicles.FieldColor:                   "red", // not a date, ignored
		},
	}, now)

	ext, ok := rec.Extraction(now)
	require.True(t, ok)
	assert.Equal(t, vehicles.VIN("1HGCM82633A004352"), ext.VIN)
	assert.Equal(t, vehicles.DocumentOther, ext.DocumentType)
	assert.Equal(t, vehicles.SourceBulkUpload, ext.Source)
	assert.Equal(t, 0.85, ext.ExtractionConfidence)
	assert.Equal(t, "2003", ext.Fields[vehicles.FieldYear])
	assert.Equal(t, "2025-12-31", ext.Fields[vehicles.FieldInsuranceExpirationDate])
	assert.NotContains(t, ext.Fields, vehicles.FieldColor)
	assert.NotContains(t, ext.Fields, vehicles.FieldModel)
	assert.Contains(t, ext.DocumentID, "row-1")

	again, _ := rec.Extraction(now)
	assert.Equal(t, ext.DocumentID, again.DocumentID, "the same record revision maps to the same document")
}

func TestExtractionDefaults(t *testing.T) {
	ext, ok := repository.VehicleRecord{ID: "x", VIN: "1HGCM82633A004352", Make: "Honda"}.Extraction(now)
	require.True(t, ok)
	assert.Equal(t, vehicles.SourceManualEntry, ext.Source)
	assert.Equal(t, 1.0, ext.ExtractionConfidence)

	_, ok = repository.VehicleRecord{ID: "legacy", Make: "Honda"}.Extraction(now)
	assert.False(t, ok)
}
