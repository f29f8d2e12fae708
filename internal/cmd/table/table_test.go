package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/fleetmap/pkg/provenance"
	"github.com/agentstation/fleetmap/pkg/reconciler"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

func days(n int) *int { return &n }

func TestFormatDays(t *testing.T) {
	assert.Equal(t, "3d ago", FormatDays(-3))
	assert.Equal(t, "today", FormatDays(0))
	assert.Equal(t, "45d", FormatDays(45))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
}

func TestFormatCategory(t *testing.T) {
	assert.Equal(t, "- missing", FormatCategory(vehicles.CategoryStatus{Status: vehicles.StatusMissing}))
	assert.Equal(t, "! 5d", FormatCategory(vehicles.CategoryStatus{Status: vehicles.StatusExpiringSoon, DaysUntilExpiry: days(5)}))
	assert.Equal(t, "✗ 2d ago", FormatCategory(vehicles.CategoryStatus{Status: vehicles.StatusExpired, DaysUntilExpiry: days(-2)}))
}

func TestVehiclesToTableData(t *testing.T) {
	state := &vehicles.VehicleState{
		VIN: "1HGCM82633A004352",
		Fields: map[vehicles.FieldName]*vehicles.FieldState{
			vehicles.FieldMake:  {Field: vehicles.FieldMake, CurrentValue: "Honda"},
			vehicles.FieldModel: {Field: vehicles.FieldModel, CurrentValue: "Accord"},
		},
		Compliance: vehicles.ComplianceReport{Score: 80, Risk: vehicles.RiskMedium},
	}

	narrow := VehiclesToTableData([]*vehicles.VehicleState{state, nil}, false)
	require.Len(t, narrow.Rows, 1)
	assert.Len(t, narrow.Headers, len(narrow.Rows[0]))
	assert.Equal(t, []string{"1HGCM82633A004352", "Honda", "Accord", "-", "-", "80", "medium", "0", "0"}, narrow.Rows[0])

	wide := VehiclesToTableData([]*vehicles.VehicleState{state}, true)
	assert.Len(t, wide.Headers, len(narrow.Headers)+len(vehicles.Categories())+1)
	assert.Len(t, wide.ColumnAlignment, len(wide.Headers))
	assert.Equal(t, "Registration", wide.Headers[len(narrow.Headers)])
}

func TestExpiringToTableData(t *testing.T) {
	data := ExpiringToTableData([]reconciler.ExpiringVehicle{{
		VIN:             "1FTFW1ET5DFC10312",
		Make:            "Ford",
		DaysUntilExpiry: 0,
		Urgency:         vehicles.UrgencyCritical,
		Categories: []vehicles.CategoryStatus{
			{Category: vehicles.CategoryInsurance, DaysUntilExpiry: days(0)},
			{Category: vehicles.CategoryRegistration, DaysUntilExpiry: days(12)},
		},
	}})
	require.Len(t, data.Rows, 1)
	assert.Equal(t, "Ford", data.Rows[0][1])
	assert.Equal(t, "today", data.Rows[0][3])
	assert.Equal(t, "insurance (today), registration (12d)", data.Rows[0][5])
}

func TestProvenanceToTableData(t *testing.T) {
	at := time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)
	report := &provenance.Report{Vehicles: map[vehicles.VIN]provenance.VehicleProvenance{
		"1HGCM82633A004352": {
			VIN: "1HGCM82633A004352",
			Fields: map[vehicles.FieldName]provenance.Field{
				vehicles.FieldMake: {
					History: []provenance.Provenance{
						{Value: "Honda", Confidence: 0.9, Valid: true, Selected: true, ReceivedAt: at},
						{Value: "Hnda", Confidence: 0.4, Valid: true, ReceivedAt: at.Add(-time.Hour)},
					},
					Conflicts: []provenance.ConflictInfo{{Values: []string{"Honda", "Hnda"}}},
				},
			},
		},
	}}

	data := ProvenanceToTableData(report)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "1HGCM82633A004352", data.Rows[0][0])
	assert.Equal(t, "→", data.Rows[0][2])
	assert.Equal(t, "90%", data.Rows[0][6])
	assert.Equal(t, "conflict", data.Rows[0][8])
	assert.Equal(t, "", data.Rows[1][1])
	assert.Equal(t, "-", data.Rows[1][8])
}
