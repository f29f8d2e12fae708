package vehicles_test

import (
	"testing"
	"time"

	"github.com/agentstation/fleetmap/pkg/vehicles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldSets(t *testing.T) {
	received := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("registration", func(t *testing.T) {
		ext := vehicles.NewExtraction("d1", "1HGCM82633A004352", vehicles.RegistrationFields{
			Make:           "Honda",
			Year:           "2003",
			ExpirationDate: "2026-01-01",
		}, vehicles.SourceDocumentProcessing, 0.9, received)

		assert.Equal(t, vehicles.DocumentRegistration, ext.DocumentType)
		assert.Equal(t, "Honda", ext.Fields[vehicles.FieldMake])
		assert.Equal(t, "2026-01-01", ext.Fields[vehicles.FieldRegistrationExpirationDate])
		_, hasModel := ext.Fields[vehicles.FieldModel]
		assert.False(t, hasModel, "empty values are dropped")
	})

	t.Run("cdl", func(t *testing.T) {
		set := vehicles.CDLFields{LicenseNumber: "D123", ExpirationDate: "2027-05-05"}
		assert.Equal(t, vehicles.DocumentCDL, set.DocumentType())
		assert.Len(t, set.Fields(), 2)
	})

	t.Run("generic", func(t *testing.T) {
		set := vehicles.GenericFields{vehicles.FieldTruckNumber: "T-12", vehicles.FieldColor: ""}
		assert.Equal(t, vehicles.DocumentOther, set.DocumentType())
		assert.Equal(t, vehicles.Fields{vehicles.FieldTruckNumber: "T-12"}, set.Fields())
	})
}

func TestVehicleStateLifecycle(t *testing.T) {
	doc := vehicles.DocumentExtraction{DocumentID: "d1", DocumentType: vehicles.DocumentRegistration}
	full := map[vehicles.FieldName]*vehicles.FieldState{
		vehicles.FieldMake:  {CurrentValue: "Honda"},
		vehicles.FieldModel: {CurrentValue: "Accord"},
		vehicles.FieldYear:  {CurrentValue: "2003"},
	}
	days := 40
	expires := time.Now().Add(40 * 24 * time.Hour)
	dated := vehicles.ComplianceReport{
		Categories: map[vehicles.Category]vehicles.CategoryStatus{
			vehicles.CategoryRegistration: {Status: vehicles.StatusCurrent, ExpiresAt: &expires, DaysUntilExpiry: &days},
		},
	}

	tests := []struct {
		name  string
		state *vehicles.VehicleState
		want  vehicles.Lifecycle
	}{
		{name: "nil", state: nil, want: vehicles.LifecycleUnknown},
		{name: "no documents", state: &vehicles.VehicleState{}, want: vehicles.LifecycleUnknown},
		{
			name: "partial",
			state: &vehicles.VehicleState{
				Documents: []vehicles.DocumentExtraction{doc},
				Fields:    map[vehicles.FieldName]*vehicles.FieldState{vehicles.FieldMake: {CurrentValue: "Honda"}},
			},
			want: vehicles.LifecyclePartial,
		},
		{
			name:  "complete",
			state: &vehicles.VehicleState{Documents: []vehicles.DocumentExtraction{doc}, Fields: full},
			want:  vehicles.LifecycleComplete,
		},
		{
			name: "compliant",
			state: func() *vehicles.VehicleState {
				r := dated.Clone()
				r.Level = vehicles.LevelCompliant
				return &vehicles.VehicleState{Documents: []vehicles.DocumentExtraction{doc}, Fields: full, Compliance: r}
			}(),
			want: vehicles.LifecycleCompliant,
		},
		{
			name: "at risk",
			state: func() *vehicles.VehicleState {
				r := dated.Clone()
				r.Level = vehicles.LevelWarning
				return &vehicles.VehicleState{Documents: []vehicles.DocumentExtraction{doc}, Fields: full, Compliance: r}
			}(),
			want: vehicles.LifecycleAtRisk,
		},
		{
			name: "non compliant",
			state: func() *vehicles.VehicleState {
				r := dated.Clone()
				r.Level = vehicles.LevelNonCompliant
				return &vehicles.VehicleState{Documents: []vehicles.DocumentExtraction{doc}, Fields: full, Compliance: r}
			}(),
			want: vehicles.LifecycleNonCompliant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Lifecycle())
		})
	}
}

func TestVehicleStateClone(t *testing.T) {
	orig := &vehicles.VehicleState{
		VIN: "1HGCM82633A004352",
		Fields: map[vehicles.FieldName]*vehicles.FieldState{
			vehicles.FieldMake: {
				CurrentValue: "Honda",
				History:      []vehicles.FieldObservation{{DocumentID: "d1", Value: "Honda"}},
			},
		},
		Documents: []vehicles.DocumentExtraction{{DocumentID: "d1", Fields: vehicles.Fields{vehicles.FieldMake: "Honda"}}},
		ActiveConflicts: []vehicles.Conflict{{Field: vehicles.FieldMake}},
	}

	clone := orig.Clone()
	require.NotNil(t, clone)

	clone.Fields[vehicles.FieldMake].CurrentValue = "Toyota"
	clone.Fields[vehicles.FieldMake].History[0].Value = "Toyota"
	clone.Documents[0].Fields[vehicles.FieldMake] = "Toyota"
	clone.ActiveConflicts[0].ValueA = "x"

	assert.Equal(t, "Honda", orig.Value(vehicles.FieldMake))
	assert.Equal(t, "Honda", orig.Fields[vehicles.FieldMake].History[0].Value)
	assert.Equal(t, "Honda", orig.Documents[0].Fields[vehicles.FieldMake])
	assert.Empty(t, orig.ActiveConflicts[0].ValueA)
	assert.Equal(t, "1HGCM82633A004352", orig.Value(vehicles.FieldVIN))
}

func TestRiskRank(t *testing.T) {
	assert.Greater(t, vehicles.RiskCritical.Rank(), vehicles.RiskHigh.Rank())
	assert.Greater(t, vehicles.RiskHigh.Rank(), vehicles.RiskMedium.Rank())
	assert.Greater(t, vehicles.RiskMedium.Rank(), vehicles.RiskLow.Rank())
}
