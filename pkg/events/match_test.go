package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchAllows(t *testing.T) {
	const honda = "1HGCM82633A004352"
	const ford = "1FTFW1ET5DFC10312"

	tests := []struct {
		name  string
		match Match
		event Event
		want  bool
	}{
		{"zero value", Match{}, Event{Type: VehicleAdded, Data: VehiclePayload{VIN: honda}}, true},
		{"vin hit", Match{VINs: []string{honda}}, Event{Type: VehicleUpdated, Data: VehiclePayload{VIN: honda}}, true},
		{"vin miss", Match{VINs: []string{honda}}, Event{Type: VehicleUpdated, Data: VehiclePayload{VIN: ford}}, false},
		{"pointer payload", Match{VINs: []string{ford}}, Event{Data: &VehiclePayload{VIN: ford}}, true},
		{"map payload", Match{VINs: []string{honda}}, Event{Data: map[string]any{"vin": ford}}, false},
		{"fleet-wide passes vin filter", Match{VINs: []string{honda}}, Event{Type: FleetCleared, Data: map[string]any{"vehicles": 2}}, true},
		{"type hit", Match{Types: []EventType{FleetCleared}}, Event{Type: FleetCleared}, true},
		{"type miss", Match{Types: []EventType{FleetCleared}}, Event{Type: VehicleAdded, Data: VehiclePayload{VIN: honda}}, false},
		{"both must hold", Match{VINs: []string{honda}, Types: []EventType{VehicleAdded}}, Event{Type: VehicleAdded, Data: VehiclePayload{VIN: ford}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.match.Allows(tt.event))
		})
	}
}

func TestMatchAll(t *testing.T) {
	assert.True(t, Match{}.All())
	assert.False(t, Match{Types: []EventType{CacheCleared}}.All())
}

func TestVINOf(t *testing.T) {
	var nilPayload *VehiclePayload
	assert.Equal(t, "", VINOf(nil))
	assert.Equal(t, "", VINOf(nilPayload))
	assert.Equal(t, "", VINOf(map[string]any{"vin": 7}))
	assert.Equal(t, "X", VINOf(VehiclePayload{VIN: "X"}))
}
