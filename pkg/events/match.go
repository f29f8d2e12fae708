package events

import "slices"

// Match selects the events a single stream client receives. Empty lists
// match everything. Events that carry no VIN pass the VIN filter, so
// fleet-wide notices such as FleetCleared reach filtered clients.
type Match struct {
	VINs  []string
	Types []EventType
}

// All reports whether m matches every event.
func (m Match) All() bool {
	return len(m.VINs) == 0 && len(m.Types) == 0
}

// Allows reports whether e passes the filter.
func (m Match) Allows(e Event) bool {
	if len(m.Types) > 0 && !slices.Contains(m.Types, e.Type) {
		return false
	}
	if len(m.VINs) == 0 {
		return true
	}
	vin := VINOf(e.Data)
	return vin == "" || slices.Contains(m.VINs, vin)
}

// VINOf extracts the vehicle identifier from an event payload, or "" when
// the payload is not about a single vehicle.
func VINOf(data any) string {
	switch d := data.(type) {
	case VehiclePayload:
		return d.VIN
	case *VehiclePayload:
		if d != nil {
			return d.VIN
		}
	case map[string]any:
		if vin, ok := d["vin"].(string); ok {
			return vin
		}
	}
	return ""
}
