package filter

import (
	"net/url"
	"strings"

	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/events"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// ParseStreamMatch reads the subscription of an update stream from the
// "vin" and "type" parameters. Both may repeat or hold comma-separated
// lists. VINs are normalized the same way stored vehicles are.
func ParseStreamMatch(q url.Values) (events.Match, error) {
	var m events.Match
	for _, raw := range splitValues(q["vin"]) {
		vin, err := vehicles.ParseVIN(raw)
		if err != nil {
			return events.Match{}, err
		}
		m.VINs = append(m.VINs, vin.String())
	}
	for _, raw := range splitValues(q["type"]) {
		t, ok := events.ParseEventType(strings.ToLower(raw))
		if !ok {
			return events.Match{}, errors.NewValidationError("type", raw, "unknown event type")
		}
		m.Types = append(m.Types, t)
	}
	return m, nil
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
