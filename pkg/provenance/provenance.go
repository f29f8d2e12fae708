// Package provenance explains reconciled vehicle records: for every field
// it lists which document supplied the current value, which other values
// were reported and whether the field is in conflict.
package provenance

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// Provenance records one reported value of a field.
type Provenance struct {
	DocumentID   string                `json:"documentId" yaml:"documentId"`
	DocumentType vehicles.DocumentType `json:"documentType" yaml:"documentType"`
	Source       vehicles.Source       `json:"source" yaml:"source"`
	Value        string                `json:"value" yaml:"value"`
	ReceivedAt   time.Time             `json:"receivedAt" yaml:"receivedAt"`
	Confidence   float64               `json:"confidence" yaml:"confidence"`
	Valid        bool                  `json:"valid" yaml:"valid"`
	Selected     bool                  `json:"selected" yaml:"selected"`
}

// Field contains provenance history for a single field.
type Field struct {
	Current     Provenance     `json:"current" yaml:"current"`
	Reason      string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	History     []Provenance   `json:"history" yaml:"history"` // newest first
	Conflicts   []ConflictInfo `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	NeedsReview bool           `json:"needsReview" yaml:"needsReview"`
}

// ConflictInfo describes an unresolved disagreement.
type ConflictInfo struct {
	Values    []string `json:"values" yaml:"values"`
	Documents []string `json:"documents" yaml:"documents"`
}

// VehicleProvenance contains provenance for one vehicle.
type VehicleProvenance struct {
	VIN       vehicles.VIN                 `json:"vin" yaml:"vin"`
	Lifecycle vehicles.Lifecycle           `json:"lifecycle" yaml:"lifecycle"`
	Fields    map[vehicles.FieldName]Field `json:"fields" yaml:"fields"`
	Gaps      []vehicles.FieldGap          `json:"gaps,omitempty" yaml:"gaps,omitempty"`
	Documents int                          `json:"documents" yaml:"documents"`
}

// Report is a human and machine readable provenance report.
type Report struct {
	GeneratedAt time.Time                          `json:"generatedAt" yaml:"generatedAt"`
	Vehicles    map[vehicles.VIN]VehicleProvenance `json:"vehicles" yaml:"vehicles"`
}

// FromStates builds a report from reconciled vehicles.
func FromStates(now time.Time, states ...*vehicles.VehicleState) *Report {
	report := &Report{
		GeneratedAt: now,
		Vehicles:    make(map[vehicles.VIN]VehicleProvenance, len(states)),
	}
	for _, s := range states {
		if s == nil {
			continue
		}
		report.Vehicles[s.VIN] = vehicleProvenance(s)
	}
	return report
}

func vehicleProvenance(s *vehicles.VehicleState) VehicleProvenance {
	vp := VehicleProvenance{
		VIN:       s.VIN,
		Lifecycle: s.Lifecycle(),
		Fields:    make(map[vehicles.FieldName]Field, len(s.Fields)),
		Gaps:      append([]vehicles.FieldGap(nil), s.Gaps...),
		Documents: len(s.Documents),
	}

	for name, fs := range s.Fields {
		if fs == nil {
			continue
		}
		f := Field{Reason: fs.Reason, NeedsReview: fs.NeedsReview}
		for _, obs := range fs.History {
			p := Provenance{
				DocumentID:   obs.DocumentID,
				DocumentType: obs.DocumentType,
				Source:       obs.Source,
				Value:        obs.Value,
				ReceivedAt:   obs.ReceivedAt,
				Confidence:   obs.Confidence,
				Valid:        obs.Valid,
				Selected:     obs.DocumentID == fs.CurrentDocumentID && fs.CurrentValue != "",
			}
			if p.Selected {
				f.Current = p
			}
			f.History = append(f.History, p)
		}
		// Newest first
		sort.SliceStable(f.History, func(i, j int) bool {
			return f.History[i].ReceivedAt.After(f.History[j].ReceivedAt)
		})
		f.Conflicts = detectConflicts(name, s.ActiveConflicts)
		vp.Fields[name] = f
	}
	return vp
}

func detectConflicts(name vehicles.FieldName, conflicts []vehicles.Conflict) []ConflictInfo {
	var out []ConflictInfo
	for _, c := range conflicts {
		if c.Field != name {
			continue
		}
		out = append(out, ConflictInfo{
			Values:    []string{c.ValueA, c.ValueB},
			Documents: []string{c.DocumentA, c.DocumentB},
		})
	}
	return out
}

// String generates a string representation of the provenance report.
func (r *Report) String() string {
	var sb strings.Builder

	sb.WriteString("Provenance Report\n")
	sb.WriteString("=================\n\n")

	vins := make([]string, 0, len(r.Vehicles))
	for vin := range r.Vehicles {
		vins = append(vins, string(vin))
	}
	sort.Strings(vins)

	for _, vin := range vins {
		vp := r.Vehicles[vehicles.VIN(vin)]
		sb.WriteString(fmt.Sprintf("vehicle: %s (%s, %d documents)\n", vp.VIN, vp.Lifecycle, vp.Documents))
		sb.WriteString(strings.Repeat("-", 40))
		sb.WriteString("\n")

		fields := make([]string, 0, len(vp.Fields))
		for name := range vp.Fields {
			fields = append(fields, string(name))
		}
		sort.Strings(fields)

		for _, name := range fields {
			f := vp.Fields[vehicles.FieldName(name)]
			sb.WriteString(fmt.Sprintf("  %s:\n", name))
			if f.Current.DocumentID != "" {
				sb.WriteString(fmt.Sprintf("    Current: %s (from %s %s, confidence %.2f)\n",
					f.Current.Value, f.Current.DocumentType, f.Current.DocumentID, f.Current.Confidence))
			} else {
				sb.WriteString("    Current: <missing>\n")
			}
			if f.Reason != "" {
				sb.WriteString(fmt.Sprintf("    Reason: %s\n", f.Reason))
			}
			if f.NeedsReview {
				sb.WriteString("    Needs review\n")
			}

			if len(f.Conflicts) > 0 {
				sb.WriteString("    Conflicts:\n")
				for _, c := range f.Conflicts {
					sb.WriteString(fmt.Sprintf("      - Values: %v\n", c.Values))
					sb.WriteString(fmt.Sprintf("        Documents: %v\n", c.Documents))
				}
			}

			if len(f.History) > 1 {
				sb.WriteString("    History:\n")
				for i, p := range f.History {
					if i > 3 { // Limit history display
						sb.WriteString(fmt.Sprintf("      ... and %d more\n", len(f.History)-i))
						break
					}
					mark := ""
					if !p.Valid {
						mark = " (unusable)"
					}
					sb.WriteString(fmt.Sprintf("      - %s from %s at %s%s\n",
						p.Value, p.DocumentID, p.ReceivedAt.Format(time.RFC3339), mark))
				}
			}
		}
		for _, g := range vp.Gaps {
			sb.WriteString(fmt.Sprintf("  gap: %s in %s: %q (%s)\n", g.Field, g.DocumentID, g.RawValue, g.Reason))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// Save writes the report as YAML.
func (r *Report) Save(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return errors.WrapParse("yaml", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // report is not sensitive
		return errors.WrapIO("write", path, err)
	}
	return nil
}

// Load reads a report written by Save.
// Returns nil, nil if the file doesn't exist (not an error).
func Load(path string) (*Report, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return &r, nil
}
