package table

import (
	"sort"
	"strings"

	"github.com/agentstation/fleetmap/pkg/provenance"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// ProvenanceToTableData converts a provenance report to table format.
// Each field lists its history newest first; the selected value is marked.
func ProvenanceToTableData(report *provenance.Report) Data {
	var rows [][]string

	vins := make([]string, 0, len(report.Vehicles))
	for vin := range report.Vehicles {
		vins = append(vins, string(vin))
	}
	sort.Strings(vins)

	for _, vin := range vins {
		vp := report.Vehicles[vehicles.VIN(vin)]

		fields := make([]string, 0, len(vp.Fields))
		for name := range vp.Fields {
			fields = append(fields, string(name))
		}
		sort.Strings(fields)

		for _, name := range fields {
			f := vp.Fields[vehicles.FieldName(name)]
			for i, p := range f.History {
				vinCell, fieldCell := "", ""
				if i == 0 {
					fieldCell = name
					if name == fields[0] {
						vinCell = vin
					}
				}

				marker := ""
				if p.Selected {
					marker = "→"
				}

				notes := make([]string, 0, 2)
				if !p.Valid {
					notes = append(notes, "invalid")
				}
				if i == 0 && len(f.Conflicts) > 0 {
					notes = append(notes, "conflict")
				}
				if i == 0 && f.NeedsReview {
					notes = append(notes, "review")
				}

				rows = append(rows, []string{
					vinCell,
					fieldCell,
					marker,
					dash(Truncate(p.Value, 40)),
					string(p.DocumentType),
					string(p.Source),
					FormatConfidence(p.Confidence),
					p.ReceivedAt.UTC().Format("2006-01-02 15:04"),
					dash(strings.Join(notes, ",")),
				})
			}
		}
	}

	return Data{
		Headers:         []string{"VIN", "Field", "", "Value", "Document", "Source", "Confidence", "Received", "Notes"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignCenter, AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignLeft, AlignLeft},
	}
}
