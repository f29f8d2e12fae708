package table

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agentstation/fleetmap/pkg/dashboard"
	"github.com/agentstation/fleetmap/pkg/reconciler"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// VehiclesToTableData converts reconciled vehicles to table format.
// Wide output adds one column per compliance category.
func VehiclesToTableData(states []*vehicles.VehicleState, wide bool) Data {
	headers := []string{"VIN", "Make", "Model", "Year", "Plate", "Score", "Risk", "Conflicts", "Docs"}
	align := []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignLeft, AlignRight, AlignLeft, AlignRight, AlignRight}
	if wide {
		for _, c := range vehicles.Categories() {
			headers = append(headers, strings.ToUpper(string(c[:1]))+string(c[1:]))
			align = append(align, AlignLeft)
		}
		headers = append(headers, "Lifecycle")
		align = append(align, AlignLeft)
	}

	rows := make([][]string, 0, len(states))
	for _, s := range states {
		if s == nil {
			continue
		}
		row := []string{
			string(s.VIN),
			dash(s.Value(vehicles.FieldMake)),
			dash(s.Value(vehicles.FieldModel)),
			dash(s.Value(vehicles.FieldYear)),
			dash(s.Value(vehicles.FieldLicensePlate)),
			strconv.Itoa(s.Compliance.Score),
			string(s.Compliance.Risk),
			strconv.Itoa(len(s.ActiveConflicts)),
			strconv.Itoa(len(s.Documents)),
		}
		if wide {
			for _, c := range vehicles.Categories() {
				row = append(row, FormatCategory(s.Compliance.Category(c)))
			}
			row = append(row, string(s.Lifecycle()))
		}
		rows = append(rows, row)
	}

	return Data{Headers: headers, Rows: rows, ColumnAlignment: align}
}

// VehicleDetailToTableData renders every reconciled field of one vehicle.
func VehicleDetailToTableData(s *vehicles.VehicleState) Data {
	rows := make([][]string, 0, len(s.Fields))
	for _, name := range s.FieldNames() {
		fs := s.Fields[name]
		if fs == nil {
			continue
		}
		flags := make([]string, 0, 2)
		if fs.Conflicted {
			flags = append(flags, "conflict")
		}
		if fs.NeedsReview {
			flags = append(flags, "review")
		}
		rows = append(rows, []string{
			string(name),
			dash(Truncate(fs.CurrentValue, 40)),
			dash(string(fs.CurrentDocumentType)),
			FormatConfidence(fs.CurrentConfidence),
			dash(strings.Join(flags, ",")),
		})
	}
	return Data{
		Headers:         []string{"Field", "Value", "Document", "Confidence", "Flags"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignLeft},
	}
}

// ExpiringToTableData converts expiring vehicles to table format.
func ExpiringToTableData(list []reconciler.ExpiringVehicle) Data {
	rows := make([][]string, 0, len(list))
	for _, ev := range list {
		cats := make([]string, 0, len(ev.Categories))
		for _, cs := range ev.Categories {
			if cs.DaysUntilExpiry == nil {
				continue
			}
			cats = append(cats, fmt.Sprintf("%s (%s)", cs.Category, FormatDays(*cs.DaysUntilExpiry)))
		}
		rows = append(rows, []string{
			string(ev.VIN),
			dash(strings.TrimSpace(ev.Make + " " + ev.Model)),
			dash(ev.LicensePlate),
			FormatDays(ev.DaysUntilExpiry),
			string(ev.Urgency),
			strings.Join(cats, ", "),
		})
	}
	return Data{
		Headers:         []string{"VIN", "Vehicle", "Plate", "Expires", "Urgency", "Categories"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignLeft, AlignLeft},
	}
}

// DashboardToTableData renders the fleet dashboard as a key/value table.
func DashboardToTableData(d *dashboard.FleetDashboard) Data {
	rows := [][]string{
		{"Vehicles", strconv.Itoa(d.TotalVehicles)},
		{"Documents", strconv.Itoa(d.TotalDocuments)},
		{"Compliant", strconv.Itoa(d.Compliant)},
		{"Warning", strconv.Itoa(d.Warning)},
		{"Non-compliant", strconv.Itoa(d.NonCompliant)},
		{"Average score", fmt.Sprintf("%.1f", d.AverageScore)},
		{"Active conflicts", strconv.Itoa(d.ActiveConflicts)},
		{"Needs review", strconv.Itoa(d.NeedsReview)},
		{"Expired", strconv.Itoa(d.Alerts.Expired)},
		{"Expiring today", strconv.Itoa(d.Alerts.Today)},
		{"Expiring this week", strconv.Itoa(d.Alerts.ThisWeek)},
		{"Expiring this month", strconv.Itoa(d.Alerts.ThisMonth)},
	}
	for _, risk := range []vehicles.RiskLevel{vehicles.RiskCritical, vehicles.RiskHigh, vehicles.RiskMedium, vehicles.RiskLow} {
		rows = append(rows, []string{"Risk " + string(risk), strconv.Itoa(d.ByRisk[risk])})
	}
	for _, issue := range d.TopIssues {
		rows = append(rows, []string{"Issue", issue.Description})
	}
	return Data{
		Headers:         []string{"Metric", "Value"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignRight},
	}
}

// BreakdownToTableData renders per-category status counts.
func BreakdownToTableData(b reconciler.Breakdown) Data {
	statuses := []vehicles.Status{vehicles.StatusCurrent, vehicles.StatusExpiringSoon, vehicles.StatusExpired, vehicles.StatusMissing}
	headers := []string{"Category"}
	for _, s := range statuses {
		headers = append(headers, string(s))
	}

	cats := make([]string, 0, len(b.Categories))
	for c := range b.Categories {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)

	rows := make([][]string, 0, len(cats))
	for _, c := range cats {
		counts := b.Categories[vehicles.Category(c)]
		row := []string{c}
		for _, s := range statuses {
			row = append(row, strconv.Itoa(counts[s]))
		}
		rows = append(rows, row)
	}
	return Data{
		Headers:         headers,
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight},
	}
}
