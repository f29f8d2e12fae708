package reconciler

import (
	"math"
	"sort"

	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// GetStats implements Reconciler.
func (r *reconciler) GetStats() Stats {
	all := r.GetAllVehicles()
	stats := Stats{
		TotalVehicles:  len(all),
		TotalDocuments: r.store.Len(),
		ByRisk:         make(map[vehicles.RiskLevel]int),
		ByLevel:        make(map[vehicles.Level]int),
		ByLifecycle:    make(map[vehicles.Lifecycle]int),
		ByDocumentType: make(map[vehicles.DocumentType]int),
		GeneratedAt:    r.clock().UTC(),
	}

	total := 0
	for _, v := range all {
		stats.ActiveConflicts += len(v.ActiveConflicts)
		if len(v.ActiveConflicts) > 0 {
			stats.VehiclesWithConflicts++
		}
		if v.NeedsReview() {
			stats.VehiclesNeedingReview++
		}
		stats.ByRisk[v.Compliance.Risk]++
		stats.ByLevel[v.Compliance.Level]++
		stats.ByLifecycle[v.Lifecycle()]++
		for _, d := range v.Documents {
			stats.ByDocumentType[d.DocumentType]++
		}
		total += v.Compliance.Score

		for _, c := range vehicles.Categories() {
			s := v.Compliance.Category(c)
			if !s.Dated() {
				continue
			}
			switch days := *s.DaysUntilExpiry; {
			case days < 0:
				stats.Alerts.Expired++
			case days == 0:
				stats.Alerts.Today++
			case days <= 7:
				stats.Alerts.ThisWeek++
			case days <= 30:
				stats.Alerts.ThisMonth++
			}
		}
	}
	if len(all) > 0 {
		stats.AverageScore = math.Round(float64(total)/float64(len(all))*10) / 10
	}
	return stats
}

// GetExpiringVehicles implements Reconciler.
func (r *reconciler) GetExpiringVehicles(days int) []ExpiringVehicle {
	var out []ExpiringVehicle
	for _, v := range r.GetAllVehicles() {
		cats := expiringWithin(v, days)
		if len(cats) == 0 {
			continue
		}
		out = append(out, ExpiringVehicle{
			VIN:             v.VIN,
			Make:            v.Value(vehicles.FieldMake),
			Model:           v.Value(vehicles.FieldModel),
			LicensePlate:    v.Value(vehicles.FieldLicensePlate),
			DaysUntilExpiry: *cats[0].DaysUntilExpiry,
			Urgency:         cats[0].Urgency,
			Categories:      cats,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysUntilExpiry != out[j].DaysUntilExpiry {
			return out[i].DaysUntilExpiry < out[j].DaysUntilExpiry
		}
		return out[i].VIN < out[j].VIN
	})
	return out
}

// GetComplianceBreakdown implements Reconciler.
func (r *reconciler) GetComplianceBreakdown() Breakdown {
	b := Breakdown{
		Categories: make(map[vehicles.Category]map[vehicles.Status]int),
		Levels:     make(map[vehicles.Level]int),
		Risks:      make(map[vehicles.RiskLevel]int),
	}
	for _, c := range vehicles.Categories() {
		b.Categories[c] = make(map[vehicles.Status]int)
	}
	for _, v := range r.GetAllVehicles() {
		b.Total++
		b.Levels[v.Compliance.Level]++
		b.Risks[v.Compliance.Risk]++
		for _, c := range vehicles.Categories() {
			b.Categories[c][v.Compliance.Category(c).Status]++
		}
	}
	return b
}
