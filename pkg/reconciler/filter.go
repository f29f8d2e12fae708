package reconciler

import (
	"strings"

	"github.com/agentstation/fleetmap/pkg/standardize"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// Predicate selects vehicles.
type Predicate func(*vehicles.VehicleState) bool

// And combines predicates; all must match.
func And(preds ...Predicate) Predicate {
	return func(v *vehicles.VehicleState) bool {
		for _, p := range preds {
			if p != nil && !p(v) {
				return false
			}
		}
		return true
	}
}

// Or combines predicates; any must match.
func Or(preds ...Predicate) Predicate {
	return func(v *vehicles.VehicleState) bool {
		for _, p := range preds {
			if p != nil && p(v) {
				return true
			}
		}
		return false
	}
}

// Filter describes a vehicle search. Zero values match everything.
type Filter struct {
	VINContains       string                `json:"vin,omitempty"`
	Make              string                `json:"make,omitempty"`
	Model             string                `json:"model,omitempty"`
	LicensePlate      string                `json:"licensePlate,omitempty"`
	ComplianceStatus  string                `json:"complianceStatus,omitempty"` // a level or a category status
	RiskLevel         vehicles.RiskLevel    `json:"riskLevel,omitempty"`
	Lifecycle         vehicles.Lifecycle    `json:"lifecycle,omitempty"`
	DocumentType      vehicles.DocumentType `json:"documentType,omitempty"`
	HasConflicts      *bool                 `json:"hasConflicts,omitempty"`
	NeedsReview       *bool                 `json:"needsReview,omitempty"`
	ExpiresWithinDays *int                  `json:"expiresWithinDays,omitempty"`
	Where             Predicate             `json:"-"`
}

// Predicate compiles the filter.
func (f Filter) Predicate() Predicate {
	var preds []Predicate

	if f.VINContains != "" {
		needle := strings.ToUpper(strings.TrimSpace(f.VINContains))
		preds = append(preds, func(v *vehicles.VehicleState) bool {
			return strings.Contains(string(v.VIN), needle)
		})
	}
	if f.Make != "" {
		preds = append(preds, equalsField(vehicles.FieldMake, f.Make))
	}
	if f.Model != "" {
		preds = append(preds, equalsField(vehicles.FieldModel, f.Model))
	}
	if f.LicensePlate != "" {
		plate := standardize.Plate(f.LicensePlate)
		preds = append(preds, func(v *vehicles.VehicleState) bool {
			return strings.Contains(v.Value(vehicles.FieldLicensePlate), plate)
		})
	}
	if f.ComplianceStatus != "" {
		status := strings.ToLower(f.ComplianceStatus)
		preds = append(preds, func(v *vehicles.VehicleState) bool {
			return string(v.Compliance.Level) == status || v.Compliance.HasStatus(vehicles.Status(status))
		})
	}
	if f.RiskLevel != "" {
		preds = append(preds, func(v *vehicles.VehicleState) bool {
			return v.Compliance.Risk == f.RiskLevel
		})
	}
	if f.Lifecycle != "" {
		preds = append(preds, func(v *vehicles.VehicleState) bool {
			return v.Lifecycle() == f.Lifecycle
		})
	}
	if f.DocumentType != "" {
		preds = append(preds, func(v *vehicles.VehicleState) bool {
			return v.HasDocumentType(f.DocumentType)
		})
	}
	if f.HasConflicts != nil {
		want := *f.HasConflicts
		preds = append(preds, func(v *vehicles.VehicleState) bool {
			return (len(v.ActiveConflicts) > 0) == want
		})
	}
	if f.NeedsReview != nil {
		want := *f.NeedsReview
		preds = append(preds, func(v *vehicles.VehicleState) bool {
			return v.NeedsReview() == want
		})
	}
	if f.ExpiresWithinDays != nil {
		days := *f.ExpiresWithinDays
		preds = append(preds, func(v *vehicles.VehicleState) bool {
			return len(expiringWithin(v, days)) > 0
		})
	}
	if f.Where != nil {
		preds = append(preds, f.Where)
	}
	return And(preds...)
}

func equalsField(field vehicles.FieldName, want string) Predicate {
	key := standardize.Key(want)
	return func(v *vehicles.VehicleState) bool {
		return standardize.Key(v.Value(field)) == key
	}
}

// expiringWithin returns dated categories expiring within days (expired
// included), soonest first.
func expiringWithin(v *vehicles.VehicleState, days int) []vehicles.CategoryStatus {
	var out []vehicles.CategoryStatus
	for _, c := range vehicles.Categories() {
		s := v.Compliance.Category(c)
		if s.Dated() && *s.DaysUntilExpiry <= days {
			out = append(out, s)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && *out[j].DaysUntilExpiry < *out[j-1].DaysUntilExpiry; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
