// Package compliance evaluates expiry-driven compliance for a vehicle.
// Evaluation is a pure function of the current field values and the
// evaluation instant, so it is recomputed on every read.
package compliance

import (
	"math"
	"time"

	"github.com/agentstation/fleetmap/pkg/standardize"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// Thresholds, in days.
const (
	ExpiringSoonDays = 30
	CriticalDays     = 7
)

// Score weights per status.
const (
	WeightCurrent      = 100
	WeightExpiringSoon = 70
	WeightExpired      = 0
	WeightMissing      = 0
)

// Level and risk cut-offs on the 0..100 score.
const (
	CompliantScore  = 90
	WarningScore    = 50
	HighRiskScore   = 70
	MediumRiskScore = 90
)

// InspectionValidity is assumed when only the inspection date is known.
const InspectionValidity = 1 // years

// Input is what the evaluator needs to know about a vehicle.
type Input struct {
	// Values holds current standardized field values.
	Values map[vehicles.FieldName]string
	// DriverDocuments is true when a cdl or medical document is on file.
	DriverDocuments bool
	// Conflicts is the number of active identity conflicts.
	Conflicts int
}

// InputFromState builds an Input from a reconciled vehicle.
func InputFromState(v *vehicles.VehicleState) Input {
	in := Input{Values: make(map[vehicles.FieldName]string, len(v.Fields))}
	for name, fs := range v.Fields {
		if fs != nil && fs.CurrentValue != "" {
			in.Values[name] = fs.CurrentValue
		}
	}
	in.DriverDocuments = v.HasDocumentType(vehicles.DocumentCDL) || v.HasDocumentType(vehicles.DocumentMedical)
	in.Conflicts = len(v.ActiveConflicts)
	return in
}

// Evaluate computes the compliance report at now.
func Evaluate(in Input, now time.Time) vehicles.ComplianceReport {
	report := vehicles.ComplianceReport{
		EvaluatedAt: now,
		Categories:  make(map[vehicles.Category]vehicles.CategoryStatus, 4),
	}

	report.Categories[vehicles.CategoryRegistration] = categoryStatus(vehicles.CategoryRegistration,
		date(in.Values, vehicles.FieldRegistrationExpirationDate), true, now)
	report.Categories[vehicles.CategoryInsurance] = categoryStatus(vehicles.CategoryInsurance,
		date(in.Values, vehicles.FieldInsuranceExpirationDate), true, now)
	report.Categories[vehicles.CategoryInspection] = categoryStatus(vehicles.CategoryInspection,
		inspectionExpiry(in.Values), true, now)

	license := earliest(
		date(in.Values, vehicles.FieldLicenseExpirationDate),
		date(in.Values, vehicles.FieldMedicalCertificateExpirationDate),
	)
	report.Categories[vehicles.CategoryLicense] = categoryStatus(vehicles.CategoryLicense,
		license, in.DriverDocuments || license != nil, now)

	report.Score = Score(report.Categories)
	report.Level = LevelFor(report.Score)
	report.Risk = Risk(report.Categories, report.Score, in.Conflicts)
	report.NextExpiration = nextExpiration(report.Categories)
	return report
}

// EvaluateState evaluates a reconciled vehicle.
func EvaluateState(v *vehicles.VehicleState, now time.Time) vehicles.ComplianceReport {
	return Evaluate(InputFromState(v), now)
}

// DaysUntil returns ceil((expiry - now) / 24h). Negative means expired.
func DaysUntil(expiry, now time.Time) int {
	d := math.Ceil(expiry.Sub(now).Hours() / 24)
	if d == 0 {
		return 0 // avoid -0
	}
	return int(d)
}

// StatusFor maps days until expiry onto a status.
func StatusFor(days int) vehicles.Status {
	switch {
	case days < 0:
		return vehicles.StatusExpired
	case days <= ExpiringSoonDays:
		return vehicles.StatusExpiringSoon
	default:
		return vehicles.StatusCurrent
	}
}

// UrgencyFor maps days until expiry onto an urgency.
func UrgencyFor(days int) vehicles.Urgency {
	switch {
	case days < 0:
		return vehicles.UrgencyExpired
	case days <= CriticalDays:
		return vehicles.UrgencyCritical
	case days <= ExpiringSoonDays:
		return vehicles.UrgencyWarning
	default:
		return vehicles.UrgencyNormal
	}
}

// Weight returns the score contribution of a status.
func Weight(s vehicles.Status) int {
	switch s {
	case vehicles.StatusCurrent:
		return WeightCurrent
	case vehicles.StatusExpiringSoon:
		return WeightExpiringSoon
	case vehicles.StatusExpired:
		return WeightExpired
	default:
		return WeightMissing
	}
}

// Score is the rounded mean weight over scored categories.
func Score(categories map[vehicles.Category]vehicles.CategoryStatus) int {
	total, n := 0, 0
	for _, c := range categories {
		if !c.Scored {
			continue
		}
		total += Weight(c.Status)
		n++
	}
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(n)))
}

// LevelFor maps a score onto a compliance level.
func LevelFor(score int) vehicles.Level {
	switch {
	case score >= CompliantScore:
		return vehicles.LevelCompliant
	case score >= WarningScore:
		return vehicles.LevelWarning
	default:
		return vehicles.LevelNonCompliant
	}
}

// Risk derives the risk level from category statuses, score and conflicts.
func Risk(categories map[vehicles.Category]vehicles.CategoryStatus, score, conflicts int) vehicles.RiskLevel {
	for _, c := range categories {
		if c.Status == vehicles.StatusExpired {
			return vehicles.RiskCritical
		}
	}
	switch {
	case conflicts > 0 && score < WarningScore:
		return vehicles.RiskCritical
	case score < HighRiskScore:
		return vehicles.RiskHigh
	case score < MediumRiskScore:
		return vehicles.RiskMedium
	default:
		return vehicles.RiskLow
	}
}

func categoryStatus(c vehicles.Category, expiry *time.Time, scored bool, now time.Time) vehicles.CategoryStatus {
	if expiry == nil {
		return vehicles.CategoryStatus{
			Category: c,
			Status:   vehicles.StatusMissing,
			Urgency:  vehicles.UrgencyNone,
			Scored:   scored,
		}
	}
	days := DaysUntil(*expiry, now)
	return vehicles.CategoryStatus{
		Category:        c,
		Status:          StatusFor(days),
		Urgency:         UrgencyFor(days),
		ExpiresAt:       expiry,
		DaysUntilExpiry: &days,
		Scored:          scored,
	}
}

func inspectionExpiry(values map[vehicles.FieldName]string) *time.Time {
	if t := date(values, vehicles.FieldInspectionExpirationDate); t != nil {
		return t
	}
	if t := date(values, vehicles.FieldInspectionDate); t != nil {
		exp := t.AddDate(InspectionValidity, 0, 0)
		return &exp
	}
	return nil
}

func date(values map[vehicles.FieldName]string, f vehicles.FieldName) *time.Time {
	raw, ok := values[f]
	if !ok || raw == "" {
		return nil
	}
	t, err := standardize.ParseDate(raw)
	if err != nil {
		return nil
	}
	return &t
}

func earliest(ts ...*time.Time) *time.Time {
	var out *time.Time
	for _, t := range ts {
		if t != nil && (out == nil || t.Before(*out)) {
			out = t
		}
	}
	return out
}

func nextExpiration(categories map[vehicles.Category]vehicles.CategoryStatus) *vehicles.CategoryStatus {
	var next *vehicles.CategoryStatus
	for _, c := range vehicles.Categories() {
		s, ok := categories[c]
		if !ok || !s.Dated() {
			continue
		}
		if next == nil || *s.DaysUntilExpiry < *next.DaysUntilExpiry {
			s := s
			next = &s
		}
	}
	return next
}
