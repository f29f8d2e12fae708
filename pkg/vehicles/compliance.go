package vehicles

import "time"

// Category is a compliance category tracked per vehicle.
type Category string

// Compliance categories.
const (
	CategoryRegistration Category = "registration"
	CategoryInsurance    Category = "insurance"
	CategoryInspection   Category = "inspection"
	CategoryLicense      Category = "license"
)

// Categories returns all categories in display order.
func Categories() []Category {
	return []Category{CategoryRegistration, CategoryInsurance, CategoryInspection, CategoryLicense}
}

// Status is the expiry status of one category.
type Status string

// Category statuses.
const (
	StatusCurrent      Status = "current"
	StatusExpiringSoon Status = "expiring_soon"
	StatusExpired      Status = "expired"
	StatusMissing      Status = "missing"
)

// Urgency ranks how soon a category needs attention.
type Urgency string

// Urgencies.
const (
	UrgencyExpired  Urgency = "expired"
	UrgencyCritical Urgency = "critical"
	UrgencyWarning  Urgency = "warning"
	UrgencyNormal   Urgency = "normal"
	UrgencyNone     Urgency = "none"
)

// Level is the overall compliance level derived from the score.
type Level string

// Compliance levels.
const (
	LevelCompliant    Level = "compliant"
	LevelWarning      Level = "warning"
	LevelNonCompliant Level = "non_compliant"
)

// RiskLevel summarizes compliance and data quality for a vehicle.
type RiskLevel string

// Risk levels.
const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank orders risk levels from low (0) to critical (3).
func (r RiskLevel) Rank() int {
	switch r {
	case RiskCritical:
		return 3
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// CategoryStatus is the evaluated state of one compliance category.
type CategoryStatus struct {
	Category        Category   `json:"category" yaml:"category"`
	Status          Status     `json:"status" yaml:"status"`
	Urgency         Urgency    `json:"urgency" yaml:"urgency"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
	DaysUntilExpiry *int       `json:"daysUntilExpiry,omitempty" yaml:"daysUntilExpiry,omitempty"`
	Scored          bool       `json:"scored" yaml:"scored"`
}

// Dated reports whether the category has a known expiry.
func (c CategoryStatus) Dated() bool {
	return c.ExpiresAt != nil && c.DaysUntilExpiry != nil
}

// ComplianceReport is the result of evaluating a vehicle at an instant.
type ComplianceReport struct {
	EvaluatedAt    time.Time                   `json:"evaluatedAt" yaml:"evaluatedAt"`
	Categories     map[Category]CategoryStatus `json:"categories" yaml:"categories"`
	Score          int                         `json:"score" yaml:"score"`
	Level          Level                       `json:"level" yaml:"level"`
	Risk           RiskLevel                   `json:"risk" yaml:"risk"`
	NextExpiration *CategoryStatus             `json:"nextExpiration,omitempty" yaml:"nextExpiration,omitempty"`
}

// Category returns the status for c, or a missing status if absent.
func (r ComplianceReport) Category(c Category) CategoryStatus {
	if s, ok := r.Categories[c]; ok {
		return s
	}
	return CategoryStatus{Category: c, Status: StatusMissing, Urgency: UrgencyNone}
}

// HasStatus reports whether any category has status s.
func (r ComplianceReport) HasStatus(s Status) bool {
	for _, c := range r.Categories {
		if c.Status == s {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the report.
func (r ComplianceReport) Clone() ComplianceReport {
	out := r
	if r.Categories != nil {
		out.Categories = make(map[Category]CategoryStatus, len(r.Categories))
		for k, v := range r.Categories {
			out.Categories[k] = v
		}
	}
	if r.NextExpiration != nil {
		next := *r.NextExpiration
		out.NextExpiration = &next
	}
	return out
}
