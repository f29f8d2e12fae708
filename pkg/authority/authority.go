// Package authority defines which document types are authoritative for
// which vehicle fields. The merge resolver consults it before comparing
// confidence.
package authority

import (
	"path/filepath"
	"sort"

	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// Authority determines which document type is authoritative for each field
type Authority interface {
	// Find returns the highest priority authority for a field and document type
	Find(field vehicles.FieldName, docType vehicles.DocumentType) *Field

	// Priority returns the precedence of docType for field (0 when none applies)
	Priority(field vehicles.FieldName, docType vehicles.DocumentType) int

	// List returns every configured authority
	List() []Field
}

// Field defines document type priority for a field pattern
type Field struct {
	Path         string                `json:"path" yaml:"path"`                 // field name or pattern, e.g. "insurance*"
	DocumentType vehicles.DocumentType `json:"documentType" yaml:"documentType"` // which document type is authoritative
	Priority     int                   `json:"priority" yaml:"priority"`         // higher = more authoritative
}

type authorities struct {
	fields []Field
}

// New creates an Authority with the default fleet precedence table.
func New() Authority {
	return &authorities{fields: defaultAuthorities()}
}

// NewWith creates an Authority from an explicit table.
func NewWith(fields []Field) Authority {
	return &authorities{fields: append([]Field(nil), fields...)}
}

// Find returns the matching authority with the highest priority.
func (a *authorities) Find(field vehicles.FieldName, docType vehicles.DocumentType) *Field {
	return ByField(string(field), FilterByDocumentType(a.fields, docType))
}

// Priority returns the precedence of docType for field.
func (a *authorities) Priority(field vehicles.FieldName, docType vehicles.DocumentType) int {
	if f := a.Find(field, docType); f != nil {
		return f.Priority
	}
	return 0
}

// List returns all authorities ordered by priority.
func (a *authorities) List() []Field {
	out := append([]Field(nil), a.fields...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Priority > out[j].Priority
	})
	return out
}

// ByField returns the highest priority authority for a given field path
func ByField(fieldPath string, authorities []Field) *Field {
	var bestMatch *Field
	var bestPriority int
	var bestMatchLength int

	for i, auth := range authorities {
		if MatchesPattern(fieldPath, auth.Path) {
			// Prioritize by: 1) priority, 2) pattern specificity (length), 3) order
			patternLength := len(auth.Path)
			if auth.Priority > bestPriority ||
				(auth.Priority == bestPriority && patternLength > bestMatchLength) {
				bestMatch = &authorities[i]
				bestPriority = auth.Priority
				bestMatchLength = patternLength
			}
		}
	}

	return bestMatch
}

// MatchesPattern checks if a field path matches a pattern (supports * wildcards)
func MatchesPattern(fieldPath, pattern string) bool {
	if fieldPath == pattern {
		return true
	}

	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(fieldPath) >= len(prefix) && fieldPath[:len(prefix)] == prefix
	}

	matched, err := filepath.Match(pattern, fieldPath)
	if err != nil {
		return false
	}
	return matched
}

// FilterByDocumentType returns only the authorities for a specific document type
func FilterByDocumentType(authorities []Field, docType vehicles.DocumentType) []Field {
	var filtered []Field
	for _, auth := range authorities {
		if auth.DocumentType == docType {
			filtered = append(filtered, auth)
		}
	}
	return filtered
}

// defaultAuthorities returns the default document precedence per field.
// Identity fields (vin, make, model, year) are deliberately absent: every
// document type is equally authoritative for them.
func defaultAuthorities() []Field {
	return []Field{
		// Registration documents own registration data and the plate
		{Path: "registration*", DocumentType: vehicles.DocumentRegistration, Priority: 100},
		{Path: "ownerName", DocumentType: vehicles.DocumentRegistration, Priority: 100},
		{Path: "licensePlate", DocumentType: vehicles.DocumentRegistration, Priority: 100},
		{Path: "licensePlate", DocumentType: vehicles.DocumentInspection, Priority: 60},
		{Path: "licensePlate", DocumentType: vehicles.DocumentOther, Priority: 40},

		// Insurance documents own policy data
		{Path: "insurance*", DocumentType: vehicles.DocumentInsurance, Priority: 100},
		{Path: "policyNumber", DocumentType: vehicles.DocumentInsurance, Priority: 100},
		{Path: "coverageAmount", DocumentType: vehicles.DocumentInsurance, Priority: 100},

		// Driver credentials
		{Path: "licenseNumber", DocumentType: vehicles.DocumentCDL, Priority: 100},
		{Path: "licenseClass", DocumentType: vehicles.DocumentCDL, Priority: 100},
		{Path: "licenseState", DocumentType: vehicles.DocumentCDL, Priority: 100},
		{Path: "licenseExpirationDate", DocumentType: vehicles.DocumentCDL, Priority: 100},
		{Path: "driverName", DocumentType: vehicles.DocumentCDL, Priority: 100},
		{Path: "driverName", DocumentType: vehicles.DocumentMedical, Priority: 80},
		{Path: "medical*", DocumentType: vehicles.DocumentMedical, Priority: 100},
		{Path: "examinerName", DocumentType: vehicles.DocumentMedical, Priority: 100},

		// Inspection reports
		{Path: "inspection*", DocumentType: vehicles.DocumentInspection, Priority: 100},
		{Path: "inspectorName", DocumentType: vehicles.DocumentInspection, Priority: 100},

		// Fleet-internal attributes come from manual entry and uploads
		{Path: "truckNumber", DocumentType: vehicles.DocumentOther, Priority: 100},
		{Path: "color", DocumentType: vehicles.DocumentRegistration, Priority: 60},
	}
}
