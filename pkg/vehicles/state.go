package vehicles

import (
	"sort"
	"strings"
	"time"

	"github.com/agentstation/utc"
)

// FieldObservation is one value of one field as reported by one extraction.
type FieldObservation struct {
	DocumentID   string       `json:"documentId" yaml:"documentId"`
	DocumentType DocumentType `json:"documentType" yaml:"documentType"`
	Source       Source       `json:"source" yaml:"source"`
	Value        string       `json:"value" yaml:"value"`
	Confidence   float64      `json:"confidence" yaml:"confidence"`
	ReceivedAt   time.Time    `json:"receivedAt" yaml:"receivedAt"`
	Valid        bool         `json:"valid" yaml:"valid"`
}

// FieldState is the merged state of one attribute of one vehicle.
type FieldState struct {
	Field               FieldName          `json:"field" yaml:"field"`
	CurrentValue        string             `json:"currentValue" yaml:"currentValue"`
	CurrentSource       Source             `json:"currentSource,omitempty" yaml:"currentSource,omitempty"`
	CurrentDocumentID   string             `json:"currentDocumentId,omitempty" yaml:"currentDocumentId,omitempty"`
	CurrentDocumentType DocumentType       `json:"currentDocumentType,omitempty" yaml:"currentDocumentType,omitempty"`
	CurrentConfidence   float64            `json:"currentConfidence" yaml:"currentConfidence"`
	Reason              string             `json:"reason,omitempty" yaml:"reason,omitempty"`
	History             []FieldObservation `json:"history" yaml:"history"`
	Conflicted          bool               `json:"conflicted" yaml:"conflicted"`
	NeedsReview         bool               `json:"needsReview" yaml:"needsReview"`
}

// Missing reports whether no valid value is known for the field.
func (f *FieldState) Missing() bool {
	return f == nil || f.CurrentValue == ""
}

// Clone returns a deep copy of the field state.
func (f *FieldState) Clone() *FieldState {
	if f == nil {
		return nil
	}
	out := *f
	out.History = append([]FieldObservation(nil), f.History...)
	return &out
}

// Conflict records two confident sources disagreeing on an identity field.
// A is the current value.
type Conflict struct {
	Field      FieldName `json:"field" yaml:"field"`
	ValueA     string    `json:"valueA" yaml:"valueA"`
	SourceA    Source    `json:"sourceA" yaml:"sourceA"`
	DocumentA  string    `json:"documentA" yaml:"documentA"`
	ValueB     string    `json:"valueB" yaml:"valueB"`
	SourceB    Source    `json:"sourceB" yaml:"sourceB"`
	DocumentB  string    `json:"documentB" yaml:"documentB"`
	DetectedAt time.Time `json:"detectedAt" yaml:"detectedAt"`
}

// Key identifies the disagreement by field and the pair of values,
// independently of which documents currently carry them.
func (c Conflict) Key() string {
	a, b := strings.ToLower(c.ValueA), strings.ToLower(c.ValueB)
	if b < a {
		a, b = b, a
	}
	return string(c.Field) + "|" + a + "|" + b
}

// FieldGap is a value that was present in an extraction but could not be
// used, e.g. an unparseable date. Gaps are data, not errors.
type FieldGap struct {
	Field      FieldName `json:"field" yaml:"field"`
	DocumentID string    `json:"documentId" yaml:"documentId"`
	RawValue   string    `json:"rawValue" yaml:"rawValue"`
	Reason     string    `json:"reason" yaml:"reason"`
}

// Key identifies the gap.
func (g FieldGap) Key() string {
	return string(g.Field) + "|" + g.DocumentID
}

// Lifecycle is the derived lifecycle state of a vehicle.
type Lifecycle string

// Lifecycle states.
const (
	LifecycleUnknown      Lifecycle = "UNKNOWN"
	LifecyclePartial      Lifecycle = "PARTIAL"
	LifecycleComplete     Lifecycle = "COMPLETE"
	LifecycleCompliant    Lifecycle = "COMPLIANT"
	LifecycleAtRisk       Lifecycle = "AT_RISK"
	LifecycleNonCompliant Lifecycle = "NON_COMPLIANT"
)

// VehicleState is the reconciled, authoritative record of one vehicle.
// Values handed out by the reconciler are never mutated afterwards.
type VehicleState struct {
	VIN             VIN                       `json:"vin" yaml:"vin"`
	Fields          map[FieldName]*FieldState `json:"fields" yaml:"fields"`
	Documents       []DocumentExtraction      `json:"documents" yaml:"documents"`
	Compliance      ComplianceReport          `json:"compliance" yaml:"compliance"`
	ActiveConflicts []Conflict                `json:"activeConflicts" yaml:"activeConflicts"`
	Gaps            []FieldGap                `json:"gaps,omitempty" yaml:"gaps,omitempty"`
	LastUpdated     utc.Time                  `json:"lastUpdated" yaml:"lastUpdated"`
}

// Value returns the current value of a field, or "" when unknown.
func (v *VehicleState) Value(name FieldName) string {
	if v == nil {
		return ""
	}
	if name == FieldVIN {
		return string(v.VIN)
	}
	if fs, ok := v.Fields[name]; ok && fs != nil {
		return fs.CurrentValue
	}
	return ""
}

// NeedsReview reports whether any field requires human attention.
func (v *VehicleState) NeedsReview() bool {
	for _, fs := range v.Fields {
		if fs != nil && fs.NeedsReview {
			return true
		}
	}
	return false
}

// HasDocumentType reports whether any stored extraction has type t.
func (v *VehicleState) HasDocumentType(t DocumentType) bool {
	for _, d := range v.Documents {
		if d.DocumentType == t {
			return true
		}
	}
	return false
}

// Lifecycle derives the lifecycle state from the current fields and compliance.
func (v *VehicleState) Lifecycle() Lifecycle {
	if v == nil || len(v.Documents) == 0 {
		return LifecycleUnknown
	}
	for _, f := range IdentityFields() {
		if v.Value(f) == "" {
			return LifecyclePartial
		}
	}
	dated := false
	for _, c := range v.Compliance.Categories {
		if c.Status != StatusMissing {
			dated = true
			break
		}
	}
	if !dated {
		return LifecycleComplete
	}
	switch v.Compliance.Level {
	case LevelCompliant:
		return LifecycleCompliant
	case LevelWarning:
		return LifecycleAtRisk
	default:
		return LifecycleNonCompliant
	}
}

// FieldNames returns the populated field names in sorted order.
func (v *VehicleState) FieldNames() []FieldName {
	names := make([]FieldName, 0, len(v.Fields))
	for name := range v.Fields {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Clone returns a deep copy of the vehicle state.
func (v *VehicleState) Clone() *VehicleState {
	if v == nil {
		return nil
	}
	out := *v
	out.Fields = make(map[FieldName]*FieldState, len(v.Fields))
	for k, fs := range v.Fields {
		out.Fields[k] = fs.Clone()
	}
	out.Documents = make([]DocumentExtraction, len(v.Documents))
	for i, d := range v.Documents {
		out.Documents[i] = d.Clone()
	}
	out.Compliance = v.Compliance.Clone()
	out.ActiveConflicts = append([]Conflict(nil), v.ActiveConflicts...)
	out.Gaps = append([]FieldGap(nil), v.Gaps...)
	return &out
}
