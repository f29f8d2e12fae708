// Package vehicles defines the data model of the reconciliation engine:
// vehicle identity, document extractions, per-field state and the
// compliance vocabulary shared by the evaluator and its readers.
package vehicles

import (
	"regexp"
	"strings"

	"github.com/agentstation/fleetmap/pkg/errors"
)

// VINLength is the fixed length of a modern vehicle identification number.
const VINLength = 17

var vinPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// VIN is a normalized vehicle identification number. It is the only
// stable identity key for a vehicle.
type VIN string

// String returns the VIN as a string.
func (v VIN) String() string {
	return string(v)
}

// Valid reports whether v is a well-formed, normalized VIN.
func (v VIN) Valid() bool {
	return vinPattern.MatchString(string(v))
}

// NormalizeVIN trims, removes separators and upper-cases raw without
// validating the result.
func NormalizeVIN(raw string) VIN {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToUpper(raw) {
		switch r {
		case ' ', '-', '\t', '\n', '\r':
			continue
		}
		b.WriteRune(r)
	}
	return VIN(b.String())
}

// ParseVIN normalizes raw and validates it. I, O and Q are never valid
// VIN characters.
func ParseVIN(raw string) (VIN, error) {
	if strings.TrimSpace(raw) == "" {
		return "", errors.NewValidationError("vin", raw, "is required")
	}
	vin := NormalizeVIN(raw)
	if len(vin) != VINLength {
		return "", errors.NewValidationError("vin", raw, "must be 17 characters")
	}
	if !vin.Valid() {
		return "", errors.NewValidationError("vin", raw, "contains characters outside [A-HJ-NPR-Z0-9]")
	}
	return vin, nil
}
