// Package standardize normalizes raw extracted values so that values from
// different documents can be compared and ranked.
package standardize

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// DateLayout is the canonical layout of standardized date values.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order.
var dateLayouts = []string{
	DateLayout,
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2006/01/02",
	"01/02/06",
	"1/2/06",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"02 Jan 2006",
	"2 January 2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Acronyms that title-casing must leave upper-cased.
var acronyms = map[string]bool{
	"BMW": true, "GMC": true, "RAM": true, "DAF": true, "MAN": true,
	"MINI": true, "VW": true, "CAT": true, "IC": true, "UD": true,
}

// ParseDate parses a date in any supported layout. The result is a UTC
// calendar date at midnight.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, errors.NewValidationError("date", raw, "is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.NewValidationError("date", raw, "unrecognized date format")
}

// Date parses raw and formats it in DateLayout.
func Date(raw string) (string, error) {
	t, err := ParseDate(raw)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

// Year validates a model year. Two-digit years are not accepted, and a
// year may run at most two years past asOf. A zero asOf leaves the year
// unbounded above.
func Year(raw string, asOf time.Time) (string, error) {
	s := strings.TrimSpace(raw)
	y, err := strconv.Atoi(s)
	if err != nil {
		return "", errors.NewValidationError("year", raw, "not a number")
	}
	if y < 1900 || (!asOf.IsZero() && y > asOf.Year()+2) {
		return "", errors.NewValidationError("year", raw, fmt.Sprintf("out of range: %d", y))
	}
	return strconv.Itoa(y), nil
}

// Name title-cases a make, model or person name, keeping known acronyms.
func Name(raw string) string {
	// Casers are stateful and not safe for concurrent use.
	caser := cases.Title(language.English)
	words := strings.Fields(raw)
	for i, w := range words {
		if acronyms[strings.ToUpper(w)] {
			words[i] = strings.ToUpper(w)
			continue
		}
		if hasDigit(w) {
			words[i] = strings.ToUpper(w)
			continue
		}
		words[i] = caser.String(strings.ToLower(w))
	}
	return strings.Join(words, " ")
}

// Plate upper-cases a license plate and removes separators.
func Plate(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Text collapses whitespace.
func Text(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Value standardizes a raw value for the given field. An error means the
// value is present but unusable and should be recorded as a gap. asOf is
// when the value was reported; it bounds model years.
func Value(field vehicles.FieldName, raw string, asOf time.Time) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", errors.NewValidationError(field.String(), raw, "is empty")
	}
	switch {
	case field == vehicles.FieldVIN:
		vin, err := vehicles.ParseVIN(raw)
		return vin.String(), err
	case field == vehicles.FieldYear:
		return Year(raw, asOf)
	case field.IsDate():
		return Date(raw)
	}
	switch field {
	case vehicles.FieldMake, vehicles.FieldModel, vehicles.FieldDriverName,
		vehicles.FieldOwnerName, vehicles.FieldInsuranceCarrier, vehicles.FieldColor:
		return Name(raw), nil
	case vehicles.FieldLicensePlate:
		return Plate(raw), nil
	case vehicles.FieldRegistrationState, vehicles.FieldLicenseState, vehicles.FieldLicenseClass:
		return strings.ToUpper(Text(raw)), nil
	}
	return Text(raw), nil
}

// Key folds a standardized value for equality comparison: case, spacing
// and punctuation are ignored.
func Key(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
