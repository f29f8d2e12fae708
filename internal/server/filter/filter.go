// Package filter provides query parameter parsing for the vehicle search
// endpoints.
package filter

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/reconciler"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// Pagination defaults.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Sort keys.
const (
	SortVIN   = "vin"
	SortScore = "score"
	SortRisk  = "risk"
	SortMake  = "make"
)

// VehicleQuery contains a parsed vehicle search.
type VehicleQuery struct {
	Filter reconciler.Filter

	// Pagination
	Sort   string
	Order  string
	Limit  int
	Offset int
}

// ParseVehicleQuery extracts the search filter and pagination from r.
func ParseVehicleQuery(r *http.Request) (VehicleQuery, error) {
	return ParseValues(r.URL.Query())
}

// ParseValues parses a search from query parameters. Unknown enum values
// are rejected rather than silently matching nothing.
func ParseValues(q url.Values) (VehicleQuery, error) {

	query := VehicleQuery{
		Filter: reconciler.Filter{
			VINContains:      q.Get("vin"),
			Make:             q.Get("make"),
			Model:            q.Get("model"),
			LicensePlate:     q.Get("plate"),
			ComplianceStatus: q.Get("status"),
		},
		Sort:   strings.ToLower(q.Get("sort")),
		Order:  strings.ToLower(q.Get("order")),
		Limit:  parseIntOrDefault(q.Get("limit"), DefaultLimit),
		Offset: parseIntOrDefault(q.Get("offset"), 0),
	}

	if risk := q.Get("risk"); risk != "" {
		level := vehicles.RiskLevel(strings.ToLower(risk))
		if !validRisk(level) {
			return query, errors.NewValidationError("risk", risk, "must be one of low, medium, high, critical")
		}
		query.Filter.RiskLevel = level
	}

	if lifecycle := q.Get("lifecycle"); lifecycle != "" {
		query.Filter.Lifecycle = vehicles.Lifecycle(strings.ToUpper(lifecycle))
	}

	if docType := q.Get("document_type"); docType != "" {
		t, ok := vehicles.ParseDocumentType(docType)
		if !ok {
			return query, errors.NewValidationError("document_type", docType, "unknown document type")
		}
		query.Filter.DocumentType = t
	}

	var err error
	if query.Filter.HasConflicts, err = parseBool(q, "has_conflicts"); err != nil {
		return query, err
	}
	if query.Filter.NeedsReview, err = parseBool(q, "needs_review"); err != nil {
		return query, err
	}

	if days := q.Get("expires_within"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return query, errors.NewValidationError("expires_within", days, "must be a non-negative number of days")
		}
		query.Filter.ExpiresWithinDays = &n
	}

	switch query.Sort {
	case "", SortVIN, SortScore, SortRisk, SortMake:
	default:
		return query, errors.NewValidationError("sort", query.Sort, "must be one of vin, score, risk, make")
	}
	if query.Order != "" && query.Order != "asc" && query.Order != "desc" {
		return query, errors.NewValidationError("order", query.Order, "must be asc or desc")
	}

	if query.Limit <= 0 || query.Limit > MaxLimit {
		query.Limit = DefaultLimit
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	return query, nil
}

// Apply runs the search against rec and returns one page of results along
// with the total number of matches.
func (q VehicleQuery) Apply(rec reconciler.Reconciler) ([]*vehicles.VehicleState, int) {
	found := q.sort(rec.SearchVehicles(q.Filter))
	total := len(found)

	if q.Offset >= total {
		return []*vehicles.VehicleState{}, total
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return found[q.Offset:end], total
}

// sort orders vehicles in place. SearchVehicles already returns VIN order.
func (q VehicleQuery) sort(list []*vehicles.VehicleState) []*vehicles.VehicleState {
	var less func(a, b *vehicles.VehicleState) bool
	switch q.Sort {
	case SortScore:
		less = func(a, b *vehicles.VehicleState) bool { return a.Compliance.Score < b.Compliance.Score }
	case SortRisk:
		less = func(a, b *vehicles.VehicleState) bool { return a.Compliance.Risk.Rank() < b.Compliance.Risk.Rank() }
	case SortMake:
		less = func(a, b *vehicles.VehicleState) bool { return a.Value(vehicles.FieldMake) < b.Value(vehicles.FieldMake) }
	}

	if less != nil {
		sort.SliceStable(list, func(i, j int) bool { return less(list[i], list[j]) })
	}
	if q.Order == "desc" {
		for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
			list[i], list[j] = list[j], list[i]
		}
	}
	return list
}

func validRisk(r vehicles.RiskLevel) bool {
	switch r {
	case vehicles.RiskLow, vehicles.RiskMedium, vehicles.RiskHigh, vehicles.RiskCritical:
		return true
	}
	return false
}

func parseBool(q url.Values, key string) (*bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.NewValidationError(key, raw, "must be true or false")
	}
	return &b, nil
}

// parseIntOrDefault parses an integer or returns the default value.
func parseIntOrDefault(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
