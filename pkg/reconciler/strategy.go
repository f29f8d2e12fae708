package reconciler

import (
	"fmt"
	"strings"

	"github.com/agentstation/fleetmap/pkg/authority"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// StrategyType represents the type of reconciliation strategy.
type StrategyType string

// String returns the string representation of a strategy type.
func (s StrategyType) String() string {
	return string(s)
}

// Name returns the name of the strategy type.
func (s StrategyType) Name() string {
	words := strings.Split(s.String(), "-")
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

const (
	// StrategyTypeFieldAuthority ranks by document authority, then confidence, then recency.
	StrategyTypeFieldAuthority StrategyType = "field-authority"
	// StrategyTypeDocumentOrder ranks by a fixed document type order.
	StrategyTypeDocumentOrder StrategyType = "document-order"
)

// Candidate is one valid observation competing for a field.
type Candidate struct {
	vehicles.FieldObservation
	Priority int    // document type precedence for the field
	Position int    // position in the VIN's append log
	Key      string // folded value used for equality
}

// Strategy defines how competing values for a field are ranked.
type Strategy interface {
	// Type returns the strategy type
	Type() StrategyType

	// Description returns a human-readable description
	Description() string

	// Priority returns the precedence of a document type for a field
	Priority(field vehicles.FieldName, docType vehicles.DocumentType) int

	// Less reports whether a outranks b for field
	Less(field vehicles.FieldName, a, b Candidate) bool

	// Reason explains why winner was selected among n candidates
	Reason(field vehicles.FieldName, winner Candidate, n int) string
}

// baseStrategy provides common strategy functionality.
type baseStrategy struct {
	typ         StrategyType
	description string
}

// Type returns the strategy type.
func (s *baseStrategy) Type() StrategyType {
	return s.typ
}

// Description returns a human-readable description.
func (s *baseStrategy) Description() string {
	return s.description
}

// rank orders candidates after precedence has tied. Dates prefer the most
// recent document so a renewal supersedes the previous expiry; every
// other field prefers confidence first.
func rank(field vehicles.FieldName, a, b Candidate) bool {
	if field.IsDate() {
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.After(b.ReceivedAt)
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Position > b.Position
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if !a.ReceivedAt.Equal(b.ReceivedAt) {
		return a.ReceivedAt.After(b.ReceivedAt)
	}
	return a.Position > b.Position
}

func reason(field vehicles.FieldName, winner Candidate, n int) string {
	if n <= 1 {
		return "only reported value"
	}
	if field.IsDate() {
		return fmt.Sprintf("most recent of %d documents", n)
	}
	return fmt.Sprintf("highest confidence (%.2f) of %d values", winner.Confidence, n)
}

// AuthorityStrategy uses field authorities to rank values.
type AuthorityStrategy struct {
	baseStrategy
	authorities authority.Authority
}

// NewAuthorityStrategy creates a new authority-based strategy.
func NewAuthorityStrategy(authorities authority.Authority) Strategy {
	return &AuthorityStrategy{
		baseStrategy: baseStrategy{
			typ:         StrategyTypeFieldAuthority,
			description: "Ranks values by document authority, then confidence, then recency",
		},
		authorities: authorities,
	}
}

// Priority returns the authority priority of docType for field. Identity
// fields have no precedence, whatever the table says.
func (s *AuthorityStrategy) Priority(field vehicles.FieldName, docType vehicles.DocumentType) int {
	if field.IsIdentity() {
		return 0
	}
	return s.authorities.Priority(field, docType)
}

// Less reports whether a outranks b.
func (s *AuthorityStrategy) Less(field vehicles.FieldName, a, b Candidate) bool {
	if !field.IsIdentity() && a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return rank(field, a, b)
}

// Reason explains the selection.
func (s *AuthorityStrategy) Reason(field vehicles.FieldName, winner Candidate, n int) string {
	if winner.Priority > 0 && n > 1 {
		return fmt.Sprintf("selected by authority (%s, priority: %d)", winner.DocumentType, winner.Priority)
	}
	return reason(field, winner, n)
}

// DocumentOrderStrategy ranks values using a fixed document type order.
// Types earlier in the order have higher precedence for every field except
// make, model, year and vin, which every document type reports equally.
type DocumentOrderStrategy struct {
	baseStrategy
	order map[vehicles.DocumentType]int
}

// NewDocumentOrderStrategy creates a new document order strategy.
func NewDocumentOrderStrategy(order []vehicles.DocumentType) Strategy {
	m := make(map[vehicles.DocumentType]int, len(order))
	for i, t := range order {
		m[t] = len(order) - i
	}
	return &DocumentOrderStrategy{
		baseStrategy: baseStrategy{
			typ:         StrategyTypeDocumentOrder,
			description: fmt.Sprintf("Ranks values using document order: %v", order),
		},
		order: m,
	}
}

// Priority returns the position-derived precedence of docType.
func (s *DocumentOrderStrategy) Priority(field vehicles.FieldName, docType vehicles.DocumentType) int {
	if field.IsIdentity() {
		return 0
	}
	return s.order[docType]
}

// Less reports whether a outranks b.
func (s *DocumentOrderStrategy) Less(field vehicles.FieldName, a, b Candidate) bool {
	if !field.IsIdentity() && a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return rank(field, a, b)
}

// Reason explains the selection.
func (s *DocumentOrderStrategy) Reason(field vehicles.FieldName, winner Candidate, n int) string {
	if winner.Priority > 0 && n > 1 {
		return fmt.Sprintf("selected by document order (%s)", winner.DocumentType)
	}
	return reason(field, winner, n)
}
