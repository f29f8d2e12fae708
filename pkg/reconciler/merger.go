package reconciler

import (
	"sort"

	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// Merger computes field state from a VIN's extraction history.
type Merger interface {
	// Merge derives every field state, conflict and gap from history.
	// The result depends only on history, so re-merging is idempotent.
	Merge(history []vehicles.DocumentExtraction) *Merged
}

// Merged is the output of a merge.
type Merged struct {
	Fields    map[vehicles.FieldName]*vehicles.FieldState
	Conflicts []vehicles.Conflict
	Gaps      []vehicles.FieldGap
}

// merger is the default Merger.
type merger struct {
	strategy          Strategy
	conflictThreshold float64
	reviewThreshold   float64
}

// newMerger creates a new merger.
func newMerger(strategy Strategy, conflictThreshold, reviewThreshold float64) Merger {
	return &merger{
		strategy:          strategy,
		conflictThreshold: conflictThreshold,
		reviewThreshold:   reviewThreshold,
	}
}

// Merge implements Merger.
func (m *merger) Merge(history []vehicles.DocumentExtraction) *Merged {
	collected := newCollector(m.strategy).collect(history)
	out := &Merged{Fields: make(map[vehicles.FieldName]*vehicles.FieldState, len(collected))}

	names := make([]vehicles.FieldName, 0, len(collected))
	for name := range collected {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	for _, name := range names {
		obs := collected[name]
		state, conflict := m.field(name, obs)
		out.Fields[name] = state
		if conflict != nil {
			out.Conflicts = append(out.Conflicts, *conflict)
		}
		out.Gaps = append(out.Gaps, obs.gaps...)
	}
	return out
}

// field resolves one field.
func (m *merger) field(name vehicles.FieldName, obs *fieldObservations) (*vehicles.FieldState, *vehicles.Conflict) {
	state := &vehicles.FieldState{
		Field:       name,
		History:     append([]vehicles.FieldObservation(nil), obs.history...),
		NeedsReview: len(obs.gaps) > 0,
	}
	if len(obs.candidates) == 0 {
		state.Reason = "no usable value"
		return state, nil
	}

	ranked := append([]Candidate(nil), obs.candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return m.strategy.Less(name, ranked[i], ranked[j])
	})

	winner := ranked[0]
	state.CurrentValue = winner.Value
	state.CurrentSource = winner.Source
	state.CurrentDocumentID = winner.DocumentID
	state.CurrentDocumentType = winner.DocumentType
	state.CurrentConfidence = winner.Confidence
	state.Reason = m.strategy.Reason(name, winner, len(ranked))
	if winner.Confidence < m.reviewThreshold {
		state.NeedsReview = true
	}

	if !name.IsIdentity() {
		return state, nil
	}

	// The best candidate for a different value is the runner-up; ranked
	// is sorted so the first disagreeing entry is that value's best.
	for _, c := range ranked[1:] {
		if c.Key == winner.Key {
			continue
		}
		if winner.Confidence >= m.conflictThreshold && c.Confidence >= m.conflictThreshold {
			state.Conflicted = true
			detected := winner.ReceivedAt
			if c.ReceivedAt.After(detected) {
				detected = c.ReceivedAt
			}
			return state, &vehicles.Conflict{
				Field:      name,
				ValueA:     winner.Value,
				SourceA:    winner.Source,
				DocumentA:  winner.DocumentID,
				ValueB:     c.Value,
				SourceB:    c.Source,
				DocumentB:  c.DocumentID,
				DetectedAt: detected,
			}
		}
		break
	}
	return state, nil
}
