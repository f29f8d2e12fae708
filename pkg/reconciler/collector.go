package reconciler

import (
	"github.com/agentstation/fleetmap/pkg/standardize"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// fieldObservations holds everything reported for one field.
type fieldObservations struct {
	history    []vehicles.FieldObservation // every observation, append order
	candidates []Candidate                 // valid observations only
	gaps       []vehicles.FieldGap
}

// collector groups a VIN's history by field and standardizes values.
type collector struct {
	strategy Strategy
}

// newCollector creates a new collector.
func newCollector(strategy Strategy) *collector {
	return &collector{strategy: strategy}
}

// collect standardizes each reported value. Unusable values are recorded
// as gaps and never become candidates.
func (c *collector) collect(history []vehicles.DocumentExtraction) map[vehicles.FieldName]*fieldObservations {
	out := make(map[vehicles.FieldName]*fieldObservations)

	for pos, doc := range history {
		for name := range doc.Fields {
			if name == vehicles.FieldVIN {
				continue // the VIN is the key, never a merged attribute
			}
			raw, ok := doc.Field(name)
			if !ok {
				continue
			}

			obs := out[name]
			if obs == nil {
				obs = &fieldObservations{}
				out[name] = obs
			}

			observation := vehicles.FieldObservation{
				DocumentID:   doc.DocumentID,
				DocumentType: doc.DocumentType,
				Source:       doc.Source,
				Value:        raw,
				Confidence:   doc.ExtractionConfidence,
				ReceivedAt:   doc.ReceivedAt,
			}

			value, err := standardize.Value(name, raw, doc.ReceivedAt)
			if err != nil {
				obs.history = append(obs.history, observation)
				obs.gaps = append(obs.gaps, vehicles.FieldGap{
					Field:      name,
					DocumentID: doc.DocumentID,
					RawValue:   raw,
					Reason:     err.Error(),
				})
				continue
			}

			observation.Value = value
			observation.Valid = true
			obs.history = append(obs.history, observation)
			obs.candidates = append(obs.candidates, Candidate{
				FieldObservation: observation,
				Priority:         c.strategy.Priority(name, doc.DocumentType),
				Position:         pos,
				Key:              standardize.Key(value),
			})
		}
	}
	return out
}
