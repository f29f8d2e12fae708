// Package documents provides the append-only store of document
// extractions. Every fact ever reported about a vehicle is kept here in
// arrival order; reconciled state is always derived from this history.
package documents

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// namespace seeds content-addressed document ids.
var namespace = uuid.MustParse("6f1c2a7e-3b0d-5e4f-9a8b-2c1d0e9f8a7b")

// VehicleRef describes the outcome of an append.
type VehicleRef struct {
	VIN           vehicles.VIN
	Created       bool // first extraction ever seen for this VIN
	Duplicate     bool // identical extraction was already stored
	DocumentCount int
	Document      vehicles.DocumentExtraction // the stored, normalized extraction
}

// Store is an append-only, thread-safe log of extractions keyed by VIN.
type Store interface {
	// Append validates and stores an extraction.
	Append(ext vehicles.DocumentExtraction) (VehicleRef, error)

	// History returns the extractions for vin in append order.
	History(vin vehicles.VIN) []vehicles.DocumentExtraction

	// Get returns a stored extraction by document id.
	Get(documentID string) (vehicles.DocumentExtraction, bool)

	// VINs returns every VIN with at least one extraction, sorted.
	VINs() []vehicles.VIN

	// Len returns the number of stored extractions.
	Len() int

	// Recent returns up to n extractions, most recently received first.
	Recent(n int) []vehicles.DocumentExtraction

	// Snapshot captures the store for a later Restore.
	Snapshot() Snapshot

	// Restore replaces the store contents with a snapshot.
	Restore(s Snapshot)

	// Clear removes every extraction.
	Clear()
}

// Snapshot is an opaque copy of the store contents.
type Snapshot struct {
	byVIN map[vehicles.VIN][]vehicles.DocumentExtraction
	byID  map[string]entry
	seq   int
}

type entry struct {
	vin         vehicles.VIN
	fingerprint string
	seq         int
}

type store struct {
	mu    sync.RWMutex
	byVIN map[vehicles.VIN][]vehicles.DocumentExtraction
	byID  map[string]entry
	seq   int
	clock func() time.Time
}

// Option configures a Store.
type Option func(*store)

// WithClock sets the clock used to stamp extractions without ReceivedAt.
func WithClock(clock func() time.Time) Option {
	return func(s *store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates an empty Store.
func New(opts ...Option) Store {
	s := &store{
		byVIN: make(map[vehicles.VIN][]vehicles.DocumentExtraction),
		byID:  make(map[string]entry),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append implements Store.
func (s *store) Append(ext vehicles.DocumentExtraction) (VehicleRef, error) {
	doc, err := normalize(ext)
	if err != nil {
		return VehicleRef{}, err
	}
	fp := Fingerprint(doc)
	if doc.DocumentID == "" {
		doc.DocumentID = uuid.NewSHA1(namespace, []byte(fp)).String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byID[doc.DocumentID]; ok {
		if existing.fingerprint != fp || existing.vin != doc.VIN {
			return VehicleRef{}, errors.NewInvalidDocumentError(doc.DocumentID,
				"document id already stored with different content", errors.ErrAlreadyExists)
		}
		stored := s.find(existing.vin, doc.DocumentID)
		return VehicleRef{
			VIN:           doc.VIN,
			Duplicate:     true,
			DocumentCount: len(s.byVIN[doc.VIN]),
			Document:      stored.Clone(),
		}, nil
	}

	if doc.ReceivedAt.IsZero() {
		doc.ReceivedAt = s.clock()
	}

	_, known := s.byVIN[doc.VIN]
	s.seq++
	s.byID[doc.DocumentID] = entry{vin: doc.VIN, fingerprint: fp, seq: s.seq}
	s.byVIN[doc.VIN] = append(s.byVIN[doc.VIN], doc)

	return VehicleRef{
		VIN:           doc.VIN,
		Created:       !known,
		DocumentCount: len(s.byVIN[doc.VIN]),
		Document:      doc.Clone(),
	}, nil
}

func (s *store) find(vin vehicles.VIN, id string) vehicles.DocumentExtraction {
	for _, d := range s.byVIN[vin] {
		if d.DocumentID == id {
			return d
		}
	}
	return vehicles.DocumentExtraction{}
}

// History implements Store.
func (s *store) History(vin vehicles.VIN) []vehicles.DocumentExtraction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.byVIN[vehicles.NormalizeVIN(string(vin))]
	out := make([]vehicles.DocumentExtraction, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}

// Get implements Store.
func (s *store) Get(documentID string) (vehicles.DocumentExtraction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[documentID]
	if !ok {
		return vehicles.DocumentExtraction{}, false
	}
	return s.find(e.vin, documentID).Clone(), true
}

// VINs implements Store.
func (s *store) VINs() []vehicles.VIN {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vins := make([]vehicles.VIN, 0, len(s.byVIN))
	for vin := range s.byVIN {
		vins = append(vins, vin)
	}
	sort.Slice(vins, func(i, j int) bool { return vins[i] < vins[j] })
	return vins
}

// Len implements Store.
func (s *store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Recent implements Store.
func (s *store) Recent(n int) []vehicles.DocumentExtraction {
	s.mu.RLock()
	all := make([]vehicles.DocumentExtraction, 0, len(s.byID))
	seqs := make(map[string]int, len(s.byID))
	for _, docs := range s.byVIN {
		for _, d := range docs {
			all = append(all, d.Clone())
			seqs[d.DocumentID] = s.byID[d.DocumentID].seq
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].ReceivedAt.Equal(all[j].ReceivedAt) {
			return all[i].ReceivedAt.After(all[j].ReceivedAt)
		}
		return seqs[all[i].DocumentID] > seqs[all[j].DocumentID]
	})
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// Snapshot implements Store.
func (s *store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		byVIN: make(map[vehicles.VIN][]vehicles.DocumentExtraction, len(s.byVIN)),
		byID:  make(map[string]entry, len(s.byID)),
		seq:   s.seq,
	}
	for vin, docs := range s.byVIN {
		snap.byVIN[vin] = append([]vehicles.DocumentExtraction(nil), docs...)
	}
	for id, e := range s.byID {
		snap.byID[id] = e
	}
	return snap
}

// Restore implements Store.
func (s *store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byVIN = make(map[vehicles.VIN][]vehicles.DocumentExtraction, len(snap.byVIN))
	s.byID = make(map[string]entry, len(snap.byID))
	for vin, docs := range snap.byVIN {
		s.byVIN[vin] = append([]vehicles.DocumentExtraction(nil), docs...)
	}
	for id, e := range snap.byID {
		s.byID[id] = e
	}
	s.seq = snap.seq
}

// Clear implements Store.
func (s *store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byVIN = make(map[vehicles.VIN][]vehicles.DocumentExtraction)
	s.byID = make(map[string]entry)
}

// normalize validates ext and returns a normalized copy.
func normalize(ext vehicles.DocumentExtraction) (vehicles.DocumentExtraction, error) {
	doc := ext.Clone()
	doc.DocumentID = strings.TrimSpace(doc.DocumentID)

	vin, err := vehicles.ParseVIN(string(doc.VIN))
	if err != nil {
		reason := "malformed VIN"
		if strings.TrimSpace(string(doc.VIN)) == "" {
			reason = "missing VIN"
		}
		return doc, errors.NewInvalidDocumentError(doc.DocumentID, reason, err)
	}
	doc.VIN = vin

	if doc.DocumentType == "" {
		doc.DocumentType = vehicles.DocumentOther
	}
	if !doc.DocumentType.Valid() {
		return doc, errors.NewInvalidDocumentError(doc.DocumentID,
			fmt.Sprintf("unknown document type %q", doc.DocumentType),
			errors.NewValidationError("documentType", doc.DocumentType, "unrecognized"))
	}

	c := doc.ExtractionConfidence
	if math.IsNaN(c) || c < 0 || c > 1 {
		return doc, errors.NewInvalidDocumentError(doc.DocumentID,
			"extraction confidence must be within [0,1]",
			errors.NewValidationError("extractionConfidence", c, "out of range"))
	}

	if doc.Fields == nil {
		doc.Fields = vehicles.Fields{}
	}
	return doc, nil
}

// Fingerprint returns a canonical rendering of the extraction content.
// ReceivedAt and FileName are not part of the content. Every component is
// JSON encoded, so separators inside values cannot make two different
// extractions render alike.
func Fingerprint(doc vehicles.DocumentExtraction) string {
	keys := make([]string, 0, len(doc.Fields))
	for k := range doc.Fields {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	fields := make([][2]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, [2]string{k, strings.TrimSpace(doc.Fields[vehicles.FieldName(k)])})
	}
	content := struct {
		VIN        string      `json:"vin"`
		Type       string      `json:"type"`
		Source     string      `json:"source"`
		Confidence string      `json:"confidence"`
		Fields     [][2]string `json:"fields"`
	}{
		VIN:        string(doc.VIN),
		Type:       string(doc.DocumentType),
		Source:     string(doc.Source),
		Confidence: strconv.FormatFloat(doc.ExtractionConfidence, 'f', -1, 64),
		Fields:     fields,
	}
	// Strings and string arrays always encode.
	out, _ := json.Marshal(content)
	return string(out)
}
