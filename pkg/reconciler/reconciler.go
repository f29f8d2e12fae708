// Package reconciler turns the append-only history of document extractions
// into one authoritative, explainable record per vehicle. Each new document
// re-merges its vehicle's fields, re-detects conflicts and re-evaluates
// compliance; fleet-wide queries read the published immutable states.
package reconciler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/agentstation/fleetmap/pkg/compliance"
	"github.com/agentstation/fleetmap/pkg/documents"
	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/logging"
	"github.com/agentstation/fleetmap/pkg/metrics"
	"github.com/agentstation/fleetmap/pkg/provenance"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// Reconciler is the main interface of the reconciliation engine.
type Reconciler interface {
	// AddDocument ingests one extraction and re-reconciles its vehicle.
	// Only structurally invalid input returns an error.
	AddDocument(ctx context.Context, ext vehicles.DocumentExtraction) (*AddResult, error)

	// GetVehicleSummary returns the vehicle with compliance evaluated now.
	GetVehicleSummary(vin vehicles.VIN) (*vehicles.VehicleState, bool)

	// GetAllVehicles returns every vehicle sorted by VIN.
	GetAllVehicles() []*vehicles.VehicleState

	// SearchVehicles returns the vehicles matching filter, sorted by VIN.
	SearchVehicles(filter Filter) []*vehicles.VehicleState

	// GetStats returns fleet-wide statistics.
	GetStats() Stats

	// GetExpiringVehicles returns vehicles with a category expiring
	// within days, expired ones included, soonest first.
	GetExpiringVehicles(days int) []ExpiringVehicle

	// GetComplianceBreakdown counts compliance outcomes across the fleet.
	GetComplianceBreakdown() Breakdown

	// Explain returns the provenance report for a vehicle.
	Explain(vin vehicles.VIN) (*provenance.Report, error)

	// Documents returns the underlying document store.
	Documents() documents.Store

	// Snapshot captures the full reconciler state.
	Snapshot() Snapshot

	// Restore replaces the reconciler state with a snapshot. It must not
	// race with AddDocument.
	Restore(s Snapshot)

	// Clear removes every document and vehicle.
	Clear()

	// Now returns the reconciler clock.
	Now() time.Time
}

// entry serializes writers of one VIN and publishes its latest state.
type entry struct {
	mu    sync.Mutex
	state atomic.Pointer[vehicles.VehicleState]
}

// reconciler is the default implementation of Reconciler.
type reconciler struct {
	mu              sync.RWMutex
	entries         map[vehicles.VIN]*entry
	store           documents.Store
	merger          Merger
	strategy        Strategy
	clock           func() time.Time
	reviewThreshold float64
	metrics         *metrics.Metrics
	logger          *zerolog.Logger
}

// New creates a new Reconciler with options.
func New(opts ...Option) (Reconciler, error) {
	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}

	r := &reconciler{
		entries:         make(map[vehicles.VIN]*entry),
		store:           options.store,
		merger:          newMerger(options.strategy, options.conflictThreshold, options.reviewThreshold),
		strategy:        options.strategy,
		clock:           options.clock,
		reviewThreshold: options.reviewThreshold,
		metrics:         options.metrics,
		logger:          options.logger,
	}

	// Rebuild states for a store that already holds history.
	for _, vin := range r.store.VINs() {
		e := r.entry(vin)
		e.state.Store(r.build(vin, r.store.History(vin)))
	}
	r.metrics.SetVehicles(len(r.entries))
	return r, nil
}

// log prefers a logger carried by ctx over the configured one.
func (r *reconciler) log(ctx context.Context) *zerolog.Logger {
	l := logging.FromContext(ctx)
	if l == logging.Default() && r.logger != nil {
		return r.logger
	}
	return l
}

// Now returns the reconciler clock.
func (r *reconciler) Now() time.Time {
	return r.clock()
}

// Documents returns the document store.
func (r *reconciler) Documents() documents.Store {
	return r.store
}

// entry returns the entry for vin, creating it when absent.
func (r *reconciler) entry(vin vehicles.VIN) *entry {
	r.mu.RLock()
	e, ok := r.entries[vin]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.entries[vin]; ok {
		return e
	}
	e = &entry{}
	r.entries[vin] = e
	return e
}

// AddDocument ingests one extraction.
func (r *reconciler) AddDocument(ctx context.Context, ext vehicles.DocumentExtraction) (*AddResult, error) {
	logger := r.log(ctx)

	vin, err := vehicles.ParseVIN(string(ext.VIN))
	if err != nil {
		r.metrics.IncDocument(string(ext.DocumentType), "rejected")
		reason := "malformed VIN"
		if ext.VIN == "" {
			reason = "missing VIN"
		}
		return nil, errors.NewInvalidDocumentError(ext.DocumentID, reason, err)
	}

	e := r.entry(vin)
	e.mu.Lock()
	defer e.mu.Unlock()

	ref, err := r.store.Append(ext)
	if err != nil {
		r.metrics.IncDocument(string(ext.DocumentType), "rejected")
		r.dropIfEmpty(vin, e)
		logger.Warn().
			Err(err).
			Str("vin", string(vin)).
			Str("document_id", ext.DocumentID).
			Msg("Rejected document")
		return nil, err
	}

	prev := e.state.Load()
	if ref.Duplicate && prev != nil {
		r.metrics.IncDocument(string(ref.Document.DocumentType), "duplicate")
		logger.Debug().
			Str("vin", string(vin)).
			Str("document_id", ref.Document.DocumentID).
			Msg("Duplicate document ignored")
		return &AddResult{
			Success:   true,
			VIN:       vin,
			Duplicate: true,
			Vehicle:   r.live(prev),
		}, nil
	}

	start := time.Now()
	next := r.build(vin, r.store.History(vin))
	r.metrics.ObserveMerge(time.Since(start))
	e.state.Store(next)

	result := &AddResult{
		Success:   true,
		VIN:       vin,
		Created:   ref.Created,
		Conflicts: newConflicts(prev, next),
		Warnings:  r.warnings(ref.Document, next),
		Vehicle:   r.live(next),
	}

	r.metrics.IncDocument(string(ref.Document.DocumentType), "stored")
	for _, c := range result.Conflicts {
		r.metrics.IncConflict(string(c.Field))
	}
	for _, g := range next.Gaps {
		if g.DocumentID == ref.Document.DocumentID {
			r.metrics.IncGap(string(g.Field))
		}
	}
	r.metrics.SetVehicles(r.count())

	event := logger.Info()
	if len(result.Conflicts) > 0 {
		event = logger.Warn()
	}
	event.
		Str("vin", string(vin)).
		Str("document_id", ref.Document.DocumentID).
		Str("document_type", string(ref.Document.DocumentType)).
		Int("documents", ref.DocumentCount).
		Int("new_conflicts", len(result.Conflicts)).
		Int("warnings", len(result.Warnings)).
		Msg("Reconciled vehicle")

	return result, nil
}

// dropIfEmpty removes an entry created for a VIN whose first document was
// rejected.
func (r *reconciler) dropIfEmpty(vin vehicles.VIN, e *entry) {
	if e.state.Load() != nil {
		return
	}
	r.mu.Lock()
	if r.entries[vin] == e {
		delete(r.entries, vin)
	}
	r.mu.Unlock()
}

// build derives a complete VehicleState from history.
func (r *reconciler) build(vin vehicles.VIN, history []vehicles.DocumentExtraction) *vehicles.VehicleState {
	merged := r.merger.Merge(history)
	state := &vehicles.VehicleState{
		VIN:             vin,
		Fields:          merged.Fields,
		Documents:       history,
		ActiveConflicts: merged.Conflicts,
		Gaps:            merged.Gaps,
		LastUpdated:     utc.New(r.clock()),
	}
	state.Compliance = compliance.EvaluateState(state, r.clock())
	return state
}

// live returns a copy of s with compliance evaluated against the clock.
func (r *reconciler) live(s *vehicles.VehicleState) *vehicles.VehicleState {
	if s == nil {
		return nil
	}
	out := s.Clone()
	out.Compliance = compliance.EvaluateState(out, r.clock())
	return out
}

func (r *reconciler) warnings(doc vehicles.DocumentExtraction, state *vehicles.VehicleState) []string {
	var out []string
	for _, g := range state.Gaps {
		if g.DocumentID == doc.DocumentID {
			out = append(out, fmt.Sprintf("field %s: unusable value %q (%s)", g.Field, g.RawValue, g.Reason))
		}
	}
	if doc.ExtractionConfidence < r.reviewThreshold {
		out = append(out, fmt.Sprintf("low extraction confidence %.2f", doc.ExtractionConfidence))
	}
	if len(doc.Fields) == 0 {
		out = append(out, "document carried no fields")
	}
	return out
}

// newConflicts returns the conflicts in next that were not active in prev.
func newConflicts(prev, next *vehicles.VehicleState) []vehicles.Conflict {
	seen := make(map[string]bool)
	if prev != nil {
		for _, c := range prev.ActiveConflicts {
			seen[c.Key()] = true
		}
	}
	var out []vehicles.Conflict
	for _, c := range next.ActiveConflicts {
		if !seen[c.Key()] {
			out = append(out, c)
		}
	}
	return out
}

func (r *reconciler) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// states returns every published state, sorted by VIN.
func (r *reconciler) states() []*vehicles.VehicleState {
	r.mu.RLock()
	out := make([]*vehicles.VehicleState, 0, len(r.entries))
	for _, e := range r.entries {
		if s := e.state.Load(); s != nil {
			out = append(out, s)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].VIN < out[j].VIN })
	return out
}

// GetVehicleSummary implements Reconciler.
func (r *reconciler) GetVehicleSummary(vin vehicles.VIN) (*vehicles.VehicleState, bool) {
	vin = vehicles.NormalizeVIN(string(vin))
	r.mu.RLock()
	e, ok := r.entries[vin]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s := e.state.Load()
	if s == nil {
		return nil, false
	}
	return r.live(s), true
}

// GetAllVehicles implements Reconciler.
func (r *reconciler) GetAllVehicles() []*vehicles.VehicleState {
	states := r.states()
	out := make([]*vehicles.VehicleState, len(states))
	for i, s := range states {
		out[i] = r.live(s)
	}
	return out
}

// SearchVehicles implements Reconciler.
func (r *reconciler) SearchVehicles(filter Filter) []*vehicles.VehicleState {
	match := filter.Predicate()
	var out []*vehicles.VehicleState
	for _, s := range r.GetAllVehicles() {
		if match(s) {
			out = append(out, s)
		}
	}
	return out
}

// Explain implements Reconciler.
func (r *reconciler) Explain(vin vehicles.VIN) (*provenance.Report, error) {
	s, ok := r.GetVehicleSummary(vin)
	if !ok {
		return nil, errors.NewNotFoundError("vehicle", string(vin))
	}
	return provenance.FromStates(r.clock(), s), nil
}

// Snapshot implements Reconciler.
func (r *reconciler) Snapshot() Snapshot {
	snap := Snapshot{
		documents: r.store.Snapshot(),
		states:    make(map[vehicles.VIN]*vehicles.VehicleState),
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for vin, e := range r.entries {
		if s := e.state.Load(); s != nil {
			snap.states[vin] = s
		}
	}
	return snap
}

// Restore implements Reconciler.
func (r *reconciler) Restore(snap Snapshot) {
	r.store.Restore(snap.documents)

	entries := make(map[vehicles.VIN]*entry, len(snap.states))
	for vin, s := range snap.states {
		e := &entry{}
		e.state.Store(s)
		entries[vin] = e
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()
	r.metrics.SetVehicles(len(entries))
}

// Clear implements Reconciler.
func (r *reconciler) Clear() {
	r.store.Clear()
	r.mu.Lock()
	r.entries = make(map[vehicles.VIN]*entry)
	r.mu.Unlock()
	r.metrics.SetVehicles(0)
}
