// Package fleetview joins persisted vehicle rows with reconciled document
// state into the fleet view operators work with.
//
// A Service owns the view and every operation that changes it. Readers get
// immutable generations of the view; a batch either lands completely or is
// rolled back so readers never observe a half-applied batch.
//
// Example usage:
//
//	svc, err := fleetview.New(
//		fleetview.WithRepository(repo),
//		fleetview.WithReconciler(rec),
//		fleetview.WithPublisher(broker),
//	)
//	if _, err := svc.InitializeData(ctx); err != nil {
//		return err
//	}
//	result, err := svc.AddVehicles(ctx, batch)
package fleetview

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/fleetmap/pkg/events"
	"github.com/agentstation/fleetmap/pkg/logging"
	"github.com/agentstation/fleetmap/pkg/metrics"
	"github.com/agentstation/fleetmap/pkg/reconciler"
	"github.com/agentstation/fleetmap/pkg/repository"
	"github.com/agentstation/fleetmap/pkg/repository/memory"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// Service is the unified fleet view.
type Service struct {
	// mu serializes operations that change the view
	mu sync.Mutex

	repo        repository.Repository
	rec         reconciler.Reconciler
	publisher   Publisher
	caches      []CacheClearer
	ttl         time.Duration
	concurrency int
	clock       func() time.Time
	metrics     *metrics.Metrics
	logger      *zerolog.Logger

	view        atomic.Pointer[snapshot]
	invalidated atomic.Bool
	loading     atomic.Bool
	listeners   *listeners

	// backup from the last successful batch or clear, guarded by mu
	backup *backup
}

// New creates a Service.
func New(opts ...Option) (*Service, error) {
	o, err := defaultOptions().apply(opts...)
	if err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	if o.repository == nil {
		o.repository = memory.New().WithClock(o.clock)
	}
	if o.reconciler == nil {
		o.reconciler, err = reconciler.New(
			reconciler.WithClock(o.clock),
			reconciler.WithMetrics(o.metrics),
			reconciler.WithLogger(o.logger),
		)
		if err != nil {
			return nil, err
		}
	}

	s := &Service{
		repo:        o.repository,
		rec:         o.reconciler,
		publisher:   o.publisher,
		caches:      o.caches,
		ttl:         o.ttl,
		concurrency: o.concurrency,
		clock:       o.clock,
		metrics:     o.metrics,
		logger:      o.logger,
		listeners:   newListeners(o.logger),
	}
	s.view.Store(emptySnapshot())
	return s, nil
}

// Reconciler returns the reconciler backing the view.
func (s *Service) Reconciler() reconciler.Reconciler {
	return s.rec
}

// Repository returns the persistence adapter.
func (s *Service) Repository() repository.Repository {
	return s.repo
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Service) Subscribe(fn Listener) (unsubscribe func()) {
	return s.listeners.add(fn)
}

// Loading reports whether a load is in progress.
func (s *Service) Loading() bool {
	return s.loading.Load()
}

// View returns a copy of the current view keyed by vehicle key. Values
// share category maps with the service and must not be mutated.
func (s *Service) View() map[string]UnifiedVehicleView {
	snap := s.view.Load()
	out := make(map[string]UnifiedVehicleView, snap.len())
	for k, v := range snap.vehicles {
		out[k] = *v
	}
	return out
}

// List returns the current view sorted by key.
func (s *Service) List() []UnifiedVehicleView {
	snap := s.view.Load()
	out := make([]UnifiedVehicleView, 0, len(snap.keys))
	for _, k := range snap.keys {
		out = append(out, *snap.vehicles[k])
	}
	return out
}

// Get returns one vehicle by key. VIN keys are normalized.
func (s *Service) Get(key string) (UnifiedVehicleView, bool) {
	snap := s.view.Load()
	if v, ok := snap.vehicles[key]; ok {
		return *v, true
	}
	if vin, err := vehicles.ParseVIN(key); err == nil {
		if v, ok := snap.vehicles[string(vin)]; ok {
			return *v, true
		}
	}
	return UnifiedVehicleView{}, false
}

// Len returns the number of vehicles in the view.
func (s *Service) Len() int {
	return s.view.Load().len()
}

// LoadedAt returns when the current view was built, or the zero time.
func (s *Service) LoadedAt() time.Time {
	return s.view.Load().loadedAt
}

// Invalidate forces the next InitializeData to reload.
func (s *Service) Invalidate() {
	s.invalidated.Store(true)
}

func (s *Service) fresh() bool {
	snap := s.view.Load()
	if !snap.loaded || s.invalidated.Load() {
		return false
	}
	return s.clock().Sub(snap.loadedAt) < s.ttl
}

// InitializeData loads the view from the repository and the reconciler.
// Within the TTL of the last load it does nothing and returns false.
func (s *Service) InitializeData(ctx context.Context) (bool, error) {
	if s.fresh() {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fresh() {
		return false, nil
	}

	ctx = logging.WithOperation(logging.Attach(ctx, s.logger), "initialize")
	s.setLoading(true)
	defer s.setLoading(false)

	snap, err := s.load(ctx)
	if err != nil {
		s.log(ctx).Error().Err(err).Msg("Failed to load fleet view")
		s.notify(Change{Type: ErrorOccurred, Err: err})
		return false, err
	}
	s.swap(snap)
	s.log(ctx).Info().Int("vehicles", snap.len()).Msg("Fleet view loaded")
	return true, nil
}

// ProcessDocument ingests one extraction and refreshes the view. A view
// refresh failure is reported to listeners but does not fail the
// document, which is already stored.
func (s *Service) ProcessDocument(ctx context.Context, ext vehicles.DocumentExtraction) (*reconciler.AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = logging.WithDocument(logging.Attach(ctx, s.logger), ext.DocumentID, string(ext.DocumentType))
	prev := s.view.Load()
	res, err := s.rec.AddDocument(ctx, ext)
	if err != nil {
		return nil, err
	}
	if res.Duplicate {
		return res, nil
	}

	if err := s.refresh(ctx); err != nil {
		s.log(ctx).Warn().Err(err).Msg("Fleet view refresh failed after document")
		s.notify(Change{Type: ErrorOccurred, Err: err})
	}

	s.publish(events.DocumentProcessed, s.payload(res.VIN, ext.DocumentID, len(res.Conflicts)))
	if _, known := prev.vehicles[string(res.VIN)]; known && !res.Created {
		s.publish(events.VehicleUpdated, s.payload(res.VIN, ext.DocumentID, len(res.Conflicts)))
	} else {
		s.publish(events.VehicleAdded, s.payload(res.VIN, ext.DocumentID, len(res.Conflicts)))
	}
	return res, nil
}

// load builds a new generation of the view.
func (s *Service) load(ctx context.Context) (*snapshot, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return buildSnapshot(rows, s.rec.GetAllVehicles(), s.clock()), nil
}

func (s *Service) refresh(ctx context.Context) error {
	snap, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.swap(snap)
	return nil
}

// swap publishes snap and notifies listeners.
func (s *Service) swap(snap *snapshot) {
	s.view.Store(snap)
	s.invalidated.Store(false)
	s.notify(Change{Type: DataChanged, Vehicles: snap.len()})
}

func (s *Service) setLoading(loading bool) {
	s.loading.Store(loading)
	s.notify(Change{Type: LoadingChanged, Loading: loading})
}

func (s *Service) notify(c Change) {
	if c.At.IsZero() {
		c.At = s.clock()
	}
	s.listeners.notify(c)
}

func (s *Service) publish(t events.EventType, data any) {
	if s.publisher != nil {
		s.publisher.Publish(t, data)
	}
}

func (s *Service) payload(vin vehicles.VIN, documentID string, conflicts int) events.VehiclePayload {
	p := events.VehiclePayload{VIN: string(vin), DocumentID: documentID, Conflicts: conflicts}
	if v, ok := s.view.Load().vehicles[string(vin)]; ok {
		p.Score = v.ComplianceScore
		p.Risk = string(v.RiskLevel)
	}
	return p
}

func (s *Service) clearCaches() {
	for _, c := range s.caches {
		c.ClearCache()
	}
}

func (s *Service) log(ctx context.Context) *zerolog.Logger {
	l := logging.FromContext(ctx)
	if l == logging.Default() {
		return s.logger
	}
	return l
}
