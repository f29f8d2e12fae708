package fleetview

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/events"
	"github.com/agentstation/fleetmap/pkg/logging"
	"github.com/agentstation/fleetmap/pkg/reconciler"
	"github.com/agentstation/fleetmap/pkg/repository"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// backup is everything needed to undo a batch.
type backup struct {
	view       *snapshot
	reconciler reconciler.Snapshot
	rows       []repository.VehicleRecord
}

func (s *Service) takeBackup(ctx context.Context) (*backup, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return &backup{
		view:       s.view.Load(),
		reconciler: s.rec.Snapshot(),
		rows:       rows,
	}, nil
}

// restore puts the reconciler, the repository and the view back to b.
// Repository compensation runs even when ctx is done.
func (s *Service) restore(ctx context.Context, b *backup) error {
	s.rec.Restore(b.reconciler)
	err := s.restoreRows(context.WithoutCancel(ctx), b.rows)
	s.clearCaches()
	s.view.Store(b.view)
	s.notify(Change{Type: DataChanged, Vehicles: b.view.len()})
	return err
}

// restoreRows deletes rows that were not in prior and re-saves prior rows
// that changed or disappeared.
func (s *Service) restoreRows(ctx context.Context, prior []repository.VehicleRecord) error {
	current, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	want := make(map[string]repository.VehicleRecord, len(prior))
	for _, rec := range prior {
		want[rec.ID] = rec
	}
	have := make(map[string]repository.VehicleRecord, len(current))
	for _, rec := range current {
		have[rec.ID] = rec
	}

	errs := &errors.MultiError{}
	for id := range have {
		if _, ok := want[id]; ok {
			continue
		}
		if err := s.repo.Delete(ctx, id); err != nil && !errors.IsNotFound(err) {
			errs.Add(err)
		}
	}
	for id, rec := range want {
		if got, ok := have[id]; ok && reflect.DeepEqual(got, rec) {
			continue
		}
		if _, err := s.repo.Save(ctx, rec); err != nil {
			errs.Add(err)
		}
	}
	return errs.ErrorOrNil()
}

// abort restores b after a catastrophic failure and builds the error. A
// nil b means nothing was captured: nothing is restored and no rollback is
// offered.
func (s *Service) abort(ctx context.Context, operation string, result *SyncResult, b *backup, cause error) (*SyncResult, error) {
	log := s.log(ctx)
	rolledBack := false
	if b != nil {
		rolledBack = true
		if err := s.restore(ctx, b); err != nil {
			rolledBack = false
			result.Errors = append(result.Errors, "rollback: "+err.Error())
			log.Error().Err(err).Msg("Rollback incomplete")
		}
		s.metrics.IncRollback(operation)
	}
	s.metrics.IncSync(operation, "aborted")

	result.Success = false
	result.RollbackAvailable = s.backup != nil
	result.RolledBack = rolledBack
	result.Errors = append(result.Errors, cause.Error())
	result.Duration = s.clock().Sub(result.started)

	err := errors.NewCatastrophicError(operation, rolledBack, cause)
	s.notify(Change{Type: ErrorOccurred, Err: err})
	log.Error().Err(cause).Bool("rolled_back", rolledBack).Msg("Fleet operation aborted")
	return result, err
}

// saved is the persistence outcome of one batch item.
type saved struct {
	record repository.VehicleRecord
	err    error
	ok     bool
}

// AddVehicles persists a batch, feeds it to the reconciler and rebuilds
// the view. Items that fail to persist are counted in the result and
// skipped. A panic, a context deadline or a failed listing aborts the
// batch: everything is restored to the state before the call and a
// CatastrophicError is returned alongside the result.
func (s *Service) AddVehicles(ctx context.Context, batch []VehicleInput) (*SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = logging.WithOperation(logging.Attach(ctx, s.logger), OperationAddVehicles)
	ctx = logging.WithBatch(ctx, uuid.NewString(), len(batch))
	result := s.newResult(OperationAddVehicles)

	b, err := s.takeBackup(ctx)
	if err != nil {
		return s.abort(ctx, OperationAddVehicles, result, nil, err)
	}

	outcomes, err := s.persist(ctx, batch)
	if err != nil {
		return s.abort(ctx, OperationAddVehicles, result, b, err)
	}
	for i, o := range outcomes {
		item := ItemResult{Index: i, ID: o.record.ID, VIN: o.record.VIN}
		if o.ok {
			result.Processed++
		} else {
			item.ID, item.VIN = batch[i].Record.ID, batch[i].Record.VIN
			item.Error = o.err.Error()
			result.fail(fmt.Sprintf("item %d (%s): %v", i+1, label(batch[i].Record), o.err))
		}
		result.Items = append(result.Items, item)
	}

	touched, err := s.ingest(ctx, batch, outcomes, result)
	if err != nil {
		return s.abort(ctx, OperationAddVehicles, result, b, err)
	}

	snap, err := s.load(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return s.abort(ctx, OperationAddVehicles, result, b, err)
	}
	s.swap(snap)
	s.backup = b

	result.Success = result.Failed == 0 && result.Rejected == 0
	result.RollbackAvailable = true
	result.Duration = s.clock().Sub(result.started)
	s.metrics.AddSyncItems(result.Processed, result.Failed)
	s.metrics.IncSync(OperationAddVehicles, outcome(result))

	for _, vin := range touched {
		t := events.VehicleUpdated
		if _, known := b.view.vehicles[string(vin)]; !known {
			t = events.VehicleAdded
		}
		s.publish(t, s.payload(vin, "", 0))
	}

	s.log(ctx).Info().
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Int("rejected", result.Rejected).
		Int("conflicts", result.Conflicts).
		Dur("duration", result.Duration).
		Msg("Vehicle batch applied")
	return result, nil
}

// persist writes the batch with bounded parallelism. Per-item failures are
// returned in the outcomes; a panic or a done context is returned as the
// error and cancels the remaining writes.
func (s *Service) persist(ctx context.Context, batch []VehicleInput) ([]saved, error) {
	outcomes := make([]saved, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range batch {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &errors.PanicError{Value: r}
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := s.repo.Save(gctx, batch[i].Record)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				outcomes[i] = saved{err: err}
				return nil
			}
			outcomes[i] = saved{record: rec, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, ctx.Err()
}

// ingest feeds persisted items to the reconciler in batch order and
// returns the VINs that changed.
func (s *Service) ingest(ctx context.Context, batch []VehicleInput, outcomes []saved, result *SyncResult) ([]vehicles.VIN, error) {
	var touched []vehicles.VIN
	seen := make(map[vehicles.VIN]bool)

	for i, o := range outcomes {
		if !o.ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return touched, err
		}
		vins, err := s.ingestItem(ctx, i, batch[i], o.record, result)
		if err != nil {
			return touched, err
		}
		for _, vin := range vins {
			if !seen[vin] {
				seen[vin] = true
				touched = append(touched, vin)
			}
		}
	}
	return touched, nil
}

func (s *Service) ingestItem(ctx context.Context, index int, item VehicleInput, rec repository.VehicleRecord, result *SyncResult) (vins []vehicles.VIN, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &errors.PanicError{Value: r}
		}
	}()

	vin, hasVIN := rec.NormalizedVIN()
	docs := make([]vehicles.DocumentExtraction, 0, len(item.Documents)+1)
	if ext, ok := rec.Extraction(rec.UpdatedAt); ok {
		docs = append(docs, ext)
	}
	for _, d := range item.Documents {
		if d.VIN == "" && hasVIN {
			d.VIN = vin
		}
		docs = append(docs, d)
	}

	for _, doc := range docs {
		res, err := s.rec.AddDocument(ctx, doc)
		if err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, fmt.Sprintf("item %d document %q: %v", index+1, doc.DocumentID, err))
			continue
		}
		result.Conflicts += len(res.Conflicts)
		if !res.Duplicate {
			vins = append(vins, res.VIN)
		}
	}
	return vins, nil
}

// DeleteVehicle removes the repository row with id and refreshes the view.
// Documents already reconciled for the vehicle are kept, so a vehicle that
// has documents stays in the view as reconciled. Rollback restores the row.
func (s *Service) DeleteVehicle(ctx context.Context, id string) (*SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = logging.WithOperation(logging.Attach(ctx, s.logger), OperationDelete)
	result := s.newResult(OperationDelete)

	b, err := s.takeBackup(ctx)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(b.rows, func(r repository.VehicleRecord) bool { return r.ID == id })
	if idx < 0 {
		return nil, errors.NewNotFoundError("vehicle", id)
	}
	row := b.rows[idx]

	if err := s.repo.Delete(ctx, id); err != nil {
		s.metrics.IncSync(OperationDelete, "failed")
		return nil, err
	}
	if err := s.refresh(ctx); err != nil {
		s.log(ctx).Warn().Err(err).Msg("Fleet view refresh failed after delete")
		s.notify(Change{Type: ErrorOccurred, Err: err})
	}
	s.backup = b

	result.Success = true
	result.Processed = 1
	result.Items = []ItemResult{{Index: 0, ID: row.ID, VIN: row.VIN}}
	result.RollbackAvailable = true
	result.Duration = s.clock().Sub(result.started)
	s.metrics.IncSync(OperationDelete, "success")

	payload := s.payload(vehicles.VIN(row.VIN), "", 0)
	payload.VIN, payload.RecordID = row.VIN, row.ID
	s.publish(events.VehicleDeleted, payload)

	s.log(ctx).Info().Str("id", row.ID).Str("vin", row.VIN).Msg("Vehicle deleted")
	return result, nil
}

// ClearAllFleetData runs the clear steps in order: persistence, documents,
// caches, view. A failing step is recorded and the later steps still run.
// A panic restores the state before the call.
func (s *Service) ClearAllFleetData(ctx context.Context) (*SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = logging.WithOperation(logging.Attach(ctx, s.logger), OperationClear)
	result := s.newResult(OperationClear)

	b, err := s.takeBackup(ctx)
	if err != nil {
		return s.abort(ctx, OperationClear, result, nil, err)
	}

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"persistence", func(ctx context.Context) error { return repository.ClearAll(ctx, s.repo) }},
		{"documents", func(context.Context) error { s.rec.Clear(); return nil }},
		{"caches", func(context.Context) error { s.clearCaches(); return nil }},
		{"view", func(context.Context) error {
			snap := emptySnapshot()
			snap.loaded, snap.loadedAt = true, s.clock()
			s.swap(snap)
			return nil
		}},
	}

	for i, step := range steps {
		panicked, err := runStep(ctx, step.run)
		if panicked {
			return s.abort(ctx, OperationClear, result, b, err)
		}
		item := ItemResult{Index: i, ID: step.name}
		if err != nil {
			item.Error = err.Error()
			result.fail(step.name + ": " + err.Error())
			s.log(ctx).Warn().Err(err).Str("step", step.name).Msg("Clear step failed")
		} else {
			result.Processed++
		}
		result.Items = append(result.Items, item)
	}

	s.backup = b
	result.Success = result.Failed == 0
	result.RollbackAvailable = true
	result.Duration = s.clock().Sub(result.started)
	s.metrics.IncSync(OperationClear, outcome(result))
	s.publish(events.FleetCleared, map[string]any{"vehicles": b.view.len(), "success": result.Success})

	s.log(ctx).Info().
		Int("steps", result.Processed).
		Int("failed", result.Failed).
		Msg("Fleet data cleared")
	return result, nil
}

func runStep(ctx context.Context, fn func(context.Context) error) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked, err = true, &errors.PanicError{Value: r}
		}
	}()
	return false, fn(ctx)
}

// Rollback restores the state captured before the last successful batch
// or clear. Documents processed since then are rolled back too. The
// backup is consumed.
func (s *Service) Rollback(ctx context.Context) (*SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = logging.WithOperation(logging.Attach(ctx, s.logger), OperationRollback)
	result := s.newResult(OperationRollback)
	if s.backup == nil {
		return nil, errors.ErrNoRollback
	}
	b := s.backup
	s.backup = nil

	if err := s.restore(ctx, b); err != nil {
		result.fail(err.Error())
		result.Duration = s.clock().Sub(result.started)
		s.metrics.IncSync(OperationRollback, "failed")
		s.notify(Change{Type: ErrorOccurred, Err: err})
		s.log(ctx).Error().Err(err).Msg("Rollback incomplete")
		return result, err
	}

	result.Success = true
	result.RolledBack = true
	result.Processed = b.view.len()
	result.Duration = s.clock().Sub(result.started)
	s.metrics.IncRollback(OperationRollback)
	s.metrics.IncSync(OperationRollback, "success")
	s.log(ctx).Info().Int("vehicles", result.Processed).Msg("Fleet view rolled back")
	return result, nil
}

// RollbackAvailable reports whether Rollback has a backup to restore.
func (s *Service) RollbackAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backup != nil
}

func (s *Service) newResult(operation string) *SyncResult {
	return &SyncResult{Operation: operation, Errors: []string{}, started: s.clock()}
}

func outcome(r *SyncResult) string {
	switch {
	case r.Success:
		return "success"
	case r.Processed > 0:
		return "partial"
	default:
		return "failed"
	}
}

func label(rec repository.VehicleRecord) string {
	switch {
	case rec.VIN != "":
		return rec.VIN
	case rec.ID != "":
		return rec.ID
	case rec.TruckNumber != "":
		return "truck " + rec.TruckNumber
	default:
		return "unidentified vehicle"
	}
}
