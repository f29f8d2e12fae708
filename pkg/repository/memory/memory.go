// Package memory provides an in-memory repository.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/repository"
)

// Repository is a thread-safe in-memory repository.
type Repository struct {
	mu      sync.RWMutex
	records map[string]repository.VehicleRecord
	clock   func() time.Time
}

var (
	_ repository.Repository = (*Repository)(nil)
	_ repository.Clearer    = (*Repository)(nil)
)

// New creates an empty repository.
func New() *Repository {
	return &Repository{
		records: make(map[string]repository.VehicleRecord),
		clock:   time.Now,
	}
}

// WithClock sets the clock used for timestamps.
func (r *Repository) WithClock(clock func() time.Time) *Repository {
	r.clock = clock
	return r
}

// Save implements repository.Repository.
func (r *Repository) Save(ctx context.Context, rec repository.VehicleRecord) (repository.VehicleRecord, error) {
	if err := ctx.Err(); err != nil {
		return repository.VehicleRecord{}, errors.WrapPersistence("save", rec.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[rec.ID]; ok && rec.CreatedAt.IsZero() {
		rec.CreatedAt = existing.CreatedAt
	}
	stored := repository.Prepare(rec, r.clock())
	r.records[stored.ID] = stored
	return stored.Clone(), nil
}

// Delete implements repository.Repository.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapPersistence("delete", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return errors.NewNotFoundError("vehicle record", id)
	}
	delete(r.records, id)
	return nil
}

// List implements repository.Repository.
func (r *Repository) List(ctx context.Context) ([]repository.VehicleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapPersistence("list", "", err)
	}

	r.mu.RLock()
	out := make([]repository.VehicleRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	r.mu.RUnlock()

	repository.Sort(out)
	return out, nil
}

// Clear implements repository.Clearer.
func (r *Repository) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapPersistence("clear", "", err)
	}
	r.mu.Lock()
	r.records = make(map[string]repository.VehicleRecord)
	r.mu.Unlock()
	return nil
}

// Len returns the number of stored records.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
