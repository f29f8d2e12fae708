// Package files provides a repository persisted as a single YAML file.
package files

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/repository"
)

const filePermissions = 0o644

// document is the on-disk layout.
type document struct {
	Vehicles []repository.VehicleRecord `yaml:"vehicles"`
}

// Repository keeps records in memory and rewrites the whole file on every
// mutation. Writes go through a temporary file and a rename so a crash
// never leaves a truncated file behind.
type Repository struct {
	mu      sync.Mutex
	path    string
	records map[string]repository.VehicleRecord
	clock   func() time.Time
}

var (
	_ repository.Repository = (*Repository)(nil)
	_ repository.Clearer    = (*Repository)(nil)
)

// Open loads the repository at path. A missing file is an empty repository.
func Open(path string) (*Repository, error) {
	r := &Repository{
		path:    path,
		records: make(map[string]repository.VehicleRecord),
		clock:   time.Now,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	for _, rec := range doc.Vehicles {
		r.records[rec.ID] = rec
	}
	return r, nil
}

// Path returns the backing file path.
func (r *Repository) Path() string {
	return r.path
}

// Save implements repository.Repository.
func (r *Repository) Save(ctx context.Context, rec repository.VehicleRecord) (repository.VehicleRecord, error) {
	if err := ctx.Err(); err != nil {
		return repository.VehicleRecord{}, errors.WrapPersistence("save", rec.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous, existed := r.records[rec.ID]
	if existed && rec.CreatedAt.IsZero() {
		rec.CreatedAt = previous.CreatedAt
	}
	stored := repository.Prepare(rec, r.clock())
	r.records[stored.ID] = stored

	if err := r.flush(); err != nil {
		if existed {
			r.records[stored.ID] = previous
		} else {
			delete(r.records, stored.ID)
		}
		return repository.VehicleRecord{}, errors.WrapPersistence("save", stored.ID, err)
	}
	return stored.Clone(), nil
}

// Delete implements repository.Repository.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapPersistence("delete", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous, ok := r.records[id]
	if !ok {
		return errors.NewNotFoundError("vehicle record", id)
	}
	delete(r.records, id)
	if err := r.flush(); err != nil {
		r.records[id] = previous
		return errors.WrapPersistence("delete", id, err)
	}
	return nil
}

// List implements repository.Repository.
func (r *Repository) List(ctx context.Context) ([]repository.VehicleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapPersistence("list", "", err)
	}

	r.mu.Lock()
	out := make([]repository.VehicleRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	r.mu.Unlock()

	repository.Sort(out)
	return out, nil
}

// Clear implements repository.Clearer.
func (r *Repository) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapPersistence("clear", "", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.records
	r.records = make(map[string]repository.VehicleRecord)
	if err := r.flush(); err != nil {
		r.records = previous
		return errors.WrapPersistence("clear", "", err)
	}
	return nil
}

// flush writes every record to disk. Callers hold mu.
func (r *Repository) flush() error {
	doc := document{Vehicles: make([]repository.VehicleRecord, 0, len(r.records))}
	for _, rec := range r.records {
		doc.Vehicles = append(doc.Vehicles, rec)
	}
	repository.Sort(doc.Vehicles)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.WrapParse("yaml", r.path, err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapIO("mkdir", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".vehicles_*.yaml")
	if err != nil {
		return errors.WrapIO("create", "temp file", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return errors.WrapIO("write", tempPath, err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return errors.WrapIO("close", tempPath, err)
	}
	if err := os.Chmod(tempPath, filePermissions); err != nil {
		_ = os.Remove(tempPath)
		return errors.WrapIO("chmod", tempPath, err)
	}
	if err := os.Rename(tempPath, r.path); err != nil {
		_ = os.Remove(tempPath)
		return errors.WrapIO("move", r.path, err)
	}
	return nil
}
