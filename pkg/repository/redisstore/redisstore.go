// Package redisstore provides a repository stored in a single Redis hash.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/repository"
)

// DefaultKey is the hash holding every record.
const DefaultKey = "fleetmap:vehicles"

// Repository stores each record as JSON under its ID in a Redis hash.
type Repository struct {
	client *redis.Client
	key    string
	clock  func() time.Time
}

var (
	_ repository.Repository = (*Repository)(nil)
	_ repository.Clearer    = (*Repository)(nil)
	_ repository.Closer     = (*Repository)(nil)
)

// Open parses url, connects and pings the server.
func Open(ctx context.Context, url string) (*Repository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.NewConfigError("store", "parse redis URL", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.WrapResource("ping", "redis", opts.Addr, err)
	}
	return New(client, DefaultKey), nil
}

// New wraps an existing client. An empty key uses DefaultKey.
func New(client *redis.Client, key string) *Repository {
	if key == "" {
		key = DefaultKey
	}
	return &Repository{client: client, key: key, clock: time.Now}
}

// Save implements repository.Repository.
func (r *Repository) Save(ctx context.Context, rec repository.VehicleRecord) (repository.VehicleRecord, error) {
	if rec.ID != "" && rec.CreatedAt.IsZero() {
		existing, err := r.get(ctx, rec.ID)
		switch {
		case err == nil:
			rec.CreatedAt = existing.CreatedAt
		case !errors.IsNotFound(err):
			return repository.VehicleRecord{}, errors.WrapPersistence("save", rec.ID, err)
		}
	}

	stored := repository.Prepare(rec, r.clock())
	data, err := json.Marshal(stored)
	if err != nil {
		return repository.VehicleRecord{}, errors.WrapPersistence("save", stored.ID, err)
	}
	if err := r.client.HSet(ctx, r.key, stored.ID, data).Err(); err != nil {
		return repository.VehicleRecord{}, errors.WrapPersistence("save", stored.ID, err)
	}
	return stored, nil
}

func (r *Repository) get(ctx context.Context, id string) (repository.VehicleRecord, error) {
	data, err := r.client.HGet(ctx, r.key, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return repository.VehicleRecord{}, errors.NewNotFoundError("vehicle record", id)
	}
	if err != nil {
		return repository.VehicleRecord{}, err
	}
	var rec repository.VehicleRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return repository.VehicleRecord{}, errors.WrapParse("json", id, err)
	}
	return rec, nil
}

// Delete implements repository.Repository.
func (r *Repository) Delete(ctx context.Context, id string) error {
	n, err := r.client.HDel(ctx, r.key, id).Result()
	if err != nil {
		return errors.WrapPersistence("delete", id, err)
	}
	if n == 0 {
		return errors.NewNotFoundError("vehicle record", id)
	}
	return nil
}

// List implements repository.Repository.
func (r *Repository) List(ctx context.Context) ([]repository.VehicleRecord, error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, errors.WrapPersistence("list", "", err)
	}
	out := make([]repository.VehicleRecord, 0, len(all))
	for id, data := range all {
		var rec repository.VehicleRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, errors.WrapPersistence("list", id, errors.WrapParse("json", id, err))
		}
		out = append(out, rec)
	}
	repository.Sort(out)
	return out, nil
}

// Clear implements repository.Clearer.
func (r *Repository) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return errors.WrapPersistence("clear", "", err)
	}
	return nil
}

// Close closes the client.
func (r *Repository) Close() error {
	return r.client.Close()
}

// Client returns the underlying client.
func (r *Repository) Client() *redis.Client {
	return r.client
}
