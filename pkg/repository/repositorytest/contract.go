// Package repositorytest provides the behavioral contract every
// repository adapter must satisfy.
package repositorytest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/repository"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// Factory returns an empty repository for one subtest.
type Factory func(t *testing.T) repository.Repository

// Run exercises the repository contract against fresh repositories.
func Run(t *testing.T, newRepo Factory) {
	t.Run("save assigns id and timestamps", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		saved, err := repo.Save(ctx, repository.VehicleRecord{
			VIN:   "1hgcm82633a004352",
			Make:  "Honda",
			Year:  2003,
			Dates: map[vehicles.FieldName]string{vehicles.FieldRegistrationExpirationDate: "2026-01-31"},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, "1HGCM82633A004352", saved.VIN)
		assert.Equal(t, repository.StatusActive, saved.Status)
		assert.False(t, saved.CreatedAt.IsZero())
		assert.False(t, saved.UpdatedAt.IsZero())

		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, saved.ID, list[0].ID)
		assert.Equal(t, "Honda", list[0].Make)
		assert.Equal(t, 2003, list[0].Year)
		assert.Equal(t, "2026-01-31", list[0].Dates[vehicles.FieldRegistrationExpirationDate])
	})

	t.Run("save replaces by id", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		first, err := repo.Save(ctx, repository.VehicleRecord{ID: "truck-1", Make: "Volvo"})
		require.NoError(t, err)
		_, err = repo.Save(ctx, repository.VehicleRecord{ID: "truck-1", Make: "Mack"})
		require.NoError(t, err)

		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Mack", list[0].Make)
		assert.True(t, list[0].CreatedAt.Equal(first.CreatedAt), "created at survives replacement")
	})

	t.Run("list is sorted by id", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		for _, id := range []string{"c", "a", "b"} {
			_, err := repo.Save(ctx, repository.VehicleRecord{ID: id})
			require.NoError(t, err)
		}

		list, err := repo.List(ctx)
		require.NoError(t, err)
		ids := make([]string, len(list))
		for i, rec := range list {
			ids[i] = rec.ID
		}
		assert.Equal(t, []string{"a", "b", "c"}, ids)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		saved, err := repo.Save(ctx, repository.VehicleRecord{Make: "Ford"})
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, saved.ID))

		err = repo.Delete(ctx, saved.ID)
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))

		list, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("clear all", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			_, err := repo.Save(ctx, repository.VehicleRecord{Make: "Kenworth"})
			require.NoError(t, err)
		}

		require.NoError(t, repository.ClearAll(ctx, repo))
		list, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
