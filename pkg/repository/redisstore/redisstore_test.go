package redisstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/fleetmap/pkg/repository"
	"github.com/agentstation/fleetmap/pkg/repository/redisstore"
	"github.com/agentstation/fleetmap/pkg/repository/repositorytest"
)

func TestContract(t *testing.T) {
	url := os.Getenv("FLEETMAP_TEST_REDIS_URL")
	if url == "" {
		t.Skip("set FLEETMAP_TEST_REDIS_URL to run redis repository tests")
	}

	repositorytest.Run(t, func(t *testing.T) repository.Repository {
		base, err := redisstore.Open(context.Background(), url)
		require.NoError(t, err)

		// Each subtest gets its own hash.
		key := "fleetmap:test:" + uuid.NewString()
		repo := redisstore.New(base.Client(), key)
		t.Cleanup(func() {
			_ = repo.Clear(context.Background())
			_ = repo.Close()
		})
		return repo
	})
}
