package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/repository"
	"github.com/agentstation/fleetmap/pkg/repository/files"
	"github.com/agentstation/fleetmap/pkg/repository/memory"
	"github.com/agentstation/fleetmap/pkg/repository/redisstore"
	"github.com/agentstation/fleetmap/pkg/repository/sqlstore"
)

// OpenRepository opens the fleet record store selected by config.
func OpenRepository(ctx context.Context, config *Config) (repository.Repository, error) {
	var (
		repo repository.Repository
		err  error
	)
	switch config.StoreDriver {
	case StoreMemory, "":
		return memory.New(), nil
	case StoreFiles:
		repo, err = files.Open(config.StorePath)
	case StorePostgres:
		repo, err = sqlstore.Open(sqlstore.DriverPostgres, config.StoreDSN)
	case StoreSQLite:
		repo, err = sqlstore.Open(sqlstore.DriverSQLite, config.StoreDSN)
	case StoreRedis:
		repo, err = redisstore.Open(ctx, config.StoreDSN)
	default:
		return nil, errors.NewConfigError("store", "unknown driver "+config.StoreDriver, nil)
	}
	if err != nil {
		return nil, errors.WrapResource("open", "store", config.StoreDriver, err)
	}
	return repo, nil
}

func closeRepository(repo repository.Repository, logger *zerolog.Logger) {
	c, ok := repo.(repository.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close store")
	}
}
