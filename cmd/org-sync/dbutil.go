package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/orgsync/modules/organization/domain/aggregates/orgunit"
	"github.com/iota-uz/orgsync/modules/organization/infrastructure/persistence"
	"github.com/iota-uz/orgsync/pkg/composables"
	"github.com/iota-uz/orgsync/pkg/configuration"
)

const (
	backendDB     = "db"
	backendMemory = "memory"
)

func connectDB(ctx context.Context, conf *configuration.Configuration) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("db connect failed: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, withCode(exitDB, fmt.Errorf("db ping failed: %w", err))
	}
	return pool, nil
}

// store hands a repository to fn. Database stores run fn in one transaction.
type store interface {
	Run(ctx context.Context, fn func(ctx context.Context, repo orgunit.Repository) error) error
	Close()
}

type pgStore struct {
	pool *pgxpool.Pool
	repo orgunit.Repository
}

func (s *pgStore) Run(ctx context.Context, fn func(context.Context, orgunit.Repository) error) error {
	return composables.InTx(composables.WithPool(ctx, s.pool), func(txCtx context.Context) error {
		return fn(txCtx, s.repo)
	})
}

func (s *pgStore) Close() { s.pool.Close() }

type memoryStore struct {
	repo *persistence.MemoryOrgUnitRepository
}

func (s *memoryStore) Run(ctx context.Context, fn func(context.Context, orgunit.Repository) error) error {
	return fn(ctx, s.repo)
}

func (s *memoryStore) Close() {}

// openStore is swapped in tests to share one in-memory repository across commands.
var openStore = func(ctx context.Context, conf *configuration.Configuration, backend string) (store, error) {
	switch backend {
	case backendDB:
		pool, err := connectDB(ctx, conf)
		if err != nil {
			return nil, err
		}
		return &pgStore{pool: pool, repo: persistence.NewOrgUnitRepository()}, nil
	case backendMemory:
		return &memoryStore{repo: persistence.NewMemoryOrgUnitRepository()}, nil
	default:
		return nil, withCode(exitUsage, fmt.Errorf("invalid --backend %q (want %s or %s)", backend, backendDB, backendMemory))
	}
}
