package main

import (
	"context"
	"fmt"

	"github.com/artem13815/users/pkg/config"
	"github.com/artem13815/users/pkg/health"
	healthcheckers "github.com/artem13815/users/pkg/health/checkers"
	pgrepo "github.com/artem13815/users/pkg/repository/postgres"
	sqliterepo "github.com/artem13815/users/pkg/repository/sqlite"
	"github.com/artem13815/users/pkg/storage/postgres"
	"github.com/artem13815/users/pkg/storage/sqlite"
	"github.com/artem13815/users/pkg/user"
)

// storage is the wired persistence layer for one configured driver.
type storage struct {
	users     user.TxRepository
	readiness health.ReadinessUseCase
	close     func()
}

func openStorage(ctx context.Context, cfg config.Config) (*storage, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	switch cfg.StorageDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		users, err := sqliterepo.NewUserRepository(ctx, db, cfg.UsernameUnique)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init user repo: %w", err)
		}
		return &storage{
			users:     users,
			readiness: health.NewService(healthcheckers.NewSQLiteChecker(db)),
			close:     func() { _ = db.Close() },
		}, nil

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.Options{
			MaxConns: cfg.MaxConns,
			LogSQL:   cfg.LogSQL,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		users, err := pgrepo.NewUserRepository(ctx, pool, cfg.UsernameUnique)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init user repo: %w", err)
		}
		return &storage{
			users:     users,
			readiness: health.NewService(healthcheckers.NewPostgresChecker(pool)),
			close:     pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
