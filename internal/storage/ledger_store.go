// Package storage selects and opens the LedgerStore configured for the process.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/payments-ledger/internal/config"
	interfaces "github.com/sheikh-saqib/payments-ledger/internal/interfaces"
	"github.com/sheikh-saqib/payments-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/payments-ledger/internal/storage/postgres"
)

// Open returns the configured store and a function that releases it.
// For PostgreSQL it waits for the database with exponential backoff and
// applies pending migrations when cfg.MigrateOnStart is set.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (interfaces.LedgerStore, func() error, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory store, data is lost on exit")
		return memory.NewMemoryLedgerStore(), func() error { return nil }, nil

	case config.DriverPostgres:
		db, err := Connect(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.MigrateOnStart {
			if err := postgres.Migrate(db.DB, logger); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		return postgres.NewPostgresLedgerStore(db), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("storage: unknown driver %q", cfg.StoreDriver)
	}
}

// Connect opens the PostgreSQL pool, retrying up to cfg.DBConnectAttempts times.
func Connect(ctx context.Context, cfg config.Config, logger *zap.Logger) (*sqlx.DB, error) {
	pgCfg := postgres.Config{
		DSN:             cfg.DBURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 10 * time.Second

	db, err := backoff.Retry(ctx, func() (*sqlx.DB, error) {
		return postgres.Connect(ctx, pgCfg)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(cfg.DBConnectAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("database not ready, retrying", zap.Duration("retry_in", next), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres after %d attempts: %w", cfg.DBConnectAttempts, err)
	}
	logger.Info("connected to postgres",
		zap.Int("max_open_conns", cfg.DBMaxOpenConns),
		zap.Int("max_idle_conns", cfg.DBMaxIdleConns),
	)
	return db, nil
}
