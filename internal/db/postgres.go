package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var Pool *pgxpool.Pool

var (
	newPool  = pgxpool.New
	pingPool = func(ctx context.Context, pool *pgxpool.Pool) error {
		return pool.Ping(ctx)
	}
)

// InitPostgres opens the package pool. An empty dsn leaves Pool nil and is
// not an error; config history is then disabled.
func InitPostgres(ctx context.Context, dsn string, logger *zap.Logger) error {
	if dsn == "" {
		logger.Warn("postgres disabled, no DATABASE_URL")
		return nil
	}

	pool, err := newPool(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pingPool(ctx, pool); err != nil {
		pool.Close()
		return fmt.Errorf("connect to postgres: %w", err)
	}
	Pool = pool
	logger.Info("connected to postgres")
	return nil
}

// Close releases the package pool if it was opened.
func Close() {
	if Pool != nil {
		Pool.Close()
		Pool = nil
	}
}
