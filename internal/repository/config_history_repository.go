package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bot-dashboard/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const createConfigHistoryTable = `
CREATE TABLE IF NOT EXISTS config_history (
    id           UUID PRIMARY KEY,
    symbol       TEXT NOT NULL,
    base_origin  TEXT NOT NULL,
    config       JSONB NOT NULL,
    saved_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_config_history_symbol_saved_at
    ON config_history (symbol, saved_at DESC);
`

// DefaultHistoryLimit caps List when the caller passes no limit.
const DefaultHistoryLimit = 20

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ConfigHistoryRepository records every configuration a user saves from the
// dashboard form.
type ConfigHistoryRepository struct {
	pool   PgxPool
	tracer trace.Tracer
	newID  func() string
	now    func() time.Time
}

func NewConfigHistoryRepository(pool PgxPool, tracer trace.Tracer) *ConfigHistoryRepository {
	return &ConfigHistoryRepository{
		pool:   pool,
		tracer: tracer,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

func (r *ConfigHistoryRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "config-history-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createConfigHistoryTable)
	return err
}

func (r *ConfigHistoryRepository) Record(ctx context.Context, symbol string, base domain.Origin, config domain.ConfigTree) (domain.ConfigSave, error) {
	_, span := r.tracer.Start(ctx, "config-history-repo.record")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	data, err := json.Marshal(config)
	if err != nil {
		return domain.ConfigSave{}, fmt.Errorf("encode config for %s: %w", symbol, err)
	}

	save := domain.ConfigSave{
		ID:         r.newID(),
		Symbol:     symbol,
		BaseOrigin: base,
		Config:     config,
		SavedAt:    r.now().UTC(),
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO config_history (id, symbol, base_origin, config, saved_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		save.ID, save.Symbol, string(save.BaseOrigin), data, save.SavedAt,
	)
	if err != nil {
		return domain.ConfigSave{}, fmt.Errorf("insert config history for %s: %w", symbol, err)
	}
	return save, nil
}

// List returns the newest saves for symbol first.
func (r *ConfigHistoryRepository) List(ctx context.Context, symbol string, limit int) ([]domain.ConfigSave, error) {
	_, span := r.tracer.Start(ctx, "config-history-repo.list")
	defer span.End()

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, symbol, base_origin, config, saved_at
		 FROM config_history
		 WHERE symbol = $1
		 ORDER BY saved_at DESC
		 LIMIT $2`,
		symbol, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var saves []domain.ConfigSave
	for rows.Next() {
		var (
			s      domain.ConfigSave
			origin string
			raw    []byte
			ts     time.Time
		)
		if err := rows.Scan(&s.ID, &s.Symbol, &origin, &raw, &ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &s.Config); err != nil {
			return nil, fmt.Errorf("decode config history %s: %w", s.ID, err)
		}
		s.BaseOrigin = domain.Origin(origin)
		s.SavedAt = ts.UTC()
		saves = append(saves, s)
	}
	return saves, rows.Err()
}
