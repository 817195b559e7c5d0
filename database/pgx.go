package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// PgxHandle is a sqlx handle backed by a pgx pool. Closing it closes both.
type PgxHandle struct {
	*sqlx.DB
	pool *pgxpool.Pool
}

// Pool exposes the underlying pgx pool.
func (h *PgxHandle) Pool() *pgxpool.Pool { return h.pool }

// Close closes the database/sql view first, then the pool it borrows from.
func (h *PgxHandle) Close() error {
	err := h.DB.Close()
	h.pool.Close()
	return err
}

// OpenPgx creates a pgx pool for dsn and wraps it for database/sql use.
// Pool sizing is managed by pgx, so pool.MaxOpen maps to MaxConns and
// pool.MaxIdle to MinConns.
func OpenPgx(ctx context.Context, dsn string, pool PoolOptions) (*PgxHandle, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	if pool.MaxOpen > 0 {
		poolCfg.MaxConns = int32(pool.MaxOpen)
	}
	if pool.MaxIdle > 0 {
		poolCfg.MinConns = int32(pool.MaxIdle)
	}
	if pool.MaxLifetime > 0 {
		poolCfg.MaxConnLifetime = pool.MaxLifetime
	}
	if pool.MaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = pool.MaxIdleTime
	}
	poolCfg.HealthCheckPeriod = time.Minute

	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}

	return &PgxHandle{
		DB:   sqlx.NewDb(stdlib.OpenDBFromPool(p), "pgx"),
		pool: p,
	}, nil
}

var _ DB = (*PgxHandle)(nil)
