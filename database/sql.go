package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// PoolOptions are database/sql pool settings. Zero values keep the driver
// defaults.
type PoolOptions struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// Open opens a database/sql handle for driverName, applies pool settings and
// verifies the connection.
func Open(ctx context.Context, driverName, dsn string, pool PoolOptions) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	ApplyPool(db, pool)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ApplyPool sets the non-zero pool options on db.
func ApplyPool(db *sqlx.DB, pool PoolOptions) {
	if pool.MaxOpen > 0 {
		db.SetMaxOpenConns(pool.MaxOpen)
	}
	if pool.MaxIdle > 0 {
		db.SetMaxIdleConns(pool.MaxIdle)
	}
	if pool.MaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.MaxLifetime)
	}
	if pool.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.MaxIdleTime)
	}
}
