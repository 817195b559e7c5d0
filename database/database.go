// Package database defines the connection surface executors run statements
// on. Both *sqlx.DB and *sqlx.Tx satisfy Conn.
package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Conn runs statements. It is what a transaction hands out.
type Conn interface {
	sqlx.ExtContext
	PreparexContext(ctx context.Context, query string) (*sqlx.Stmt, error)
}

// DB is a pooled database handle that can begin transactions.
type DB interface {
	Conn
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	PingContext(ctx context.Context) error
	Stats() sql.DBStats
	Close() error
}

var (
	_ Conn = (*sqlx.Tx)(nil)
	_ Conn = (*sqlx.DB)(nil)
	_ DB   = (*sqlx.DB)(nil)
)
