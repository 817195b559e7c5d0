// Package transaction owns the connection an executor runs on.
package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Konsultn-Engineering/sqlsession/database"
	"github.com/jmoiron/sqlx"
)

var ErrClosed = errors.New("transaction: closed")

// Transaction hands out the connection statements run on and ends the unit
// of work.
type Transaction interface {
	Connection(ctx context.Context) (database.Conn, error)
	Commit() error
	Rollback() error
	Close() error
}

type Option func(*Managed)

// WithAutoCommit makes every statement run directly on the pool; Commit and
// Rollback become no-ops.
func WithAutoCommit(on bool) Option {
	return func(t *Managed) { t.autoCommit = on }
}

func WithIsolation(level sql.IsolationLevel) Option {
	return func(t *Managed) { t.opts.Isolation = level }
}

func WithReadOnly(ro bool) Option {
	return func(t *Managed) { t.opts.ReadOnly = ro }
}

// Managed begins a database transaction on first use. After Commit or
// Rollback the next Connection call begins a fresh one.
type Managed struct {
	db         database.DB
	driverName string
	autoCommit bool
	opts       sql.TxOptions

	tx     *sqlx.Tx
	closed bool
}

// New creates a transaction over db. driverName is reported through
// DriverName so executors can rebind placeholders.
func New(db database.DB, driverName string, opts ...Option) *Managed {
	t := &Managed{db: db, driverName: driverName}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Managed) DriverName() string { return t.driverName }
func (t *Managed) AutoCommit() bool   { return t.autoCommit }

// Active reports whether a database transaction is open.
func (t *Managed) Active() bool { return t.tx != nil }

// Connection returns the open transaction, beginning one if needed. The
// transaction outlives the call that began it, so it keeps ctx's values but
// not its cancellation.
func (t *Managed) Connection(ctx context.Context) (database.Conn, error) {
	if t.closed {
		return nil, ErrClosed
	}
	if t.autoCommit {
		return t.db, nil
	}
	if t.tx == nil {
		opts := t.opts
		tx, err := t.db.BeginTxx(context.WithoutCancel(ctx), &opts)
		if err != nil {
			return nil, fmt.Errorf("begin transaction: %w", err)
		}
		t.tx = tx
	}
	return t.tx, nil
}

func (t *Managed) Commit() error {
	if t.closed {
		return ErrClosed
	}
	if t.tx == nil {
		return nil
	}
	tx := t.tx
	t.tx = nil
	return tx.Commit()
}

func (t *Managed) Rollback() error {
	if t.closed {
		return ErrClosed
	}
	if t.tx == nil {
		return nil
	}
	tx := t.tx
	t.tx = nil
	return tx.Rollback()
}

// Close rolls back an open transaction. The pool stays open; it belongs to
// the engine.
func (t *Managed) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if t.tx == nil {
		return nil
	}
	tx := t.tx
	t.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

var _ Transaction = (*Managed)(nil)
