package executor

import (
	"context"

	"github.com/Konsultn-Engineering/sqlsession/cache"
	"github.com/Konsultn-Engineering/sqlsession/database"
	"github.com/Konsultn-Engineering/sqlsession/transaction"
)

// NewReuse creates an executor that keeps prepared statements keyed by SQL
// until the next commit, rollback or flush.
func NewReuse(tx transaction.Transaction, opts ...Option) *Base {
	return NewReuseSize(tx, 0, opts...)
}

// NewReuseSize is NewReuse with a bound on cached prepared statements.
func NewReuseSize(tx transaction.Transaction, size int, opts ...Option) *Base {
	return newBase(tx, &reuseStrategy{statements: cache.NewStatementCache(size)}, opts...)
}

type reuseStrategy struct {
	statements *cache.StatementCache
}

func (r *reuseStrategy) query(ctx context.Context, conn database.Conn, c *call, bounds RowBounds, handler ResultHandler) ([]any, error) {
	stmt, err := r.statements.GetOrPrepare(ctx, conn, c.sql)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryxContext(ctx, c.args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, c.ms.ResultType(), bounds, handler)
}

func (r *reuseStrategy) update(ctx context.Context, conn database.Conn, c *call) (int64, error) {
	stmt, err := r.statements.GetOrPrepare(ctx, conn, c.sql)
	if err != nil {
		return 0, err
	}
	res, err := stmt.ExecContext(ctx, c.args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// flush closes every cached statement; they belong to a connection that is
// about to commit or roll back.
func (r *reuseStrategy) flush(bool) ([]BatchResult, error) {
	return nil, r.statements.Close()
}

// preparedCount is the number of cached prepared statements.
func (r *reuseStrategy) preparedCount() int { return r.statements.Len() }
