package executor

import (
	"context"

	"github.com/Konsultn-Engineering/sqlsession/database"
	"github.com/Konsultn-Engineering/sqlsession/transaction"
)

// NewSimple creates an executor that sends every statement straight to the
// connection.
func NewSimple(tx transaction.Transaction, opts ...Option) *Base {
	return newBase(tx, simpleStrategy{}, opts...)
}

type simpleStrategy struct{}

func (simpleStrategy) query(ctx context.Context, conn database.Conn, c *call, bounds RowBounds, handler ResultHandler) ([]any, error) {
	rows, err := conn.QueryxContext(ctx, c.sql, c.args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, c.ms.ResultType(), bounds, handler)
}

func (simpleStrategy) update(ctx context.Context, conn database.Conn, c *call) (int64, error) {
	res, err := conn.ExecContext(ctx, c.sql, c.args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (simpleStrategy) flush(bool) ([]BatchResult, error) { return nil, nil }
