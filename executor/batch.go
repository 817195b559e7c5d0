package executor

import (
	"context"
	"fmt"

	"github.com/Konsultn-Engineering/sqlsession/database"
	"github.com/Konsultn-Engineering/sqlsession/transaction"
	"github.com/jmoiron/sqlx"
)

// NewBatch creates an executor that queues updates and runs them on flush.
// Consecutive updates with the same statement and SQL share one prepared
// statement. Queries flush pending updates first.
func NewBatch(tx transaction.Transaction, opts ...Option) *Base {
	return newBase(tx, &batchStrategy{}, opts...)
}

type batch struct {
	stmt   *sqlx.Stmt
	result BatchResult
	args   [][]any
}

type batchStrategy struct {
	batches []*batch
}

func (b *batchStrategy) query(ctx context.Context, conn database.Conn, c *call, bounds RowBounds, handler ResultHandler) ([]any, error) {
	if _, err := b.flush(false); err != nil {
		return nil, err
	}
	return simpleStrategy{}.query(ctx, conn, c, bounds, handler)
}

func (b *batchStrategy) update(ctx context.Context, conn database.Conn, c *call) (int64, error) {
	if n := len(b.batches); n > 0 {
		last := b.batches[n-1]
		if last.result.SQL == c.sql && last.result.Statement.ID() == c.ms.ID() {
			last.args = append(last.args, c.args)
			last.result.Parameters = append(last.result.Parameters, c.param)
			return BatchUpdateReturnValue, nil
		}
	}

	stmt, err := conn.PreparexContext(ctx, c.sql)
	if err != nil {
		return 0, err
	}
	b.batches = append(b.batches, &batch{
		stmt: stmt,
		result: BatchResult{
			Statement:  c.ms,
			SQL:        c.sql,
			Parameters: []any{c.param},
		},
		args: [][]any{c.args},
	})
	return BatchUpdateReturnValue, nil
}

// flush runs every queued update in order, or discards them on rollback.
// Prepared statements are closed either way.
func (b *batchStrategy) flush(isRollback bool) ([]BatchResult, error) {
	batches := b.batches
	b.batches = nil
	defer func() {
		for _, bt := range batches {
			bt.stmt.Close()
		}
	}()

	if isRollback || len(batches) == 0 {
		return nil, nil
	}

	results := make([]BatchResult, 0, len(batches))
	for i, bt := range batches {
		counts := make([]int64, 0, len(bt.args))
		for _, args := range bt.args {
			res, err := bt.stmt.ExecContext(context.Background(), args...)
			if err != nil {
				return results, fmt.Errorf("Error executing batch statement %s (batch index #%d) failed. %d prior sub executor(s) completed successfully, but will be rolled back. Cause: %w",
					bt.result.Statement.ID(), i+1, i, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return results, err
			}
			counts = append(counts, n)
		}
		bt.result.UpdateCounts = counts
		results = append(results, bt.result)
	}
	return results, nil
}

func (b *batchStrategy) pending() int { return len(b.batches) }
