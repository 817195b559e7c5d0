// Package executor runs bound statements on a transaction's connection and
// maps the rows that come back.
package executor

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Konsultn-Engineering/sqlsession/mapping"
	"github.com/Konsultn-Engineering/sqlsession/transaction"
)

// BatchUpdateReturnValue is what Update returns for a statement queued by
// the batch executor.
const BatchUpdateReturnValue = math.MinInt32 + 1002

const (
	NoRowOffset = 0
	NoRowLimit  = math.MaxInt32
)

// RowBounds skips Offset rows and returns at most Limit.
type RowBounds struct {
	Offset int
	Limit  int
}

// DefaultRowBounds returns every row.
var DefaultRowBounds = RowBounds{Offset: NoRowOffset, Limit: NoRowLimit}

func NewRowBounds(offset, limit int) RowBounds {
	if offset < 0 {
		offset = NoRowOffset
	}
	if limit <= 0 {
		limit = NoRowLimit
	}
	return RowBounds{Offset: offset, Limit: limit}
}

func (b RowBounds) IsDefault() bool {
	return b.Offset == NoRowOffset && b.Limit == NoRowLimit
}

// ResultContext is handed to a ResultHandler once per row.
type ResultContext struct {
	object  any
	count   int
	stopped bool
}

func (c *ResultContext) ResultObject() any { return c.object }
func (c *ResultContext) ResultCount() int  { return c.count }

// Stop ends the iteration after the current row.
func (c *ResultContext) Stop()           { c.stopped = true }
func (c *ResultContext) IsStopped() bool { return c.stopped }

func (c *ResultContext) next(obj any) {
	c.object = obj
	c.count++
}

// ResultHandler consumes rows one at a time instead of collecting a list.
type ResultHandler interface {
	HandleResult(ctx *ResultContext)
}

type ResultHandlerFunc func(ctx *ResultContext)

func (f ResultHandlerFunc) HandleResult(ctx *ResultContext) { f(ctx) }

// BatchResult reports one flushed batch: the statement, its SQL and the
// rows affected by each queued parameter object.
type BatchResult struct {
	Statement    *mapping.Statement
	SQL          string
	Parameters   []any
	UpdateCounts []int64
}

// Executor runs statements for exactly one session.
type Executor interface {
	Query(ctx context.Context, ms *mapping.Statement, param any, bounds RowBounds, handler ResultHandler) ([]any, error)
	Update(ctx context.Context, ms *mapping.Statement, param any) (int64, error)
	Commit(required bool) error
	Rollback(required bool) error
	Close(forceRollback bool) error
	FlushStatements() ([]BatchResult, error)
	ClearLocalCache()
	Transaction() transaction.Transaction
}

// Type selects an executor variant.
type Type string

const (
	TypeSimple Type = "simple"
	TypeReuse  Type = "reuse"
	TypeBatch  Type = "batch"
)

func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeSimple, TypeReuse, TypeBatch:
		return t, nil
	case "":
		return TypeSimple, nil
	}
	return "", fmt.Errorf("executor: unknown executor type %q", s)
}

// New creates an executor of type t over tx.
func New(t Type, tx transaction.Transaction, opts ...Option) (*Base, error) {
	switch t {
	case TypeSimple, "":
		return NewSimple(tx, opts...), nil
	case TypeReuse:
		return NewReuse(tx, opts...), nil
	case TypeBatch:
		return NewBatch(tx, opts...), nil
	}
	return nil, fmt.Errorf("executor: unknown executor type %q", t)
}
