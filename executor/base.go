package executor

import (
	"context"

	"github.com/Konsultn-Engineering/sqlsession/cache"
	"github.com/Konsultn-Engineering/sqlsession/database"
	"github.com/Konsultn-Engineering/sqlsession/dialect"
	"github.com/Konsultn-Engineering/sqlsession/mapping"
	"github.com/Konsultn-Engineering/sqlsession/sqlerr"
	"github.com/Konsultn-Engineering/sqlsession/transaction"
	"go.uber.org/zap"
)

// strategy is the part that differs between executor variants.
type strategy interface {
	query(ctx context.Context, conn database.Conn, st *call, bounds RowBounds, handler ResultHandler) ([]any, error)
	update(ctx context.Context, conn database.Conn, st *call) (int64, error)
	flush(isRollback bool) ([]BatchResult, error)
}

// call is one statement execution: the statement, its final SQL rebound
// for the driver, and the arguments in placeholder order.
type call struct {
	ms    *mapping.Statement
	raw   string // before rebinding, '?' placeholders
	sql   string
	param any
	args  []any
}

// Base implements Executor: local cache, transaction demarcation and error
// annotation. Statement handling is delegated to the variant's strategy.
type Base struct {
	tx         transaction.Transaction
	strategy   strategy
	localCache cache.LocalCache
	dialect    dialect.Dialect
	logger     *zap.Logger
	closed     bool
}

type Option func(*Base)

// WithLocalCacheSize bounds the number of cached query results.
func WithLocalCacheSize(n int) Option {
	return func(b *Base) { b.localCache = cache.NewLocalCache(n) }
}

// WithDialect fixes the placeholder style instead of deriving it from the
// transaction's driver or the statement's configuration.
func WithDialect(d dialect.Dialect) Option {
	return func(b *Base) { b.dialect = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Base) {
		if l != nil {
			b.logger = l.Named("executor")
		}
	}
}

func newBase(tx transaction.Transaction, s strategy, opts ...Option) *Base {
	b := &Base{tx: tx, strategy: s, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	if b.localCache == nil {
		b.localCache = cache.NewLocalCache(0)
	}
	return b
}

func (b *Base) Transaction() transaction.Transaction { return b.tx }

// Closed reports whether Close has been called.
func (b *Base) Closed() bool { return b.closed }

func (b *Base) Query(ctx context.Context, ms *mapping.Statement, param any, bounds RowBounds, handler ResultHandler) ([]any, error) {
	ec := sqlerr.FromContext(ctx)
	ec.Resource = ms.Resource()
	ec.Activity = "executing a query"
	ec.Object = ms.ID()
	if b.closed {
		return nil, sqlerr.New(sqlerr.KindExecutor, "Executor was closed.")
	}

	c, err := b.bind(ctx, ms, param)
	if err != nil {
		return nil, err
	}

	if ms.FlushCache() {
		b.ClearLocalCache()
	}

	key := cache.NewKey(ms.ID(), bounds.Offset, bounds.Limit, c.sql, c.args)
	if handler == nil {
		if rows, ok := b.localCache.Get(key); ok {
			b.logger.Debug("local cache hit", zap.String("statement", ms.ID()))
			return append([]any(nil), rows...), nil
		}
	}

	conn, err := b.tx.Connection(ctx)
	if err != nil {
		return nil, err
	}

	qctx, cancel := b.withTimeout(ctx, ms)
	defer cancel()

	b.logPreparing(c)
	rows, err := b.strategy.query(qctx, conn, c, bounds, handler)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("<==      Total", zap.Int("rows", len(rows)))

	if handler == nil && ms.UseCache() {
		b.localCache.Put(key, append([]any(nil), rows...))
	}
	if cfg := ms.Configuration(); cfg != nil && cfg.Settings().LocalCacheScope == mapping.ScopeStatement {
		b.ClearLocalCache()
	}
	return rows, nil
}

func (b *Base) Update(ctx context.Context, ms *mapping.Statement, param any) (int64, error) {
	ec := sqlerr.FromContext(ctx)
	ec.Resource = ms.Resource()
	ec.Activity = "executing an update"
	ec.Object = ms.ID()
	if b.closed {
		return 0, sqlerr.New(sqlerr.KindExecutor, "Executor was closed.")
	}

	b.ClearLocalCache()

	c, err := b.bind(ctx, ms, param)
	if err != nil {
		return 0, err
	}
	conn, err := b.tx.Connection(ctx)
	if err != nil {
		return 0, err
	}

	uctx, cancel := b.withTimeout(ctx, ms)
	defer cancel()

	b.logPreparing(c)
	n, err := b.strategy.update(uctx, conn, c)
	if err != nil {
		return 0, err
	}
	b.logger.Debug("<==    Updates", zap.Int64("rows", n))
	return n, nil
}

func (b *Base) FlushStatements() ([]BatchResult, error) {
	if b.closed {
		return nil, sqlerr.New(sqlerr.KindExecutor, "Executor was closed.")
	}
	return b.strategy.flush(false)
}

// Commit clears the local cache and flushes pending statements; the
// transaction itself is committed only when required.
func (b *Base) Commit(required bool) error {
	if b.closed {
		return sqlerr.New(sqlerr.KindExecutor, "Cannot commit, transaction is already closed")
	}
	b.ClearLocalCache()
	if _, err := b.strategy.flush(false); err != nil {
		return err
	}
	if required {
		return b.tx.Commit()
	}
	return nil
}

// Rollback clears the local cache and discards pending statements; the
// transaction itself is rolled back only when required.
func (b *Base) Rollback(required bool) error {
	if b.closed {
		return nil
	}
	b.ClearLocalCache()
	_, flushErr := b.strategy.flush(true)
	if required {
		if err := b.tx.Rollback(); err != nil {
			return err
		}
	}
	return flushErr
}

// Close rolls back when forceRollback is set, then closes the transaction.
// The executor is unusable afterwards whatever the outcome.
func (b *Base) Close(forceRollback bool) error {
	if b.closed {
		return nil
	}
	rbErr := b.Rollback(forceRollback)
	closeErr := b.tx.Close()
	b.closed = true
	b.localCache.Clear()
	if rbErr != nil {
		return rbErr
	}
	return closeErr
}

func (b *Base) ClearLocalCache() {
	if !b.closed {
		b.localCache.Clear()
	}
}

// LocalCacheLen is the number of cached query results.
func (b *Base) LocalCacheLen() int { return b.localCache.Len() }

func (b *Base) bind(ctx context.Context, ms *mapping.Statement, param any) (*call, error) {
	bound, err := ms.BoundSQL(param)
	if err != nil {
		return nil, err
	}
	sqlerr.FromContext(ctx).SQL = bound.SQL
	args, err := bound.Args()
	if err != nil {
		return nil, err
	}
	return &call{
		ms:    ms,
		raw:   bound.SQL,
		sql:   dialect.Rebind(b.dialectFor(ms), bound.SQL),
		param: param,
		args:  args,
	}, nil
}

func (b *Base) logPreparing(c *call) {
	if ce := b.logger.Check(zap.DebugLevel, "==>  Preparing"); ce != nil {
		ce.Write(zap.String("statement", c.ms.ID()), zap.String("sql", c.sql),
			zap.String("inline", dialect.Inline(b.dialectFor(c.ms), c.raw, c.args)))
	}
	b.logger.Debug("==> Parameters", zap.Any("args", c.args))
}

func (b *Base) dialectFor(ms *mapping.Statement) dialect.Dialect {
	if b.dialect != nil {
		return b.dialect
	}
	if d, ok := b.tx.(interface{ DriverName() string }); ok && d.DriverName() != "" {
		b.dialect = dialect.ForDriver(d.DriverName())
		return b.dialect
	}
	if cfg := ms.Configuration(); cfg != nil {
		return cfg.Settings().Dialect
	}
	return dialect.NewSQLiteDialect()
}

func (b *Base) withTimeout(ctx context.Context, ms *mapping.Statement) (context.Context, context.CancelFunc) {
	d := ms.Timeout()
	if d == 0 && ms.Configuration() != nil {
		d = ms.Configuration().Settings().DefaultStatementTimeout
	}
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

var _ Executor = (*Base)(nil)
