// Package engine wires a connection, the statement registry and the
// listener pipeline together and opens sessions from them.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/sqlsession/builder"
	"github.com/Konsultn-Engineering/sqlsession/config"
	"github.com/Konsultn-Engineering/sqlsession/connector"
	"github.com/Konsultn-Engineering/sqlsession/executor"
	"github.com/Konsultn-Engineering/sqlsession/listener"
	"github.com/Konsultn-Engineering/sqlsession/mapping"
	"github.com/Konsultn-Engineering/sqlsession/session"
	"github.com/Konsultn-Engineering/sqlsession/transaction"
	"go.uber.org/zap"
)

type Engine struct {
	conn    connector.Connection
	config  *mapping.Configuration
	loader  *builder.Loader
	watcher *builder.Watcher
	logger  *zap.Logger

	listeners          []listener.Listener
	executorType       executor.Type
	autoCommit         bool
	localCacheSize     int
	statementCacheSize int
}

type Option func(*Engine)

// WithListeners appends listeners to every session's pipeline.
func WithListeners(ls ...listener.Listener) Option {
	return func(e *Engine) { e.listeners = append(e.listeners, ls...) }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithExecutorType(t executor.Type) Option {
	return func(e *Engine) { e.executorType = t }
}

func WithAutoCommit(on bool) Option {
	return func(e *Engine) { e.autoCommit = on }
}

func WithLocalCacheSize(n int) Option {
	return func(e *Engine) { e.localCacheSize = n }
}

func WithStatementCacheSize(n int) Option {
	return func(e *Engine) { e.statementCacheSize = n }
}

// New creates an engine over an open connection and a registry. The engine
// takes ownership of conn.
func New(conn connector.Connection, cfg *mapping.Configuration, opts ...Option) *Engine {
	e := &Engine{
		conn:         conn,
		config:       cfg,
		logger:       zap.NewNop(),
		executorType: executor.TypeSimple,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.loader = builder.NewLoader(cfg, e.logger)
	return e
}

// FromConfig connects through the configured provider, loads the mapper
// files and builds the configured listeners. Options are applied after the
// file's settings. Result type aliases used by mapper files must be
// registered through types, keyed by alias.
func FromConfig(ctx context.Context, c *config.Config, types map[string]any, opts ...Option) (*Engine, error) {
	logger, err := c.Logging.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	conn, err := connector.Open(ctx, c.Provider, c.Connection)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.Provider, err)
	}

	cfg := mapping.NewConfiguration(mapping.WithSettings(mapping.Settings{
		LocalCacheScope:         mapping.LocalCacheScope(c.Session.LocalCacheScope),
		DefaultStatementTimeout: c.Session.DefaultStatementTimeout,
		DefaultFetchSize:        c.Session.DefaultFetchSize,
		Dialect:                 conn.Dialect(),
	}))
	for alias, v := range types {
		cfg.RegisterType(alias, reflect.TypeOf(v))
	}

	var ls []listener.Listener
	if len(c.Sharding) > 0 {
		router, err := listener.NewTableRouter(conn.Dialect(), c.Sharding...)
		if err != nil {
			conn.Close()
			return nil, err
		}
		ls = append(ls, router)
	}
	if c.MaxRows > 0 {
		ls = append(ls, &listener.Limit{Dialect: conn.Dialect(), MaxRows: c.MaxRows})
	}

	base := []Option{
		WithLogger(logger),
		WithListeners(ls...),
		WithExecutorType(c.ExecutorType()),
		WithAutoCommit(c.Session.AutoCommit),
		WithLocalCacheSize(c.Session.LocalCacheSize),
		WithStatementCacheSize(c.Session.StatementCacheSize),
	}
	e := New(conn, cfg, append(base, opts...)...)
	if c.LogStatements {
		e.listeners = append(e.listeners, listener.NewLogging(e.logger))
	}

	if err := e.loader.Load(c.Mappers...); err != nil {
		e.Close()
		return nil, fmt.Errorf("load mappers: %w", err)
	}
	if c.WatchMappers {
		if err := e.Watch(c.Mappers...); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) Configuration() *mapping.Configuration { return e.config }
func (e *Engine) Connection() connector.Connection      { return e.conn }
func (e *Engine) Logger() *zap.Logger                   { return e.logger }

// RegisterType registers the Go type of v as a result type alias.
func (e *Engine) RegisterType(alias string, v any) {
	e.config.RegisterType(alias, reflect.TypeOf(v))
}

// LoadMappers registers mapper files or directories.
func (e *Engine) LoadMappers(paths ...string) error {
	return e.loader.Load(paths...)
}

// Watch reloads the mapper files below paths whenever they change.
func (e *Engine) Watch(paths ...string) error {
	if e.watcher != nil {
		return fmt.Errorf("engine: mappers are already watched")
	}
	w, err := builder.NewWatcher(e.loader, paths)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	e.watcher = w
	return nil
}

// SessionOption overrides engine defaults for one session.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	executorType executor.Type
	autoCommit   bool
	txOptions    []transaction.Option
	listeners    []listener.Listener
}

func ExecutorType(t executor.Type) SessionOption {
	return func(o *sessionOptions) { o.executorType = t }
}

func AutoCommit(on bool) SessionOption {
	return func(o *sessionOptions) { o.autoCommit = on }
}

func Isolation(level sql.IsolationLevel) SessionOption {
	return func(o *sessionOptions) { o.txOptions = append(o.txOptions, transaction.WithIsolation(level)) }
}

func ReadOnly() SessionOption {
	return func(o *sessionOptions) { o.txOptions = append(o.txOptions, transaction.WithReadOnly(true)) }
}

// Listeners adds listeners after the engine's own for this session only.
func Listeners(ls ...listener.Listener) SessionOption {
	return func(o *sessionOptions) { o.listeners = append(o.listeners, ls...) }
}

// OpenSession starts a session with its own transaction and executor.
func (e *Engine) OpenSession(opts ...SessionOption) (*session.Session, error) {
	o := sessionOptions{executorType: e.executorType, autoCommit: e.autoCommit}
	for _, opt := range opts {
		opt(&o)
	}

	tx := transaction.New(e.conn.DB(), e.conn.DriverName(),
		append([]transaction.Option{transaction.WithAutoCommit(o.autoCommit)}, o.txOptions...)...)

	exOpts := []executor.Option{
		executor.WithLocalCacheSize(e.localCacheSize),
		executor.WithDialect(e.conn.Dialect()),
		executor.WithLogger(e.logger),
	}
	var ex executor.Executor
	switch o.executorType {
	case executor.TypeReuse:
		ex = executor.NewReuseSize(tx, e.statementCacheSize, exOpts...)
	default:
		b, err := executor.New(o.executorType, tx, exOpts...)
		if err != nil {
			return nil, err
		}
		ex = b
	}

	pipeline := make([]listener.Listener, 0, len(e.listeners)+len(o.listeners))
	pipeline = append(pipeline, e.listeners...)
	pipeline = append(pipeline, o.listeners...)
	return session.New(e.config, ex,
		session.WithListeners(pipeline...),
		session.WithLogger(e.logger)), nil
}

// Close stops watching mapper files and closes the connection pool.
func (e *Engine) Close() error {
	if e.watcher != nil {
		if err := e.watcher.Stop(); err != nil {
			e.logger.Warn("stop mapper watcher", zap.Error(err))
		}
		e.watcher = nil
	}
	return e.conn.Close()
}
