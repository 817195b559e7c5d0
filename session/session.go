// Package session is the execution session applications talk to. Every
// statement call resolves the named statement, binds a per-call clone of
// it, lets the listener pipeline rewrite the clone and its parameter, and
// only then hands both to the executor.
//
// A Session belongs to one goroutine at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/Konsultn-Engineering/sqlsession/database"
	"github.com/Konsultn-Engineering/sqlsession/executor"
	"github.com/Konsultn-Engineering/sqlsession/listener"
	"github.com/Konsultn-Engineering/sqlsession/mapping"
	"github.com/Konsultn-Engineering/sqlsession/param"
	"github.com/Konsultn-Engineering/sqlsession/sqlerr"
	"go.uber.org/zap"
)

type Session struct {
	config   *mapping.Configuration
	executor executor.Executor
	pipeline listener.Pipeline
	errCtx   *sqlerr.Context
	logger   *zap.Logger

	// dirty is set by every write and cleared by commit, rollback and close.
	dirty bool
}

type Option func(*Session)

// WithListeners appends listeners to the pipeline, in order.
func WithListeners(ls ...listener.Listener) Option {
	return func(s *Session) { s.pipeline = append(s.pipeline, ls...) }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a session over cfg that runs statements on ex.
func New(cfg *mapping.Configuration, ex executor.Executor, opts ...Option) *Session {
	s := &Session{
		config:   cfg,
		executor: ex,
		errCtx:   sqlerr.NewContext(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("session").With(zap.Stringer("session", s.errCtx.SessionID))
	return s
}

func (s *Session) Configuration() *mapping.Configuration { return s.config }

// Dirty reports whether writes were issued since the last commit, rollback
// or close.
func (s *Session) Dirty() bool { return s.dirty }

// SelectOne returns the single row of statement id, nil when there is none
// and an error wrapping sqlerr.ErrTooManyResults when there are more.
func (s *Session) SelectOne(ctx context.Context, id string, parameter any) (any, error) {
	list, err := s.SelectList(ctx, id, parameter, executor.DefaultRowBounds)
	if err != nil {
		return nil, err
	}
	switch len(list) {
	case 0:
		return nil, nil
	case 1:
		return list[0], nil
	}
	return nil, sqlerr.New(sqlerr.KindTooManyResults,
		"Expected one result (or nil) to be returned by SelectOne(), but found: %d", len(list))
}

func (s *Session) SelectList(ctx context.Context, id string, parameter any, bounds executor.RowBounds) ([]any, error) {
	return s.query(ctx, id, parameter, bounds, nil)
}

// SelectMap returns the rows of statement id keyed by the mapKey property
// of each row. Rows sharing a key overwrite earlier ones.
func (s *Session) SelectMap(ctx context.Context, id string, parameter any, mapKey string, bounds executor.RowBounds) (map[any]any, error) {
	list, err := s.SelectList(ctx, id, parameter, bounds)
	if err != nil {
		return nil, err
	}
	h := newMapResultHandler(mapKey, len(list))
	for _, row := range list {
		if err := h.add(row); err != nil {
			return nil, sqlerr.Wrap(sqlerr.KindQuery, sqlerr.MsgQuery, err, nil)
		}
	}
	return h.result, nil
}

// Select streams the rows of statement id to handler.
func (s *Session) Select(ctx context.Context, id string, parameter any, bounds executor.RowBounds, handler executor.ResultHandler) error {
	if handler == nil {
		return sqlerr.Wrap(sqlerr.KindQuery, sqlerr.MsgQuery, errors.New("result handler is nil"), nil)
	}
	_, err := s.query(ctx, id, parameter, bounds, handler)
	return err
}

func (s *Session) Insert(ctx context.Context, id string, parameter any) (int64, error) {
	return s.update(ctx, id, parameter)
}

func (s *Session) Update(ctx context.Context, id string, parameter any) (int64, error) {
	return s.update(ctx, id, parameter)
}

func (s *Session) Delete(ctx context.Context, id string, parameter any) (int64, error) {
	return s.update(ctx, id, parameter)
}

// Commit commits when the session is dirty or force is set; the executor
// still flushes and clears its cache otherwise. Dirty is cleared whatever
// the outcome.
func (s *Session) Commit(force bool) error {
	defer s.errCtx.Reset()
	err := s.executor.Commit(s.commitOrRollbackRequired(force))
	s.dirty = false
	if err != nil {
		return sqlerr.Wrap(sqlerr.KindCommit, sqlerr.MsgCommit, err, s.errCtx)
	}
	return nil
}

// Rollback mirrors Commit.
func (s *Session) Rollback(force bool) error {
	defer s.errCtx.Reset()
	err := s.executor.Rollback(s.commitOrRollbackRequired(force))
	s.dirty = false
	if err != nil {
		return sqlerr.Wrap(sqlerr.KindRollback, sqlerr.MsgRollback, err, s.errCtx)
	}
	return nil
}

// FlushStatements runs queued batch statements and reports their update
// counts.
func (s *Session) FlushStatements() ([]executor.BatchResult, error) {
	defer s.errCtx.Reset()
	results, err := s.executor.FlushStatements()
	if err != nil {
		return nil, sqlerr.Wrap(sqlerr.KindFlush, sqlerr.MsgFlush, err, s.errCtx)
	}
	return results, nil
}

// Close closes the executor, rolling back first when the session is dirty.
func (s *Session) Close() error {
	defer s.errCtx.Reset()
	err := s.executor.Close(s.commitOrRollbackRequired(false))
	s.dirty = false
	if err != nil {
		return sqlerr.Wrap(sqlerr.KindClose, sqlerr.MsgClose, err, s.errCtx)
	}
	return nil
}

// ClearCache empties the local query cache. The dirty flag is untouched.
func (s *Session) ClearCache() {
	s.executor.ClearLocalCache()
}

// Connection returns the connection of the session's transaction.
func (s *Session) Connection(ctx context.Context) (database.Conn, error) {
	conn, err := s.executor.Transaction().Connection(ctx)
	if err != nil {
		return nil, sqlerr.Wrap(sqlerr.KindConnection, sqlerr.MsgConnection, err, nil)
	}
	return conn, nil
}

func (s *Session) query(ctx context.Context, id string, parameter any, bounds executor.RowBounds, handler executor.ResultHandler) ([]any, error) {
	release := s.errCtx.Begin("querying database", id)
	defer release()
	ctx = sqlerr.WithContext(ctx, s.errCtx)

	ms, p, err := s.prepare(id, parameter)
	if err != nil {
		return nil, sqlerr.Wrap(sqlerr.KindQuery, sqlerr.MsgQuery, err, s.errCtx)
	}
	rows, err := s.executor.Query(ctx, ms, p, bounds, handler)
	if err != nil {
		return nil, sqlerr.Wrap(sqlerr.KindQuery, sqlerr.MsgQuery, err, s.errCtx)
	}
	return rows, nil
}

func (s *Session) update(ctx context.Context, id string, parameter any) (int64, error) {
	release := s.errCtx.Begin("updating database", id)
	defer release()
	ctx = sqlerr.WithContext(ctx, s.errCtx)

	s.dirty = true
	ms, p, err := s.prepare(id, parameter)
	if err != nil {
		return 0, sqlerr.Wrap(sqlerr.KindUpdate, sqlerr.MsgUpdate, err, s.errCtx)
	}
	n, err := s.executor.Update(ctx, ms, p)
	if err != nil {
		return 0, sqlerr.Wrap(sqlerr.KindUpdate, sqlerr.MsgUpdate, err, s.errCtx)
	}
	return n, nil
}

// prepare looks up id, normalizes and binds the parameter, clones the
// statement and runs the pipeline on the clone.
func (s *Session) prepare(id string, parameter any) (*mapping.Statement, any, error) {
	def, err := s.config.Statement(id)
	if err != nil {
		return nil, nil, err
	}
	s.errCtx.Resource = def.Resource()

	p := param.Wrap(parameter)
	bound, err := def.BoundSQL(p)
	if err != nil {
		return nil, nil, err
	}
	s.errCtx.SQL = bound.SQL

	clone, err := mapping.Clone(def, bound)
	if err != nil {
		return nil, nil, err
	}
	lc := listener.NewContext(clone, p)
	if err := s.pipeline.Run(lc); err != nil {
		return nil, nil, err
	}

	ms := lc.Statement()
	if ms == nil {
		return nil, nil, fmt.Errorf("listener pipeline cleared the statement for %s", id)
	}
	s.errCtx.SQL = ms.SQL()
	s.logger.Debug("statement ready",
		zap.String("id", ms.ID()),
		zap.Stringer("call", s.errCtx.CallID),
		zap.String("sql", ms.SQL()))
	return ms, lc.Parameter(), nil
}

func (s *Session) commitOrRollbackRequired(force bool) bool {
	return s.dirty || force
}

type mapResultHandler struct {
	mapKey string
	result map[any]any
}

func newMapResultHandler(mapKey string, size int) *mapResultHandler {
	return &mapResultHandler{mapKey: mapKey, result: make(map[any]any, size)}
}

func (h *mapResultHandler) add(row any) error {
	key, err := param.Lookup(row, h.mapKey)
	if err != nil {
		return err
	}
	if key != nil && !reflect.ValueOf(key).Comparable() {
		return fmt.Errorf("map key property '%s' has unhashable type %T", h.mapKey, key)
	}
	h.result[key] = row
	return nil
}
