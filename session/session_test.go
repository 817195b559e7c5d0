package session

import (
	"context"
	"errors"
	"testing"

	"github.com/Konsultn-Engineering/sqlsession/database"
	"github.com/Konsultn-Engineering/sqlsession/executor"
	"github.com/Konsultn-Engineering/sqlsession/listener"
	"github.com/Konsultn-Engineering/sqlsession/mapping"
	"github.com/Konsultn-Engineering/sqlsession/param"
	"github.com/Konsultn-Engineering/sqlsession/sqlerr"
	"github.com/Konsultn-Engineering/sqlsession/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type queryCall struct {
	ms      *mapping.Statement
	param   any
	args    []any
	bounds  executor.RowBounds
	handler executor.ResultHandler
}

type fakeTx struct{ err error }

func (t *fakeTx) Connection(context.Context) (database.Conn, error) { return nil, t.err }
func (t *fakeTx) Commit() error                                      { return nil }
func (t *fakeTx) Rollback() error                                    { return nil }
func (t *fakeTx) Close() error                                       { return nil }

// fakeExecutor records what the session hands it and binds arguments the
// way a real executor would.
type fakeExecutor struct {
	rows     []any
	queries  []queryCall
	updates  []queryCall
	commits  []bool
	rollback []bool
	closes   []bool
	flushes  int
	clears   int

	queryErr, updateErr, commitErr, rollbackErr, closeErr, flushErr error

	// seen snapshots the error context at execution time
	seen *sqlerr.Context
	tx   fakeTx
}

func (f *fakeExecutor) bind(ctx context.Context, ms *mapping.Statement, p any) ([]any, error) {
	ec := sqlerr.FromContext(ctx)
	snapshot := *ec
	f.seen = &snapshot
	b, err := ms.BoundSQL(p)
	if err != nil {
		return nil, err
	}
	return b.Args()
}

func (f *fakeExecutor) Query(ctx context.Context, ms *mapping.Statement, p any, bounds executor.RowBounds, h executor.ResultHandler) ([]any, error) {
	args, err := f.bind(ctx, ms, p)
	f.queries = append(f.queries, queryCall{ms: ms, param: p, args: args, bounds: bounds, handler: h})
	if err != nil {
		return nil, err
	}
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.rows, nil
}

func (f *fakeExecutor) Update(ctx context.Context, ms *mapping.Statement, p any) (int64, error) {
	args, err := f.bind(ctx, ms, p)
	f.updates = append(f.updates, queryCall{ms: ms, param: p, args: args})
	if err != nil {
		return 0, err
	}
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	return 1, nil
}

func (f *fakeExecutor) Commit(required bool) error {
	f.commits = append(f.commits, required)
	return f.commitErr
}

func (f *fakeExecutor) Rollback(required bool) error {
	f.rollback = append(f.rollback, required)
	return f.rollbackErr
}

func (f *fakeExecutor) Close(forceRollback bool) error {
	f.closes = append(f.closes, forceRollback)
	return f.closeErr
}

func (f *fakeExecutor) FlushStatements() ([]executor.BatchResult, error) {
	f.flushes++
	return []executor.BatchResult{{SQL: "x", UpdateCounts: []int64{1}}}, f.flushErr
}

func (f *fakeExecutor) ClearLocalCache()                     { f.clears++ }
func (f *fakeExecutor) Transaction() transaction.Transaction { return &f.tx }

type user struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

func newConfig(t *testing.T) *mapping.Configuration {
	t.Helper()
	cfg := mapping.NewConfiguration()
	add := func(id string, kind mapping.Kind, text string, opts ...mapping.StatementOption) {
		src, err := mapping.NewTemplateSource(text)
		require.NoError(t, err)
		require.NoError(t, cfg.AddStatement(mapping.NewStatement(cfg, id, kind, src, opts...)))
	}
	add("users.selectById", mapping.KindSelect, "SELECT * FROM users WHERE id = #{id}",
		mapping.WithResource("mappers/users.yaml"))
	add("users.selectByIds", mapping.KindSelect, "SELECT * FROM users WHERE id IN (#{list[0]}, #{list[1]})")
	add("users.selectByIdsStrict", mapping.KindSelect, "SELECT * FROM users WHERE id = ANY(#{ids})")
	add("users.insert", mapping.KindInsert, "INSERT INTO users (name) VALUES (#{name})")
	add("users.update", mapping.KindUpdate, "UPDATE users SET name = #{name} WHERE id = #{id}")
	add("users.delete", mapping.KindDelete, "DELETE FROM users WHERE id = #{id}")
	return cfg
}

func newSession(t *testing.T, opts ...Option) (*Session, *fakeExecutor) {
	t.Helper()
	ex := &fakeExecutor{}
	return New(newConfig(t), ex, opts...), ex
}

func TestSelectOne(t *testing.T) {
	ctx := context.Background()
	s, ex := newSession(t)

	v, err := s.SelectOne(ctx, "users.selectById", map[string]any{"id": 1})
	require.NoError(t, err)
	assert.Nil(t, v)

	ex.rows = []any{user{ID: 1}}
	v, err = s.SelectOne(ctx, "users.selectById", map[string]any{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, user{ID: 1}, v)

	ex.rows = []any{user{ID: 1}, user{ID: 2}}
	_, err = s.SelectOne(ctx, "users.selectById", map[string]any{"id": 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlerr.ErrTooManyResults)
	assert.Equal(t, "Expected one result (or nil) to be returned by SelectOne(), but found: 2", err.Error())
	assert.Equal(t, executor.DefaultRowBounds, ex.queries[2].bounds)
}

func TestExecutorReceivesClone(t *testing.T) {
	ctx := context.Background()
	s, ex := newSession(t)

	_, err := s.SelectList(ctx, "users.selectById", map[string]any{"id": 7}, executor.NewRowBounds(2, 5))
	require.NoError(t, err)
	require.Len(t, ex.queries, 1)

	registered, err := s.Configuration().Statement("users.selectById")
	require.NoError(t, err)
	got := ex.queries[0].ms
	assert.NotSame(t, registered, got)
	assert.True(t, got.Mutable())
	assert.Equal(t, registered.ID(), got.ID())
	assert.Equal(t, "SELECT * FROM users WHERE id = ?", got.SQL())
	assert.Equal(t, []any{7}, ex.queries[0].args)
	assert.Equal(t, executor.NewRowBounds(2, 5), ex.queries[0].bounds)
}

func TestParameterNormalized(t *testing.T) {
	ctx := context.Background()
	s, ex := newSession(t)

	_, err := s.SelectList(ctx, "users.selectByIds", []int64{4, 5}, executor.DefaultRowBounds)
	require.NoError(t, err)
	assert.Equal(t, param.StrictMap{param.ListKey: []int64{4, 5}}, ex.queries[0].param)
	assert.Equal(t, []any{int64(4), int64(5)}, ex.queries[0].args)

	_, err = s.SelectList(ctx, "users.selectByIdsStrict", []int64{4, 5}, executor.DefaultRowBounds)
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlerr.ErrQuery)
	assert.ErrorIs(t, err, sqlerr.ErrBinding)
	assert.Contains(t, err.Error(), "Error querying database.  Cause: ")
	assert.Contains(t, err.Error(), "Parameter 'ids' not found. Available parameters are [list]")
}

func TestListenersRewriteInOrder(t *testing.T) {
	ctx := context.Background()
	var order []string
	appendSQL := func(name, suffix string) listener.Listener {
		return listener.Func(func(lc *listener.Context) error {
			order = append(order, name)
			return lc.Statement().SetSQL(lc.Statement().SQL() + suffix)
		})
	}
	swapParam := listener.Func(func(lc *listener.Context) error {
		order = append(order, "param")
		lc.SetParameter(map[string]any{"id": 99})
		return nil
	})
	s, ex := newSession(t, WithListeners(appendSQL("a", " AND a"), swapParam, appendSQL("b", " AND b")))

	_, err := s.SelectList(ctx, "users.selectById", map[string]any{"id": 1}, executor.DefaultRowBounds)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "param", "b"}, order)
	assert.Equal(t, "SELECT * FROM users WHERE id = ? AND a AND b", ex.queries[0].ms.SQL())
	assert.Equal(t, []any{99}, ex.queries[0].args)

	registered, _ := s.Configuration().Statement("users.selectById")
	assert.Equal(t, "SELECT * FROM users WHERE id = #{id}", registered.SQL())
}

func TestListenerErrorAborts(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("shard key missing")
	called := false
	s, ex := newSession(t, WithListeners(
		listener.Func(func(*listener.Context) error { return boom }),
		listener.Func(func(*listener.Context) error { called = true; return nil }),
	))

	_, err := s.SelectList(ctx, "users.selectById", map[string]any{"id": 1}, executor.DefaultRowBounds)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, sqlerr.ErrQuery)
	assert.False(t, called)
	assert.Empty(t, ex.queries)

	_, err = s.Update(ctx, "users.update", map[string]any{"id": 1, "name": "x"})
	assert.ErrorIs(t, err, sqlerr.ErrUpdate)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, ex.updates)
	assert.True(t, s.Dirty())
}

func TestUnknownStatement(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.SelectList(context.Background(), "users.nope", nil, executor.DefaultRowBounds)
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlerr.ErrQuery)
	assert.True(t, s.errCtx.Empty())
}

func TestDirtyFlagLifecycle(t *testing.T) {
	ctx := context.Background()
	s, ex := newSession(t)
	assert.False(t, s.Dirty())

	_, err := s.Insert(ctx, "users.insert", user{Name: "ann"})
	require.NoError(t, err)
	assert.True(t, s.Dirty())
	assert.Equal(t, []any{"ann"}, ex.updates[0].args)

	require.NoError(t, s.Commit(false))
	assert.False(t, s.Dirty())
	require.NoError(t, s.Commit(false))
	require.NoError(t, s.Commit(true))
	assert.Equal(t, []bool{true, false, true}, ex.commits)

	_, err = s.Delete(ctx, "users.delete", map[string]any{"id": 1})
	require.NoError(t, err)
	require.NoError(t, s.Rollback(false))
	require.NoError(t, s.Rollback(false))
	require.NoError(t, s.Rollback(true))
	assert.Equal(t, []bool{true, false, true}, ex.rollback)
	assert.False(t, s.Dirty())

	_, err = s.SelectList(ctx, "users.selectById", map[string]any{"id": 1}, executor.DefaultRowBounds)
	require.NoError(t, err)
	assert.False(t, s.Dirty(), "queries never dirty the session")
}

func TestFailedCommitStillClearsDirty(t *testing.T) {
	ctx := context.Background()
	s, ex := newSession(t)
	ex.commitErr = errors.New("connection reset")

	_, err := s.Update(ctx, "users.update", map[string]any{"id": 1, "name": "x"})
	require.NoError(t, err)

	err = s.Commit(false)
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlerr.ErrCommit)
	assert.Equal(t, "Error committing transaction.  Cause: connection reset", err.Error())
	assert.False(t, s.Dirty())

	ex.rollbackErr = errors.New("gone")
	_, err = s.Update(ctx, "users.update", map[string]any{"id": 1, "name": "x"})
	require.NoError(t, err)
	err = s.Rollback(false)
	assert.ErrorIs(t, err, sqlerr.ErrRollback)
	assert.Contains(t, err.Error(), "Error rolling back transaction.  Cause: gone")
	assert.False(t, s.Dirty())
}

func TestUpdateSetsDirtyBeforeFailure(t *testing.T) {
	s, ex := newSession(t)
	ex.updateErr = errors.New("constraint violated")

	_, err := s.Insert(context.Background(), "users.insert", map[string]any{"name": "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlerr.ErrUpdate)
	assert.True(t, s.Dirty())
}

func TestCloseUsesDirtyAndResetsContext(t *testing.T) {
	ctx := context.Background()
	s, ex := newSession(t)

	require.NoError(t, s.Close())
	_, err := s.Update(ctx, "users.update", map[string]any{"id": 1, "name": "x"})
	require.NoError(t, err)

	ex.closeErr = errors.New("socket closed")
	s.errCtx.Activity = "left over"
	err = s.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlerr.ErrClose)
	assert.Contains(t, err.Error(), "Error closing session.  Cause: socket closed")
	assert.Equal(t, []bool{false, true}, ex.closes)
	assert.False(t, s.Dirty())
	assert.True(t, s.errCtx.Empty())
}

func TestFlushStatements(t *testing.T) {
	s, ex := newSession(t)
	results, err := s.FlushStatements()
	require.NoError(t, err)
	assert.Len(t, results, 1)

	ex.flushErr = errors.New("batch failed")
	_, err = s.FlushStatements()
	assert.ErrorIs(t, err, sqlerr.ErrFlush)
	assert.Contains(t, err.Error(), "Error flushing statements.  Cause: batch failed")
	assert.Equal(t, 2, ex.flushes)
}

func TestClearCacheKeepsDirty(t *testing.T) {
	s, ex := newSession(t)
	_, err := s.Update(context.Background(), "users.update", map[string]any{"id": 1, "name": "x"})
	require.NoError(t, err)
	s.ClearCache()
	assert.Equal(t, 1, ex.clears)
	assert.True(t, s.Dirty())
}

func TestConnection(t *testing.T) {
	s, ex := newSession(t)
	_, err := s.Connection(context.Background())
	require.NoError(t, err)

	ex.tx.err = errors.New("pool exhausted")
	_, err = s.Connection(context.Background())
	assert.ErrorIs(t, err, sqlerr.ErrConnection)
	assert.Equal(t, "Error getting a new connection.  Cause: pool exhausted", err.Error())
}

func TestErrorContextScopedToCall(t *testing.T) {
	ctx := context.Background()
	s, ex := newSession(t)
	ex.queryErr = errors.New("relation does not exist")

	_, err := s.SelectList(ctx, "selectById", map[string]any{"id": 1}, executor.DefaultRowBounds)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "Error querying database.  Cause: relation does not exist")
	assert.Contains(t, msg, "### The error may exist in mappers/users.yaml")
	assert.Contains(t, msg, "### The error may involve selectById")
	assert.Contains(t, msg, "### SQL: SELECT * FROM users WHERE id = ?")

	require.NotNil(t, ex.seen)
	assert.Equal(t, s.errCtx.SessionID, ex.seen.SessionID)
	assert.Equal(t, "SELECT * FROM users WHERE id = ?", ex.seen.SQL)
	assert.True(t, s.errCtx.Empty(), "context is reset when the call returns")
}

func TestSelectMap(t *testing.T) {
	s, ex := newSession(t)
	ex.rows = []any{
		map[string]any{"id": int64(1), "name": "a"},
		map[string]any{"id": int64(2), "name": "b"},
		map[string]any{"id": int64(1), "name": "c"},
	}

	m, err := s.SelectMap(context.Background(), "users.selectById", map[string]any{"id": 1}, "id", executor.DefaultRowBounds)
	require.NoError(t, err)
	assert.Len(t, m, 2)
	assert.Equal(t, "c", m[int64(1)].(map[string]any)["name"], "last row wins")

	ex.rows = []any{user{ID: 3, Name: "x"}}
	m, err = s.SelectMap(context.Background(), "users.selectById", nil, "Name", executor.DefaultRowBounds)
	require.NoError(t, err)
	assert.Equal(t, user{ID: 3, Name: "x"}, m["x"])

	ex.rows = []any{map[string]any{"tags": []string{"a"}}}
	_, err = s.SelectMap(context.Background(), "users.selectById", nil, "tags", executor.DefaultRowBounds)
	assert.ErrorIs(t, err, sqlerr.ErrQuery)

	type wrapped struct{ V any }
	ex.rows = []any{map[string]any{"tags": wrapped{V: []string{"a"}}}}
	assert.NotPanics(t, func() {
		_, err = s.SelectMap(context.Background(), "users.selectById", nil, "tags", executor.DefaultRowBounds)
	})
	assert.ErrorIs(t, err, sqlerr.ErrQuery, "a struct holding a slice is not a usable key")
}

func TestSelectStreams(t *testing.T) {
	s, ex := newSession(t)
	h := executor.ResultHandlerFunc(func(*executor.ResultContext) {})
	require.NoError(t, s.Select(context.Background(), "users.selectById", map[string]any{"id": 1}, executor.DefaultRowBounds, h))
	require.Len(t, ex.queries, 1)
	assert.NotNil(t, ex.queries[0].handler)

	assert.ErrorIs(t, s.Select(context.Background(), "users.selectById", nil, executor.DefaultRowBounds, nil), sqlerr.ErrQuery)
}

func TestMapper(t *testing.T) {
	ctx := context.Background()
	s, ex := newSession(t)

	_, err := s.Mapper("orders")
	assert.Error(t, err)

	m, err := s.Mapper("users")
	require.NoError(t, err)
	_, err = m.Update(ctx, "update", map[string]any{"id": 1, "name": "x"})
	require.NoError(t, err)
	assert.Equal(t, "users.update", ex.updates[0].ms.ID())

	ex.rows = []any{user{ID: 1}}
	v, err := m.SelectOne(ctx, "selectById", 1)
	require.NoError(t, err)
	assert.Equal(t, user{ID: 1}, v)

	type users struct{}
	m, err = s.MapperOf(&users{})
	require.NoError(t, err)
	assert.Equal(t, "users", m.Namespace())
}

func TestGenerics(t *testing.T) {
	ctx := context.Background()
	s, ex := newSession(t)

	u, err := One[user](ctx, s, "users.selectById", 1)
	require.NoError(t, err)
	assert.Equal(t, user{}, u)

	ex.rows = []any{user{ID: 1}, user{ID: 2}}
	list, err := List[user](ctx, s, "users.selectById", 1)
	require.NoError(t, err)
	assert.Equal(t, []user{{ID: 1}, {ID: 2}}, list)

	_, err = List[string](ctx, s, "users.selectById", 1)
	assert.Error(t, err)
}

func TestLogsStatement(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s, _ := newSession(t, WithLogger(zap.New(core)))

	_, err := s.SelectList(context.Background(), "users.selectById", 1, executor.DefaultRowBounds)
	require.NoError(t, err)

	entries := logs.FilterMessage("statement ready").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "users.selectById", fields["id"])
	assert.Equal(t, "SELECT * FROM users WHERE id = ?", fields["sql"])
	assert.Equal(t, "session", entries[0].LoggerName)
	assert.NotEmpty(t, fields["call"])
}
