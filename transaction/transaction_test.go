package transaction

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	return db
}

func count(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM items"))
	return n
}

func TestCommit(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	tx := New(db, "sqlite3")

	conn, err := tx.Connection(ctx)
	require.NoError(t, err)
	assert.True(t, tx.Active())
	_, err = conn.ExecContext(ctx, "INSERT INTO items (name) VALUES ('a')")
	require.NoError(t, err)

	again, err := tx.Connection(ctx)
	require.NoError(t, err)
	assert.Same(t, conn, again)

	require.NoError(t, tx.Commit())
	assert.False(t, tx.Active())
	assert.Equal(t, 1, count(t, db))
}

func TestRollbackAndClose(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	tx := New(db, "sqlite3")

	conn, err := tx.Connection(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, "INSERT INTO items (name) VALUES ('a')")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	conn, err = tx.Connection(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, "INSERT INTO items (name) VALUES ('b')")
	require.NoError(t, err)
	require.NoError(t, tx.Close())

	assert.Equal(t, 0, count(t, db))

	_, err = tx.Connection(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, tx.Commit(), ErrClosed)
	assert.NoError(t, tx.Close())
}

func TestAutoCommit(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	tx := New(db, "sqlite3", WithAutoCommit(true))

	conn, err := tx.Connection(ctx)
	require.NoError(t, err)
	assert.False(t, tx.Active())
	_, err = conn.ExecContext(ctx, "INSERT INTO items (name) VALUES ('a')")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	assert.Equal(t, 1, count(t, db))
}

func TestCommitWithoutWork(t *testing.T) {
	tx := New(openDB(t), "sqlite3")
	assert.NoError(t, tx.Commit())
	assert.NoError(t, tx.Rollback())
}

func TestTransactionOutlivesCallContext(t *testing.T) {
	db := openDB(t)
	tx := New(db, "sqlite3")

	callCtx, cancel := context.WithCancel(context.Background())
	conn, err := tx.Connection(callCtx)
	require.NoError(t, err)
	_, err = conn.ExecContext(callCtx, "INSERT INTO items (name) VALUES ('a')")
	require.NoError(t, err)
	cancel()

	require.NoError(t, tx.Commit())
	assert.Equal(t, 1, count(t, db))
}
