package cache

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	base := NewKey("users.byID", 0, 0, "SELECT * FROM users WHERE id = ?", []any{1})

	assert.Equal(t, base, NewKey("users.byID", 0, 0, "SELECT * FROM users WHERE id = ?", []any{1}))
	assert.NotEqual(t, base, NewKey("users.byID", 0, 0, "SELECT * FROM users WHERE id = ?", []any{2}))
	assert.NotEqual(t, base, NewKey("users.byID", 0, 10, "SELECT * FROM users WHERE id = ?", []any{1}))
	assert.NotEqual(t, base, NewKey("users.other", 0, 0, "SELECT * FROM users WHERE id = ?", []any{1}))
	assert.NotEqual(t, base, NewKey("users.byID", 0, 0, "SELECT * FROM users_01 WHERE id = ?", []any{1}))
}

func TestLocalCache(t *testing.T) {
	c := NewLocalCache(2)
	k1, k2, k3 := Key(1), Key(2), Key(3)

	c.Put(k1, []any{"a"})
	c.Put(k2, []any{"b"})
	rows, ok := c.Get(k1)
	require.True(t, ok)
	assert.Equal(t, []any{"a"}, rows)

	c.Put(k3, []any{"c"})
	_, ok = c.Get(k2)
	assert.False(t, ok, "least recently used entry is evicted")
	assert.Equal(t, 2, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok = c.Get(k1)
	assert.False(t, ok)
}

func TestStatementCache(t *testing.T) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	c := NewStatementCache(1)

	s1, err := c.GetOrPrepare(ctx, db, "SELECT 1")
	require.NoError(t, err)
	s2, err := c.GetOrPrepare(ctx, db, "SELECT 1")
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	got, err := c.Get(StatementKey("SELECT 1"))
	require.NoError(t, err)
	assert.Same(t, s1, got)

	_, err = c.GetOrPrepare(ctx, db, "SELECT 2")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	_, err = c.Get(StatementKey("SELECT 1"))
	assert.Error(t, err)

	_, err = c.GetOrPrepare(ctx, db, "SELEKT nonsense")
	assert.Error(t, err)

	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Len())
}
