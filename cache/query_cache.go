package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LocalCache holds query results for the lifetime of one session. It is not
// safe for concurrent use; neither is the session that owns it.
type LocalCache interface {
	Get(key Key) ([]any, bool)
	Put(key Key, rows []any)
	Clear()
	Len() int
}

type lruLocalCache struct {
	data *lru.Cache[Key, []any]
}

// NewLocalCache creates a local cache holding at most size results.
func NewLocalCache(size int) LocalCache {
	if size <= 0 {
		size = 256
	}
	data, _ := lru.New[Key, []any](size)
	return &lruLocalCache{data: data}
}

func (c *lruLocalCache) Get(key Key) ([]any, bool) {
	return c.data.Get(key)
}

func (c *lruLocalCache) Put(key Key, rows []any) {
	c.data.Add(key, rows)
}

func (c *lruLocalCache) Clear() {
	c.data.Purge()
}

func (c *lruLocalCache) Len() int {
	return c.data.Len()
}
