package cache

import (
	"context"
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"
)

// Preparer prepares statements on a connection or transaction.
type Preparer interface {
	PreparexContext(ctx context.Context, query string) (*sqlx.Stmt, error)
}

// StatementCache keeps prepared statements keyed by SQL fingerprint and
// closes them on eviction.
type StatementCache struct {
	cache *lru.Cache[uint64, *sqlx.Stmt]
	mu    sync.RWMutex
}

func NewStatementCache(size int) *StatementCache {
	if size <= 0 {
		size = 64
	}
	cache, _ := lru.NewWithEvict(size, func(key uint64, stmt *sqlx.Stmt) {
		stmt.Close() // Clean up evicted statements
	})

	return &StatementCache{
		cache: cache,
	}
}

func (s *StatementCache) Get(key uint64) (*sqlx.Stmt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if stmt, ok := s.cache.Get(key); ok {
		return stmt, nil
	}
	return nil, errors.New("key not found")
}

func (s *StatementCache) GetOrPrepare(ctx context.Context, p Preparer, query string) (*sqlx.Stmt, error) {
	key := StatementKey(query)

	// Fast path: try to get from cache with read lock
	s.mu.RLock()
	if stmt, ok := s.cache.Get(key); ok {
		s.mu.RUnlock()
		return stmt, nil
	}
	s.mu.RUnlock()

	// Slow path: prepare and cache with write lock
	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if stmt, ok := s.cache.Get(key); ok {
		return stmt, nil
	}

	stmt, err := p.PreparexContext(ctx, query)
	if err != nil {
		return nil, err
	}

	s.cache.Add(key, stmt)
	return stmt, nil
}

func (s *StatementCache) Len() int {
	return s.cache.Len()
}

// Close closes and drops every cached statement.
func (s *StatementCache) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Purge() // This will trigger the evict callback for all items
	return nil
}
