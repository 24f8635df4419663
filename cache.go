package rowcask

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/yonwoo9/go-rowcask/internal/lru"
)

// CacheStats reports the hit, miss and eviction counters of a Cache.
type CacheStats = lru.Stats

// Cache keeps the most recently used rows of a Store in memory.
//
// Writes and deletes go to the store first and only then touch the cache, so
// a failed store operation never leaves the cache ahead of the store. Scans
// bypass the cache.
type Cache struct {
	store *Store
	lru   *lru.Cache[uint64, []byte]
	// epoch counts completed deletes. Put and a Get miss only populate the
	// cache if no delete finished while they were in the store.
	epoch atomic.Uint64
}

// OpenCache opens the store in dir and puts a cache of
// Config.CacheCapacity rows in front of it.
func OpenCache(dir string, opts ...ConfOption) (*Cache, error) {
	store, err := Open(dir, opts...)
	if err != nil {
		return nil, err
	}
	return NewCache(store, store.config.CacheCapacity)
}

// NewCache wraps an open store with a cache of capacity rows.
func NewCache(store *Store, capacity int) (*Cache, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: cache capacity %d must be at least 1", ErrInvalidConfig, capacity)
	}
	return &Cache{
		store: store,
		lru:   lru.New[uint64, []byte](capacity),
	}, nil
}

// Put stores payload and caches it as the most recently used row.
func (c *Cache) Put(payload []byte) (uint64, error) {
	epoch := c.epoch.Load()
	rowID, err := c.store.Put(payload)
	if err != nil {
		return 0, err
	}
	c.populate(rowID, payload, epoch)
	return rowID, nil
}

// populate caches a copy of payload unless a delete finished after epoch
// was read.
func (c *Cache) populate(rowID uint64, payload []byte, epoch uint64) {
	c.lru.PutIf(rowID, bytes.Clone(payload), func() bool {
		return c.epoch.Load() == epoch
	})
}

// Get returns the payload of rowID, from memory when possible.
// Errors are never cached.
func (c *Cache) Get(rowID uint64) ([]byte, error) {
	if payload, ok := c.lru.Get(rowID); ok {
		return bytes.Clone(payload), nil
	}

	epoch := c.epoch.Load()
	payload, err := c.store.Get(rowID)
	if err != nil {
		return nil, err
	}

	c.populate(rowID, payload, epoch)
	return payload, nil
}

// Delete tombstones rowID in the store and drops it from memory.
func (c *Cache) Delete(rowID uint64) error {
	if err := c.store.Delete(rowID); err != nil {
		return err
	}
	// 先推进 epoch 再移除，并发的未命中读取不会把已删除的行写回缓存
	c.epoch.Add(1)
	c.lru.Remove(rowID)
	return nil
}

// Scan returns an iterator over the live rows of the store.
func (c *Cache) Scan() *Iterator {
	return c.store.Scan()
}

// Stats returns the cache hit, miss and eviction counters.
func (c *Cache) Stats() CacheStats {
	return c.lru.Stats()
}

// CacheLen returns the number of cached rows.
func (c *Cache) CacheLen() int {
	return c.lru.Len()
}

// Capacity returns the maximum number of cached rows.
func (c *Cache) Capacity() int {
	return c.lru.Cap()
}

// ClearCache drops every cached row and resets the statistics.
// The store is not affected.
func (c *Cache) ClearCache() {
	c.lru.Clear()
}

// Len returns the number of rows in the store, deleted rows included.
func (c *Cache) Len() int {
	return c.store.Len()
}

// Store returns the underlying store.
func (c *Cache) Store() *Store {
	return c.store
}

// Close closes the store and drops the cached rows.
func (c *Cache) Close() error {
	err := c.store.Close()
	c.lru.Clear()
	return err
}
