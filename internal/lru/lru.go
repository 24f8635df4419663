// Package lru implements a fixed-capacity least-recently-used cache.
//
// Entries live in a slice used as an arena; the recency list links them by
// slice index rather than by pointer, and a map translates keys to indices.
// Get, Put and Remove are O(1). Freed slots are reused through a free list.
package lru

import "sync"

const nilIndex = -1

type node[K comparable, V any] struct {
	key   K
	value V
	prev  int
	next  int
}

// Cache is safe for concurrent use. Its lock is only held for the structural
// update of a single call.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	index    map[K]int
	nodes    []node[K, V]
	free     []int
	head     int // most recently used
	tail     int // least recently used
	capacity int

	hits      uint64
	misses    uint64
	evictions uint64
}

// New returns an empty cache holding at most capacity entries.
// It panics if capacity is less than 1.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 1 {
		panic("lru: capacity must be greater than 0")
	}
	return &Cache[K, V]{
		index:    make(map[K]int, capacity),
		nodes:    make([]node[K, V], 0, min(capacity, 1024)),
		head:     nilIndex,
		tail:     nilIndex,
		capacity: capacity,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.index[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.moveToFront(idx)
	return c.nodes[idx].value, true
}

// Peek returns the value for key without touching recency or statistics.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	return c.nodes[idx].value, true
}

// Put inserts or overwrites key at the most recently used position.
// It reports whether the least recently used entry had to be evicted.
func (c *Cache[K, V]) Put(key K, value V) (evicted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.put(key, value)
}

// PutIf behaves like Put but only when cond, called under the cache lock,
// returns true. It reports whether the value was stored.
func (c *Cache[K, V]) PutIf(key K, value V, cond func() bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !cond() {
		return false
	}
	c.put(key, value)
	return true
}

func (c *Cache[K, V]) put(key K, value V) bool {
	if idx, ok := c.index[key]; ok {
		c.nodes[idx].value = value
		c.moveToFront(idx)
		return false
	}

	evicted := false
	if len(c.index) >= c.capacity {
		c.evict()
		evicted = true
	}

	idx := c.alloc()
	c.nodes[idx] = node[K, V]{key: key, value: value, prev: nilIndex, next: nilIndex}
	c.pushFront(idx)
	c.index[key] = idx
	return evicted
}

// Remove drops key from the cache. It reports whether key was present.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.index[key]
	if !ok {
		return false
	}
	delete(c.index, key)
	c.unlink(idx)
	c.release(idx)
	return true
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Cap returns the configured capacity.
func (c *Cache[K, V]) Cap() int {
	return c.capacity
}

// Keys returns the cached keys from most to least recently used.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.index))
	for idx := c.head; idx != nilIndex; idx = c.nodes[idx].next {
		keys = append(keys, c.nodes[idx].key)
	}
	return keys
}

// Clear drops every entry and resets the statistics.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.index)
	clear(c.nodes)
	c.nodes = c.nodes[:0]
	c.free = c.free[:0]
	c.head, c.tail = nilIndex, nilIndex
	c.hits, c.misses, c.evictions = 0, 0, 0
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Capacity:  c.capacity,
		Size:      len(c.index),
	}
}

func (c *Cache[K, V]) moveToFront(idx int) {
	if c.head == idx {
		return
	}
	c.unlink(idx)
	c.pushFront(idx)
}

func (c *Cache[K, V]) pushFront(idx int) {
	n := &c.nodes[idx]
	n.prev = nilIndex
	n.next = c.head
	if c.head != nilIndex {
		c.nodes[c.head].prev = idx
	}
	c.head = idx
	if c.tail == nilIndex {
		c.tail = idx
	}
}

func (c *Cache[K, V]) unlink(idx int) {
	n := &c.nodes[idx]
	if n.prev != nilIndex {
		c.nodes[n.prev].next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nilIndex {
		c.nodes[n.next].prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nilIndex, nilIndex
}

func (c *Cache[K, V]) evict() {
	idx := c.tail
	if idx == nilIndex {
		return
	}
	delete(c.index, c.nodes[idx].key)
	c.unlink(idx)
	c.release(idx)
	c.evictions++
}

func (c *Cache[K, V]) alloc() int {
	if n := len(c.free); n > 0 {
		idx := c.free[n-1]
		c.free = c.free[:n-1]
		return idx
	}
	c.nodes = append(c.nodes, node[K, V]{})
	return len(c.nodes) - 1
}

// release returns a slot to the free list, dropping its key and value so the
// arena does not pin evicted payloads.
func (c *Cache[K, V]) release(idx int) {
	c.nodes[idx] = node[K, V]{prev: nilIndex, next: nilIndex}
	c.free = append(c.free, idx)
}
