package lru

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasic(t *testing.T) {
	c := New[int, string](2)

	c.Put(1, "a")
	c.Put(2, "b")

	v, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	v, ok = c.Get(2)
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, c.Cap())
}

func TestEviction(t *testing.T) {
	c := New[int, string](2)

	assert.False(t, c.Put(1, "a"))
	assert.False(t, c.Put(2, "b"))
	assert.True(t, c.Put(3, "c")) // evicts 1

	_, ok := c.Get(1)
	assert.False(t, ok)
	_, ok = c.Get(2)
	assert.True(t, ok)
	_, ok = c.Get(3)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestGetRefreshesRecency(t *testing.T) {
	c := New[int, string](2)

	c.Put(1, "a")
	c.Put(2, "b")
	c.Get(1)      // 1 becomes MRU
	c.Put(3, "c") // evicts 2

	assert.Equal(t, []int{3, 1}, c.Keys())
	_, ok := c.Peek(2)
	assert.False(t, ok)
}

func TestOverwrite(t *testing.T) {
	c := New[int, string](2)

	c.Put(1, "a")
	c.Put(2, "b")
	assert.False(t, c.Put(1, "z"), "overwrite must not evict")

	v, ok := c.Peek(1)
	assert.True(t, ok)
	assert.Equal(t, "z", v)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []int{1, 2}, c.Keys())
}

func TestRemove(t *testing.T) {
	c := New[int, string](3)

	c.Put(1, "a")
	c.Put(2, "b")
	c.Put(3, "c")

	assert.True(t, c.Remove(2))
	assert.False(t, c.Remove(2))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []int{3, 1}, c.Keys())

	// Removing head and tail keeps the list consistent.
	assert.True(t, c.Remove(3))
	assert.True(t, c.Remove(1))
	assert.Empty(t, c.Keys())
	c.Put(4, "d")
	assert.Equal(t, []int{4}, c.Keys())
}

func TestFreeListReuse(t *testing.T) {
	c := New[int, int](4)

	for i := range 100 {
		c.Put(i, i)
	}
	assert.Equal(t, 4, c.Len())
	assert.LessOrEqual(t, len(c.nodes), 4, "arena must not grow past capacity")
	assert.Equal(t, []int{99, 98, 97, 96}, c.Keys())
	assert.Equal(t, uint64(96), c.Stats().Evictions)

	for i := 96; i < 100; i++ {
		c.Remove(i)
	}
	assert.Len(t, c.free, 4)
	c.Put(1000, 1)
	assert.Len(t, c.free, 3)
	assert.LessOrEqual(t, len(c.nodes), 4)
}

func TestCapacityOne(t *testing.T) {
	c := New[string, int](1)

	c.Put("a", 1)
	assert.True(t, c.Put("b", 2))
	assert.Equal(t, []string{"b"}, c.Keys())
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestPutIf(t *testing.T) {
	c := New[int, string](2)

	assert.False(t, c.PutIf(1, "a", func() bool { return false }))
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.PutIf(1, "a", func() bool { return true }))
	v, ok := c.Peek(1)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestStats(t *testing.T) {
	c := New[int, string](10)

	assert.Equal(t, 0.0, c.Stats().HitRatio())

	c.Put(1, "a")
	c.Get(1) // hit
	c.Get(2) // miss
	c.Get(1) // hit

	s := c.Stats()
	assert.Equal(t, uint64(2), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
	assert.Equal(t, uint64(0), s.Evictions)
	assert.Equal(t, 10, s.Capacity)
	assert.Equal(t, 1, s.Size)
	assert.InDelta(t, 2.0/3.0, s.HitRatio(), 1e-9)
	assert.Equal(t, "hits=2 misses=1 evictions=0 size=1/10 hit_ratio=0.667", s.String())
}

func TestClear(t *testing.T) {
	c := New[int, string](3)

	c.Put(1, "a")
	c.Put(2, "b")
	c.Get(1)
	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())
	assert.Equal(t, Stats{Capacity: 3}, c.Stats())

	c.Put(3, "c")
	assert.Equal(t, []int{3}, c.Keys())
}

func TestClearDropsValues(t *testing.T) {
	c := New[int, []byte](4)
	for i := range 4 {
		c.Put(i, []byte("payload"))
	}
	c.Clear()

	for _, n := range c.nodes[:cap(c.nodes)] {
		assert.Nil(t, n.value)
	}
}

func TestNewPanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int, int](0) })
}

func TestConcurrentAccess(t *testing.T) {
	c := New[string, int](64)

	const numGoroutines = 8
	const numOps = 2000

	var wg sync.WaitGroup
	for g := 0; g < numGoroutines; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				key := fmt.Sprintf("key-%d", (id*numOps+j)%200)
				if j%3 == 0 {
					c.Put(key, j)
				} else if j%7 == 0 {
					c.Remove(key)
				} else {
					c.Get(key)
				}
			}
		}(g)
	}
	wg.Wait()

	require.LessOrEqual(t, c.Len(), 64)
	assert.Len(t, c.Keys(), c.Len())
}
