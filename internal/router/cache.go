package router

import (
	"sync"

	"github.com/elliotchance/orderedmap/v3"
)

// DefaultCacheCapacity bounds each of the two routing caches.
const DefaultCacheCapacity = 1000

// boundedCache is a size-bounded map with pure insertion-order eviction: when
// full, the oldest-inserted entry goes first. Lookups never refresh an
// entry's position, so this is FIFO, not LRU. Safe for concurrent use.
type boundedCache[V any] struct {
	mu       sync.Mutex
	capacity int
	entries  *orderedmap.OrderedMap[string, V]
}

func newBoundedCache[V any](capacity int) *boundedCache[V] {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &boundedCache[V]{
		capacity: capacity,
		entries:  orderedmap.NewOrderedMap[string, V](),
	}
}

func (c *boundedCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(key)
}

func (c *boundedCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries.Get(key); !exists && c.entries.Len() >= c.capacity {
		if oldest := c.entries.Front(); oldest != nil {
			c.entries.Delete(oldest.Key)
		}
	}
	c.entries.Set(key, value)
}

func (c *boundedCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func (c *boundedCache[V]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = orderedmap.NewOrderedMap[string, V]()
}
