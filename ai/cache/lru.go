package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a bounded in-memory cache with per-entry expiry. Eviction removes
// the least recently used entry first; expired entries are dropped lazily
// on access. Safe for concurrent use.
type LRU[K comparable, V any] struct {
	entries  map[K]*list.Element
	order    *list.List
	capacity int
	ttl      time.Duration
	mu       sync.Mutex
}

type lruEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// NewLRU creates a cache holding at most capacity entries, each valid for
// ttl after its last Set. Non-positive arguments fall back to 256 entries
// and 5 minutes.
func NewLRU[K comparable, V any](capacity int, ttl time.Duration) *LRU[K, V] {
	if capacity <= 0 {
		capacity = 256
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LRU[K, V]{
		entries:  make(map[K]*list.Element),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Get returns the cached value for key, if present and not expired.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	entry := elem.Value.(*lruEntry[K, V])
	if time.Now().After(entry.expiresAt) {
		c.drop(elem)
		var zero V
		return zero, false
	}
	c.order.MoveToFront(elem)
	return entry.value, true
}

// Set stores value under key, refreshing its expiry. The least recently
// used entry is evicted when the cache is full.
func (c *LRU[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*lruEntry[K, V])
		entry.value = value
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}
	for len(c.entries) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.drop(oldest)
	}
	entry := &lruEntry[K, V]{key: key, value: value, expiresAt: time.Now().Add(c.ttl)}
	c.entries[key] = c.order.PushFront(entry)
}

// Remove deletes key from the cache. It reports whether an entry was
// present.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	c.drop(elem)
	return true
}

// Clear empties the cache.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*list.Element)
	c.order.Init()
}

// Len returns the number of entries, including any not yet swept expired
// ones.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// drop removes elem from both structures. Callers hold the lock.
func (c *LRU[K, V]) drop(elem *list.Element) {
	entry := elem.Value.(*lruEntry[K, V])
	c.order.Remove(elem)
	delete(c.entries, entry.key)
}
