// Package dedup rejects redelivered inbound event ids.
package dedup

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a bounded record of recently seen event ids.
//
// Entries are evicted oldest-first once the cache passes its capacity, and
// lazily once they outlive the TTL. Both bounds are finite; forgetting an id
// early only risks reprocessing, never rejecting a genuinely new id.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List
	entries  map[string]*list.Element

	now func() time.Time
}

type entry struct {
	id string
	at time.Time
}

// New builds a cache bounded by capacity entries and a ttl window.
// Non-positive values disable the respective bound, but at least one bound
// must be set; New panics when both are disabled.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 && ttl <= 0 {
		panic("dedup: cache requires a capacity or ttl bound")
	}

	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Seen records id and reports whether it had already been recorded.
// The check and the insert are one atomic operation.
func (c *Cache) Seen(id string) bool {
	if id == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.pruneExpired(now)

	if _, ok := c.entries[id]; ok {
		return true
	}

	c.entries[id] = c.order.PushBack(&entry{id: id, at: now})
	for c.capacity > 0 && c.order.Len() > c.capacity {
		c.evictOldest()
	}

	return false
}

// Len reports the current number of tracked ids.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) pruneExpired(now time.Time) {
	if c.ttl <= 0 {
		return
	}

	for front := c.order.Front(); front != nil; front = c.order.Front() {
		if now.Sub(front.Value.(*entry).at) < c.ttl {
			return
		}
		c.evictOldest()
	}
}

func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	delete(c.entries, front.Value.(*entry).id)
	c.order.Remove(front)
}
