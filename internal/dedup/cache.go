package dedup

import (
	"sync"
)

// Cache is a bounded seen-event set. The transport may redeliver events
// after a reconnect; the cache drops duplicates before the engine counts
// anything, so rate-limit and statistics state are never double-applied.
//
// Check and insert are one critical section, the same check-and-set
// discipline a SETNX-style store would give, but the state is tiny and
// process-local so it lives in memory.
type Cache struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	order    []string
	capacity int
	head     int
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 500
	}
	return &Cache{
		seen:     make(map[string]struct{}, capacity),
		order:    make([]string, capacity),
		capacity: capacity,
	}
}

// Seen reports whether id was observed before, recording it if not. When the
// cache is full the oldest entry is evicted first (FIFO).
func (c *Cache) Seen(id string) bool {
	if id == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; ok {
		return true
	}

	if oldest := c.order[c.head]; oldest != "" {
		delete(c.seen, oldest)
	}
	c.order[c.head] = id
	c.head = (c.head + 1) % c.capacity
	c.seen[id] = struct{}{}
	return false
}

// Len returns the number of ids currently tracked.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
