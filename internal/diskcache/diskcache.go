// Package diskcache is the allocator's disk-cache-invalidation
// reclamation collaborator (spec.md §4.6, step one). It models the
// opaque sector cache a freestanding bootloader keeps in front of disk
// reads; the allocator never sees its internals, only the
// InvalidateDiskCache call it makes through allocator.ReclaimHooks.
package diskcache

import "sync"

// Entry is one cached disk block.
type Entry struct {
	Key  string
	Data []byte
}

// slot is a fixed cache line. Pre-allocating the backing array means
// InvalidateDiskCache, called from the allocator's failure path, can clear every
// entry without itself allocating (spec.md §4.6: hooks must not
// allocate).
type slot struct {
	valid bool
	entry Entry
}

// Stats summarizes cache activity.
type Stats struct {
	Hits        int64
	Misses      int64
	Entries     int
	Invalidated int64
}

// Cache is a fixed-capacity, non-evicting block cache. Once full,
// further Put calls are dropped rather than evicting — a freestanding
// disk cache has no reclaim path of its own; it relies entirely on the
// allocator's reclamation sequence calling InvalidateDiskCache.
type Cache struct {
	mu    sync.Mutex
	slots []slot
	stats Stats
}

// New creates a cache with room for capacity entries.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 64
	}

	return &Cache{slots: make([]slot, capacity)}
}

// Put inserts or overwrites key's entry. A full cache with key absent
// silently drops the write.
func (c *Cache) Put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.slots {
		if c.slots[i].valid && c.slots[i].entry.Key == key {
			c.slots[i].entry.Data = data

			return
		}
	}

	for i := range c.slots {
		if !c.slots[i].valid {
			c.slots[i] = slot{valid: true, entry: Entry{Key: key, Data: data}}
			c.stats.Entries++

			return
		}
	}
}

// Get looks up key.
func (c *Cache) Get(key string) (data []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.slots {
		if c.slots[i].valid && c.slots[i].entry.Key == key {
			c.stats.Hits++

			return c.slots[i].entry.Data, true
		}
	}

	c.stats.Misses++

	return nil, false
}

// Stats returns a snapshot of the cache's counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats
}

// InvalidateDiskCache drops every cached entry. It is idempotent and
// performs no allocation, satisfying allocator.ReclaimHooks: the
// allocator may call it on every failed allocation pass without
// creating a second source of memory pressure.
func (c *Cache) InvalidateDiskCache() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cleared := 0

	for i := range c.slots {
		if c.slots[i].valid {
			c.slots[i] = slot{}
			cleared++
		}
	}

	c.stats.Entries = 0
	c.stats.Invalidated += int64(cleared)
}
