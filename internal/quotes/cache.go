package quotes

import (
	"sync"
	"time"

	"github.com/trandminh/quote-ingest/internal/observ"
)

type cacheEntry struct {
	quote     *Quote
	updatedAt time.Time
}

// Cache keeps the last-seen quote per symbol so the router can suppress
// redundant writes. Entries expire after the TTL: a Get that observes an
// expired entry evicts it, and Sweep removes anything a Get never touched.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a change cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached quote for a symbol, or nil on a miss. An expired
// entry counts as a miss and is removed.
func (c *Cache) Get(symbol string) *Quote {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[symbol]
	if !ok {
		return nil
	}
	if c.now().Sub(entry.updatedAt) > c.ttl {
		delete(c.entries, symbol)
		return nil
	}
	return entry.quote
}

// Set stores the latest quote for a symbol, refreshing its timestamp.
func (c *Cache) Set(symbol string, q *Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[symbol] = cacheEntry{quote: q, updatedAt: c.now()}
}

// UpdatedAt reports when a symbol's entry was last refreshed.
func (c *Cache) UpdatedAt(symbol string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[symbol]
	if !ok {
		return time.Time{}, false
	}
	return entry.updatedAt, true
}

// Len returns the number of live entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes entries older than the TTL and reports how many went.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for symbol, entry := range c.entries {
		if now.Sub(entry.updatedAt) > c.ttl {
			delete(c.entries, symbol)
			removed++
		}
	}
	if removed > 0 {
		observ.Log("quote_cache_swept", map[string]any{
			"removed":   removed,
			"remaining": len(c.entries),
		})
	}
	observ.SetGauge("quote_cache_entries", float64(len(c.entries)), map[string]string{})
	return removed
}
