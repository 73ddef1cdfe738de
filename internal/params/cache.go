package params

import (
	"sync"
	"time"
)

// cacheEntry holds one resolved config plus its insertion time
type cacheEntry struct {
	value      Resolved
	insertedAt time.Time
}

// ttlCache is a plain map with lazy expiry on read and a periodic sweep
// driven by the manager. Writes are rare, so a single RWMutex suffices.
type ttlCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func cacheKey(strategyID, symbol string) string {
	if symbol == "" {
		return strategyID + ":global"
	}
	return strategyID + ":" + symbol
}

func (c *ttlCache) get(key string) (Resolved, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Since(entry.insertedAt) >= c.ttl {
		return Resolved{}, false
	}
	value := entry.value
	value.Parameters = copyParams(entry.value.Parameters)
	return value, true
}

func (c *ttlCache) set(key string, value Resolved) {
	value.Parameters = copyParams(value.Parameters)
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, insertedAt: time.Now()}
	c.mu.Unlock()
}

func (c *ttlCache) invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *ttlCache) clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// sweep drops expired entries and returns how many were removed
func (c *ttlCache) sweep() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.insertedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *ttlCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
