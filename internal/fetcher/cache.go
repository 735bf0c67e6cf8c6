package fetcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/quantfold/backtester/internal/candle"
)

const maxCacheEntries = 100

type cacheEntry struct {
	candles  []candle.Candle
	storedAt time.Time
}

// candleCache is a TTL cache for fetched ranges, bounded to keep repeated
// sweep runs from holding every historical download in memory.
type candleCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newCandleCache(ttl time.Duration) *candleCache {
	return &candleCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func cacheKey(symbol, timeframe string, from, to time.Time) string {
	return fmt.Sprintf("%s|%s|%d|%d", symbol, timeframe, from.UnixMilli(), to.UnixMilli())
}

func (c *candleCache) get(symbol, timeframe string, from, to time.Time) ([]candle.Candle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(symbol, timeframe, from, to)
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.candles, true
}

func (c *candleCache) put(symbol, timeframe string, from, to time.Time, candles []candle.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= maxCacheEntries {
		c.evictLocked()
	}
	c.entries[cacheKey(symbol, timeframe, from, to)] = cacheEntry{
		candles:  candles,
		storedAt: time.Now(),
	}
}

// evictLocked drops expired entries first, then the oldest if still full.
func (c *candleCache) evictLocked() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) > c.ttl {
			delete(c.entries, key)
		}
	}
	if len(c.entries) < maxCacheEntries {
		return
	}

	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.storedAt.Before(oldest) {
			oldestKey = key
			oldest = entry.storedAt
		}
	}
	delete(c.entries, oldestKey)
}
