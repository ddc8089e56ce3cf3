package metadata

import (
	"fmt"
	"sync"
	"time"
)

// Cache keeps catalog lookup outcomes in memory for long-running modes, so a
// season full of episodes does not refetch the same series. Only definitive
// outcomes (a record or not-found) are cached; transient failures never are.
type Cache struct {
	mu       sync.RWMutex
	items    map[string]cacheItem
	ttl      time.Duration
	maxItems int
	stop     chan struct{}
	once     sync.Once
}

type cacheItem struct {
	record    *Record
	expiresAt time.Time
}

// CacheConfig holds cache configuration.
type CacheConfig struct {
	TTL      time.Duration
	MaxItems int
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:      15 * time.Minute,
		MaxItems: 500,
	}
}

// NewCache creates a new cache and starts its cleanup loop. Call Close to
// stop it.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 500
	}

	c := &Cache{
		items:    make(map[string]cacheItem),
		ttl:      cfg.TTL,
		maxItems: cfg.MaxItems,
		stop:     make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// cacheKey identifies one lookup against one catalog.
func cacheKey(catalog string, q Query) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d|%d|%d|%+v|%s",
		catalog, q.Kind, q.Title, q.ShowTitle, q.Year, q.SeasonNumber, q.EpisodeNumber, q.ExternalIDs, q.Locale)
}

// Get returns the cached outcome. A nil record with ok=true is a cached
// not-found.
func (c *Cache) Get(key string) (*Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || time.Now().After(item.expiresAt) {
		return nil, false
	}
	if item.record == nil {
		return nil, true
	}
	rec := *item.record
	return &rec, true
}

// Set stores an outcome. Pass nil to cache a not-found.
func (c *Cache) Set(key string, rec *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxItems {
		c.evictOldest()
	}

	var stored *Record
	if rec != nil {
		cp := *rec
		stored = &cp
	}
	c.items[key] = cacheItem{record: stored, expiresAt: time.Now().Add(c.ttl)}
}

// Len returns the number of items in the cache.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the cleanup loop.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

// evictOldest drops expired items, then the item closest to expiry
// (must be called with lock held).
func (c *Cache) evictOldest() {
	now := time.Now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
		}
	}
	if len(c.items) < c.maxItems {
		return
	}

	var oldestKey string
	var oldest time.Time
	for key, item := range c.items {
		if oldestKey == "" || item.expiresAt.Before(oldest) {
			oldestKey, oldest = key, item.expiresAt
		}
	}
	delete(c.items, oldestKey)
}

// cleanup periodically removes expired items.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
