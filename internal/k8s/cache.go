package k8s

import (
	"sync"
	"time"

	"github.com/ppiankov/compatspectre/internal/models"
)

// CacheEntry holds the services discovered in one namespace
type CacheEntry struct {
	Services  []models.ServiceInfo
	ExpiresAt time.Time
}

// Cache provides thread-safe, TTL-bounded caching of namespace listings
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a new cache with given TTL; a non-positive TTL disables caching
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]*CacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached listing for key, or false when absent or expired
func (c *Cache) Get(key string) ([]models.ServiceInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.ExpiresAt) {
		return nil, false
	}
	return append([]models.ServiceInfo(nil), entry.Services...), true
}

// Set stores a listing
func (c *Cache) Set(key string, services []models.ServiceInfo) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpired()
	c.entries[key] = &CacheEntry{
		Services:  append([]models.ServiceInfo(nil), services...),
		ExpiresAt: c.now().Add(c.ttl),
	}
}

func (c *Cache) evictExpired() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}
}

// Clear removes all entries from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*CacheEntry)
}

// Size returns the current number of entries in the cache
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
