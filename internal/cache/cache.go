// Package cache provides an in-memory TTL cache with ETag support.
package cache

import (
	"crypto/md5"
	"fmt"
	"strings"
	"sync"
	"time"
)

// TTLItemList bounds how stale a cached item list can get when no change
// notification arrives.
const TTLItemList = 5 * time.Minute

type entry struct {
	data      []byte
	etag      string
	expiresAt time.Time
}

// Cache is a thread-safe in-memory TTL cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	enabled bool
	stop    chan struct{}
	once    sync.Once
}

// New creates a new cache. Pass enabled=false to create a no-op cache.
func New(enabled bool) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		enabled: enabled,
		stop:    make(chan struct{}),
	}
	if enabled {
		go c.evictLoop()
	}
	return c
}

// Close stops the eviction loop.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

// ItemsKey is the cache key of a recipient's item list.
func ItemsKey(recipientID string) string {
	return "items:" + recipientID
}

// Get retrieves a cached value. Returns data, etag, and whether the entry was found.
func (c *Cache) Get(key string) (data []byte, etag string, ok bool) {
	if !c.enabled {
		return nil, "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, exists := c.entries[key]
	if !exists || time.Now().After(e.expiresAt) {
		return nil, "", false
	}
	return e.data, e.etag, true
}

// Set stores a value with a TTL.
func (c *Cache) Set(key string, data []byte, ttl time.Duration) string {
	if !c.enabled {
		return ComputeETag(data)
	}
	etag := ComputeETag(data)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{
		data:      data,
		etag:      etag,
		expiresAt: time.Now().Add(ttl),
	}
	return etag
}

// Invalidate drops one key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidatePrefix drops every key starting with prefix and returns how many
// were removed.
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// Stats returns cache statistics.
func (c *Cache) Stats() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	active := 0
	now := time.Now()
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			active++
		}
	}
	return map[string]any{
		"enabled":      c.enabled,
		"total_keys":   len(c.entries),
		"active_keys":  active,
		"expired_keys": len(c.entries) - active,
	}
}

// evictLoop periodically removes expired entries.
func (c *Cache) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.evict()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) evict() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// ComputeETag generates a weak ETag from response data using MD5.
func ComputeETag(data []byte) string {
	hash := md5.Sum(data)
	return fmt.Sprintf(`W/"%x"`, hash[:8])
}

// CheckETagMatch checks if If-None-Match header matches the current ETag.
func CheckETagMatch(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		if strings.TrimSpace(candidate) == etag {
			return true
		}
	}
	return false
}
