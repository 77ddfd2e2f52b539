package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Cache is a thread-safe in-memory string cache with TTL support. Provider
// adapters use it to avoid re-resolving author profile data on every
// message.
type Cache struct {
	mu          sync.RWMutex
	items       map[string]entry
	defaultTTL  time.Duration
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// New creates a cache with the given default TTL and starts the background
// cleanup loop.
func New(defaultTTL time.Duration) *Cache {
	c := &Cache{
		items:       make(map[string]entry),
		defaultTTL:  defaultTTL,
		stopCleanup: make(chan struct{}),
	}

	go c.cleanupLoop(defaultTTL / 2)

	return c
}

// Get retrieves a value; the second return is false on miss or expiry.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || time.Now().After(item.expiresAt) {
		return "", false
	}
	return item.value, true
}

// Set stores a value with the default TTL.
func (c *Cache) Set(key, value string) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Cache) SetWithTTL(key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

// Len returns the number of entries, expired ones included until cleanup.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the cleanup loop.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCleanup:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
