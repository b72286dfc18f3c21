package cache

import (
	"context"
	"sync"
	"time"
)

// ttlEntry represents an entry in the TTL cache.
type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// isExpired checks if the entry has expired.
func (e *ttlEntry[V]) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// ttlCache is a thread-safe TTL (Time-To-Live) cache implementation.
// It evicts items lazily on access and periodically via a background sweep.
type ttlCache[V any] struct {
	mu              sync.RWMutex
	ttl             time.Duration
	cleanupInterval time.Duration
	items           map[string]*ttlEntry[V]
	stats           *Statistics

	shutdown chan struct{}
	done     chan struct{}
}

// NewTTL creates a new TTL cache. The background sweep goroutine stops when
// ctx is cancelled or Close is called. A non-positive cleanupInterval
// disables the background sweep; entries are then only evicted on access.
func NewTTL[V any](ctx context.Context, ttl, cleanupInterval time.Duration) (Cache[V], error) {
	c := &ttlCache[V]{
		ttl:             ttl,
		cleanupInterval: cleanupInterval,
		items:           make(map[string]*ttlEntry[V]),
		stats:           &Statistics{},
		shutdown:        make(chan struct{}),
		done:            make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go c.sweep(ctx)
	} else {
		close(c.done)
	}

	return c, nil
}

// Get retrieves a value by key, checking for expiration.
func (c *ttlCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		var zero V
		c.stats.Miss()
		return zero, false
	}

	if entry.isExpired() {
		c.mu.Lock()
		// Double-check under write lock
		if current, still := c.items[key]; still && current.isExpired() {
			delete(c.items, key)
			c.stats.Eviction()
		}
		c.mu.Unlock()

		var zero V
		c.stats.Miss()
		return zero, false
	}

	c.stats.Hit()
	return entry.value, true
}

// Set stores a value with the configured TTL.
func (c *ttlCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, existed := c.items[key]
	c.items[key] = &ttlEntry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.stats.Set()
	return !existed, nil
}

// Delete removes an entry by key.
func (c *ttlCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists {
		return false, nil
	}
	delete(c.items, key)
	return true, nil
}

// Clear removes all entries.
func (c *ttlCache[V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*ttlEntry[V])
	return nil
}

// Size returns the number of entries, including not-yet-swept expired ones.
func (c *ttlCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns all keys currently in the cache.
func (c *ttlCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	return keys
}

// Stats returns the cache statistics.
func (c *ttlCache[V]) Stats() *Statistics {
	return c.stats
}

// Close stops the background sweep goroutine.
func (c *ttlCache[V]) Close() error {
	select {
	case <-c.shutdown:
		// Already closed
	default:
		close(c.shutdown)
	}
	<-c.done
	return nil
}

// sweep periodically removes expired entries.
func (c *ttlCache[V]) sweep(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

// evictExpired removes all expired entries under a single write lock.
func (c *ttlCache[V]) evictExpired() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.items {
		if now.After(entry.expiresAt) {
			delete(c.items, key)
			c.stats.Eviction()
		}
	}
}
