package discover

import (
	"sync"
	"time"

	"github.com/MrWong99/graphseer/pkg/entity"
)

// Cache memoizes discovered configurations by label. Reads are concurrent,
// writes exclusive. Entries expire after the configured TTL; a zero TTL keeps
// them until Clear or Forget. Cached configurations are shared pointers and
// must be treated as immutable by callers.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	notify  func(delta int)

	now func() time.Time // test hook
}

type cacheEntry struct {
	cfg       *entity.Config
	expiresAt time.Time // zero when entries never expire
}

// CacheOption customises a Cache.
type CacheOption func(*Cache)

// WithNotify registers fn to receive the entry-count delta after every
// mutation. The application uses this to drive a cache-size gauge.
func WithNotify(fn func(delta int)) CacheOption {
	return func(c *Cache) { c.notify = fn }
}

// NewCache returns a cache whose entries expire after ttl. A ttl of zero
// disables expiry.
func NewCache(ttl time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached configuration for label. Expired entries are
// reported as misses; they are reclaimed by the next Put, Forget, or Clear.
func (c *Cache) Get(label string) (*entity.Config, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[label]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.cfg, true
}

// Put stores cfg under label, replacing any previous entry.
func (c *Cache) Put(label string, cfg *entity.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, existed := c.entries[label]
	var exp time.Time
	if c.ttl > 0 {
		exp = c.now().Add(c.ttl)
	}
	c.entries[label] = cacheEntry{cfg: cfg, expiresAt: exp}
	if !existed && c.notify != nil {
		c.notify(1)
	}
}

// Forget drops the entry for label, if any. Called when a single entity's
// shape changes without a full schema migration.
func (c *Cache) Forget(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[label]; !ok {
		return
	}
	delete(c.entries, label)
	if c.notify != nil {
		c.notify(-1)
	}
}

// Clear drops every entry. Call after a schema migration.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]cacheEntry)
	if n > 0 && c.notify != nil {
		c.notify(-n)
	}
}

// Len reports the number of entries currently held, including expired
// entries not yet reclaimed.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
