package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/MrSnakeDoc/portico/internal/domain"
)

const (
	// DefaultTTL is how long a remotely validated credential is trusted.
	DefaultTTL = 300 * time.Second
	// DefaultSweepInterval is how often expired entries are purged.
	DefaultSweepInterval = 5 * time.Minute
)

type entry struct {
	identity  domain.Identity
	expiresAt time.Time
}

// ValidationCache remembers identities returned by the remote authority.
//
// Keys are hashes of the raw credential (see Key); the raw credential is
// never stored. Get never returns an entry once now >= expiresAt, whether
// or not Sweep has run.
type ValidationCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// Option configures a ValidationCache.
type Option func(*ValidationCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *ValidationCache) { c.now = now }
}

// NewValidationCache creates an empty cache.
func NewValidationCache(opts ...Option) *ValidationCache {
	c := &ValidationCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key derives the cache key for a raw credential.
func Key(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached identity for key. Expired entries are evicted on the spot.
func (c *ValidationCache) Get(key string) (domain.Identity, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return domain.Identity{}, false
	}

	if !now.Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent Put may have refreshed the entry.
		if cur, still := c.entries[key]; still && !now.Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return domain.Identity{}, false
	}

	return e.identity, true
}

// Put stores identity under key for ttl. A non-positive ttl is a no-op.
func (c *ValidationCache) Put(key string, identity domain.Identity, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	expiresAt := c.now().Add(ttl)

	c.mu.Lock()
	c.entries[key] = entry{identity: identity, expiresAt: expiresAt}
	c.mu.Unlock()
}

// Invalidate drops key, e.g. on logout. Unknown keys are ignored.
func (c *ValidationCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Sweep removes every expired entry and returns how many were removed.
func (c *ValidationCache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (c *ValidationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
