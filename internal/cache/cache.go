// Package cache memoizes image-based estimation results by content hash.
// The cache lives for the process lifetime and never evicts; entries are
// immutable once written, so last-write-wins on a race is harmless.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/reewild/foodprint/internal/carbon"
)

// Key returns the stable content hash used as the cache key for raw image
// bytes. Collisions are an accepted risk, not handled.
func Key(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Results is a concurrency-safe estimate cache.
type Results struct {
	mu      sync.RWMutex
	entries map[string]carbon.Estimate
}

// NewResults returns an empty cache.
func NewResults() *Results {
	return &Results{entries: make(map[string]carbon.Estimate)}
}

// Get returns the cached estimate for key, if present.
func (c *Results) Get(key string) (carbon.Estimate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	est, ok := c.entries[key]
	return est, ok
}

// Put stores est under key.
func (c *Results) Put(key string, est carbon.Estimate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = est
}

// Len returns the number of cached entries.
func (c *Results) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
