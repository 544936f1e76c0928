package oauth2

import (
	"sync"
	"time"
)

// Cache holds at most one token for a configured account.
// Tokens are never persisted; a refresh replaces the cached value wholesale.
type Cache struct {
	mu    sync.RWMutex
	token *Token
}

// NewCache creates an empty credential cache
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the cached token if it is still valid at now with margin to spare
func (c *Cache) Get(now time.Time, margin time.Duration) (*Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.token.ValidAt(now, margin) {
		return nil, false
	}
	return c.token, true
}

// Peek returns the cached token regardless of its expiry
func (c *Cache) Peek() *Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Store replaces the cached token
func (c *Cache) Store(token *Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// InvalidateIf drops the cached token only if it is still the stale one.
// It reports whether the cache was cleared.
func (c *Cache) InvalidateIf(stale *Token) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil || stale == nil || c.token.AccessToken != stale.AccessToken {
		return false
	}
	c.token = nil
	return true
}

// Clear drops any cached token
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
}
