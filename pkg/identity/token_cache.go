package identity

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultRefreshBuffer is how long before expiry a cached token is treated as stale.
const DefaultRefreshBuffer = 5 * time.Minute

// TokenFetcher obtains a fresh management token.
type TokenFetcher func(ctx context.Context) (*TokenResponse, error)

// TokenCache is a single-slot cache for the management API token. It is
// constructed once at process start and shared by every caller.
type TokenCache struct {
	fetch  TokenFetcher
	now    func() time.Time
	buffer time.Duration

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// TokenCacheOption customises a TokenCache.
type TokenCacheOption func(*TokenCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenCacheOption {
	return func(c *TokenCache) { c.now = now }
}

// WithRefreshBuffer overrides DefaultRefreshBuffer.
func WithRefreshBuffer(d time.Duration) TokenCacheOption {
	return func(c *TokenCache) { c.buffer = d }
}

// NewTokenCache creates an empty cache that lazily calls fetch.
func NewTokenCache(fetch TokenFetcher, opts ...TokenCacheOption) *TokenCache {
	c := &TokenCache{
		fetch:  fetch,
		now:    time.Now,
		buffer: DefaultRefreshBuffer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached token while it is outside the refresh buffer,
// otherwise fetches and stores a new one.
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.validLocked() {
		token := c.token
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the write lock.
	if c.validLocked() {
		return c.token, nil
	}

	resp, err := c.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to obtain management token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("failed to obtain management token: empty access_token")
	}

	c.token = resp.AccessToken
	c.expiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	return c.token, nil
}

// Invalidate clears the slot so the next Get fetches a new token.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
}

// ExpiresAt reports the expiry of the cached token (zero when empty).
func (c *TokenCache) ExpiresAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiresAt
}

func (c *TokenCache) validLocked() bool {
	if c.token == "" {
		return false
	}
	return c.now().Before(c.expiresAt.Add(-c.buffer))
}
