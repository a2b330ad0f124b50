package idp

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// expirySkew is subtracted from the advertised token lifetime so a token
// is never presented moments before the identity provider rejects it.
const expirySkew = 30 * time.Second

// tokenFetcher obtains a fresh admin token and its lifetime in seconds.
type tokenFetcher func(ctx context.Context) (string, int64, error)

// tokenCache caches the admin access token until shortly before expiry.
// Concurrent refreshes collapse into a single upstream request.
type tokenCache struct {
	fetch tokenFetcher
	now   func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

func newTokenCache(fetch tokenFetcher) *tokenCache {
	return &tokenCache{fetch: fetch, now: time.Now}
}

// Token returns the cached token, refreshing it when missing or expired.
func (c *tokenCache) Token(ctx context.Context) (string, error) {
	c.mu.RLock()
	token, expiresAt := c.token, c.expiresAt
	c.mu.RUnlock()
	if token != "" && c.now().Before(expiresAt) {
		return token, nil
	}
	return c.refresh(ctx)
}

// ForceRefresh discards the cached token and fetches a new one. Used after
// an admin call comes back unauthorized.
func (c *tokenCache) ForceRefresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	return c.refresh(ctx)
}

func (c *tokenCache) refresh(ctx context.Context) (string, error) {
	v, err, _ := c.group.Do("admin-token", func() (any, error) {
		c.mu.RLock()
		token, expiresAt := c.token, c.expiresAt
		c.mu.RUnlock()
		if token != "" && c.now().Before(expiresAt) {
			return token, nil
		}

		token, expiresIn, err := c.fetch(ctx)
		if err != nil {
			return "", err
		}
		lifetime := time.Duration(expiresIn)*time.Second - expirySkew
		if lifetime < 0 {
			lifetime = 0
		}

		c.mu.Lock()
		c.token = token
		c.expiresAt = c.now().Add(lifetime)
		c.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
