package service

import (
	"context"
	"sync"
	"time"

	"github.com/priazovimpact/auth-service/internal/domain"
)

// TokenValidation is a memoized signature-validation outcome. Cache hits
// skip the cryptographic verification only; the session-store and
// denylist checks always run downstream, so logout correctness never
// depends on cache invalidation.
type TokenValidation struct {
	PrincipalID string      `json:"principal_id"`
	Email       string      `json:"email,omitempty"`
	Role        domain.Role `json:"role,omitempty"`
	TokenID     string      `json:"token_id"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// TokenValidationCache memoizes validation results keyed by the raw
// token string. Entry TTLs are short (about a minute) and strictly
// shorter than any token's own lifetime; expiry is the only
// invalidation path.
type TokenValidationCache interface {
	Get(ctx context.Context, token string) (*TokenValidation, bool, error)
	Set(ctx context.Context, token string, v *TokenValidation, ttl time.Duration) error
}

type NoopTokenValidationCache struct{}

func NewNoopTokenValidationCache() *NoopTokenValidationCache {
	return &NoopTokenValidationCache{}
}

func (c *NoopTokenValidationCache) Get(context.Context, string) (*TokenValidation, bool, error) {
	return nil, false, nil
}

func (c *NoopTokenValidationCache) Set(context.Context, string, *TokenValidation, time.Duration) error {
	return nil
}

type tokenCacheEntry struct {
	value     TokenValidation
	expiresAt time.Time
}

type InMemoryTokenValidationCache struct {
	mu    sync.RWMutex
	store map[string]tokenCacheEntry
}

func NewInMemoryTokenValidationCache() *InMemoryTokenValidationCache {
	return &InMemoryTokenValidationCache{store: make(map[string]tokenCacheEntry)}
}

func (c *InMemoryTokenValidationCache) Get(_ context.Context, token string) (*TokenValidation, bool, error) {
	now := time.Now().UTC()
	c.mu.RLock()
	entry, ok := c.store[token]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if now.After(entry.expiresAt) {
		c.mu.Lock()
		if e, still := c.store[token]; still && now.After(e.expiresAt) {
			delete(c.store, token)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	v := entry.value
	return &v, true, nil
}

func (c *InMemoryTokenValidationCache) Set(_ context.Context, token string, v *TokenValidation, ttl time.Duration) error {
	if ttl <= 0 || v == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[token] = tokenCacheEntry{value: *v, expiresAt: time.Now().UTC().Add(ttl)}
	return nil
}
