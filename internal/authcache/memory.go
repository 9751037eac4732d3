package authcache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process Cache used by command/query/middleware
// unit tests.
type MemoryCache struct {
	mu         sync.Mutex
	principals map[string]CachedPrincipal
	keyIndex   map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{principals: map[string]CachedPrincipal{}, keyIndex: map[string]string{}}
}

func (c *MemoryCache) GetPrincipal(_ context.Context, plainKey string) (CachedPrincipal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.principals[plainKey]
	if !ok {
		return CachedPrincipal{}, ErrMiss
	}

	return p, nil
}

func (c *MemoryCache) SetPrincipal(_ context.Context, plainKey string, p CachedPrincipal, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.principals[plainKey] = p

	return nil
}

func (c *MemoryCache) DeleteByPlainKey(_ context.Context, plainKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.principals, plainKey)

	return nil
}

func (c *MemoryCache) GetPlainKeyByKeyID(_ context.Context, keyID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.keyIndex[keyID]
	if !ok {
		return "", ErrMiss
	}

	return v, nil
}

func (c *MemoryCache) SetKeyIDIndex(_ context.Context, keyID, plainKey string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.keyIndex[keyID] = plainKey

	return nil
}

func (c *MemoryCache) DeleteByKeyID(_ context.Context, keyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.keyIndex, keyID)

	return nil
}
