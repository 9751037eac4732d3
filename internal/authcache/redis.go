// Package authcache implements the auth cache (C4): a fast path from
// API-key material to an authenticated principal, plus a revocation
// index, grounded on the teacher's mredis connection pattern.
package authcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss indicates the key was absent. Distinct from a connection error:
// a miss is not "no such key" — see spec.md §4.9 rehydration.
var ErrMiss = errors.New("authcache: miss")

// CachedPrincipal is the JSON schema stored under apikey:<plain>. Legacy
// entries missing Role are upgraded on first use rather than trusted
// as-is (spec.md §4.9).
type CachedPrincipal struct {
	UserID   string  `json:"user_id"`
	TenantID *string `json:"tenant_id"`
	Role     string  `json:"role,omitempty"`
}

func (p CachedPrincipal) HasRole() bool { return p.Role != "" }

// Cache is the contract the auth middleware and command handlers depend
// on.
type Cache interface {
	GetPrincipal(ctx context.Context, plainKey string) (CachedPrincipal, error)
	SetPrincipal(ctx context.Context, plainKey string, p CachedPrincipal, ttl time.Duration) error
	DeleteByPlainKey(ctx context.Context, plainKey string) error

	GetPlainKeyByKeyID(ctx context.Context, keyID string) (string, error)
	SetKeyIDIndex(ctx context.Context, keyID, plainKey string, ttl time.Duration) error
	DeleteByKeyID(ctx context.Context, keyID string) error
}

// RedisCache is the C4 implementation.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func apikeyKey(plain string) string { return "apikey:" + plain }
func keyidKey(keyID string) string  { return "keyid:" + keyID }

func (c *RedisCache) GetPrincipal(ctx context.Context, plainKey string) (CachedPrincipal, error) {
	raw, err := c.client.Get(ctx, apikeyKey(plainKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CachedPrincipal{}, ErrMiss
	}

	if err != nil {
		return CachedPrincipal{}, err
	}

	var p CachedPrincipal
	if err := json.Unmarshal(raw, &p); err != nil {
		// an entry that doesn't parse is treated like a miss so the
		// caller falls through to rehydration rather than erroring.
		return CachedPrincipal{}, ErrMiss
	}

	return p, nil
}

func (c *RedisCache) SetPrincipal(ctx context.Context, plainKey string, p CachedPrincipal, ttl time.Duration) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, apikeyKey(plainKey), body, ttl).Err()
}

func (c *RedisCache) DeleteByPlainKey(ctx context.Context, plainKey string) error {
	return c.client.Del(ctx, apikeyKey(plainKey)).Err()
}

func (c *RedisCache) GetPlainKeyByKeyID(ctx context.Context, keyID string) (string, error) {
	v, err := c.client.Get(ctx, keyidKey(keyID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}

	return v, err
}

func (c *RedisCache) SetKeyIDIndex(ctx context.Context, keyID, plainKey string, ttl time.Duration) error {
	return c.client.Set(ctx, keyidKey(keyID), plainKey, ttl).Err()
}

func (c *RedisCache) DeleteByKeyID(ctx context.Context, keyID string) error {
	return c.client.Del(ctx, keyidKey(keyID)).Err()
}
