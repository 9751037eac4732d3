package authn_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroframe-io/core/internal/auth"
	"github.com/aeroframe-io/core/internal/authcache"
	"github.com/aeroframe-io/core/internal/authn"
	"github.com/aeroframe-io/core/internal/domain"
	"github.com/aeroframe-io/core/internal/mlog"
	"github.com/aeroframe-io/core/internal/readmodel"
)

// S6 — Revocation invalidates auth.
func TestAuthenticate_RevocationInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	pepper := []byte("pepper")

	cache := authcache.NewMemoryCache()
	rm := readmodel.NewMemoryRepository()
	a := authn.NewAuthenticator(cache, rm, pepper, time.Hour, &mlog.NoneLogger{})

	tenantA := "tenant-a"
	require.NoError(t, rm.UpsertUser(ctx, readmodel.User{UserID: "u1", Username: "u", Email: "u@x.test", Role: string(domain.RolePilot), TenantID: &tenantA}))

	plain := "plaintext-key"
	hash := auth.HashApiKey(pepper, plain)
	require.NoError(t, rm.UpsertApiKey(ctx, readmodel.ApiKey{KeyID: "key_1", UserID: "u1", TenantID: &tenantA, ApiKeyHash: hash}))

	// cache miss -> rehydrates successfully
	p, err := a.Authenticate(ctx, plain)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)

	// cache hit now
	p, err = a.Authenticate(ctx, plain)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)

	// revoke: simulate the command handler's cache mutation + projection
	require.NoError(t, rm.RevokeApiKey(ctx, "key_1", time.Now()))
	require.NoError(t, cache.DeleteByPlainKey(ctx, plain))

	_, err = a.Authenticate(ctx, plain)
	assert.Error(t, err)
}

func TestAuthenticate_UpgradesLegacyEntryMissingRole(t *testing.T) {
	ctx := context.Background()
	pepper := []byte("pepper")

	cache := authcache.NewMemoryCache()
	rm := readmodel.NewMemoryRepository()
	a := authn.NewAuthenticator(cache, rm, pepper, time.Hour, &mlog.NoneLogger{})

	require.NoError(t, rm.UpsertUser(ctx, readmodel.User{UserID: "u1", Username: "u", Email: "u@x.test", Role: string(domain.RolePlatformAdmin)}))

	plain := "plaintext-key"
	hash := auth.HashApiKey(pepper, plain)
	require.NoError(t, rm.UpsertApiKey(ctx, readmodel.ApiKey{KeyID: "key_1", UserID: "u1", ApiKeyHash: hash}))

	// legacy cache entry with no role set
	require.NoError(t, cache.SetPrincipal(ctx, plain, authcache.CachedPrincipal{UserID: "u1"}, time.Hour))

	p, err := a.Authenticate(ctx, plain)
	require.NoError(t, err)
	assert.Equal(t, domain.RolePlatformAdmin, p.Role)

	cached, err := cache.GetPrincipal(ctx, plain)
	require.NoError(t, err)
	assert.True(t, cached.HasRole())
}
