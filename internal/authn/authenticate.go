// Package authn implements the authentication half of the auth subsystem
// (spec.md §4.9): cache lookup with rehydration from the read model on a
// miss. Kept separate from internal/auth (hashing + RBAC) so both the
// HTTP middleware and the real-time gateway can depend on it without
// pulling in command-side concerns.
package authn

import (
	"context"
	"errors"
	"time"

	"github.com/aeroframe-io/core/internal/apperr"
	"github.com/aeroframe-io/core/internal/auth"
	"github.com/aeroframe-io/core/internal/authcache"
	"github.com/aeroframe-io/core/internal/domain"
	"github.com/aeroframe-io/core/internal/mlog"
	"github.com/aeroframe-io/core/internal/readmodel"
)

type Authenticator struct {
	Cache        authcache.Cache
	ReadModel    readmodel.Reader
	ApiKeyPepper []byte
	CacheTTL     time.Duration
	Logger       mlog.Logger
}

func NewAuthenticator(cache authcache.Cache, rm readmodel.Reader, pepper []byte, ttl time.Duration, logger mlog.Logger) *Authenticator {
	return &Authenticator{Cache: cache, ReadModel: rm, ApiKeyPepper: pepper, CacheTTL: ttl, Logger: logger}
}

// Authenticate resolves a bearer API key to a Principal. On a cache miss
// it rehydrates from the read model, writes the cache entry back, and
// upgrades legacy entries that are missing a role.
func (a *Authenticator) Authenticate(ctx context.Context, plainKey string) (*auth.Principal, error) {
	if plainKey == "" {
		return nil, apperr.Unauthenticated("missing api key")
	}

	cached, err := a.Cache.GetPrincipal(ctx, plainKey)
	if err == nil && cached.HasRole() {
		role, rerr := domain.ParseRole(cached.Role)
		if rerr != nil {
			return nil, apperr.Unauthenticated("invalid credentials")
		}

		return &auth.Principal{UserID: cached.UserID, TenantID: cached.TenantID, Role: role}, nil
	}

	if err != nil && !errors.Is(err, authcache.ErrMiss) {
		a.Logger.Warnf("authn: cache read failed, falling back to rehydration: %v", err)
	}

	// legacy entry missing role, or a miss: either way fall through to
	// rehydration against the read model (spec.md §4.9).
	hash := auth.HashApiKey(a.ApiKeyPepper, plainKey)

	user, _, err := a.ReadModel.FindUserByApiKeyHash(ctx, hash)
	if err != nil {
		return nil, apperr.Internal("looking up api key", err)
	}

	if user == nil {
		return nil, apperr.Unauthenticated("invalid credentials")
	}

	role, err := domain.ParseRole(user.Role)
	if err != nil {
		return nil, apperr.Internal("read model holds an unknown role", err)
	}

	principal := &auth.Principal{UserID: user.UserID, TenantID: user.TenantID, Role: role}

	record := authcache.CachedPrincipal{UserID: user.UserID, TenantID: user.TenantID, Role: string(role)}
	if err := a.Cache.SetPrincipal(ctx, plainKey, record, a.CacheTTL); err != nil {
		a.Logger.Warnf("authn: writing rehydrated cache entry failed: %v", err)
	}

	return principal, nil
}
