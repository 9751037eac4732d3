// Package query implements the query service (C8): role-scoped reads
// from the read models with cache-aside, grounded on the teacher's
// services/query UseCase + get-all-*/get-id-* handler pattern.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aeroframe-io/core/internal/apperr"
	"github.com/aeroframe-io/core/internal/auth"
	"github.com/aeroframe-io/core/internal/domain"
	"github.com/aeroframe-io/core/internal/mlog"
	"github.com/aeroframe-io/core/internal/querycache"
	"github.com/aeroframe-io/core/internal/readmodel"
)

type UseCase struct {
	ReadModel     readmodel.Reader
	Cache         querycache.Cache
	Logger        mlog.Logger
	ListCacheTTL  time.Duration
	SelfCacheTTL  time.Duration
}

func NewUseCase(rm readmodel.Reader, cache querycache.Cache, logger mlog.Logger, listTTL, selfTTL time.Duration) *UseCase {
	return &UseCase{ReadModel: rm, Cache: cache, Logger: logger, ListCacheTTL: listTTL, SelfCacheTTL: selfTTL}
}

// UserView and TenantView are the JSON-facing projections returned to
// clients; kept distinct from readmodel rows so password_hash and other
// internal fields never leak.
type UserView struct {
	UserID   string  `json:"user_id"`
	TenantID *string `json:"tenant_id"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Role     string  `json:"role"`
}

type TenantView struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
}

func toUserView(u readmodel.User) UserView {
	return UserView{UserID: u.UserID, TenantID: u.TenantID, Username: u.Username, Email: u.Email, Role: u.Role}
}

func toTenantView(t readmodel.Tenant) TenantView {
	return TenantView{TenantID: t.TenantID, Name: t.Name}
}

// ListTenants: PlatformAdmin sees all; any other role sees only their own
// tenant (size 0 or 1) — including Pilot (spec.md §9 open item 4: chosen
// yes).
func (uc *UseCase) ListTenants(ctx context.Context, principal auth.Principal, limit, offset int) (readmodel.Pagination, error) {
	pagination := readmodel.NewPagination(limit, offset)

	var scope *string
	if principal.Role != domain.RolePlatformAdmin {
		scope = principal.TenantID
	}

	cacheKey := fmt.Sprintf("q:v1:tenants:%s:%d:%d", scopeKey(scope), pagination.Limit, pagination.Offset)

	if cached, ok := uc.readCache(ctx, cacheKey); ok {
		var p readmodel.Pagination
		if json.Unmarshal(cached, &p) == nil {
			return p, nil
		}
	}

	tenants, total, err := uc.ReadModel.ListTenants(ctx, scope, pagination.Limit, pagination.Offset)
	if err != nil {
		return readmodel.Pagination{}, apperr.Internal("listing tenants", err)
	}

	views := make([]TenantView, 0, len(tenants))
	for _, t := range tenants {
		views = append(views, toTenantView(t))
	}

	pagination.SetItems(views, total)
	uc.writeCache(ctx, cacheKey, pagination, uc.ListCacheTTL)

	return pagination, nil
}

// ListUsers: PlatformAdmin -> all; TenantAdmin -> own tenant; Pilot ->
// own row only.
func (uc *UseCase) ListUsers(ctx context.Context, principal auth.Principal, limit, offset int) (readmodel.Pagination, error) {
	pagination := readmodel.NewPagination(limit, offset)

	switch principal.Role {
	case domain.RolePlatformAdmin:
		return uc.listUsersScoped(ctx, nil, pagination)
	case domain.RoleTenantAdmin:
		return uc.listUsersScoped(ctx, principal.TenantID, pagination)
	default: // Pilot: exactly their own row
		user, err := uc.ReadModel.GetUser(ctx, principal.UserID)
		if err != nil {
			return readmodel.Pagination{}, apperr.Internal("loading self", err)
		}

		if user == nil {
			pagination.SetItems([]UserView{}, 0)
			return pagination, nil
		}

		pagination.SetItems([]UserView{toUserView(*user)}, 1)

		return pagination, nil
	}
}

func (uc *UseCase) listUsersScoped(ctx context.Context, scope *string, pagination readmodel.Pagination) (readmodel.Pagination, error) {
	cacheKey := fmt.Sprintf("q:v1:users:%s:%d:%d", scopeKey(scope), pagination.Limit, pagination.Offset)

	if cached, ok := uc.readCache(ctx, cacheKey); ok {
		var p readmodel.Pagination
		if json.Unmarshal(cached, &p) == nil {
			return p, nil
		}
	}

	users, total, err := uc.ReadModel.ListUsers(ctx, scope, pagination.Limit, pagination.Offset)
	if err != nil {
		return readmodel.Pagination{}, apperr.Internal("listing users", err)
	}

	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}

	pagination.SetItems(views, total)
	uc.writeCache(ctx, cacheKey, pagination, uc.ListCacheTTL)

	return pagination, nil
}

// GetSelf returns the principal's own user record.
func (uc *UseCase) GetSelf(ctx context.Context, principal auth.Principal) (UserView, error) {
	cacheKey := fmt.Sprintf("q:v1:self:%s", principal.UserID)

	if cached, ok := uc.readCache(ctx, cacheKey); ok {
		var v UserView
		if json.Unmarshal(cached, &v) == nil {
			return v, nil
		}
	}

	user, err := uc.ReadModel.GetUser(ctx, principal.UserID)
	if err != nil {
		return UserView{}, apperr.Internal("loading self", err)
	}

	if user == nil {
		return UserView{}, apperr.NotFound("user not found")
	}

	view := toUserView(*user)
	uc.writeCache(ctx, cacheKey, view, uc.SelfCacheTTL)

	return view, nil
}

func (uc *UseCase) readCache(ctx context.Context, key string) ([]byte, bool) {
	v, err := uc.Cache.Get(ctx, key)
	if err != nil {
		if err != querycache.ErrMiss {
			uc.Logger.Warnf("query: cache get failed for %s: %v", key, err)
		}

		return nil, false
	}

	return v, true
}

func (uc *UseCase) writeCache(ctx context.Context, key string, value any, ttl time.Duration) {
	body, err := json.Marshal(value)
	if err != nil {
		return
	}

	if err := uc.Cache.Set(ctx, key, body, ttl); err != nil {
		uc.Logger.Warnf("query: cache set failed for %s: %v", key, err)
	}
}

func scopeKey(scope *string) string {
	if scope == nil {
		return "all"
	}

	return *scope
}
