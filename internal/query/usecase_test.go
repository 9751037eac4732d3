package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroframe-io/core/internal/auth"
	"github.com/aeroframe-io/core/internal/domain"
	"github.com/aeroframe-io/core/internal/mlog"
	"github.com/aeroframe-io/core/internal/query"
	"github.com/aeroframe-io/core/internal/querycache"
	"github.com/aeroframe-io/core/internal/readmodel"
)

func seed(t *testing.T, rm *readmodel.MemoryRepository, tenantA, tenantB *string) {
	ctx := context.Background()
	require.NoError(t, rm.UpsertTenant(ctx, readmodel.Tenant{TenantID: *tenantA, Name: "A"}))
	require.NoError(t, rm.UpsertTenant(ctx, readmodel.Tenant{TenantID: *tenantB, Name: "B"}))

	require.NoError(t, rm.UpsertUser(ctx, readmodel.User{UserID: "pa", Username: "pa", Email: "pa@x.test", Role: string(domain.RolePlatformAdmin)}))
	require.NoError(t, rm.UpsertUser(ctx, readmodel.User{UserID: "ta_A", Username: "ta_A", Email: "taa@x.test", Role: string(domain.RoleTenantAdmin), TenantID: tenantA}))
	require.NoError(t, rm.UpsertUser(ctx, readmodel.User{UserID: "p_A", Username: "p_A", Email: "pA@x.test", Role: string(domain.RolePilot), TenantID: tenantA}))
	require.NoError(t, rm.UpsertUser(ctx, readmodel.User{UserID: "p_B", Username: "p_B", Email: "pB@x.test", Role: string(domain.RolePilot), TenantID: tenantB}))
}

// S2 — Tenant admin scoping: query-path portion.
func TestScenario_ListUsersScoping(t *testing.T) {
	tenantA := "tenant-a"
	tenantB := "tenant-b"

	rm := readmodel.NewMemoryRepository()
	seed(t, rm, &tenantA, &tenantB)

	uc := query.NewUseCase(rm, querycache.NewMemoryCache(), &mlog.NoneLogger{}, time.Minute, time.Minute)
	ctx := context.Background()

	taA := auth.Principal{UserID: "ta_A", Role: domain.RoleTenantAdmin, TenantID: &tenantA}
	page, err := uc.ListUsers(ctx, taA, 50, 0)
	require.NoError(t, err)
	views := page.Items.([]query.UserView)
	assert.Len(t, views, 2) // ta_A, p_A

	pA := auth.Principal{UserID: "p_A", Role: domain.RolePilot, TenantID: &tenantA}
	page, err = uc.ListUsers(ctx, pA, 50, 0)
	require.NoError(t, err)
	views = page.Items.([]query.UserView)
	require.Len(t, views, 1)
	assert.Equal(t, "p_A", views[0].UserID)

	pa := auth.Principal{UserID: "pa", Role: domain.RolePlatformAdmin}
	page, err = uc.ListUsers(ctx, pa, 50, 0)
	require.NoError(t, err)
	views = page.Items.([]query.UserView)
	assert.Len(t, views, 4)
}

// spec.md §9 open item 4: Pilot sees own tenant in the tenant list
// (size-1 row).
func TestScenario_PilotSeesOwnTenant(t *testing.T) {
	tenantA := "tenant-a"
	tenantB := "tenant-b"

	rm := readmodel.NewMemoryRepository()
	seed(t, rm, &tenantA, &tenantB)

	uc := query.NewUseCase(rm, querycache.NewMemoryCache(), &mlog.NoneLogger{}, time.Minute, time.Minute)

	pA := auth.Principal{UserID: "p_A", Role: domain.RolePilot, TenantID: &tenantA}
	page, err := uc.ListTenants(context.Background(), pA, 50, 0)
	require.NoError(t, err)

	views := page.Items.([]query.TenantView)
	require.Len(t, views, 1)
	assert.Equal(t, tenantA, views[0].TenantID)
}
