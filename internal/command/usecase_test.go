package command_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroframe-io/core/internal/apperr"
	"github.com/aeroframe-io/core/internal/auth"
	"github.com/aeroframe-io/core/internal/authcache"
	"github.com/aeroframe-io/core/internal/command"
	"github.com/aeroframe-io/core/internal/domain"
	"github.com/aeroframe-io/core/internal/eventbus"
	"github.com/aeroframe-io/core/internal/eventstore"
	"github.com/aeroframe-io/core/internal/mlog"
	"github.com/aeroframe-io/core/internal/readmodel"
)

func newTestUseCase() (*command.UseCase, *readmodel.MemoryRepository, *eventbus.MemoryBus) {
	store := eventstore.NewMemoryStore()
	bus := eventbus.NewMemoryBus()
	cache := authcache.NewMemoryCache()
	rm := readmodel.NewMemoryRepository()

	uc := command.NewUseCase(store, bus, cache, rm, &mlog.NoneLogger{}, []byte("test-pepper"), time.Hour)

	return uc, rm, bus
}

// S1 — Bootstrap.
func TestScenario_Bootstrap(t *testing.T) {
	uc, rm, _ := newTestUseCase()
	ctx := context.Background()

	userID, err := uc.RegisterUser(ctx, nil, command.RegisterUserInput{
		Username: "admin", Email: "a@x.test", PasswordPlaintext: "p", InitialRole: domain.RolePlatformAdmin,
	})
	require.NoError(t, err)

	// projection hasn't run in this test, simulate the read model it
	// would have written so subsequent bootstrap checks observe it.
	require.NoError(t, rm.UpsertUser(ctx, readmodel.User{UserID: userID, Username: "admin", Email: "a@x.test", Role: string(domain.RolePlatformAdmin)}))

	_, _, err = uc.GenerateApiKey(ctx, nil, userID, "boot")
	require.NoError(t, err)

	_, err = uc.RegisterUser(ctx, nil, command.RegisterUserInput{
		Username: "admin2", Email: "b@x.test", PasswordPlaintext: "p", InitialRole: domain.RolePlatformAdmin,
	})
	assert.Error(t, err)

	ae := apperr.Translate(err)
	assert.Equal(t, apperr.CategoryForbidden, ae.Category)
}

// S2 — Tenant admin scoping (command-path portion: cross-tenant register
// and cross-tenant api-key generation are forbidden).
func TestScenario_TenantAdminScoping(t *testing.T) {
	uc, rm, _ := newTestUseCase()
	ctx := context.Background()

	tenantA := "tenant-a"
	tenantB := "tenant-b"

	require.NoError(t, rm.UpsertTenant(ctx, readmodel.Tenant{TenantID: tenantA, Name: "A"}))
	require.NoError(t, rm.UpsertTenant(ctx, readmodel.Tenant{TenantID: tenantB, Name: "B"}))

	taAID, err := uc.RegisterUser(ctx, nil, command.RegisterUserInput{Username: "bootstrap", Email: "boot@x.test", PasswordPlaintext: "p", InitialRole: domain.RolePlatformAdmin})
	require.NoError(t, err)
	require.NoError(t, rm.UpsertUser(ctx, readmodel.User{UserID: taAID, Username: "bootstrap", Email: "boot@x.test", Role: string(domain.RolePlatformAdmin)}))

	platformAdmin := &auth.Principal{UserID: taAID, Role: domain.RolePlatformAdmin}

	userBID, err := uc.RegisterUser(ctx, platformAdmin, command.RegisterUserInput{Username: "p_b", Email: "pb@x.test", PasswordPlaintext: "p", InitialRole: domain.RolePilot, TenantID: &tenantB})
	require.NoError(t, err)
	require.NoError(t, rm.UpsertUser(ctx, readmodel.User{UserID: userBID, Username: "p_b", Email: "pb@x.test", Role: string(domain.RolePilot), TenantID: &tenantB}))

	taAUserID, err := uc.RegisterUser(ctx, platformAdmin, command.RegisterUserInput{Username: "ta_a", Email: "taa@x.test", PasswordPlaintext: "p", InitialRole: domain.RoleTenantAdmin, TenantID: &tenantA})
	require.NoError(t, err)

	tenantAdminA := &auth.Principal{UserID: taAUserID, Role: domain.RoleTenantAdmin, TenantID: &tenantA}

	// ta_A registering into tenant B -> forbidden
	_, err = uc.RegisterUser(ctx, tenantAdminA, command.RegisterUserInput{Username: "x", Email: "x@x.test", PasswordPlaintext: "p", InitialRole: domain.RolePilot, TenantID: &tenantB})
	assert.Error(t, err)
	assert.Equal(t, apperr.CategoryForbidden, apperr.Translate(err).Category)

	// ta_A generating an api key for p_B (already has zero keys, but
	// principal is authenticated so the bootstrap exception doesn't
	// apply and SelfOrTenantAdmin fails across tenants).
	_, _, err = uc.GenerateApiKey(ctx, tenantAdminA, userBID, "x")
	assert.Error(t, err)
	assert.Equal(t, apperr.CategoryForbidden, apperr.Translate(err).Category)
}

// S3 — Optimistic concurrency, handler side: two GenerateApiKey calls in
// sequence, each loading the version the previous one committed, both
// succeed and both keys count. The concurrent conflict-and-retry case is
// covered at the store level in eventstore's memory_test.go.
func TestScenario_SequentialApiKeyGeneration(t *testing.T) {
	uc, rm, _ := newTestUseCase()
	ctx := context.Background()

	userID, err := uc.RegisterUser(ctx, nil, command.RegisterUserInput{Username: "admin", Email: "a@x.test", PasswordPlaintext: "p", InitialRole: domain.RolePlatformAdmin})
	require.NoError(t, err)
	require.NoError(t, rm.UpsertUser(ctx, readmodel.User{UserID: userID, Username: "admin", Email: "a@x.test", Role: string(domain.RolePlatformAdmin)}))

	platformAdmin := &auth.Principal{UserID: userID, Role: domain.RolePlatformAdmin}

	_, _, err = uc.GenerateApiKey(ctx, platformAdmin, userID, "first")
	require.NoError(t, err)

	_, _, err = uc.GenerateApiKey(ctx, platformAdmin, userID, "second")
	require.NoError(t, err)

	events, err := uc.Store.Load(ctx, userID)
	require.NoError(t, err)

	u, err := domain.FoldUser(userID, events)
	require.NoError(t, err)
	assert.Equal(t, 2, u.ApiKeyCount())
}
