package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aeroframe-io/core/internal/auth"
	"github.com/aeroframe-io/core/internal/domain"
)

func str(s string) *string { return &s }

func TestAuthorize_SelfOrTenantAdmin(t *testing.T) {
	tenantA := "tenant-a"
	tenantB := "tenant-b"

	platformAdmin := auth.Principal{UserID: "pa", Role: domain.RolePlatformAdmin}
	tenantAdminA := auth.Principal{UserID: "ta_a", Role: domain.RoleTenantAdmin, TenantID: &tenantA}
	pilotA := auth.Principal{UserID: "p_a", Role: domain.RolePilot, TenantID: &tenantA}
	pilotB := auth.Principal{UserID: "p_b", Role: domain.RolePilot, TenantID: &tenantB}

	req := auth.Requirement{Kind: auth.SelfOrTenantAdmin, TargetUserID: "p_a", TargetTenantID: &tenantA}

	assert.True(t, auth.Authorize(platformAdmin, req))
	assert.True(t, auth.Authorize(tenantAdminA, req))
	assert.True(t, auth.Authorize(pilotA, req)) // self
	assert.False(t, auth.Authorize(pilotB, req))
}

func TestAuthorize_PlatformAdminOnly(t *testing.T) {
	tenantA := "tenant-a"
	tenantAdmin := auth.Principal{UserID: "ta", Role: domain.RoleTenantAdmin, TenantID: &tenantA}
	platformAdmin := auth.Principal{UserID: "pa", Role: domain.RolePlatformAdmin}

	req := auth.Requirement{Kind: auth.PlatformAdminOnly}

	assert.False(t, auth.Authorize(tenantAdmin, req))
	assert.True(t, auth.Authorize(platformAdmin, req))
}

func TestHashPassword_RoundTrip(t *testing.T) {
	encoded, err := auth.HashPassword("hunter2")
	assert.NoError(t, err)

	ok, err := auth.VerifyPassword("hunter2", encoded)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = auth.VerifyPassword("wrong", encoded)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateApiKey_Unique(t *testing.T) {
	p1, id1, err := auth.GenerateApiKey()
	assert.NoError(t, err)

	p2, id2, err := auth.GenerateApiKey()
	assert.NoError(t, err)

	assert.NotEqual(t, p1, p2)
	assert.NotEqual(t, id1, id2)
	assert.Contains(t, id1, "key_")
}
