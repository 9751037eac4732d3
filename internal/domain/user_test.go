package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroframe-io/core/internal/domain"
)

func tenantID(s string) *string { return &s }

// R1: register -> events(user) has length 1 with UserRegistered; load
// reconstructs the same {username,email,role,tenant_id}.
func TestRegisterUser_RoundTrip(t *testing.T) {
	ev, err := domain.RegisterUser("u1", "pilot1", "pilot1@x.test", "hash", domain.RolePilot, tenantID("tenant-a"))
	require.NoError(t, err)
	assert.Equal(t, domain.EventUserRegistered, ev.Type)

	stored := domain.StoredEvent{AggregateID: "u1", Sequence: 1, Type: ev.Type, Payload: ev.Payload, Timestamp: time.Now()}

	u, err := domain.FoldUser("u1", []domain.StoredEvent{stored})
	require.NoError(t, err)
	assert.Equal(t, "pilot1", u.Username)
	assert.Equal(t, "pilot1@x.test", u.Email)
	assert.Equal(t, domain.RolePilot, u.Role)
	assert.Equal(t, "tenant-a", *u.TenantID)
	assert.Equal(t, uint64(1), u.Version)
}

// P4: role = PlatformAdmin <=> tenant_id = null, enforced at registration.
func TestRegisterUser_InvariantI1(t *testing.T) {
	_, err := domain.RegisterUser("u1", "a", "a@x.test", "hash", domain.RolePlatformAdmin, tenantID("t"))
	assert.Error(t, err)

	_, err = domain.RegisterUser("u1", "a", "a@x.test", "hash", domain.RoleTenantAdmin, nil)
	assert.Error(t, err)

	_, err = domain.RegisterUser("u1", "a", "a@x.test", "hash", domain.RolePlatformAdmin, nil)
	assert.NoError(t, err)
}

// R2: generate -> revoke -> api_key_count() = 0.
func TestApiKeyLifecycle(t *testing.T) {
	regEv, err := domain.RegisterUser("u1", "a", "a@x.test", "hash", domain.RolePlatformAdmin, nil)
	require.NoError(t, err)

	events := []domain.StoredEvent{
		{AggregateID: "u1", Sequence: 1, Type: regEv.Type, Payload: regEv.Payload, Timestamp: time.Now()},
	}

	u, err := domain.FoldUser("u1", events)
	require.NoError(t, err)

	keyID := "key_" + uuid.NewString()[:8]

	genEv, err := u.GenerateApiKey(keyID, "first", "keyhash", time.Now())
	require.NoError(t, err)

	events = append(events, domain.StoredEvent{AggregateID: "u1", Sequence: 2, Type: genEv.Type, Payload: genEv.Payload, Timestamp: time.Now()})
	u, err = domain.FoldUser("u1", events)
	require.NoError(t, err)
	assert.Equal(t, 1, u.ApiKeyCount())

	// duplicate key id rejected
	_, err = u.GenerateApiKey(keyID, "dup", "h2", time.Now())
	assert.Error(t, err)

	revEv, err := u.RevokeApiKey(keyID)
	require.NoError(t, err)

	events = append(events, domain.StoredEvent{AggregateID: "u1", Sequence: 3, Type: revEv.Type, Payload: revEv.Payload, Timestamp: time.Now()})
	u, err = domain.FoldUser("u1", events)
	require.NoError(t, err)
	assert.Equal(t, 0, u.ApiKeyCount())

	// revoking again fails
	_, err = u.RevokeApiKey(keyID)
	assert.Error(t, err)
}

// P3: folding the same events twice yields equal state.
func TestFold_Idempotent(t *testing.T) {
	regEv, err := domain.RegisterUser("u1", "a", "a@x.test", "hash", domain.RolePlatformAdmin, nil)
	require.NoError(t, err)

	events := []domain.StoredEvent{{AggregateID: "u1", Sequence: 1, Type: regEv.Type, Payload: regEv.Payload, Timestamp: time.Now()}}

	u1, err := domain.FoldUser("u1", events)
	require.NoError(t, err)

	u2, err := domain.FoldUser("u1", events)
	require.NoError(t, err)

	assert.Equal(t, u1, u2)
}
