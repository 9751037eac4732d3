package domain

import (
	"encoding/json"
	"time"

	"github.com/aeroframe-io/core/internal/apperr"
)

// ApiKeyState is one entry in a User's api_keys map.
type ApiKeyState struct {
	Hash      string
	Name      string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// User is the reconstructed in-memory state of a user aggregate. It is
// transient: built per command from the stream via Fold, discarded after
// the candidate events are appended.
type User struct {
	ID           string
	Username     string
	Email        string
	Role         Role
	TenantID     *string
	PasswordHash string
	ApiKeys      map[string]*ApiKeyState
	Version      uint64
}

// EmptyUser returns the zero-value aggregate for id, ready to be folded.
func EmptyUser(id string) *User {
	return &User{ID: id, ApiKeys: map[string]*ApiKeyState{}}
}

// Exists reports whether any event has been folded into this aggregate.
func (u *User) Exists() bool { return u.Version > 0 }

// ApiKeyCount implements invariant I3: the number of non-revoked keys.
func (u *User) ApiKeyCount() int {
	n := 0

	for _, k := range u.ApiKeys {
		if k.RevokedAt == nil {
			n++
		}
	}

	return n
}

// Apply is the pure fold: applying the same event twice from the same
// starting state yields the same resulting state (P3).
func (u *User) Apply(ev StoredEvent) error {
	switch ev.Type {
	case EventUserRegistered:
		var p UserRegisteredPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}

		u.Username = p.Username
		u.Email = p.Email
		u.Role = p.Role
		u.TenantID = p.TenantID
		u.PasswordHash = p.PasswordHash
	case EventPasswordChanged:
		var p PasswordChangedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}

		u.PasswordHash = p.NewPasswordHash
	case EventApiKeyGenerated:
		var p ApiKeyGeneratedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}

		u.ApiKeys[p.KeyID] = &ApiKeyState{Hash: p.Hash, Name: p.Name, CreatedAt: p.CreatedAt}
	case EventApiKeyRevoked:
		var p ApiKeyRevokedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}

		if k, ok := u.ApiKeys[p.KeyID]; ok && k.RevokedAt == nil {
			now := ev.Timestamp
			k.RevokedAt = &now
		}
	}

	u.Version = ev.Sequence

	return nil
}

// FoldUser replays stream events from an empty aggregate. Used by the
// command handlers (load before execute). The auth rehydration path in
// internal/authn does not call it: it resolves a key hash against the
// read model only and does not replay the user's stream.
func FoldUser(id string, events []StoredEvent) (*User, error) {
	u := EmptyUser(id)

	for _, ev := range events {
		if err := u.Apply(ev); err != nil {
			return nil, err
		}
	}

	return u, nil
}

// RegisterUser validates preconditions and invariant I1 and returns the
// candidate UserRegistered event without building or mutating an
// aggregate. The caller appends it to the event store.
func RegisterUser(id, username, email, passwordHash string, role Role, tenantID *string) (NewEvent, error) {
	if username == "" || email == "" {
		return NewEvent{}, apperr.Validation("username and email are required", nil)
	}

	if !role.Valid() {
		return NewEvent{}, apperr.Validation("unknown role", nil)
	}

	// Invariant I1: role = PlatformAdmin <=> tenant_id = null.
	if role == RolePlatformAdmin && tenantID != nil {
		return NewEvent{}, apperr.Validation("platform admin must not have a tenant", apperr.ErrInvariantViolation)
	}

	if role != RolePlatformAdmin && tenantID == nil {
		return NewEvent{}, apperr.Validation("non platform-admin users require a tenant", apperr.ErrInvariantViolation)
	}

	payload := UserRegisteredPayload{
		Username:     username,
		Email:        email,
		Role:         role,
		TenantID:     tenantID,
		PasswordHash: passwordHash,
	}

	return NewEvent{Type: EventUserRegistered, Payload: encode(payload), TenantID: tenantID}, nil
}

// ChangePassword requires the aggregate to already exist.
func (u *User) ChangePassword(newHash string) (NewEvent, error) {
	if !u.Exists() {
		return NewEvent{}, apperr.NotFound("user not found")
	}

	return NewEvent{Type: EventPasswordChanged, Payload: encode(PasswordChangedPayload{NewPasswordHash: newHash}), TenantID: u.TenantID}, nil
}

// GenerateApiKey requires the aggregate to exist and keyID to be unused.
func (u *User) GenerateApiKey(keyID, name, hash string, now time.Time) (NewEvent, error) {
	if !u.Exists() {
		return NewEvent{}, apperr.NotFound("user not found")
	}

	if _, ok := u.ApiKeys[keyID]; ok {
		return NewEvent{}, apperr.Conflict("api key id already in use", apperr.ErrApiKeyAlreadyUsed)
	}

	payload := ApiKeyGeneratedPayload{KeyID: keyID, Hash: hash, Name: name, CreatedAt: now}

	return NewEvent{Type: EventApiKeyGenerated, Payload: encode(payload), TenantID: u.TenantID}, nil
}

// RevokeApiKey requires the key to be present and not already revoked.
func (u *User) RevokeApiKey(keyID string) (NewEvent, error) {
	k, ok := u.ApiKeys[keyID]
	if !ok {
		return NewEvent{}, apperr.NotFound("api key not found")
	}

	if k.RevokedAt != nil {
		return NewEvent{}, apperr.Conflict("api key already revoked", apperr.ErrApiKeyRevoked)
	}

	return NewEvent{Type: EventApiKeyRevoked, Payload: encode(ApiKeyRevokedPayload{KeyID: keyID}), TenantID: u.TenantID}, nil
}
