package readmodel

import (
	"sort"
	"sync"
	"time"

	"context"
)

// MemoryRepository is an in-process Repository used by unit tests across
// the command, query and projection packages.
type MemoryRepository struct {
	mu      sync.Mutex
	tenants map[string]Tenant
	users   map[string]User
	keys    map[string]ApiKey
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tenants: map[string]Tenant{},
		users:   map[string]User{},
		keys:    map[string]ApiKey{},
	}
}

func (r *MemoryRepository) UpsertTenant(_ context.Context, t Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tenants[t.TenantID]
	if ok {
		t.CreatedAt = existing.CreatedAt
	} else {
		t.CreatedAt = time.Now().UTC()
	}

	t.UpdatedAt = time.Now().UTC()
	r.tenants[t.TenantID] = t

	return nil
}

func (r *MemoryRepository) UpsertUser(_ context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[u.UserID]
	if ok {
		u.CreatedAt = existing.CreatedAt
	} else {
		u.CreatedAt = time.Now().UTC()
	}

	u.UpdatedAt = time.Now().UTC()
	r.users[u.UserID] = u

	return nil
}

func (r *MemoryRepository) UpdateUserPasswordHash(_ context.Context, userID, newHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil
	}

	u.PasswordHash = newHash
	u.UpdatedAt = at
	r.users[userID] = u

	return nil
}

func (r *MemoryRepository) UpsertApiKey(_ context.Context, k ApiKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.keys[k.KeyID]; ok {
		k.RevokedAt = existing.RevokedAt
	}

	r.keys[k.KeyID] = k

	return nil
}

func (r *MemoryRepository) RevokeApiKey(_ context.Context, keyID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[keyID]
	if !ok {
		return nil
	}

	if k.RevokedAt == nil {
		t := at
		k.RevokedAt = &t
		r.keys[keyID] = k
	}

	return nil
}

func (r *MemoryRepository) CountUsers(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.users), nil
}

func (r *MemoryRepository) UsernameOrEmailTaken(_ context.Context, username, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}

	return false, nil
}

func (r *MemoryRepository) GetUser(_ context.Context, userID string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, nil
	}

	return &u, nil
}

func (r *MemoryRepository) ListUsers(_ context.Context, tenantID *string, limit, offset int) ([]User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []User

	for _, u := range r.users {
		if tenantID != nil {
			if u.TenantID == nil || *u.TenantID != *tenantID {
				continue
			}
		}

		matched = append(matched, u)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })

	total := len(matched)

	return paginateUsers(matched, limit, offset), total, nil
}

func paginateUsers(items []User, limit, offset int) []User {
	if offset >= len(items) {
		return nil
	}

	end := offset + limit
	if end > len(items) {
		end = len(items)
	}

	return items[offset:end]
}

func (r *MemoryRepository) GetTenant(_ context.Context, tenantID string) (*Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tenants[tenantID]
	if !ok {
		return nil, nil
	}

	return &t, nil
}

func (r *MemoryRepository) ListTenants(_ context.Context, onlyTenantID *string, limit, offset int) ([]Tenant, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []Tenant

	for _, t := range r.tenants {
		if onlyTenantID != nil && t.TenantID != *onlyTenantID {
			continue
		}

		matched = append(matched, t)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })

	total := len(matched)

	if offset >= len(matched) {
		return nil, total, nil
	}

	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	return matched[offset:end], total, nil
}

func (r *MemoryRepository) CountActiveApiKeys(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0

	for _, k := range r.keys {
		if k.UserID == userID && k.RevokedAt == nil {
			n++
		}
	}

	return n, nil
}

func (r *MemoryRepository) FindUserByApiKeyHash(_ context.Context, hash string) (*User, *ApiKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range r.keys {
		if k.ApiKeyHash == hash && k.RevokedAt == nil {
			u, ok := r.users[k.UserID]
			if !ok {
				return nil, nil, nil
			}

			kk := k

			return &u, &kk, nil
		}
	}

	return nil, nil, nil
}

func (r *MemoryRepository) GetApiKeyPlainLookupHash(_ context.Context, keyID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[keyID]
	if !ok {
		return "", nil
	}

	return k.ApiKeyHash, nil
}
