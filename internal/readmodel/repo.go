package readmodel

import (
	"context"
	"time"
)

// Writer is the contract the projection worker writes through. Each call
// is a single statement run directly on the database; no transaction
// spans several calls. Every write is an upsert: applying it twice must
// be a no-op the second time (idempotence rule, spec.md §4.7).
type Writer interface {
	UpsertTenant(ctx context.Context, t Tenant) error
	UpsertUser(ctx context.Context, u User) error
	UpdateUserPasswordHash(ctx context.Context, userID, newHash string, at time.Time) error
	UpsertApiKey(ctx context.Context, k ApiKey) error
	RevokeApiKey(ctx context.Context, keyID string, at time.Time) error
}

// Reader is the contract the query service, command handlers (uniqueness
// checks, bootstrap checks) and the auth rehydration path depend on.
type Reader interface {
	CountUsers(ctx context.Context) (int, error)
	UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, error)

	GetUser(ctx context.Context, userID string) (*User, error)
	ListUsers(ctx context.Context, tenantID *string, limit, offset int) ([]User, int, error)

	GetTenant(ctx context.Context, tenantID string) (*Tenant, error)
	ListTenants(ctx context.Context, onlyTenantID *string, limit, offset int) ([]Tenant, int, error)

	CountActiveApiKeys(ctx context.Context, userID string) (int, error)
	FindUserByApiKeyHash(ctx context.Context, hash string) (*User, *ApiKey, error)
	GetApiKeyPlainLookupHash(ctx context.Context, keyID string) (string, error)
}

// Repository is the full contract, implemented by both PostgresRepository
// and MemoryRepository.
type Repository interface {
	Writer
	Reader
}
