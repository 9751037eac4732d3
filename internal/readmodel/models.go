// Package readmodel defines the query-side tables (§3) and the
// repository contract shared by the projection worker (writer), the
// query service and the auth rehydration path (readers).
package readmodel

import "time"

type Tenant struct {
	TenantID  string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	UserID       string
	TenantID     *string
	Username     string
	Email        string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ApiKey struct {
	KeyID       string
	UserID      string
	TenantID    *string
	KeyName     string
	ApiKeyHash  string
	CreatedAt   time.Time
	RevokedAt   *time.Time
	LastUsedAt  *time.Time
}

// Pagination mirrors the teacher's mpostgres.Pagination wrapper.
type Pagination struct {
	Items  any `json:"data"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

func NewPagination(limit, offset int) Pagination {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	if offset < 0 {
		offset = 0
	}

	return Pagination{Limit: limit, Offset: offset}
}

func (p *Pagination) SetItems(items any, total int) {
	p.Items = items
	p.Total = total
}
