package readmodel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// PostgresRepository is the read-model implementation, grounded on the
// teacher's account.postgresql.go repository shape: raw parameterized SQL
// for single-row operations, squirrel for list queries.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *PostgresRepository) UpsertTenant(ctx context.Context, t Tenant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tenants (tenant_id, name, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (tenant_id) DO UPDATE SET name = EXCLUDED.name, updated_at = now()`,
		t.TenantID, t.Name)

	return err
}

func (r *PostgresRepository) UpsertUser(ctx context.Context, u User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (user_id, tenant_id, username, email, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			password_hash = EXCLUDED.password_hash,
			updated_at = now()`,
		u.UserID, u.TenantID, u.Username, u.Email, u.Role, u.PasswordHash)

	return err
}

func (r *PostgresRepository) UpdateUserPasswordHash(ctx context.Context, userID, newHash string, _ time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE user_id = $1`,
		userID, newHash)

	return err
}

func (r *PostgresRepository) UpsertApiKey(ctx context.Context, k ApiKey) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_api_keys (key_id, user_id, tenant_id, key_name, api_key_hash, created_at, revoked_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, NULL)
		ON CONFLICT (key_id) DO UPDATE SET
			key_name = EXCLUDED.key_name,
			api_key_hash = EXCLUDED.api_key_hash`,
		k.KeyID, k.UserID, k.TenantID, k.KeyName, k.ApiKeyHash, k.CreatedAt)

	return err
}

// RevokeApiKey is the canonical idempotent upsert named in §4.7: repeated
// delivery must not clobber an earlier revocation timestamp.
func (r *PostgresRepository) RevokeApiKey(ctx context.Context, keyID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_api_keys SET revoked_at = COALESCE(revoked_at, $2) WHERE key_id = $1`,
		keyID, at)

	return err
}

func (r *PostgresRepository) CountUsers(ctx context.Context) (int, error) {
	var n int

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)

	return n, err
}

func (r *PostgresRepository) UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, error) {
	var n int

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username = $1 OR email = $2`, username, email).Scan(&n)

	return n > 0, err
}

func (r *PostgresRepository) GetUser(ctx context.Context, userID string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, tenant_id, username, email, role, password_hash, created_at, updated_at
		FROM users WHERE user_id = $1`, userID)

	return scanUser(row)
}

func (r *PostgresRepository) ListUsers(ctx context.Context, tenantID *string, limit, offset int) ([]User, int, error) {
	builder := psql.Select("user_id", "tenant_id", "username", "email", "role", "password_hash", "created_at", "updated_at").
		From("users").OrderBy("created_at ASC").Limit(uint64(limit)).Offset(uint64(offset))
	countBuilder := psql.Select("COUNT(*)").From("users")

	if tenantID != nil {
		builder = builder.Where(sq.Eq{"tenant_id": *tenantID})
		countBuilder = countBuilder.Where(sq.Eq{"tenant_id": *tenantID})
	}

	total, err := r.scanCount(ctx, countBuilder)
	if err != nil {
		return nil, 0, err
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []User

	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			return nil, 0, err
		}

		out = append(out, *u)
	}

	return out, total, rows.Err()
}

func (r *PostgresRepository) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT tenant_id, name, created_at, updated_at FROM tenants WHERE tenant_id = $1`, tenantID)

	var t Tenant
	if err := row.Scan(&t.TenantID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &t, nil
}

func (r *PostgresRepository) ListTenants(ctx context.Context, onlyTenantID *string, limit, offset int) ([]Tenant, int, error) {
	builder := psql.Select("tenant_id", "name", "created_at", "updated_at").From("tenants").
		OrderBy("created_at ASC").Limit(uint64(limit)).Offset(uint64(offset))
	countBuilder := psql.Select("COUNT(*)").From("tenants")

	if onlyTenantID != nil {
		builder = builder.Where(sq.Eq{"tenant_id": *onlyTenantID})
		countBuilder = countBuilder.Where(sq.Eq{"tenant_id": *onlyTenantID})
	}

	total, err := r.scanCount(ctx, countBuilder)
	if err != nil {
		return nil, 0, err
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Tenant

	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.TenantID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}

		out = append(out, t)
	}

	return out, total, rows.Err()
}

func (r *PostgresRepository) CountActiveApiKeys(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_api_keys WHERE user_id = $1 AND revoked_at IS NULL`, userID).Scan(&n)

	return n, err
}

func (r *PostgresRepository) FindUserByApiKeyHash(ctx context.Context, hash string) (*User, *ApiKey, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT k.key_id, k.user_id, k.tenant_id, k.key_name, k.api_key_hash, k.created_at, k.revoked_at, k.last_used_at,
			u.user_id, u.tenant_id, u.username, u.email, u.role, u.password_hash, u.created_at, u.updated_at
		FROM user_api_keys k JOIN users u ON u.user_id = k.user_id
		WHERE k.api_key_hash = $1 AND k.revoked_at IS NULL`, hash)

	var k ApiKey
	var u User

	err := row.Scan(&k.KeyID, &k.UserID, &k.TenantID, &k.KeyName, &k.ApiKeyHash, &k.CreatedAt, &k.RevokedAt, &k.LastUsedAt,
		&u.UserID, &u.TenantID, &u.Username, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}

		return nil, nil, err
	}

	return &u, &k, nil
}

func (r *PostgresRepository) GetApiKeyPlainLookupHash(ctx context.Context, keyID string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT api_key_hash FROM user_api_keys WHERE key_id = $1`, keyID).Scan(&hash)

	return hash, err
}

func (r *PostgresRepository) scanCount(ctx context.Context, b sq.SelectBuilder) (int, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}

	var n int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&n)

	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User

	if err := row.Scan(&u.UserID, &u.TenantID, &u.Username, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("readmodel: scan user: %w", err)
	}

	return &u, nil
}

func scanUserRows(rows *sql.Rows) (*User, error) {
	return scanUser(rows)
}
