// Package platform bootstraps connections to the three backing services
// (Postgres, RabbitMQ, Redis) and runs schema migrations, grounded on the
// teacher's common/mpostgres and common/mzap connection-opening
// conventions but adapted to pgx stdlib + golang-migrate.
package platform

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" //nolint:blank-imports // registers the "pgx" sql driver

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" //nolint:blank-imports // registers the postgres migration driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// OpenPostgres opens a *sql.DB over the pgx stdlib driver. Caller owns
// closing it.
func OpenPostgres(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("platform: open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("platform: ping postgres: %w", err)
	}

	return db, nil
}

// Migrate runs every embedded migration up to the latest version. Returns
// nil when the schema is already current (migrate.ErrNoChange).
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("platform: load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("platform: init migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("platform: run migrations: %w", err)
	}

	srcErr, dbErr := m.Close()
	if srcErr != nil {
		return fmt.Errorf("platform: close migration source: %w", srcErr)
	}

	if dbErr != nil {
		return fmt.Errorf("platform: close migration db: %w", dbErr)
	}

	return nil
}
