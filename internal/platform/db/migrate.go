package db

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ApplyMigrations applies any pending embedded migrations to the database
// behind dsn. It returns the schema version after the run.
func ApplyMigrations(dsn string) (uint, error) {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("platform/db: migration source: %w", err)
	}

	instance, err := migrate.NewWithSourceInstance("iofs", source, MigrateURL(dsn))
	if err != nil {
		return 0, fmt.Errorf("platform/db: migrate init: %w", err)
	}
	defer func() {
		_, _ = instance.Close()
	}()

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("platform/db: migrate up: %w", err)
	}

	version, _, err := instance.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("platform/db: migrate version: %w", err)
	}
	return version, nil
}

// MigrateURL rewrites a postgres DSN to the scheme registered by the pgx/v5
// migrate driver.
func MigrateURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}
