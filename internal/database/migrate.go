package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/seuros/raporta/internal/logging"
)

//go:embed migrations/*.sql
var Migrations embed.FS

// Migrate applies all pending schema migrations against the given database URL.
func Migrate(databaseURL string) error {
	source, err := iofs.New(Migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logging.L().Info("schema up to date")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	logging.L().Info("schema migrated")
	return nil
}
