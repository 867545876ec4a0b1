package repository

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending versioned migrations, for deployments that
// want an explicit schema history instead of gorm.AutoMigrate (invoked by
// the "hookrelay migrate" CLI subcommand).
func Migrate(sqlDB *sql.DB, dbType string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}

	var m *migrate.Migrate

	switch dbType {
	case "postgres", "postgresql":
		pgDriver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
		if err != nil {
			return fmt.Errorf("init postgres migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", source, "postgres", pgDriver)
		if err != nil {
			return fmt.Errorf("init migrate: %w", err)
		}
	case "sqlite", "", "mysql":
		// sqlite is the default local/dev store; mysql deployments are
		// expected to run gorm.AutoMigrate instead until a dedicated
		// mysql migration set exists.
		sqliteDriver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
		if err != nil {
			return fmt.Errorf("init sqlite migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", source, "sqlite", sqliteDriver)
		if err != nil {
			return fmt.Errorf("init migrate: %w", err)
		}
	default:
		return fmt.Errorf("unsupported database type for migrate: %s", dbType)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
