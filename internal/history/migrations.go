package history

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/files/*.sql
var migrationFiles embed.FS

// checkDBMigrationStatus verifies that the database schema is up-to-date.
func checkDBMigrationStatus(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("%w: creating migrate instance: %v", errMigrate, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("%w: database has no schema version", errMigrate)
		}
		return fmt.Errorf("%w: reading database version: %v", errMigrate, err)
	}
	if dirty {
		return fmt.Errorf("%w: database is dirty at version %d", errMigrate, version)
	}

	sourceDriver, err := iofs.New(migrationFiles, "migrations/files")
	if err != nil {
		return fmt.Errorf("%w: reading migration files: %v", errMigrate, err)
	}
	defer sourceDriver.Close()

	latest, err := getLatestVersion(sourceDriver)
	if err != nil {
		return fmt.Errorf("%w: determining latest version: %v", errMigrate, err)
	}

	switch {
	case version < latest:
		return fmt.Errorf("%w: database is at version %d but latest is %d", errMigrate, version, latest)
	case version > latest:
		return fmt.Errorf("%w: database version %d is ahead of binary version %d", errMigrate, version, latest)
	}
	return nil
}

// migrateUp runs all pending migrations to bring the database to the latest version.
func migrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("%w: creating migrate instance: %v", errMigrate, err)
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("%w: applying migrations: %v", errMigrate, err)
	}
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationFiles, "migrations/files")
	if err != nil {
		return nil, fmt.Errorf("creating source driver: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("creating database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return m, nil
}

func getLatestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}
	latest := version
	for {
		next, err := src.Next(latest)
		if err != nil {
			break
		}
		latest = next
	}
	return latest, nil
}
