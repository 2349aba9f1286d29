package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver "pgx"
	"go.uber.org/zap"
)

// RunMigrations applies the pending migrations in migrationsPath to the
// database at url. golang-migrate needs a database/sql handle, so one is
// opened for the duration of the call. A schema left dirty by an earlier
// failed migration is reported instead of being migrated further.
func RunMigrations(url, migrationsPath string, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", url)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer sqlDB.Close()

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("Failed to close migrator", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
		}
	}()

	before, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		before = 0
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	case dirty:
		return fmt.Errorf("schema version %d is dirty; fix it by hand and force the version", before)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("Schema is up to date", zap.Uint("version", before))
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	after, _, _ := m.Version()
	logger.Info("Applied migrations",
		zap.Uint("from_version", before),
		zap.Uint("to_version", after))
	return nil
}
