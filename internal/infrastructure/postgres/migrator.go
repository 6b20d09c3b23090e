package postgres

import (
	goerrors "errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/leaselens/leaselens/pkg/errors"
)

// RunMigrations applies all pending schema migrations.  Called on startup;
// a schema that is already current is not an error.
//
// migrationsPath uses golang-migrate source syntax, e.g. "file://migrations".
func RunMigrations(dbURL, migrationsPath string) error {
	m, err := migrate.New(migrationsPath, dbURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "create migrator")
	}
	defer m.Close()

	if err := m.Up(); err != nil && !goerrors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "apply migrations")
	}
	return nil
}

// RollbackMigrations rolls the schema back by steps migrations.
func RollbackMigrations(dbURL, migrationsPath string, steps int) error {
	if steps <= 0 {
		return errors.Newf(errors.ErrCodeBadRequest, "rollback steps must be > 0, got %d", steps)
	}

	m, err := migrate.New(migrationsPath, dbURL)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "create migrator")
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil {
		if goerrors.Is(err, migrate.ErrNoChange) {
			return errors.New(errors.ErrCodeDatabaseError, "no migrations to roll back")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, fmt.Sprintf("roll back %d migration(s)", steps))
	}
	return nil
}

// MigrationStatus reports the currently applied version and whether a failed
// migration left the schema dirty.
func MigrationStatus(dbURL, migrationsPath string) (version uint, dirty bool, err error) {
	m, err := migrate.New(migrationsPath, dbURL)
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "create migrator")
	}
	defer m.Close()

	version, dirty, err = m.Version()
	if err != nil {
		if goerrors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "read migration version")
	}
	return version, dirty, nil
}
