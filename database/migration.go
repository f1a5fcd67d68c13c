package database

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"

	"github.com/mbolis/leadform/log"
)

//go:embed migrations
var dbMigrations embed.FS

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(dbMigrations, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "migrations source")
	}

	dst, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "migrations target")
	}

	return migrate.NewWithInstance("iofs", src, "sqlite3", dst)
}

func migrateDB(db *sql.DB) error {
	migrator, err := newMigrator(db)
	if err != nil {
		return err
	}

	err = migrator.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		// db already up to date
	case err != nil:
		return errors.Wrap(err, "migrate up")
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return errors.Wrap(err, "schema version")
	}
	if dirty {
		return errors.Errorf("schema version %d is dirty", version)
	}
	log.WithFields(log.Fields{"version": version}).Debug("database.migrated")
	return nil
}

// SchemaVersion reports the last migration applied to db.
func SchemaVersion(db *sql.DB) (uint, error) {
	migrator, err := newMigrator(db)
	if err != nil {
		return 0, err
	}
	version, _, err := migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	return version, errors.Wrap(err, "schema version")
}
