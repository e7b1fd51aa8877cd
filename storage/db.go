package storage

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists tracking results in a SQLite database
type Store struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

// Open opens (or creates) database at path and applies pending migrations.
// Use ":memory:" for a throwaway database.
func Open(path string, logger logrus.FieldLogger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open database %s", path)
	}
	// SQLite has a single writer; one connection also keeps ":memory:" databases alive
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "can't enable foreign keys")
	}
	store := &Store{
		db:     db,
		logger: logger,
	}
	if err := store.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database
func (store *Store) Close() error {
	return store.db.Close()
}

// MigrateUp runs all pending migrations up to the latest version
func (store *Store) MigrateUp() error {
	m, err := store.newMigrate()
	if err != nil {
		return err
	}
	// Closing m would close the underlying DB connection
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migration up failed")
	}
	return nil
}

// MigrateVersion returns the current migration version and dirty state.
// Returns 0, false, nil if no migrations have been applied yet.
func (store *Store) MigrateVersion() (uint, bool, error) {
	m, err := store.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (store *Store) newMigrate() (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "can't read embedded migrations")
	}
	driver, err := sqlite.WithInstance(store.db, &sqlite.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "can't create sqlite migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, errors.Wrap(err, "can't create migrate instance")
	}
	m.Log = &migrateLogger{logger: store.logger}
	return m, nil
}

// migrateLogger implements migrate.Logger interface
type migrateLogger struct {
	logger logrus.FieldLogger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.WithField("component", "migrate").Debugf(format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
