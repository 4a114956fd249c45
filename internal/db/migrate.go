package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Schema changes ship as numbered *.up.sql / *.down.sql pairs applied through
// golang-migrate. Production reads them from the embedded filesystem; tests
// hand in their own fs.FS.

// newMigrate wires the migrations filesystem and the open sqlite handle into
// a migrate instance.
//
// The instance is deliberately never closed: closing it would take the shared
// *sql.DB down with it.
func (db *DB) newMigrate(migrationsFS fs.FS) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations source: %w", err)
	}

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

// migrateLogger routes golang-migrate's output through the standard logger.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// MigrateUp applies every pending migration. Running it against an up-to-date
// database is a no-op.
func (db *DB) MigrateUp(migrationsFS fs.FS) error {
	m, err := db.newMigrate(migrationsFS)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration.
func (db *DB) MigrateDown(migrationsFS fs.FS) error {
	m, err := db.newMigrate(migrationsFS)
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateTo moves the schema up or down until it sits at version.
func (db *DB) MigrateTo(migrationsFS fs.FS, version uint) error {
	m, err := db.newMigrate(migrationsFS)
	if err != nil {
		return err
	}
	if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	return nil
}

// MigrateForce stamps the schema version without running anything. It exists
// to recover from a dirty database and has no place in normal operation.
func (db *DB) MigrateForce(migrationsFS fs.FS, version int) error {
	m, err := db.newMigrate(migrationsFS)
	if err != nil {
		return err
	}
	if err := m.Force(version); err != nil {
		return fmt.Errorf("force migration to version %d failed: %w", version, err)
	}
	return nil
}

// MigrateVersion reports the schema version and dirty flag. A database with
// no applied migrations reports 0, false, nil.
func (db *DB) MigrateVersion(migrationsFS fs.FS) (version uint, dirty bool, err error) {
	m, err := db.newMigrate(migrationsFS)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// GetLatestMigrationVersion reports the highest version present in the
// migrations filesystem, parsed from the NNNNNN_name.up.sql filenames.
func GetLatestMigrationVersion(migrationsFS fs.FS) (uint, error) {
	entries, err := fs.Glob(migrationsFS, "*.up.sql")
	if err != nil {
		return 0, fmt.Errorf("failed to read migrations: %w", err)
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("no migration files found")
	}

	var latest uint
	for _, entry := range entries {
		var v uint
		if _, err := fmt.Sscanf(entry, "%d_", &v); err == nil && v > latest {
			latest = v
		}
	}
	if latest == 0 {
		return 0, fmt.Errorf("could not determine latest migration version")
	}
	return latest, nil
}

// hasSchemaMigrations reports whether golang-migrate's bookkeeping table
// exists, which distinguishes a managed database from a brand new file.
func (db *DB) hasSchemaMigrations() (bool, error) {
	var exists bool
	err := db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_migrations'
	`).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}
	return exists, nil
}

// GetMigrationStatus summarizes the migration bookkeeping for the status CLI.
func (db *DB) GetMigrationStatus(migrationsFS fs.FS) (map[string]interface{}, error) {
	version, dirty, err := db.MigrateVersion(migrationsFS)
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("failed to get migration version: %w", err)
	}

	tableExists, err := db.hasSchemaMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_migrations table: %w", err)
	}

	return map[string]interface{}{
		"current_version":          version,
		"dirty":                    dirty,
		"schema_migrations_exists": tableExists,
	}, nil
}

// BaselineAtVersion records version in schema_migrations without executing
// any migration, adopting a database whose schema was built out of band. It
// refuses a database that already has migration history.
func (db *DB) BaselineAtVersion(version uint) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version uint64 NOT NULL,
			dirty bool NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	var applied int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		return fmt.Errorf("failed to check existing migrations: %w", err)
	}
	if applied > 0 {
		return fmt.Errorf("database already has migrations applied, cannot baseline")
	}

	if _, err := db.Exec("INSERT INTO schema_migrations (version, dirty) VALUES (?, 0)", version); err != nil {
		return fmt.Errorf("failed to insert baseline version: %w", err)
	}

	log.Printf("Database baselined at version %d", version)
	return nil
}

// CheckAndPromptMigrations verifies the schema is current. shouldExit=true
// comes back with an error telling the operator what to run when migrations
// are outstanding or the database is dirty.
func (db *DB) CheckAndPromptMigrations(migrationsFS fs.FS) (shouldExit bool, err error) {
	current, dirty, err := db.MigrateVersion(migrationsFS)
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return true, fmt.Errorf("failed to get current migration version: %w", err)
	}

	latest, err := GetLatestMigrationVersion(migrationsFS)
	if err != nil {
		return true, fmt.Errorf("failed to get latest migration version: %w", err)
	}

	switch {
	case dirty:
		return true, fmt.Errorf("database is in a dirty state (version %d); run 'tracksight migrate status' to diagnose", current)
	case current > latest:
		return true, fmt.Errorf("database version (%d) is ahead of latest migration (%d); update the binary", current, latest)
	case current < latest:
		return true, fmt.Errorf("database schema is out of date (version %d, latest %d); run 'tracksight migrate up'", current, latest)
	}
	return false, nil
}

// NewDBWithMigrationCheck opens the database at path and verifies its schema
// is current. A brand new database is migrated to the latest version
// automatically; an existing database with pending migrations is refused so
// the operator can run them deliberately.
func NewDBWithMigrationCheck(path string, devMode bool) (*DB, error) {
	DevMode = devMode

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	database, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	managed, err := database.hasSchemaMigrations()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to inspect database: %w", err)
	}

	if !managed {
		// Fresh database: build the schema from scratch.
		if err := database.MigrateUp(migrationsFS); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to initialize fresh database: %w", err)
		}
		return database, nil
	}

	if shouldExit, err := database.CheckAndPromptMigrations(migrationsFS); shouldExit {
		database.Close()
		return nil, err
	}
	return database, nil
}
