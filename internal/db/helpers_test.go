package db

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// newTestDB creates a temp database with the full production schema applied.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS failed: %v", err)
	}
	if err := database.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	return database
}

// setupEmptyTestDB creates a temp database with no schema applied.
func setupEmptyTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "empty.db")
	database, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return database
}

// setupTestMigrations creates a temporary directory with two small test
// migrations and returns it as an fs.FS.
func setupTestMigrations(t *testing.T) fs.FS {
	t.Helper()

	tmpDir := filepath.Join(t.TempDir(), "migrations")
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		t.Fatalf("failed to create temp migrations dir: %v", err)
	}

	migrations := map[string]string{
		"000001_create_test_table.up.sql": `
			CREATE TABLE IF NOT EXISTS test_table (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL
			);
		`,
		"000001_create_test_table.down.sql": `
			DROP TABLE IF EXISTS test_table;
		`,
		"000002_add_test_column.up.sql": `
			ALTER TABLE test_table ADD COLUMN description TEXT;
		`,
		"000002_add_test_column.down.sql": `
			-- SQLite doesn't support DROP COLUMN directly, so we need to recreate the table
			CREATE TABLE test_table_new (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL
			);
			INSERT INTO test_table_new (id, name) SELECT id, name FROM test_table;
			DROP TABLE test_table;
			ALTER TABLE test_table_new RENAME TO test_table;
		`,
	}

	for filename, content := range migrations {
		path := filepath.Join(tmpDir, filename)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write migration file %s: %v", filename, err)
		}
	}

	return os.DirFS(tmpDir)
}
