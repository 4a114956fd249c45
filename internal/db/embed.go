package db

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DevMode switches migration loading from the compiled-in copy to the
// working tree, so schema edits during development don't require a rebuild.
// It assumes the process runs from the repository root.
var DevMode = false

// getMigrationsFS returns the filesystem migrations are read from, rooted
// at the directory holding the *.sql files.
func getMigrationsFS() (fs.FS, error) {
	if DevMode {
		return os.DirFS("internal/db/migrations"), nil
	}
	return fs.Sub(migrationsFS, "migrations")
}

// MigrationsFS exposes the migrations filesystem for callers outside the
// package, such as startup checks and test helpers.
func MigrationsFS() (fs.FS, error) {
	return getMigrationsFS()
}
