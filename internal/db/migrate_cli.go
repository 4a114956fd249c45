package db

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
)

// RunMigrateCommand dispatches the 'migrate' CLI subcommand against the
// database at dbPath.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}
	action := args[0]

	if action == "help" {
		PrintMigrateHelp()
		return
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		log.Fatalf("Failed to load migrations: %v", err)
	}

	// Plain OpenDB here: this command manages the schema itself, so the
	// startup migration check would get in the way.
	database, err := OpenDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	switch action {
	case "up":
		log.Printf("Running migrations...")
		if err := database.MigrateUp(migrationsFS); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("✓ All migrations applied")
		reportVersion(database, migrationsFS)

	case "down":
		log.Printf("Rolling back one migration...")
		if err := database.MigrateDown(migrationsFS); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("✓ Rolled back one migration")
		reportVersion(database, migrationsFS)

	case "status":
		printMigrateStatus(database, migrationsFS)

	case "version":
		target := requireVersionArg(args, "version")
		log.Printf("Migrating to version %d...", target)
		if err := database.MigrateTo(migrationsFS, target); err != nil {
			log.Fatalf("Migration to version %d failed: %v", target, err)
		}
		log.Printf("✓ Now at version %d", target)

	case "force":
		forceMigrateVersion(database, migrationsFS, int(requireVersionArg(args, "force")))

	case "baseline":
		target := requireVersionArg(args, "baseline")
		log.Printf("Baselining database at version %d...", target)
		if err := database.BaselineAtVersion(target); err != nil {
			log.Fatalf("Baseline failed: %v", err)
		}
		log.Printf("✓ Database baselined at version %d", target)

	default:
		fmt.Printf("Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp()
		os.Exit(1)
	}
}

// requireVersionArg parses the numeric argument that must follow action.
func requireVersionArg(args []string, action string) uint {
	if len(args) < 2 {
		log.Fatalf("Usage: tracksight migrate %s <version_number>", action)
	}
	v, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		log.Fatalf("Invalid version number: %s", args[1])
	}
	return uint(v)
}

// reportVersion prints the schema version after a migration command.
func reportVersion(database *DB, migrationsFS fs.FS) {
	version, dirty, _ := database.MigrateVersion(migrationsFS)
	log.Printf("Current version: %d (dirty: %v)", version, dirty)
}

// printMigrateStatus renders the status block, including how many migrations
// are outstanding.
func printMigrateStatus(database *DB, migrationsFS fs.FS) {
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		log.Fatalf("Failed to get migration status: %v", err)
	}
	status, err := database.GetMigrationStatus(migrationsFS)
	if err != nil {
		log.Fatalf("Failed to get migration status: %v", err)
	}
	latest, err := GetLatestMigrationVersion(migrationsFS)
	if err != nil {
		log.Fatalf("Failed to get latest migration version: %v", err)
	}

	fmt.Println("=== Migration Status ===")
	fmt.Printf("Current version: %d\n", version)
	fmt.Printf("Latest available: %d\n", latest)
	if latest > version {
		fmt.Printf("Outstanding: %d\n", latest-version)
	}
	fmt.Printf("Dirty: %v\n", dirty)
	fmt.Printf("Schema migrations table exists: %v\n", status["schema_migrations_exists"])

	if dirty {
		fmt.Println("\n⚠️  WARNING: Database is in a dirty state!")
		fmt.Println("A migration failed mid-execution. You may need to:")
		fmt.Println("  1. Inspect the database manually")
		fmt.Println("  2. Fix any issues")
		fmt.Println("  3. Run: tracksight migrate force <version>")
	}
}

// forceMigrateVersion stamps the version after an interactive confirmation.
func forceMigrateVersion(database *DB, migrationsFS fs.FS, version int) {
	fmt.Printf("⚠️  WARNING: Forcing migration version to %d\n", version)
	fmt.Println("This should only be used to recover from a dirty migration state.")
	fmt.Print("Continue? [y/N]: ")

	var response string
	fmt.Scanln(&response)
	if response != "y" && response != "Y" {
		log.Println("Aborted")
		os.Exit(0)
	}

	if err := database.MigrateForce(migrationsFS, version); err != nil {
		log.Fatalf("Force migration failed: %v", err)
	}
	log.Printf("✓ Migration version forced to %d", version)
}

// PrintMigrateHelp writes the migrate subcommand usage.
func PrintMigrateHelp() {
	fmt.Println("Database Migration Commands")
	fmt.Println()
	fmt.Println("Usage: tracksight migrate <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up              Apply all pending migrations")
	fmt.Println("  down            Rollback one migration")
	fmt.Println("  status          Show current migration status and version")
	fmt.Println("  version <N>     Migrate to specific version N")
	fmt.Println("  force <N>       Force migration version to N (recovery only)")
	fmt.Println("  baseline <N>    Set migration version to N without running migrations")
	fmt.Println("  help            Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  tracksight migrate up")
	fmt.Println("  tracksight migrate status")
	fmt.Println("  tracksight migrate version 3")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -db <path>    Path to database file (default: tracksight.db)")
}
