package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/tracksight/internal/api"
	"github.com/banshee-data/tracksight/internal/config"
	"github.com/banshee-data/tracksight/internal/db"
	"github.com/banshee-data/tracksight/internal/session"
	"github.com/banshee-data/tracksight/internal/stream"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode")
	listen     = flag.String("listen", ":8080", "Listen address")
	dbFile     = flag.String("db", DB_FILE, "Path to the SQLite database file")
	paramsFile = flag.String("params", config.DefaultParamsPath, "Path to the tracking defaults JSON file")
)

// Constants
const DB_FILE = "tracksight.db"

// runMigrate dispatches "tracksight migrate ..." separately from the server
// flags. Options may appear before or after the command words.
func runMigrate(args []string) {
	flags := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := flags.String("db", DB_FILE, "Path to database file")
	flags.Usage = db.PrintMigrateHelp

	var cmd []string
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = append(cmd, args[0])
		args = args[1:]
	}
	flags.Parse(args)
	cmd = append(cmd, flags.Args()...)

	db.RunMigrateCommand(cmd, *dbPath)
}

// Main
func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrate(os.Args[2:])
		return
	}

	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	database, err := db.NewDBWithMigrationCheck(*dbFile, *devMode)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	defaults := config.DefaultTrackingParams()
	loaded, err := config.LoadTrackingParams(*paramsFile)
	switch {
	case err == nil:
		defaults = loaded.Merge(defaults)
		log.Printf("Loaded tracking defaults from %s", *paramsFile)
	case errors.Is(err, fs.ErrNotExist) && *paramsFile == config.DefaultParamsPath:
		// No defaults file at the stock path; the built-in parameters apply.
	default:
		log.Fatalf("Failed to load tracking params: %v", err)
	}

	// Session ops and diagnostics go to the server log; per-frame tracing
	// only in dev mode.
	var trace io.Writer
	if *devMode {
		trace = os.Stderr
	}
	session.SetLogWriters(os.Stderr, os.Stderr, trace)

	hub := stream.NewHub()
	manager := session.NewManager(session.ManagerOptions{
		Defaults:  defaults,
		Recorder:  database,
		Publisher: hub,
	})

	server := api.NewServer(api.ServerConfig{
		Address:    *listen,
		DB:         database,
		Manager:    manager,
		Hub:        hub,
		Defaults:   defaults,
		AdminDebug: true,
	})

	// Create a wait group for the HTTP server routine
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx); err != nil {
			log.Printf("HTTP server error: %v", err)
		}
		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()

	// Close out any runs still live so their rows don't read as running.
	for _, summary := range manager.StopAll() {
		ended := summary.EndedAt.UnixNano()
		err := database.FinishTrackingRun(&db.TrackingRun{
			RunID:             summary.RunID,
			EndedUnixNanos:    &ended,
			Frames:            summary.Frames,
			TracksCreated:     summary.TracksCreated,
			DroppedDetections: summary.DroppedDetections,
			DroppedRecords:    summary.DroppedRecords,
		})
		if err != nil {
			log.Printf("Failed to finish run %s: %v", summary.RunID, err)
			continue
		}
		log.Printf("Closed run %s (camera=%s frames=%d)", summary.RunID, summary.CameraID, summary.Frames)
	}

	log.Printf("Graceful shutdown complete")
}
