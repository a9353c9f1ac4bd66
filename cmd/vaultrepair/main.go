package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"printvault/internal/database"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultDatabaseDir = "/database"
	// Models in processing older than this are considered abandoned. A live
	// job updates its model at every pipeline checkpoint, so anything quiet
	// this long has no worker behind it.
	defaultStaleAfter = time.Hour
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	dbPath := filepath.Join(databaseDir, "printvault.db")

	db, err := database.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	switch command {
	case "status":
		if !showStatus(ctx, db) {
			os.Exit(1)
		}
	case "repair":
		if !repairStale(ctx, db, staleAfter()) {
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("PrintVault Database Maintenance")
	fmt.Println("")
	fmt.Println("Usage: vaultrepair <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  status  - Show model counts by lifecycle status")
	fmt.Println("  repair  - Force abandoned processing models to error")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
	fmt.Printf("  STALE_AFTER  - Age before a processing model counts as abandoned (default: %s)\n", defaultStaleAfter)
}

func staleAfter() time.Duration {
	value := os.Getenv("STALE_AFTER")
	if value == "" {
		return defaultStaleAfter
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		fmt.Fprintf(os.Stderr, "Warning: invalid STALE_AFTER %q, using default %s\n", value, defaultStaleAfter)
		return defaultStaleAfter
	}
	return parsed
}

func showStatus(ctx context.Context, db *database.Database) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	counts, err := db.CountModelsByStatus(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to count models: %v\n", err)
		return false
	}

	total := 0
	for _, status := range []database.ModelStatus{database.StatusProcessing, database.StatusReady, database.StatusError} {
		fmt.Printf("  %-12s %d\n", status, counts[status])
		total += counts[status]
	}
	fmt.Printf("  %-12s %d\n", "total", total)
	return true
}

func repairStale(ctx context.Context, db *database.Database, staleAfter time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cutoff := time.Now().Add(-staleAfter)
	stale, err := db.ListStaleProcessing(ctx, cutoff)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to list stale models: %v\n", err)
		return false
	}
	if len(stale) == 0 {
		fmt.Println("No abandoned models found.")
		return true
	}

	repaired := 0
	for _, m := range stale {
		if err := db.UpdateModelStatus(ctx, m.ID, database.StatusError, database.StatusUpdate{}); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to repair model %s (%s): %v\n", m.ID, m.Slug, err)
			continue
		}
		fmt.Printf("  Repaired %s (%s), last updated %s\n", m.ID, m.Slug, m.UpdatedAt.Format(time.RFC3339))
		repaired++
	}
	fmt.Printf("Repaired %d of %d abandoned model(s).\n", repaired, len(stale))
	return repaired == len(stale)
}
