// Command cachetool inspects and maintains the cache database from the
// command line, without going through the HTTP API.
//
// Usage:
//
//	cachetool stats    print session counters and store size
//	cachetool cleanup  remove expired entries
//	cachetool clear    remove all entries
//	cachetool backup   copy the SQLite file to a timestamped backup
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"city-distance-service/internal/adapters/cache"
	"city-distance-service/internal/config"
	"city-distance-service/internal/platform/db"
	"city-distance-service/internal/ports"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		log.Fatalf("usage: %s stats|cleanup|clear|backup", filepath.Base(os.Args[0]))
	}
	command := os.Args[1]

	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, handle, err := openStore(cfg)
	if err != nil {
		log.Fatalf("open cache store: %v", err)
	}
	defer handle.Close()

	switch command {
	case "stats":
		err = printStats(ctx, store)
	case "cleanup":
		err = runCleanup(ctx, store)
	case "clear":
		err = store.Clear(ctx)
		if err == nil {
			log.Println("cache cleared")
		}
	case "backup":
		err = runBackup(ctx, cfg, handle)
	default:
		log.Fatalf("unknown command %q", command)
	}

	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func openStore(cfg *config.Config) (ports.CacheStore, *sql.DB, error) {
	if cfg.DatabaseURL != "" {
		pg, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewSQLStore(pg, cache.StoreOptions{
			CoordinateTTL: cfg.CoordinateTTL,
			DistanceTTL:   cfg.DistanceTTL,
		}), pg, nil
	}

	lite, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	return cache.NewSqliteStore(lite, cfg.DBPath, cache.StoreOptions{
		CoordinateTTL: cfg.CoordinateTTL,
		DistanceTTL:   cfg.DistanceTTL,
	}), lite, nil
}

func printStats(ctx context.Context, store ports.CacheStore) error {
	snap, err := store.Stats(ctx)
	if err != nil {
		return err
	}

	log.Printf("coordinates: hits=%d misses=%d saves=%d live=%d",
		snap.Coordinates.Hits, snap.Coordinates.Misses, snap.Coordinates.Saves, snap.Coordinates.LiveEntries)
	log.Printf("distances:   hits=%d misses=%d saves=%d live=%d",
		snap.Distances.Hits, snap.Distances.Misses, snap.Distances.Saves, snap.Distances.LiveEntries)
	log.Printf("total entries: %d", snap.TotalEntries)
	if snap.DatabasePath != "" {
		log.Printf("database: path=%s size=%d bytes", snap.DatabasePath, snap.FileSizeBytes)
	}
	return nil
}

func runCleanup(ctx context.Context, store ports.CacheStore) error {
	removed, err := store.Cleanup(ctx)
	if err != nil {
		return err
	}
	log.Printf("removed %d expired entries", removed)
	return nil
}

// runBackup snapshots the SQLite file with VACUUM INTO, which produces a
// consistent copy even while the server holds the database open.
func runBackup(ctx context.Context, cfg *config.Config, handle *sql.DB) error {
	if cfg.DatabaseURL != "" {
		return fmt.Errorf("backup is only supported for the sqlite store, use pg_dump for postgres")
	}

	backupDir := filepath.Join(filepath.Dir(cfg.DBPath), "backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	stamp := time.Now().Format("20060102_150405")
	target := filepath.Join(backupDir, fmt.Sprintf("cache_backup_manual_%s.db", stamp))

	if _, err := handle.ExecContext(ctx, "VACUUM INTO ?", target); err != nil {
		return fmt.Errorf("vacuum into %s: %w", target, err)
	}

	log.Printf("backup written: %s", target)
	return nil
}
