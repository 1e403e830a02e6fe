package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"city-distance-service/internal/adapters/cache"
	"city-distance-service/internal/adapters/geocode"
	"city-distance-service/internal/adapters/routing"
	"city-distance-service/internal/api"
	"city-distance-service/internal/config"
	"city-distance-service/internal/platform/db"
	"city-distance-service/internal/platform/obs"
	"city-distance-service/internal/ports"
	"city-distance-service/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	metrics := obs.NewMetrics()

	store, dbHandle, err := openStore(cfg, metrics)
	if err != nil {
		log.Fatalf("open cache store: %v", err)
	}
	defer dbHandle.Close()

	geocoder, err := geocode.NewNominatimClient(cfg.NominatimURL, cfg.UserAgent, metrics)
	if err != nil {
		log.Fatalf("build geocoding client: %v", err)
	}
	router := routing.NewOSRMClient(cfg.OSRMURL, metrics)

	geocoding := services.NewGeocodingResolver(store, geocoder, cfg.GeocodeRegion, cfg.GeocodeCountry, geocode.Source, metrics)
	distances := services.NewDistanceResolver(store, router, cfg.MaxRetries, cfg.RetryBaseDelay, routing.Source, metrics)
	stats := services.NewStatsCollector(store)
	orchestrator := services.NewOrchestrator(geocoding, distances, stats, services.OrchestratorConfig{
		Workers:      cfg.Workers,
		RequestDelay: cfg.RequestDelay,
	}, metrics)

	go cleanupLoop(store, cfg.CleanupInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(orchestrator, store, stats),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("listening: port=%s workers=%d", cfg.Port, cfg.Workers)
	log.Fatal(srv.ListenAndServe())
}

// openStore selects the Postgres store when DATABASE_URL is set, otherwise
// the SQLite store at DB_PATH.
func openStore(cfg *config.Config, metrics *obs.Metrics) (ports.CacheStore, *sql.DB, error) {
	opts := cache.StoreOptions{
		CoordinateTTL: cfg.CoordinateTTL,
		DistanceTTL:   cfg.DistanceTTL,
		Metrics:       metrics,
	}

	if cfg.DatabaseURL != "" {
		pg, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := cache.InitSQLSchema(pg); err != nil {
			pg.Close()
			return nil, nil, err
		}
		log.Println("cache store: backend=postgres")
		return cache.NewSQLStore(pg, opts), pg, nil
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	lite, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := cache.InitSchema(lite); err != nil {
		lite.Close()
		return nil, nil, err
	}
	log.Printf("cache store: backend=sqlite path=%s", cfg.DBPath)
	return cache.NewSqliteStore(lite, cfg.DBPath, opts), lite, nil
}

// cleanupLoop sweeps expired entries on a fixed interval so the store does
// not grow unbounded between lazy read-side deletions.
func cleanupLoop(store ports.CacheStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		removed, err := store.Cleanup(ctx)
		cancel()
		if err != nil {
			log.Printf("scheduled cleanup failed: %v", err)
			continue
		}
		if removed > 0 {
			log.Printf("scheduled cleanup: removed=%d", removed)
		}
	}
}
