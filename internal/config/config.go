package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// DBPath is the SQLite file backing the cache. DatabaseURL, when set,
	// selects the Postgres store instead.
	DBPath      string
	DatabaseURL string
	Port        string

	NominatimURL string
	OSRMURL      string
	UserAgent    string

	// GeocodeRegion/GeocodeCountry qualify fallback geocoding queries,
	// most specific first: "name, region, country" then "name, country".
	GeocodeRegion  string
	GeocodeCountry string

	CoordinateTTL time.Duration
	DistanceTTL   time.Duration

	MaxRetries     int
	RetryBaseDelay time.Duration
	RequestDelay   time.Duration
	Workers        int

	CleanupInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:         Get("DB_PATH", "cache/geocoding_cache.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Port:           Get("PORT", "8080"),
		NominatimURL:   Get("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		OSRMURL:        Get("OSRM_URL", "http://router.project-osrm.org"),
		UserAgent:      Get("GEOCODER_USER_AGENT", "city-distance-service/1.0"),
		GeocodeRegion:  Get("GEOCODE_REGION", "MG"),
		GeocodeCountry: Get("GEOCODE_COUNTRY", "Brasil"),
	}

	var err error
	if cfg.CoordinateTTL, err = duration("COORDINATE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DistanceTTL, err = duration("DISTANCE_TTL", 168*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RetryBaseDelay, err = duration("RETRY_BASE_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.RequestDelay, err = duration("REQUEST_DELAY", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval, err = duration("CLEANUP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = integer("MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.Workers, err = integer("WORKERS", 6); err != nil {
		return nil, err
	}

	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("MAX_RETRIES must be at least 1, got %d", cfg.MaxRetries)
	}
	if cfg.Workers < 1 || cfg.Workers > 16 {
		return nil, fmt.Errorf("WORKERS must be between 1 and 16, got %d", cfg.Workers)
	}

	return cfg, nil
}

// Get returns an environment variable or a fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func integer(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}
