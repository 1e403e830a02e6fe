package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.CoordinateTTL != 24*time.Hour {
		t.Errorf("CoordinateTTL = %v", cfg.CoordinateTTL)
	}
	if cfg.DistanceTTL != 168*time.Hour {
		t.Errorf("DistanceTTL = %v", cfg.DistanceTTL)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.Workers != 6 {
		t.Errorf("Workers = %d", cfg.Workers)
	}
	if cfg.RequestDelay != 100*time.Millisecond {
		t.Errorf("RequestDelay = %v", cfg.RequestDelay)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("COORDINATE_TTL", "12h")
	t.Setenv("WORKERS", "10")
	t.Setenv("DATABASE_URL", "postgres://localhost/cache")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.CoordinateTTL != 12*time.Hour {
		t.Errorf("CoordinateTTL = %v", cfg.CoordinateTTL)
	}
	if cfg.Workers != 10 {
		t.Errorf("Workers = %d", cfg.Workers)
	}
	if cfg.DatabaseURL != "postgres://localhost/cache" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"COORDINATE_TTL": "yesterday",
		"WORKERS":        "0",
		"MAX_RETRIES":    "-1",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Errorf("Load accepted %s=%q", key, value)
			}
		})
	}
}
