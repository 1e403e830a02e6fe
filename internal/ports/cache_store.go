package ports

import (
	"context"
	"time"

	"city-distance-service/internal/domain"
)

// DistanceRecord is a cached road distance between two named places.
type DistanceRecord struct {
	OriginName      string
	DestinationName string
	DistanceKm      float64
	DurationMin     float64
	Source          string
	Hits            int64
	CreatedAt       time.Time
}

// CoordinateRecord is a cached geocoding result for one place name.
type CoordinateRecord struct {
	PlaceName  string
	Coords     domain.Coordinates
	Source     string
	Confidence float64
	Hits       int64
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// SearchResult groups live entries matching a diagnostic search pattern.
type SearchResult struct {
	Coordinates []CoordinateRecord
	Distances   []DistanceRecord
}

// Port: durable TTL-bound storage for coordinates and distances.
//
// Lookups are keyed by canonical hashes of normalized place names; distance
// keys are order-independent, so GetDistance(a, b) and GetDistance(b, a)
// return the same record. A read that observes an expired entry deletes it
// and reports not-found. Every Get increments either the hit or the miss
// counter for its kind. Implementations must be safe for concurrent use.
type CacheStore interface {
	GetCoordinates(ctx context.Context, name string) (domain.Coordinates, bool, error)
	PutCoordinates(ctx context.Context, name string, coords domain.Coordinates, source string, confidence float64) error

	GetDistance(ctx context.Context, a, b string) (DistanceRecord, bool, error)
	PutDistance(ctx context.Context, a, b string, distanceKm, durationMin float64, source string) error

	// Cleanup deletes every expired entry of both kinds and returns how
	// many were removed. Idempotent and safe alongside reads and writes.
	Cleanup(ctx context.Context) (int, error)

	// Clear removes all entries and resets this session's counters.
	Clear(ctx context.Context) error

	Stats(ctx context.Context) (domain.StatsSnapshot, error)

	// Search returns live entries whose place names match pattern,
	// for diagnostics. Limit caps the number of rows per kind.
	Search(ctx context.Context, pattern string, limit int) (SearchResult, error)
}
