package services

import (
	"context"
	"fmt"
	"math"

	"city-distance-service/internal/domain"
	"city-distance-service/internal/ports"
)

// StatsCollector is a read-only view over the cache store's counters,
// deriving per-kind and blended hit rates.
type StatsCollector struct {
	store ports.CacheStore
}

func NewStatsCollector(store ports.CacheStore) *StatsCollector {
	return &StatsCollector{store: store}
}

// Collect snapshots the store and derives hit rates in percent. A kind with
// zero lookups reports a rate of 0.
func (c *StatsCollector) Collect(ctx context.Context) (domain.StatsReport, error) {
	snap, err := c.store.Stats(ctx)
	if err != nil {
		return domain.StatsReport{}, fmt.Errorf("collect stats: %w", err)
	}

	coordLookups := snap.Coordinates.Hits + snap.Coordinates.Misses
	distLookups := snap.Distances.Hits + snap.Distances.Misses

	return domain.StatsReport{
		Snapshot:          snap,
		CoordinateHitRate: hitRate(snap.Coordinates.Hits, coordLookups),
		DistanceHitRate:   hitRate(snap.Distances.Hits, distLookups),
		OverallHitRate:    hitRate(snap.Coordinates.Hits+snap.Distances.Hits, coordLookups+distLookups),
	}, nil
}

func hitRate(hits, lookups int64) float64 {
	if lookups == 0 {
		return 0
	}
	return math.Round(float64(hits)/float64(lookups)*100*100) / 100
}
