package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"city-distance-service/internal/domain"
	"city-distance-service/internal/platform/obs"
	"city-distance-service/internal/ports"
)

// Defaults match the routing service's tolerance: three attempts with
// exponential backoff starting at one second.
const (
	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = time.Second
)

// ResolvedDistance is a distance lookup outcome plus its provenance.
type ResolvedDistance struct {
	DistanceKm   float64
	DurationMin  float64
	OriginOfData domain.DataSource
}

// DistanceResolver is a cache-first wrapper around a Router with bounded
// retries. Unlike geocoding, a routing failure is expected to be a transient
// network or service issue, so misses are retried with exponential backoff.
// The backoff sleeps only between attempts, never after the last.
type DistanceResolver struct {
	store       ports.CacheStore
	client      ports.Router
	maxAttempts int
	baseDelay   time.Duration
	source      string
	metrics     *obs.Metrics

	// sleep is swappable so tests can record delays instead of waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewDistanceResolver(store ports.CacheStore, client ports.Router, maxAttempts int, baseDelay time.Duration, source string, metrics *obs.Metrics) *DistanceResolver {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultRetryBaseDelay
	}
	if metrics == nil {
		metrics = obs.NewMetricsForTesting()
	}
	return &DistanceResolver{
		store:       store,
		client:      client,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		source:      source,
		metrics:     metrics,
		sleep:       sleepCtx,
	}
}

// Resolve returns the road distance between two named places, consulting the
// pair-keyed cache first. After exhausting the retry budget it returns the
// last failure.
func (r *DistanceResolver) Resolve(ctx context.Context, originName, destName string, origin, dest domain.Coordinates) (ResolvedDistance, error) {
	rec, found, err := r.store.GetDistance(ctx, originName, destName)
	if err != nil {
		log.Printf("distance cache read failed origin=%q dest=%q err=%v", originName, destName, err)
		r.metrics.CacheErrors.Inc()
	}
	if found {
		return ResolvedDistance{
			DistanceKm:   rec.DistanceKm,
			DurationMin:  rec.DurationMin,
			OriginOfData: domain.SourceCache,
		}, nil
	}

	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return ResolvedDistance{}, err
		}
		if attempt > 0 {
			r.metrics.RouteRetries.Inc()
		}

		res, ok, err := r.client.Route(ctx, origin, dest)
		if err == nil && ok {
			distanceKm := math.Round(res.DistanceMeters/1000*100) / 100
			durationMin := math.Round(res.DurationSeconds / 60)

			if err := r.store.PutDistance(ctx, originName, destName, distanceKm, durationMin, r.source); err != nil {
				log.Printf("distance cache write failed origin=%q dest=%q err=%v", originName, destName, err)
				r.metrics.CacheErrors.Inc()
			}

			return ResolvedDistance{
				DistanceKm:   distanceKm,
				DurationMin:  durationMin,
				OriginOfData: domain.SourceFresh,
			}, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = errors.New("routing service returned no route")
		}

		if attempt < r.maxAttempts-1 {
			if err := r.sleep(ctx, r.baseDelay<<attempt); err != nil {
				return ResolvedDistance{}, err
			}
		}
	}

	return ResolvedDistance{}, fmt.Errorf("compute distance %q -> %q: %w", originName, destName, lastErr)
}

// sleepCtx waits for d, aborting early on context cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
