package services

import (
	"context"
	"fmt"
	"log"

	"city-distance-service/internal/domain"
	"city-distance-service/internal/platform/obs"
	"city-distance-service/internal/ports"
)

// GeocodingResolver is a cache-first wrapper around a Geocoder.
//
// On a cache miss it issues a sequence of progressively looser queries
// ("name, region, country", then "name, country") and stores the first
// non-empty result. An empty result across all queries is a semantic miss,
// not a transient fault, and is never retried.
type GeocodingResolver struct {
	store   ports.CacheStore
	client  ports.Geocoder
	region  string
	country string
	source  string
	metrics *obs.Metrics
}

func NewGeocodingResolver(store ports.CacheStore, client ports.Geocoder, region, country, source string, metrics *obs.Metrics) *GeocodingResolver {
	if metrics == nil {
		metrics = obs.NewMetricsForTesting()
	}
	return &GeocodingResolver{
		store:   store,
		client:  client,
		region:  region,
		country: country,
		source:  source,
		metrics: metrics,
	}
}

// Resolve returns coordinates for a place name. found=false means no
// geocoding result exists; err is reserved for transport-level failures.
func (r *GeocodingResolver) Resolve(ctx context.Context, name string) (domain.Coordinates, bool, error) {
	if domain.Canonical(name) == "" {
		return domain.Coordinates{}, false, nil
	}

	coords, found, err := r.store.GetCoordinates(ctx, name)
	if err != nil {
		// Store failures degrade to a miss; the external lookup still runs.
		log.Printf("coordinate cache read failed name=%q err=%v", name, err)
		r.metrics.CacheErrors.Inc()
	}
	if found {
		return coords, true, nil
	}

	for i, query := range r.queries(name) {
		coords, ok, err := r.client.Geocode(ctx, query)
		if err != nil {
			return domain.Coordinates{}, false, fmt.Errorf("geocode %q: %w", name, err)
		}
		if !ok {
			continue
		}

		confidence := 1.0 - 0.2*float64(i)
		if err := r.store.PutCoordinates(ctx, name, coords, r.source, confidence); err != nil {
			log.Printf("coordinate cache write failed name=%q err=%v", name, err)
			r.metrics.CacheErrors.Inc()
		}
		return coords, true, nil
	}

	return domain.Coordinates{}, false, nil
}

// queries builds the fallback sequence, most specific first.
func (r *GeocodingResolver) queries(name string) []string {
	var qs []string
	if r.region != "" && r.country != "" {
		qs = append(qs, fmt.Sprintf("%s, %s, %s", name, r.region, r.country))
	}
	if r.country != "" {
		qs = append(qs, fmt.Sprintf("%s, %s", name, r.country))
	}
	if len(qs) == 0 {
		qs = append(qs, name)
	}
	return qs
}
