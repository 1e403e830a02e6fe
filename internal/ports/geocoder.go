package ports

import (
	"context"

	"city-distance-service/internal/domain"
)

// Port: a best-effort free-text geocoding lookup.
//
// An empty result is reported as found=false with a nil error; it is a
// semantic miss, not a transient fault, and callers must not retry it.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (domain.Coordinates, bool, error)
}
