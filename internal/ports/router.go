package ports

import (
	"context"

	"city-distance-service/internal/domain"
)

// RouteResult is a raw routing response: road distance and travel time
// between two coordinate pairs.
type RouteResult struct {
	DistanceMeters  float64
	DurationSeconds float64
}

// Port: a road-routing lookup between two coordinate pairs.
//
// found=false means the service answered but produced no route; callers
// treat that like a transient failure and may retry.
type Router interface {
	Route(ctx context.Context, origin, destination domain.Coordinates) (RouteResult, bool, error)
}
