package dto

import "time"

type CleanupResponse struct {
	Removed int `json:"removed"`
}

type CoordinateEntryResponse struct {
	PlaceName  string    `json:"place_name"`
	Lon        float64   `json:"lon"`
	Lat        float64   `json:"lat"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
	Hits       int64     `json:"hits"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type DistanceEntryResponse struct {
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	DistanceKm  float64   `json:"distance_km"`
	DurationMin float64   `json:"duration_min"`
	Source      string    `json:"source"`
	Hits        int64     `json:"hits"`
	CreatedAt   time.Time `json:"created_at"`
}

type SearchResponse struct {
	Coordinates []CoordinateEntryResponse `json:"coordinates"`
	Distances   []DistanceEntryResponse   `json:"distances"`
}
