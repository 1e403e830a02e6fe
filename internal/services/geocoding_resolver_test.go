package services

import (
	"context"
	"errors"
	"testing"

	"city-distance-service/internal/domain"
)

func TestGeocodingResolverCacheHitSkipsNetwork(t *testing.T) {
	store := newMemStore()
	geo := &mockGeocoder{results: map[string]domain.Coordinates{}}
	resolver := NewGeocodingResolver(store, geo, "MG", "Brasil", "nominatim", nil)

	cached := domain.Coordinates{Lon: -43.9, Lat: -19.9}
	if err := store.PutCoordinates(context.Background(), "Belo Horizonte", cached, "nominatim", 1.0); err != nil {
		t.Fatal(err)
	}

	coords, found, err := resolver.Resolve(context.Background(), "belo horizonte")
	if err != nil {
		t.Fatal(err)
	}
	if !found || coords != cached {
		t.Errorf("got (%v, %v), want cached coordinates", coords, found)
	}
	if len(geo.queries) != 0 {
		t.Errorf("geocoder was called %d times on a cache hit", len(geo.queries))
	}
}

func TestGeocodingResolverQueryFallbackOrder(t *testing.T) {
	store := newMemStore()
	geo := &mockGeocoder{results: map[string]domain.Coordinates{
		"Ouro Preto, Brasil": {Lon: -43.5, Lat: -20.4},
	}}
	resolver := NewGeocodingResolver(store, geo, "MG", "Brasil", "nominatim", nil)

	coords, found, err := resolver.Resolve(context.Background(), "Ouro Preto")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected a result from the second query")
	}
	if coords.Lat != -20.4 {
		t.Errorf("Lat = %v", coords.Lat)
	}

	want := []string{"Ouro Preto, MG, Brasil", "Ouro Preto, Brasil"}
	if len(geo.queries) != len(want) {
		t.Fatalf("queries = %v, want %v", geo.queries, want)
	}
	for i := range want {
		if geo.queries[i] != want[i] {
			t.Errorf("query[%d] = %q, want %q", i, geo.queries[i], want[i])
		}
	}

	// The resolved result must have been written back.
	if _, ok, _ := store.GetCoordinates(context.Background(), "Ouro Preto"); !ok {
		t.Error("result was not cached")
	}
}

func TestGeocodingResolverNoResultIsNotAnError(t *testing.T) {
	store := newMemStore()
	geo := &mockGeocoder{results: map[string]domain.Coordinates{}}
	resolver := NewGeocodingResolver(store, geo, "MG", "Brasil", "nominatim", nil)

	_, found, err := resolver.Resolve(context.Background(), "Atlantis")
	if err != nil {
		t.Fatalf("semantic miss reported as error: %v", err)
	}
	if found {
		t.Error("found = true for an unknown place")
	}
	if len(geo.queries) != 2 {
		t.Errorf("got %d queries, want both fallbacks tried", len(geo.queries))
	}
}

func TestGeocodingResolverEmptyNameShortCircuits(t *testing.T) {
	store := newMemStore()
	geo := &mockGeocoder{}
	resolver := NewGeocodingResolver(store, geo, "MG", "Brasil", "nominatim", nil)

	_, found, err := resolver.Resolve(context.Background(), "   ")
	if err != nil || found {
		t.Errorf("got (found=%v, err=%v), want clean miss", found, err)
	}
	if len(geo.queries) != 0 {
		t.Error("geocoder was called for an empty name")
	}
}

func TestGeocodingResolverPropagatesTransportErrors(t *testing.T) {
	store := newMemStore()
	geo := &mockGeocoder{err: errors.New("connection refused")}
	resolver := NewGeocodingResolver(store, geo, "MG", "Brasil", "nominatim", nil)

	_, _, err := resolver.Resolve(context.Background(), "Belo Horizonte")
	if err == nil {
		t.Fatal("expected transport error to propagate")
	}
}

func TestGeocodingResolverStoreFailureDegradesToMiss(t *testing.T) {
	store := newMemStore()
	store.getCoordsErr = errors.New("disk I/O error")
	geo := &mockGeocoder{results: map[string]domain.Coordinates{
		"Betim, MG, Brasil": {Lon: -44.2, Lat: -19.97},
	}}
	resolver := NewGeocodingResolver(store, geo, "MG", "Brasil", "nominatim", nil)

	coords, found, err := resolver.Resolve(context.Background(), "Betim")
	if err != nil {
		t.Fatalf("store failure must not surface: %v", err)
	}
	if !found || coords.Lon != -44.2 {
		t.Errorf("got (%v, %v), want fresh lookup despite store failure", coords, found)
	}
}
