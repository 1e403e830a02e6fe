package services

import (
	"context"
	"sync"

	"city-distance-service/internal/domain"
	"city-distance-service/internal/ports"
)

// memStore is an in-memory CacheStore for tests. Keys go through the same
// canonicalization as the real stores.
type memStore struct {
	mu     sync.Mutex
	coords map[string]domain.Coordinates
	dists  map[string]ports.DistanceRecord

	coordHits, coordMisses, coordSaves int64
	distHits, distMisses, distSaves    int64

	getCoordsErr error
	getDistErr   error
	putErr       error
	statsErr     error
}

func newMemStore() *memStore {
	return &memStore{
		coords: make(map[string]domain.Coordinates),
		dists:  make(map[string]ports.DistanceRecord),
	}
}

func (m *memStore) GetCoordinates(_ context.Context, name string) (domain.Coordinates, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getCoordsErr != nil {
		return domain.Coordinates{}, false, m.getCoordsErr
	}
	c, ok := m.coords[domain.PlaceKey(name)]
	if ok {
		m.coordHits++
	} else {
		m.coordMisses++
	}
	return c, ok, nil
}

func (m *memStore) PutCoordinates(_ context.Context, name string, coords domain.Coordinates, _ string, _ float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.coords[domain.PlaceKey(name)] = coords
	m.coordSaves++
	return nil
}

func (m *memStore) GetDistance(_ context.Context, a, b string) (ports.DistanceRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getDistErr != nil {
		return ports.DistanceRecord{}, false, m.getDistErr
	}
	rec, ok := m.dists[domain.PairKey(a, b)]
	if ok {
		m.distHits++
	} else {
		m.distMisses++
	}
	return rec, ok, nil
}

func (m *memStore) PutDistance(_ context.Context, a, b string, distanceKm, durationMin float64, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.dists[domain.PairKey(a, b)] = ports.DistanceRecord{
		OriginName:      a,
		DestinationName: b,
		DistanceKm:      distanceKm,
		DurationMin:     durationMin,
		Source:          source,
	}
	m.distSaves++
	return nil
}

func (m *memStore) Cleanup(context.Context) (int, error) { return 0, nil }

func (m *memStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coords = make(map[string]domain.Coordinates)
	m.dists = make(map[string]ports.DistanceRecord)
	return nil
}

func (m *memStore) Stats(context.Context) (domain.StatsSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statsErr != nil {
		return domain.StatsSnapshot{}, m.statsErr
	}
	return domain.StatsSnapshot{
		Coordinates: domain.CounterSet{
			Hits: m.coordHits, Misses: m.coordMisses, Saves: m.coordSaves,
			LiveEntries: int64(len(m.coords)),
		},
		Distances: domain.CounterSet{
			Hits: m.distHits, Misses: m.distMisses, Saves: m.distSaves,
			LiveEntries: int64(len(m.dists)),
		},
		TotalEntries: int64(len(m.coords) + len(m.dists)),
		SessionID:    "mem",
	}, nil
}

func (m *memStore) Search(context.Context, string, int) (ports.SearchResult, error) {
	return ports.SearchResult{}, nil
}

// mockGeocoder resolves from a fixed table and records every query issued.
type mockGeocoder struct {
	mu      sync.Mutex
	results map[string]domain.Coordinates
	err     error
	queries []string
}

func (g *mockGeocoder) Geocode(_ context.Context, query string) (domain.Coordinates, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries = append(g.queries, query)
	if g.err != nil {
		return domain.Coordinates{}, false, g.err
	}
	c, ok := g.results[query]
	return c, ok, nil
}

// mockRouter returns a scripted sequence of outcomes, one per call.
type mockRouter struct {
	mu       sync.Mutex
	script   []routeOutcome
	fallback routeOutcome
	calls    int
}

type routeOutcome struct {
	result ports.RouteResult
	ok     bool
	err    error
}

func (r *mockRouter) Route(context.Context, domain.Coordinates, domain.Coordinates) (ports.RouteResult, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.fallback
	if r.calls < len(r.script) {
		out = r.script[r.calls]
	}
	r.calls++
	return out.result, out.ok, out.err
}

func (r *mockRouter) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
