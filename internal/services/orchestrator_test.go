package services

import (
	"context"
	"testing"
	"time"

	"city-distance-service/internal/domain"
	"city-distance-service/internal/ports"
)

func newTestOrchestrator(store *memStore, geo *mockGeocoder, router *mockRouter) *Orchestrator {
	geocoding := NewGeocodingResolver(store, geo, "MG", "Brasil", "nominatim", nil)
	distances := NewDistanceResolver(store, router, 1, time.Millisecond, "osrm", nil)
	distances.sleep = func(context.Context, time.Duration) error { return nil }
	stats := NewStatsCollector(store)

	return NewOrchestrator(geocoding, distances, stats, OrchestratorConfig{
		Workers:      4,
		RequestDelay: 0,
	}, nil)
}

func geoTable(names ...string) map[string]domain.Coordinates {
	table := make(map[string]domain.Coordinates)
	for i, n := range names {
		table[n+", MG, Brasil"] = domain.Coordinates{Lon: float64(i), Lat: float64(i)}
	}
	return table
}

func TestProcessBatchUnresolvableOriginFailsAllDestinations(t *testing.T) {
	store := newMemStore()
	geo := &mockGeocoder{results: geoTable()} // nothing resolves
	router := &mockRouter{}
	orch := newTestOrchestrator(store, geo, router)

	jobs := []domain.Job{domain.NewJob(0, "Atlantis", []string{"A", "B", "C"})}
	outcome, err := orch.ProcessBatch(context.Background(), jobs, 2)
	if err != nil {
		t.Fatal(err)
	}

	res := outcome.Results[0]
	if res.Status != domain.JobOriginUnresolved {
		t.Errorf("Status = %q", res.Status)
	}
	if res.SuccessCount != 0 || res.ErrorCount != 3 {
		t.Errorf("counts = (%d success, %d error), want (0, 3)", res.SuccessCount, res.ErrorCount)
	}
	if len(res.Errors) != 3 {
		t.Fatalf("got %d error records, want one per destination", len(res.Errors))
	}
	for _, e := range res.Errors {
		if e.Kind != domain.KindOriginUnresolved {
			t.Errorf("Kind = %q", e.Kind)
		}
	}
	if router.callCount() != 0 {
		t.Error("router was called without a resolved origin")
	}
}

func TestProcessBatchPartialFailureIsDataNotError(t *testing.T) {
	store := newMemStore()
	geo := &mockGeocoder{results: geoTable("Origin", "Alpha", "Gamma")} // Beta never resolves
	router := &mockRouter{}
	orch := newTestOrchestrator(store, geo, router)

	// Distances come from the cache so the mock router's call order cannot
	// make the outcome nondeterministic.
	ctx := context.Background()
	if err := store.PutDistance(ctx, "Origin", "Alpha", 10, 12, "osrm"); err != nil {
		t.Fatal(err)
	}
	if err := store.PutDistance(ctx, "Origin", "Gamma", 30, 40, "osrm"); err != nil {
		t.Fatal(err)
	}

	jobs := []domain.Job{domain.NewJob(0, "Origin", []string{"Alpha", "Beta", "Gamma"})}
	outcome, err := orch.ProcessBatch(ctx, jobs, 3)
	if err != nil {
		t.Fatal(err)
	}

	res := outcome.Results[0]
	if res.Status != domain.JobCompleted {
		t.Errorf("Status = %q, want completed despite one failed destination", res.Status)
	}
	if res.SuccessCount != 2 || res.ErrorCount != 1 {
		t.Errorf("counts = (%d, %d), want (2, 1)", res.SuccessCount, res.ErrorCount)
	}
	if res.NearestDestination != "Alpha" {
		t.Errorf("NearestDestination = %q, want Alpha", res.NearestDestination)
	}
	if res.NearestDistanceKm == nil || *res.NearestDistanceKm != 10 {
		t.Errorf("NearestDistanceKm = %v", res.NearestDistanceKm)
	}

	// Destination results keep submission order.
	wantOrder := []string{"Alpha", "Beta", "Gamma"}
	for i, d := range res.DestinationResults {
		if d.DestinationName != wantOrder[i] {
			t.Errorf("destination[%d] = %q, want %q", i, d.DestinationName, wantOrder[i])
		}
	}
	if res.DestinationResults[1].Status != domain.DestinationUnresolved {
		t.Errorf("Beta status = %q", res.DestinationResults[1].Status)
	}
	if res.DestinationResults[1].DistanceKm != nil {
		t.Error("failed destination carries a distance")
	}

	if len(outcome.Errors) != 1 || outcome.Errors[0].Kind != domain.KindDestinationUnresolved {
		t.Errorf("batch errors = %+v", outcome.Errors)
	}
}

func TestProcessBatchResultsSortedByJobIndex(t *testing.T) {
	store := newMemStore()
	geo := &mockGeocoder{results: geoTable("P", "Q", "R")}
	router := &mockRouter{fallback: routeOutcome{
		result: ports.RouteResult{DistanceMeters: 5000, DurationSeconds: 300},
		ok:     true,
	}}
	orch := newTestOrchestrator(store, geo, router)

	jobs := []domain.Job{
		domain.NewJob(0, "P", []string{"Q"}),
		domain.NewJob(1, "Q", []string{"R"}),
		domain.NewJob(2, "R", []string{"P"}),
	}

	outcome, err := orch.ProcessBatch(context.Background(), jobs, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.Results) != 3 {
		t.Fatalf("got %d results", len(outcome.Results))
	}
	for i, res := range outcome.Results {
		if res.Index != i {
			t.Errorf("result[%d].Index = %d", i, res.Index)
		}
		if res.Status != domain.JobCompleted {
			t.Errorf("result[%d].Status = %q", i, res.Status)
		}
	}
	if outcome.ElapsedSeconds < 0 {
		t.Error("negative elapsed time")
	}
	if outcome.Stats.Snapshot.SessionID != "mem" {
		t.Error("batch outcome is missing the stats snapshot")
	}
}

func TestProcessBatchNearestTieKeepsFirstOccurrence(t *testing.T) {
	store := newMemStore()
	geo := &mockGeocoder{results: geoTable("O", "First", "Second")}
	router := &mockRouter{}
	orch := newTestOrchestrator(store, geo, router)

	ctx := context.Background()
	if err := store.PutDistance(ctx, "O", "First", 15, 20, "osrm"); err != nil {
		t.Fatal(err)
	}
	if err := store.PutDistance(ctx, "O", "Second", 15, 25, "osrm"); err != nil {
		t.Fatal(err)
	}

	outcome, err := orch.ProcessBatch(ctx, []domain.Job{
		domain.NewJob(0, "O", []string{"First", "Second"}),
	}, 2)
	if err != nil {
		t.Fatal(err)
	}

	if got := outcome.Results[0].NearestDestination; got != "First" {
		t.Errorf("NearestDestination = %q, want the earlier of two equal distances", got)
	}
}

func TestProcessBatchCachedResultsCarryProvenance(t *testing.T) {
	store := newMemStore()
	geo := &mockGeocoder{results: geoTable("O", "D")}
	router := &mockRouter{fallback: routeOutcome{
		result: ports.RouteResult{DistanceMeters: 8000, DurationSeconds: 480},
		ok:     true,
	}}
	orch := newTestOrchestrator(store, geo, router)
	ctx := context.Background()

	jobs := []domain.Job{domain.NewJob(0, "O", []string{"D"})}

	first, err := orch.ProcessBatch(ctx, jobs, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := first.Results[0].DestinationResults[0].OriginOfData; got != domain.SourceFresh {
		t.Errorf("first run OriginOfData = %q, want fresh", got)
	}

	second, err := orch.ProcessBatch(ctx, jobs, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := second.Results[0].DestinationResults[0].OriginOfData; got != domain.SourceCache {
		t.Errorf("second run OriginOfData = %q, want cache", got)
	}
	if router.callCount() != 1 {
		t.Errorf("router calls = %d, want 1 across both runs", router.callCount())
	}
}
