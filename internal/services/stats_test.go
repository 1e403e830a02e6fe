package services

import (
	"context"
	"errors"
	"testing"
)

func TestCollectDerivesHitRates(t *testing.T) {
	store := newMemStore()
	store.coordHits, store.coordMisses = 3, 1
	store.distHits, store.distMisses = 1, 3

	report, err := NewStatsCollector(store).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if report.CoordinateHitRate != 75 {
		t.Errorf("CoordinateHitRate = %v, want 75", report.CoordinateHitRate)
	}
	if report.DistanceHitRate != 25 {
		t.Errorf("DistanceHitRate = %v, want 25", report.DistanceHitRate)
	}
	if report.OverallHitRate != 50 {
		t.Errorf("OverallHitRate = %v, want 50", report.OverallHitRate)
	}
}

func TestCollectZeroLookupsReportsZeroRate(t *testing.T) {
	report, err := NewStatsCollector(newMemStore()).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.CoordinateHitRate != 0 || report.DistanceHitRate != 0 || report.OverallHitRate != 0 {
		t.Errorf("rates = %+v, want all zero", report)
	}
}

func TestCollectWrapsStoreErrors(t *testing.T) {
	store := newMemStore()
	store.statsErr = errors.New("closed")

	if _, err := NewStatsCollector(store).Collect(context.Background()); err == nil {
		t.Fatal("expected store error to propagate")
	}
}
