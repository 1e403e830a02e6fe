package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"city-distance-service/internal/domain"
)

func TestRouteExtractsFirstRoute(t *testing.T) {
	var gotPath, gotOverview string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotOverview = r.URL.Query().Get("overview")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"routes":[{"distance":250456.2,"duration":10790.5},{"distance":999999,"duration":99999}]}`))
	}))
	defer srv.Close()

	client := NewOSRMClient(srv.URL, nil)

	res, found, err := client.Route(context.Background(),
		domain.Coordinates{Lon: -43.9378, Lat: -19.9208},
		domain.Coordinates{Lon: -48.2772, Lat: -18.9186})
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("found = false")
	}
	if res.DistanceMeters != 250456.2 || res.DurationSeconds != 10790.5 {
		t.Errorf("res = %+v, want the first route only", res)
	}

	wantPath := "/route/v1/driving/-43.9378,-19.9208;-48.2772,-18.9186"
	if gotPath != wantPath {
		t.Errorf("path = %q, want %q", gotPath, wantPath)
	}
	if gotOverview != "false" {
		t.Errorf("overview = %q", gotOverview)
	}
}

func TestRouteEmptyRoutesIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"routes":[]}`))
	}))
	defer srv.Close()

	client := NewOSRMClient(srv.URL, nil)

	_, found, err := client.Route(context.Background(), domain.Coordinates{}, domain.Coordinates{})
	if err != nil {
		t.Fatalf("empty routes reported as error: %v", err)
	}
	if found {
		t.Error("found = true for an empty route set")
	}
}

func TestRouteNonOKStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewOSRMClient(srv.URL, nil)

	if _, _, err := client.Route(context.Background(), domain.Coordinates{}, domain.Coordinates{}); err == nil {
		t.Fatal("expected error for status 502")
	}
}
