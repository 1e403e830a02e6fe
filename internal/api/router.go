package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"city-distance-service/internal/api/handlers"
	"city-distance-service/internal/ports"
	"city-distance-service/internal/services"
)

// NewRouter wires every HTTP surface of the service.
func NewRouter(orchestrator *services.Orchestrator, store ports.CacheStore, stats *services.StatsCollector) http.Handler {
	batch := &handlers.BatchHandler{Orchestrator: orchestrator}
	admin := &handlers.AdminHandler{Store: store, Stats: stats}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.Health)
	mux.HandleFunc("/batch", batch.Process)
	mux.HandleFunc("/stats", admin.ShowStats)
	mux.HandleFunc("/admin/cleanup", admin.Cleanup)
	mux.HandleFunc("/admin/clear", admin.Clear)
	mux.HandleFunc("/admin/search", admin.Search)
	mux.Handle("/metrics", promhttp.Handler())

	return loggingMiddleware(mux)
}
