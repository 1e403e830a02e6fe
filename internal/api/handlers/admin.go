package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"city-distance-service/internal/api/dto"
	"city-distance-service/internal/ports"
	"city-distance-service/internal/services"
)

// AdminHandler exposes cache maintenance and diagnostics.
type AdminHandler struct {
	Store ports.CacheStore
	Stats *services.StatsCollector
}

// Cleanup removes every expired entry of both kinds.
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	removed, err := h.Store.Cleanup(r.Context())
	if err != nil {
		log.Printf("cache cleanup failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, dto.CleanupResponse{Removed: removed})
}

// Clear removes all entries and resets the session counters.
func (h *AdminHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.Store.Clear(r.Context()); err != nil {
		log.Printf("cache clear failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "cleared"})
}

// ShowStats reports session counters, derived hit rates and store size.
func (h *AdminHandler) ShowStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	report, err := h.Stats.Collect(r.Context())
	if err != nil {
		log.Printf("stats collection failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, toStatsResponse(report))
}

// Search lists live entries whose place names match a pattern.
func (h *AdminHandler) Search(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	pattern := strings.TrimSpace(r.URL.Query().Get("pattern"))
	if pattern == "" {
		writeError(w, r, http.StatusBadRequest, "pattern is required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	result, err := h.Store.Search(r.Context(), pattern, limit)
	if err != nil {
		log.Printf("cache search failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, toSearchResponse(result))
}

func toSearchResponse(result ports.SearchResult) dto.SearchResponse {
	res := dto.SearchResponse{
		Coordinates: make([]dto.CoordinateEntryResponse, 0, len(result.Coordinates)),
		Distances:   make([]dto.DistanceEntryResponse, 0, len(result.Distances)),
	}

	for _, c := range result.Coordinates {
		res.Coordinates = append(res.Coordinates, dto.CoordinateEntryResponse{
			PlaceName:  c.PlaceName,
			Lon:        c.Coords.Lon,
			Lat:        c.Coords.Lat,
			Source:     c.Source,
			Confidence: c.Confidence,
			Hits:       c.Hits,
			CreatedAt:  c.CreatedAt,
			ExpiresAt:  c.ExpiresAt,
		})
	}

	for _, d := range result.Distances {
		res.Distances = append(res.Distances, dto.DistanceEntryResponse{
			Origin:      d.OriginName,
			Destination: d.DestinationName,
			DistanceKm:  d.DistanceKm,
			DurationMin: d.DurationMin,
			Source:      d.Source,
			Hits:        d.Hits,
			CreatedAt:   d.CreatedAt,
		})
	}

	return res
}
