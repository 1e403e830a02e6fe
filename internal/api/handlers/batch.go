package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"city-distance-service/internal/api/dto"
	"city-distance-service/internal/domain"
	"city-distance-service/internal/services"
)

type BatchHandler struct {
	Orchestrator *services.Orchestrator
}

// Process resolves distances for a batch of jobs. Destination-level failures
// come back as data inside the response; only a malformed request or a total
// store failure produces a non-200.
func (h *BatchHandler) Process(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.BatchRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	if len(req.Jobs) == 0 {
		writeError(w, r, http.StatusBadRequest, "jobs must not be empty")
		return
	}
	if req.Concurrency < 0 || req.Concurrency > 16 {
		writeError(w, r, http.StatusBadRequest, "concurrency must be between 0 and 16")
		return
	}

	jobs := make([]domain.Job, 0, len(req.Jobs))
	for i, j := range req.Jobs {
		if strings.TrimSpace(j.Origin) == "" {
			writeError(w, r, http.StatusBadRequest, "job origin must not be empty")
			return
		}
		jobs = append(jobs, domain.NewJob(i, j.Origin, j.Destinations))
	}

	outcome, err := h.Orchestrator.ProcessBatch(r.Context(), jobs, req.Concurrency)
	if err != nil {
		log.Printf("process batch failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, toBatchResponse(outcome))
}

func toBatchResponse(outcome services.BatchOutcome) dto.BatchResponse {
	res := dto.BatchResponse{
		Results:        make([]dto.JobResultResponse, 0, len(outcome.Results)),
		Errors:         toErrorResponses(outcome.Errors),
		ElapsedSeconds: outcome.ElapsedSeconds,
		Stats:          toStatsResponse(outcome.Stats),
	}

	for _, jr := range outcome.Results {
		dests := make([]dto.DestinationResultResponse, 0, len(jr.DestinationResults))
		for _, d := range jr.DestinationResults {
			dests = append(dests, dto.DestinationResultResponse{
				Destination:  d.DestinationName,
				DistanceKm:   d.DistanceKm,
				DurationMin:  d.DurationMin,
				OriginOfData: string(d.OriginOfData),
				Status:       string(d.Status),
			})
		}

		res.Results = append(res.Results, dto.JobResultResponse{
			Index:              jr.Index,
			Origin:             jr.OriginName,
			Destinations:       dests,
			NearestDestination: jr.NearestDestination,
			NearestDistanceKm:  jr.NearestDistanceKm,
			SuccessCount:       jr.SuccessCount,
			ErrorCount:         jr.ErrorCount,
			ElapsedSeconds:     jr.ElapsedSeconds,
			Status:             string(jr.Status),
			Errors:             toErrorResponses(jr.Errors),
		})
	}

	return res
}

func toErrorResponses(records []domain.ErrorRecord) []dto.ErrorRecordResponse {
	if len(records) == 0 {
		return nil
	}
	out := make([]dto.ErrorRecordResponse, 0, len(records))
	for _, e := range records {
		out = append(out, dto.ErrorRecordResponse{
			Kind:        string(e.Kind),
			Origin:      e.OriginName,
			Destination: e.DestinationName,
			Message:     e.Message,
		})
	}
	return out
}

func toStatsResponse(report domain.StatsReport) dto.StatsResponse {
	snap := report.Snapshot
	return dto.StatsResponse{
		Coordinates: dto.KindStatsResponse{
			Hits:        snap.Coordinates.Hits,
			Misses:      snap.Coordinates.Misses,
			Saves:       snap.Coordinates.Saves,
			HitRate:     report.CoordinateHitRate,
			LiveEntries: snap.Coordinates.LiveEntries,
		},
		Distances: dto.KindStatsResponse{
			Hits:        snap.Distances.Hits,
			Misses:      snap.Distances.Misses,
			Saves:       snap.Distances.Saves,
			HitRate:     report.DistanceHitRate,
			LiveEntries: snap.Distances.LiveEntries,
		},
		OverallHitRate: report.OverallHitRate,
		TotalEntries:   snap.TotalEntries,
		DatabasePath:   snap.DatabasePath,
		FileSizeBytes:  snap.FileSizeBytes,
		SessionID:      snap.SessionID,
	}
}
