package dto

// BatchRequest submits one or more jobs for distance resolution.
type BatchRequest struct {
	Jobs        []JobRequest `json:"jobs"`
	Concurrency int          `json:"concurrency,omitempty"`
}

type JobRequest struct {
	Origin       string   `json:"origin"`
	Destinations []string `json:"destinations"`
}

type DestinationResultResponse struct {
	Destination  string   `json:"destination"`
	DistanceKm   *float64 `json:"distance_km,omitempty"`
	DurationMin  *float64 `json:"duration_min,omitempty"`
	OriginOfData string   `json:"origin_of_data,omitempty"`
	Status       string   `json:"status"`
}

type ErrorRecordResponse struct {
	Kind        string `json:"kind"`
	Origin      string `json:"origin"`
	Destination string `json:"destination,omitempty"`
	Message     string `json:"message"`
}

type JobResultResponse struct {
	Index              int                         `json:"index"`
	Origin             string                      `json:"origin"`
	Destinations       []DestinationResultResponse `json:"destinations"`
	NearestDestination string                      `json:"nearest_destination,omitempty"`
	NearestDistanceKm  *float64                    `json:"nearest_distance_km,omitempty"`
	SuccessCount       int                         `json:"success_count"`
	ErrorCount         int                         `json:"error_count"`
	ElapsedSeconds     float64                     `json:"elapsed_seconds"`
	Status             string                      `json:"status"`
	Errors             []ErrorRecordResponse       `json:"errors,omitempty"`
}

type BatchResponse struct {
	Results        []JobResultResponse   `json:"results"`
	Errors         []ErrorRecordResponse `json:"errors,omitempty"`
	ElapsedSeconds float64               `json:"elapsed_seconds"`
	Stats          StatsResponse         `json:"stats"`
}
