package dto

type KindStatsResponse struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Saves       int64   `json:"saves"`
	HitRate     float64 `json:"hit_rate"`
	LiveEntries int64   `json:"live_entries"`
}

type StatsResponse struct {
	Coordinates    KindStatsResponse `json:"coordinates"`
	Distances      KindStatsResponse `json:"distances"`
	OverallHitRate float64           `json:"overall_hit_rate"`
	TotalEntries   int64             `json:"total_entries"`
	DatabasePath   string            `json:"database_path,omitempty"`
	FileSizeBytes  int64             `json:"file_size_bytes,omitempty"`
	SessionID      string            `json:"session_id"`
}
