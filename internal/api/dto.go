package api

import (
	"github.com/starford/dagaz/internal/imaging"
	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/perf"
	"github.com/starford/dagaz/internal/startup"
)

// EntryListResponse wraps paginated entry listings.
type EntryListResponse struct {
	Entries []journal.Entry `json:"entries"`
	Total   int             `json:"total"`
}

// CountResponse wraps the total entry count.
type CountResponse struct {
	Count int `json:"count"`
}

// PhotoUploadResponse is returned after a photo has been normalized and saved
// into the managed directory.
type PhotoUploadResponse struct {
	Path               string             `json:"path"`
	ProcessingTimeMS   int64              `json:"processing_time_ms"`
	OriginalDimensions imaging.Dimensions `json:"original_dimensions"`
	FinalDimensions    imaging.Dimensions `json:"final_dimensions"`
	Performance        imaging.Verdict    `json:"performance"`
	EstimatedSizeKB    float64            `json:"estimated_size_kb"`
}

// PhotoStatsResponse reports directory-level photo accounting.
type PhotoStatsResponse struct {
	DirectorySizeMB float64 `json:"directory_size_mb"`
}

// StatusResponse reports the startup state machine and the last launch result.
type StatusResponse struct {
	State       startup.State               `json:"state"`
	Initialized bool                        `json:"initialized"`
	LastResult  *startup.Result             `json:"last_result,omitempty"`
	Phases      map[string]perf.PhaseMetrics `json:"phases,omitempty"`
}

// HealthResponse reports the health-check outcome.
type HealthResponse struct {
	Healthy bool `json:"healthy"`
}

// RecoverResponse reports the out-of-band recovery outcome.
type RecoverResponse struct {
	Recovered bool `json:"recovered"`
}
