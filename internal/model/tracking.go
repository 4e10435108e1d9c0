package model

import "time"

// Pipeline stage names.
const (
	StageAcquisition = "acquisition"
	StageSynthetic   = "synthetic"
	StageStatistics  = "statistics"
	StageCorrelation = "correlation"
	StageRendering   = "rendering"
	StageExport      = "export"
	StageReport      = "report"
)

// StageProgress tracks one stage of a run.
type StageProgress struct {
	Stage     string        `json:"stage"`
	Status    string        `json:"status"` // "running", "completed", "failed"
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	Items     int           `json:"items"`
}

// RunSummary aggregates the outcome of a finished run.
type RunSummary struct {
	RunID      string          `json:"run_id"`
	Status     string          `json:"status"`
	DataSource string          `json:"data_source"`
	Duration   time.Duration   `json:"duration_ns"`
	Stages     []StageProgress `json:"stages"`
	Artifacts  []Artifact      `json:"artifacts"`
	ErrorCount int             `json:"error_count"`
}
