package model

import "time"

// Run statuses, in the order a healthy run passes through them.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusAcquiring = "acquiring"
	StatusComputing = "computing"
	StatusRendering = "rendering"
	StatusExporting = "exporting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Data sources recorded against a run.
const (
	SourceWorldBank = "world_bank"
	SourceSynthetic = "synthetic"
)

// RunRecord is the persisted view of one pipeline run.
type RunRecord struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	DataSource     string    `json:"data_source,omitempty"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	StartYear      int       `json:"start_year"`
	EndYear        int       `json:"end_year"`
	OutputDir      string    `json:"output_dir"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RunError is one failure recorded for a run.
type RunError struct {
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ExportResult represents the result of an export operation
type ExportResult struct {
	Type        string    `json:"type"` // "csv", "png", "xlsx"
	Path        string    `json:"path"`
	RecordCount int       `json:"record_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ExportedAt  time.Time `json:"exported_at"`
}

// Artifact is a stored output file of a run.
type Artifact struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	DownloadURL string    `json:"download_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
