package entity

import (
	"time"

	"github.com/google/uuid"
)

// Run represents one document-processing run for data transfer between layers.
type Run struct {
	ID             uuid.UUID  `json:"id"`
	SourceName     string     `json:"source_name"`
	Status         string     `json:"status"`
	ChunkSize      int        `json:"chunk_size"`
	Dedup          bool       `json:"dedup"`
	Chunks         int        `json:"chunks"`
	FailedChunks   int        `json:"failed_chunks"`
	RecordCount    int        `json:"record_count"`
	Records        []Company  `json:"records,omitempty"`
	Warnings       []string   `json:"warnings,omitempty"`
	Stats          *RunStats  `json:"stats,omitempty"`
	ExportFilename *string    `json:"export_filename,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// RunStats mirrors the preview figures shown for a finished run.
type RunStats struct {
	Companies       int     `json:"companies"`
	CompletionRate  float64 `json:"completion_rate"`
	UniqueCountries int     `json:"unique_countries"`
}
