// Package async runs extraction jobs in the background, either on
// in-process channel workers or on workers fed from a Redis list.
package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by Enqueue after Shutdown has started.
var ErrClosed = errors.New("queue is shutting down")

// Job is one stored upload waiting to be processed.
type Job struct {
	RunID       uuid.UUID `json:"run_id"`
	Path        string    `json:"path"`
	Filename    string    `json:"filename"`
	ChunkSize   int       `json:"chunk_size"`
	Dedup       bool      `json:"dedup"`
	SubmittedAt time.Time `json:"submitted_at"`
	TraceID     string    `json:"trace_id,omitempty"`
}

// Handler processes one job. Its error is logged; jobs are not retried.
type Handler func(ctx context.Context, job Job) error

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
