// Package ingest discovers PDF documents on disk: one-shot directory walks
// for the batch CLI and an fsnotify inbox for the daemon. Files are
// identified by content hash so the same document is processed once.
package ingest

import (
	"context"
	"time"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	Deduplicated bool
	HashHex      string
	Size         int64
	SeenAt       time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the CLI and the inbox depend on.
type Ingestor interface {
	// IngestPath hashes a single path and reports whether its content was seen before.
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	// IngestDirectory ingests all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
