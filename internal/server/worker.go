package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joseph-ayodele/company-extractor/constants"
	"github.com/joseph-ayodele/company-extractor/internal/async"
	"github.com/joseph-ayodele/company-extractor/internal/common"
	"github.com/joseph-ayodele/company-extractor/internal/pipeline"
	"github.com/joseph-ayodele/company-extractor/internal/repository"
)

// ProcessJob is the queue handler: it moves a run through RUNNING to
// COMPLETED or FAILED and publishes progress on the hub.
func (s *Service) ProcessJob(ctx context.Context, job async.Job) error {
	runID := job.RunID.String()
	ctx = common.WithRunID(ctx, runID)
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}
	start := time.Now()

	if err := s.runs.MarkRunning(ctx, job.RunID); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	s.hub.Publish(runID, Event{Type: EventStatus, Status: string(constants.RunStatusRunning)})

	data, err := os.ReadFile(job.Path)
	if err != nil {
		return s.fail(ctx, job, fmt.Errorf("read upload: %w", err), nil)
	}

	opts := pipeline.Options{ChunkSize: job.ChunkSize, Dedup: job.Dedup}
	res, err := s.proc.ProcessDocument(ctx, job.Filename, data, opts, func(p pipeline.Progress) {
		s.hub.Publish(runID, Event{Type: EventProgress, Progress: &p})
	})
	if err != nil {
		return s.fail(ctx, job, err, res)
	}

	stats := res.Stats
	err = s.runs.Complete(context.WithoutCancel(ctx), job.RunID, repository.Completion{
		Chunks:       res.Chunks,
		FailedChunks: res.FailedChunks(),
		Records:      res.Records,
		Warnings:     res.Warnings,
		Stats:        &stats,
		Artifact:     res.Artifact,
		Filename:     res.Filename,
	})
	if err != nil {
		s.hub.Finish(runID, Event{Type: EventStatus, Status: string(constants.RunStatusFailed), Error: err.Error()})
		return fmt.Errorf("store result: %w", err)
	}

	s.logger.Info("runs.completed",
		"run_id", runID,
		"records", len(res.Records),
		"failed_chunks", res.FailedChunks(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	s.hub.Finish(runID, Event{Type: EventStatus, Status: string(constants.RunStatusCompleted), Stats: &stats})
	return nil
}

// fail records the failure with whatever partial result exists.
func (s *Service) fail(ctx context.Context, job async.Job, cause error, res *pipeline.RunResult) error {
	runID := job.RunID.String()
	var partial *repository.Completion
	if res != nil {
		stats := res.Stats
		partial = &repository.Completion{
			Chunks:       res.Chunks,
			FailedChunks: res.FailedChunks(),
			Records:      res.Records,
			Warnings:     res.Warnings,
			Stats:        &stats,
		}
	}
	msg := cause.Error()
	if errors.Is(cause, context.DeadlineExceeded) {
		msg = "processing timed out: " + msg
	}
	if err := s.runs.Fail(context.WithoutCancel(ctx), job.RunID, msg, partial); err != nil {
		s.logger.Error("runs.fail.store_failed", "run_id", runID, "error", err)
	}
	s.hub.Finish(runID, Event{Type: EventStatus, Status: string(constants.RunStatusFailed), Error: msg})
	return cause
}
