// Package server exposes extraction runs over HTTP: uploads are stored,
// queued and processed in the background, and their progress is streamed
// to websocket subscribers.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/company-extractor/internal/async"
	"github.com/joseph-ayodele/company-extractor/internal/common"
	"github.com/joseph-ayodele/company-extractor/internal/entity"
	"github.com/joseph-ayodele/company-extractor/internal/llm"
	"github.com/joseph-ayodele/company-extractor/internal/pipeline"
	"github.com/joseph-ayodele/company-extractor/internal/repository"
)

// DocumentProcessor is satisfied by *pipeline.Processor.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, name string, data []byte, opts pipeline.Options, obs pipeline.Observer) (*pipeline.RunResult, error)
}

// HealthChecker is satisfied by *repository.Store.
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

type Options struct {
	UploadDir        string
	MaxUploadBytes   int64
	DefaultChunkSize int
	DefaultDedup     bool
}

type Service struct {
	runs   repository.RunRepository
	queue  async.Queue
	proc   DocumentProcessor
	hub    *Hub
	models llm.ModelLister
	health HealthChecker
	opts   Options
	logger *slog.Logger
}

func NewService(
	runs repository.RunRepository,
	proc DocumentProcessor,
	hub *Hub,
	models llm.ModelLister,
	health HealthChecker,
	opts Options,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "./tmp/uploads"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	return &Service{
		runs:   runs,
		proc:   proc,
		hub:    hub,
		models: models,
		health: health,
		opts:   opts,
		logger: logger,
	}
}

// AttachQueue sets the queue runs are submitted to. The queue's handler is
// normally s.ProcessJob, so the two are built in two steps.
func (s *Service) AttachQueue(q async.Queue) { s.queue = q }

func (s *Service) Hub() *Hub { return s.hub }

// Submission describes a stored document to be processed.
type Submission struct {
	SourceName string
	Path       string
	ChunkSize  int
	Dedup      *bool
}

// Submit records a QUEUED run for a document already on disk and enqueues it.
func (s *Service) Submit(ctx context.Context, sub Submission) (*entity.Run, error) {
	if s.queue == nil {
		return nil, common.NewAppError("NOT_READY", "no queue attached", common.ErrInternal)
	}
	chunkSize := sub.ChunkSize
	if chunkSize <= 0 {
		chunkSize = s.opts.DefaultChunkSize
	}
	dedup := s.opts.DefaultDedup
	if sub.Dedup != nil {
		dedup = *sub.Dedup
	}

	run := &entity.Run{SourceName: sub.SourceName, ChunkSize: chunkSize, Dedup: dedup}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}
	job := async.Job{
		RunID:     run.ID,
		Path:      sub.Path,
		Filename:  sub.SourceName,
		ChunkSize: chunkSize,
		Dedup:     dedup,
		TraceID:   common.RequestIDFromContext(ctx),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		msg := fmt.Sprintf("enqueue: %v", err)
		if ferr := s.runs.Fail(context.WithoutCancel(ctx), run.ID, msg, nil); ferr != nil {
			s.logger.Error("runs.submit.fail_mark_failed", "run_id", run.ID, "error", ferr)
		}
		return nil, common.NewAppError("QUEUE_ERROR", "could not enqueue run", err)
	}
	s.logger.Info("runs.submitted", "run_id", run.ID, "source", sub.SourceName,
		"chunk_size", chunkSize, "dedup", dedup, "req_id", job.TraceID)
	return run, nil
}

// SubmitPath queues a file found on disk, e.g. by the inbox watcher.
func (s *Service) SubmitPath(ctx context.Context, path string) error {
	_, err := s.Submit(ctx, Submission{SourceName: filepath.Base(path), Path: path})
	return err
}

// storeUpload writes an uploaded document under the upload directory.
func (s *Service) storeUpload(id uuid.UUID, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(s.opts.UploadDir, id.String()+".pdf")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	return path, nil
}
