package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/company-extractor/internal/chunk"
	"github.com/joseph-ayodele/company-extractor/internal/common"
	"github.com/joseph-ayodele/company-extractor/internal/entity"
	"github.com/joseph-ayodele/company-extractor/internal/pdf"
)

// TextSource is satisfied by *pdf.Extractor.
type TextSource interface {
	Extract(ctx context.Context, data []byte) (pdf.Result, error)
}

// Exporter is satisfied by *export.Service.
type Exporter interface {
	ExportXLSX(ctx context.Context, records []entity.Company) ([]byte, error)
}

// StatsFunc summarizes a record set; export.Summarize in production.
type StatsFunc func([]entity.Company) entity.RunStats

// Options tune a single run.
type Options struct {
	ChunkSize int
	Dedup     bool
}

// RunResult is everything one document produced. On failure it still
// carries whatever was gathered before the failing step.
type RunResult struct {
	RunID    string
	Source   string
	Text     pdf.Result
	Chunks   int
	Records  []entity.Company
	Warnings []string
	Outcomes []ChunkOutcome
	Merged   int
	Stats    entity.RunStats
	Artifact []byte
	Filename string
}

func (r *RunResult) FailedChunks() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Failed() {
			n++
		}
	}
	return n
}

// Processor chains text extraction, chunking, model extraction and export.
type Processor struct {
	logger       *slog.Logger
	text         TextSource
	orchestrator *Orchestrator
	exporter     Exporter
	stats        StatsFunc
	filename     func(time.Time) string
	now          func() time.Time
}

func NewProcessor(
	logger *slog.Logger,
	text TextSource,
	orchestrator *Orchestrator,
	exporter Exporter,
	stats StatsFunc,
	filename func(time.Time) string,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:       logger,
		text:         text,
		orchestrator: orchestrator,
		exporter:     exporter,
		stats:        stats,
		filename:     filename,
		now:          time.Now,
	}
}

// ExtractDocument runs text extraction and the chunk pipeline, without
// exporting. The run id is taken from ctx when present.
func (p *Processor) ExtractDocument(ctx context.Context, name string, data []byte, opts Options, obs Observer) (*RunResult, error) {
	runID := common.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.New().String()
		ctx = common.WithRunID(ctx, runID)
	}
	res := &RunResult{RunID: runID, Source: name}
	start := time.Now()

	p.logger.Info("processor.run.start", "run_id", runID, "source", name, "bytes", len(data))

	text, err := p.text.Extract(ctx, data)
	res.Text = text
	if err != nil {
		p.logger.Error("processor.text.failed", "run_id", runID, "source", name, "error", err)
		return res, fmt.Errorf("extract text from %s: %w", name, err)
	}

	chunks := chunk.NewChunker(opts.ChunkSize).Split(text.Text)
	res.Chunks = len(chunks)
	p.logger.Debug("processor.chunked", "run_id", runID, "chunks", len(chunks), "chars", len(text.Text))

	orch := p.orchestrator
	if obs != nil {
		orch = orch.WithObserver(obs)
	}
	acc, err := orch.Extract(ctx, chunks, NewAccumulator(opts.Dedup))
	res.Records = acc.Records()
	res.Outcomes = acc.Outcomes()
	res.Warnings = append(append([]string(nil), text.Warnings...), acc.Warnings()...)
	res.Merged = acc.Merged()
	if p.stats != nil {
		res.Stats = p.stats(res.Records)
	}
	if err != nil {
		return res, err
	}

	p.logger.Info("processor.run.extracted",
		"run_id", runID,
		"records", len(res.Records),
		"failed_chunks", res.FailedChunks(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// ProcessDocument is ExtractDocument followed by XLSX export. An export
// failure is returned as *common.ExportError together with the records.
func (p *Processor) ProcessDocument(ctx context.Context, name string, data []byte, opts Options, obs Observer) (*RunResult, error) {
	res, err := p.ExtractDocument(ctx, name, data, opts, obs)
	if err != nil {
		return res, err
	}
	artifact, err := p.exporter.ExportXLSX(ctx, res.Records)
	if err != nil {
		p.logger.Error("processor.export.failed", "run_id", res.RunID, "error", err)
		return res, err
	}
	res.Artifact = artifact
	if p.filename != nil {
		res.Filename = p.filename(p.now())
	}
	p.logger.Info("processor.run.ok", "run_id", res.RunID, "filename", res.Filename, "bytes", len(artifact))
	return res, nil
}
