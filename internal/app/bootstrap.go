// Package app wires configuration into the services the commands run.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/company-extractor/internal/common"
	"github.com/joseph-ayodele/company-extractor/internal/export"
	"github.com/joseph-ayodele/company-extractor/internal/llm"
	"github.com/joseph-ayodele/company-extractor/internal/llm/provider"
	"github.com/joseph-ayodele/company-extractor/internal/pdf"
	"github.com/joseph-ayodele/company-extractor/internal/pipeline"
	"github.com/joseph-ayodele/company-extractor/internal/repository"
)

// NewLogger builds the process logger. The daemon drops time and level
// from text output; batch tools log JSON.
func NewLogger(jsonOutput, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	var h slog.Handler
	if jsonOutput {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
					return slog.Attr{}
				}
				return a
			},
		})
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// Pipeline bundles the extraction services built from one Config.
type Pipeline struct {
	Backend   provider.Backend
	Processor *pipeline.Processor
	Exporter  *export.Service
	Text      *pdf.Extractor
}

// BuildPipeline constructs text extraction, the model backend, the
// orchestrator and the exporter.
func BuildPipeline(cfg *common.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	backend, err := provider.New(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	prompt, err := llm.LoadPrompt(cfg.LLM.PromptFile)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "load prompt", err)
	}
	validator, err := llm.NewValidator(logger)
	if err != nil {
		return nil, fmt.Errorf("build validator: %w", err)
	}

	text := pdf.NewExtractor(pdf.Config{
		Pdftotext: cfg.PDF.Pdftotext,
		Fallback:  cfg.PDF.Fallback,
	}, logger)
	orch := pipeline.NewOrchestrator(
		provider.Completer(backend, cfg.LLM, logger),
		validator,
		prompt,
		pipeline.Config{Pacing: cfg.Pipeline.Pacing, Concurrency: cfg.Pipeline.Concurrency},
		logger,
	)
	exporter := export.NewService(logger)
	proc := pipeline.NewProcessor(logger, text, orch, exporter, export.Summarize, export.Filename)

	logger.Info("pipeline ready",
		"provider", cfg.LLM.Provider,
		"model", backend.Model(),
		"chunk_size", cfg.Pipeline.ChunkSize,
		"concurrency", cfg.Pipeline.Concurrency,
		"structured_output", cfg.LLM.StructuredOutput,
	)
	return &Pipeline{Backend: backend, Processor: proc, Exporter: exporter, Text: text}, nil
}

// OpenStore opens the run store described by cfg.Database.
func OpenStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*repository.Store, error) {
	return repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
}
