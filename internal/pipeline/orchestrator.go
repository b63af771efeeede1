// Package pipeline turns document text into company records: it feeds
// chunks to a model backend, validates each reply and accumulates the
// records in chunk order.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/company-extractor/internal/common"
	"github.com/joseph-ayodele/company-extractor/internal/entity"
	"github.com/joseph-ayodele/company-extractor/internal/llm"
)

const DefaultPacing = 200 * time.Millisecond

type Config struct {
	// Pacing is the delay between consecutive model calls. Zero disables it.
	Pacing time.Duration
	// Concurrency > 1 allows that many calls in flight; records are still
	// committed in chunk order.
	Concurrency int
}

// RecordValidator is satisfied by *llm.Validator.
type RecordValidator interface {
	Validate(raw string) ([]entity.Company, []llm.Warning, error)
}

type Orchestrator struct {
	completer llm.Completer
	validator RecordValidator
	prompt    llm.Prompt
	cfg       Config
	observer  Observer
	logger    *slog.Logger
}

func NewOrchestrator(completer llm.Completer, validator RecordValidator, prompt llm.Prompt, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Pacing < 0 {
		cfg.Pacing = 0
	}
	return &Orchestrator{
		completer: completer,
		validator: validator,
		prompt:    prompt,
		cfg:       cfg,
		logger:    logger,
	}
}

// WithObserver returns a copy of o that reports progress to obs.
func (o *Orchestrator) WithObserver(obs Observer) *Orchestrator {
	cp := *o
	cp.observer = obs
	return &cp
}

type chunkResult struct {
	outcome  ChunkOutcome
	records  []entity.Company
	finished bool
}

// Extract runs every chunk through the model and appends the results to acc
// (a fresh one when nil) in chunk order. Failures of individual chunks are
// recorded as outcomes and never stop the run. Only ctx cancellation ends it
// early, in which case the partial accumulator is returned with ctx.Err().
func (o *Orchestrator) Extract(ctx context.Context, chunks []string, acc *Accumulator) (*Accumulator, error) {
	if acc == nil {
		acc = NewAccumulator(false)
	}
	runID := common.RunIDFromContext(ctx)
	start := time.Now()
	o.logger.Info("pipeline.extract.start",
		"run_id", runID,
		"chunks", len(chunks),
		"concurrency", o.cfg.Concurrency,
	)

	var err error
	if o.cfg.Concurrency > 1 && len(chunks) > 1 {
		err = o.extractConcurrent(ctx, runID, chunks, acc)
	} else {
		err = o.extractSequential(ctx, runID, chunks, acc)
	}

	if err != nil {
		o.logger.Warn("pipeline.extract.canceled",
			"run_id", runID,
			"error", err,
			"records", acc.Len(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return acc, err
	}
	o.logger.Info("pipeline.extract.ok",
		"run_id", runID,
		"records", acc.Len(),
		"failed_chunks", acc.FailedChunks(),
		"merged", acc.Merged(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return acc, nil
}

func (o *Orchestrator) extractSequential(ctx context.Context, runID string, chunks []string, acc *Accumulator) error {
	for i, text := range chunks {
		if i > 0 {
			if err := sleep(ctx, o.cfg.Pacing); err != nil {
				return err
			}
		}
		res := o.processChunk(ctx, runID, i, text)
		if err := ctx.Err(); err != nil {
			return err
		}
		acc.Add(res.outcome, res.records)
		o.emit(runID, res, i+1, len(chunks))
	}
	return nil
}

func (o *Orchestrator) extractConcurrent(ctx context.Context, runID string, chunks []string, acc *Accumulator) error {
	slots := make([]chunkResult, len(chunks))
	var (
		g    errgroup.Group
		mu   sync.Mutex
		done int
	)
	g.SetLimit(o.cfg.Concurrency)

	for i, text := range chunks {
		if i > 0 {
			if err := sleep(ctx, o.cfg.Pacing); err != nil {
				break
			}
		}
		g.Go(func() error {
			res := o.processChunk(ctx, runID, i, text)
			if ctx.Err() != nil {
				return nil
			}
			res.finished = true
			slots[i] = res
			mu.Lock()
			done++
			o.emit(runID, res, done, len(chunks))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		// Commit only the unbroken prefix of finished chunks.
		for i := range slots {
			if !slots[i].finished {
				break
			}
			acc.Add(slots[i].outcome, slots[i].records)
		}
		return err
	}
	for i := range slots {
		acc.Add(slots[i].outcome, slots[i].records)
	}
	return nil
}

func (o *Orchestrator) processChunk(ctx context.Context, runID string, i int, text string) chunkResult {
	start := time.Now()
	res := chunkResult{outcome: ChunkOutcome{Index: i}}

	resp, err := o.completer.Complete(ctx, o.prompt.Build(text))
	if err != nil {
		res.outcome.Err = &common.CompletionError{Chunk: i, Err: err}
		o.logger.Error("pipeline.chunk.failed",
			"run_id", runID,
			"chunk", i,
			"stage", "completion",
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return res
	}

	payload := llm.LocatePayload(resp)
	records, warnings, err := o.validator.Validate(payload)
	if err != nil {
		var pe *common.ParseError
		if errors.As(err, &pe) {
			pe.Chunk = i
			err = pe
		} else {
			err = &common.ParseError{Chunk: i, Reason: "validate", Err: err}
		}
		res.outcome.Err = err
		o.logger.Error("pipeline.chunk.failed",
			"run_id", runID,
			"chunk", i,
			"stage", "parse",
			"error", err,
			"response_len", len(resp),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return res
	}

	res.records = records
	res.outcome.Warnings = warnings
	o.logger.Debug("pipeline.chunk.ok",
		"run_id", runID,
		"chunk", i,
		"records", len(records),
		"warnings", len(warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res
}

func (o *Orchestrator) emit(runID string, res chunkResult, done, total int) {
	if o.observer == nil {
		return
	}
	p := Progress{
		RunID:   runID,
		Chunk:   res.outcome.Index,
		Done:    done,
		Total:   total,
		Percent: percent(done, total),
		Records: len(res.records),
	}
	if res.outcome.Err != nil {
		p.Err = res.outcome.Err.Error()
	}
	o.observer(p)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
