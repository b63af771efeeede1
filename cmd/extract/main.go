package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joseph-ayodele/company-extractor/internal/app"
	"github.com/joseph-ayodele/company-extractor/internal/common"
	"github.com/joseph-ayodele/company-extractor/internal/entity"
	"github.com/joseph-ayodele/company-extractor/internal/export"
	"github.com/joseph-ayodele/company-extractor/internal/ingest"
	"github.com/joseph-ayodele/company-extractor/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		file        = flag.String("file", "", "PDF document to process")
		dir         = flag.String("dir", "", "directory to walk for PDF documents")
		out         = flag.String("out", "", "output .xlsx path or directory (default: timestamped file in the current directory)")
		configPath  = flag.String("config", "", "optional YAML config file")
		chunkSize   = flag.Int("chunk-size", 0, "max characters per chunk (overrides pipeline.chunk_size)")
		concurrency = flag.Int("concurrency", 0, "model calls in flight (overrides pipeline.concurrency)")
		dedup       = flag.Bool("dedup", false, "merge duplicate companies within a document")
		providerArg = flag.String("provider", "", "llm provider: groq, openai or ollama")
		model       = flag.String("model", "", "model name (overrides llm.model)")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if (*file == "") == (*dir == "") {
		printError("Error: exactly one of --file or --dir is required\n")
		flag.Usage()
		os.Exit(2)
	}

	logger := app.NewLogger(true, *verbose)

	// Flag overrides go through the environment so provider presets are
	// resolved for the chosen provider.
	if *providerArg != "" {
		_ = os.Setenv("LLM_PROVIDER", *providerArg)
	}
	if *model != "" {
		_ = os.Setenv("LLM_MODEL", *model)
	}
	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *chunkSize > 0 {
		cfg.Pipeline.ChunkSize = *chunkSize
	}
	if *concurrency > 0 {
		cfg.Pipeline.Concurrency = *concurrency
	}
	if *dedup {
		cfg.Pipeline.Dedup = true
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := app.BuildPipeline(cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	paths, err := discover(ctx, *file, *dir, logger)
	if err != nil {
		logger.Error("failed to find documents", "error", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		printError("Error: no PDF documents found\n")
		os.Exit(1)
	}

	opts := pipeline.Options{ChunkSize: cfg.Pipeline.ChunkSize, Dedup: cfg.Pipeline.Dedup}
	var (
		records   []entity.Company
		chunks    int
		failed    int
		processed int
		failures  int
	)
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		name := filepath.Base(path)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("failed to read document", "path", path, "error", err)
			failures++
			continue
		}
		res, err := p.Processor.ExtractDocument(ctx, name, data, opts, progressPrinter(name))
		if res != nil {
			records = append(records, res.Records...)
			chunks += res.Chunks
			failed += res.FailedChunks()
		}
		if err != nil {
			logger.Error("failed to process document", "path", path, "error", err)
			failures++
			continue
		}
		processed++
	}

	if processed == 0 {
		printError("Error: no document could be processed\n")
		os.Exit(1)
	}

	target, err := outputPath(*out, time.Now())
	if err != nil {
		logger.Error("invalid output path", "error", err)
		os.Exit(1)
	}
	xlsx, err := p.Exporter.ExportXLSX(context.WithoutCancel(ctx), records)
	if err != nil {
		logger.Error("failed to export records", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(target, xlsx, 0o644); err != nil {
		logger.Error("failed to write output file", "path", target, "error", err)
		os.Exit(1)
	}

	stats := export.Summarize(records)
	logger.Info("batch processing complete",
		"files", len(paths),
		"files_processed", processed,
		"failures", failures,
		"chunks", chunks,
		"failed_chunks", failed,
		"records", len(records),
		"output_file", target,
	)

	fmt.Printf("Extraction complete!\n")
	fmt.Printf("- Files: %d (processed %d, failed %d)\n", len(paths), processed, failures)
	fmt.Printf("- Chunks: %d (failed %d)\n", chunks, failed)
	fmt.Printf("- Companies: %d\n", stats.Companies)
	fmt.Printf("- Completion rate: %.1f%%\n", stats.CompletionRate)
	fmt.Printf("- Unique countries: %d\n", stats.UniqueCountries)
	fmt.Printf("- Output: %s\n", target)
}

func discover(ctx context.Context, file, dir string, logger *slog.Logger) ([]string, error) {
	ing := ingest.NewFSIngestor(logger)
	if file != "" {
		r, err := ing.IngestPath(ctx, file)
		if err != nil {
			return nil, err
		}
		return []string{r.SourcePath}, nil
	}

	results, stats, err := ing.IngestDirectory(ctx, dir, true)
	if err != nil {
		return nil, err
	}
	logger.Info("ingestion complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"deduplicated", stats.Deduplicated)

	var paths []string
	for _, r := range results {
		if r.Err != "" || r.Deduplicated {
			continue
		}
		paths = append(paths, r.SourcePath)
	}
	return paths, nil
}

// outputPath resolves --out: empty means the current directory, a path
// ending in .xlsx is used as is, anything else is a directory.
func outputPath(out string, now time.Time) (string, error) {
	name := export.Filename(now)
	switch {
	case out == "":
		return name, nil
	case strings.EqualFold(filepath.Ext(out), ".xlsx"):
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return "", err
		}
		return out, nil
	default:
		if err := os.MkdirAll(out, 0o755); err != nil {
			return "", err
		}
		return filepath.Join(out, name), nil
	}
}

func progressPrinter(name string) pipeline.Observer {
	return func(p pipeline.Progress) {
		status := "ok"
		if p.Err != "" {
			status = "failed"
		}
		printError("[%s] %5.1f%% chunk %d/%d %s (%d records)\n", name, p.Percent, p.Done, p.Total, status, p.Records)
	}
}
