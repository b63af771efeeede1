// Package pdf extracts plain text from PDF documents. A pure-Go reader is
// tried first; the poppler pdftotext binary is the optional fallback.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// ErrNoText is returned when a document yields no extractable text.
var ErrNoText = errors.New("no text could be extracted from PDF")

const (
	MethodNative    = "pdf-native"
	MethodPdftotext = "pdftotext"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Fallback  bool   // run pdftotext when the native reader fails or finds no text
}

type Result struct {
	Text     string
	Pages    int
	Method   string
	Duration time.Duration
	Warnings []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner used by the pdftotext fallback.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// ExtractFile reads path and extracts its text.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read pdf: %w", err)
	}
	return e.Extract(ctx, data)
}

// Extract returns the document text with pages joined by newlines,
// whitespace-normalized and trimmed. ErrNoText is returned when neither
// strategy yields any text.
func (e *Extractor) Extract(ctx context.Context, data []byte) (Result, error) {
	start := time.Now()
	e.logger.Debug("pdf.extract.start", "bytes", len(data), "fallback", e.cfg.Fallback)

	res, err := e.native(data)
	if err == nil && res.Text != "" {
		res.Duration = time.Since(start)
		e.logger.Info("pdf.extract.ok", "method", res.Method, "pages", res.Pages,
			"chars", len(res.Text), "elapsed_ms", res.Duration.Milliseconds())
		return res, nil
	}

	var warnings []string
	if err != nil {
		warnings = append(warnings, err.Error())
		e.logger.Warn("pdf.extract.native_failed", "error", err)
	}
	if !e.cfg.Fallback {
		if err != nil {
			return Result{Warnings: warnings, Method: MethodNative}, fmt.Errorf("read pdf: %w", err)
		}
		return Result{Pages: res.Pages, Method: MethodNative}, ErrNoText
	}

	fb, fbErr := e.pdftotext(ctx, data)
	fb.Warnings = append(warnings, fb.Warnings...)
	fb.Duration = time.Since(start)
	if fbErr != nil {
		e.logger.Error("pdf.extract.fallback_failed", "error", fbErr)
		if err != nil {
			return fb, fmt.Errorf("read pdf: %w (fallback: %v)", err, fbErr)
		}
		return fb, fmt.Errorf("%w (fallback: %v)", ErrNoText, fbErr)
	}
	if fb.Text == "" {
		return fb, ErrNoText
	}
	e.logger.Info("pdf.extract.ok", "method", fb.Method, "pages", fb.Pages,
		"chars", len(fb.Text), "elapsed_ms", fb.Duration.Milliseconds())
	return fb, nil
}
