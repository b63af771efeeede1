package pdf

import (
	"context"
	"fmt"
	"os"
	"strings"
)

func (e *Extractor) pdftotext(ctx context.Context, data []byte) (Result, error) {
	res := Result{Method: MethodPdftotext}

	tmp, err := os.CreateTemp("", "cx-pdf-*.pdf")
	if err != nil {
		return res, err
	}
	defer func(path string) {
		if err := os.Remove(path); err != nil {
			e.logger.Warn("failed to remove temp file", "path", path, "error", err)
		}
	}(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return res, fmt.Errorf("write temp pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return res, err
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", tmp.Name(), "-")
	if err != nil {
		if len(errb) > 0 {
			res.Warnings = append(res.Warnings, string(errb))
		}
		return res, fmt.Errorf("%s: %w", e.cfg.Pdftotext, err)
	}
	text := strings.TrimRight(string(out), "\f\n")
	// A form-feed \f is used as page separator by default
	res.Pages = 1 + strings.Count(text, "\f")
	res.Text = Normalize(text)
	return res, nil
}
