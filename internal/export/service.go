package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/company-extractor/constants"
	"github.com/joseph-ayodele/company-extractor/internal/common"
	"github.com/joseph-ayodele/company-extractor/internal/entity"
)

// Service produces XLSX bytes for extracted company records.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ExportXLSX writes one header row plus one row per record into a single
// sheet named constants.ExportSheetName, sizing every column with ColumnWidths.
// Serialization failures are returned as *common.ExportError.
func (s *Service) ExportXLSX(ctx context.Context, records []entity.Company) ([]byte, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, &common.ExportError{Err: err}
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_failed", "error", err)
		}
	}()

	const sheet = constants.ExportSheetName
	// NewFile starts with "Sheet1"; rename it so the workbook has exactly one sheet.
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, &common.ExportError{Err: fmt.Errorf("rename sheet: %w", err)}
	}
	index, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, &common.ExportError{Err: err}
	}
	f.SetActiveSheet(index)

	headers := constants.FieldNames()
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, &common.ExportError{Err: fmt.Errorf("write header: %w", err)}
	}

	for i, r := range records {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := r.Values()
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, &common.ExportError{Err: fmt.Errorf("write row %d: %w", i+2, err)}
		}
	}

	for i, w := range ColumnWidths(records) {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, float64(w)); err != nil {
			return nil, &common.ExportError{Err: fmt.Errorf("column width %s: %w", col, err)}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, &common.ExportError{Err: fmt.Errorf("xlsx write: %w", err)}
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(records),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ColumnWidths returns, per field in export order,
// min(max(header length, longest cell) + padding, MaxColumnWidth).
func ColumnWidths(records []entity.Company) []int {
	fields := constants.Fields()
	widths := make([]int, len(fields))
	for i, f := range fields {
		longest := utf8.RuneCountInString(string(f))
		for _, r := range records {
			if n := utf8.RuneCountInString(r.Get(f)); n > longest {
				longest = n
			}
		}
		widths[i] = min(longest+constants.ColumnPadding, constants.MaxColumnWidth)
	}
	return widths
}

// Filename returns the suggested artifact name for an export made at t.
func Filename(t time.Time) string {
	return t.Format(constants.ExportFilenameLayout)
}
