package constants

import "strings"

// AllowedExtensions holds the file extensions accepted for extraction.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

const (
	// ExportSheetName is the only sheet in an exported workbook.
	ExportSheetName = "Extracted_Data"
	// ExportFilenameLayout is used with time.Format to name exported workbooks.
	ExportFilenameLayout = "extracted_data_20060102_150405.xlsx"
	XLSXContentType      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	MaxColumnWidth = 50
	ColumnPadding  = 2
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
