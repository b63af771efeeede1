package main

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOutputPath(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	dir := t.TempDir()

	got, err := outputPath("", now)
	if err != nil || got != "extracted_data_20240301_093000.xlsx" {
		t.Fatalf("default = %q, %v", got, err)
	}
	explicit := filepath.Join(dir, "nested", "companies.XLSX")
	if got, err := outputPath(explicit, now); err != nil || got != explicit {
		t.Fatalf("explicit = %q, %v", got, err)
	}
	if got, err := outputPath(filepath.Join(dir, "out"), now); err != nil || got != filepath.Join(dir, "out", "extracted_data_20240301_093000.xlsx") {
		t.Fatalf("directory = %q, %v", got, err)
	}
}
