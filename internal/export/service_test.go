package export

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/company-extractor/constants"
	"github.com/joseph-ayodele/company-extractor/internal/common"
	"github.com/joseph-ayodele/company-extractor/internal/entity"
)

func company(name, country string) entity.Company {
	c := entity.NewCompany()
	c.Company = name
	c.Country = country
	return c
}

func openWorkbook(t *testing.T, b []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestExportXLSX_Empty(t *testing.T) {
	b, err := NewService(nil).ExportXLSX(context.Background(), nil)
	if err != nil {
		t.Fatalf("ExportXLSX: %v", err)
	}
	f := openWorkbook(t, b)

	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{constants.ExportSheetName}) {
		t.Fatalf("sheets = %v", got)
	}
	rows, err := f.GetRows(constants.ExportSheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want header only", len(rows))
	}
	if !reflect.DeepEqual(rows[0], constants.FieldNames()) {
		t.Fatalf("header = %v", rows[0])
	}
}

func TestExportXLSX_RowsAndWidths(t *testing.T) {
	long := company(strings.Repeat("Very Long Company Name ", 5), "France")
	records := []entity.Company{
		company("Acme", "Germany"),
		long,
	}
	records[0].Email = "sales@acme.example"

	b, err := NewService(nil).ExportXLSX(context.Background(), records)
	if err != nil {
		t.Fatalf("ExportXLSX: %v", err)
	}
	f := openWorkbook(t, b)

	rows, _ := f.GetRows(constants.ExportSheetName)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if !reflect.DeepEqual(rows[1], records[0].Values()) {
		t.Errorf("row 2 = %v, want %v", rows[1], records[0].Values())
	}
	if rows[2][0] != long.Company {
		t.Errorf("long company cell = %q", rows[2][0])
	}

	want := map[string]float64{
		"A": 50,                                // capped
		"B": float64(len("Product Group") + 2), // header wins
		"C": float64(len("Germany") + 2),
		"F": float64(len("sales@acme.example") + 2),
	}
	for col, w := range want {
		got, err := f.GetColWidth(constants.ExportSheetName, col)
		if err != nil {
			t.Fatalf("GetColWidth(%s): %v", col, err)
		}
		if got != w {
			t.Errorf("width %s = %v, want %v", col, got, w)
		}
	}
}

func TestExportXLSX_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewService(nil).ExportXLSX(ctx, nil)
	if !errors.Is(err, common.ErrExport) {
		t.Fatalf("err = %v, want export error", err)
	}
}

func TestColumnWidths_CountsRunes(t *testing.T) {
	c := company("Société Générale", "N/A")
	widths := ColumnWidths([]entity.Company{c})
	if widths[0] != len([]rune("Société Générale"))+2 {
		t.Fatalf("width = %d", widths[0])
	}
	if widths[2] != len("Country")+2 {
		t.Fatalf("country width = %d", widths[2])
	}
}

func TestFilename(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	if got := Filename(ts); got != "extracted_data_20240309_140507.xlsx" {
		t.Fatalf("Filename = %q", got)
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize(nil); got != (entity.RunStats{}) {
		t.Fatalf("Summarize(nil) = %+v", got)
	}

	a := company("A", "France")
	a.Phone = "+33 1 23"
	b := company("B", "France")
	c := company("C", "N/A")
	st := Summarize([]entity.Company{a, b, c})

	if st.Companies != 3 {
		t.Errorf("companies = %d", st.Companies)
	}
	if st.UniqueCountries != 1 {
		t.Errorf("unique countries = %d", st.UniqueCountries)
	}
	// filled cells: a=3, b=2, c=1 -> 6 of 24 = 25%
	if st.CompletionRate != 25 {
		t.Errorf("completion = %v", st.CompletionRate)
	}
}
