package importer_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/jonesrussell/site-portfolio/internal/importer"
)

// createTestExcel creates an in-memory Excel file for testing.
func createTestExcel(t *testing.T, header []string, rows [][]any) *bytes.Reader {
	t.Helper()

	f := excelize.NewFile()
	sheetName := "Sheet1"

	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			t.Fatalf("failed to set header cell: %v", err)
		}
	}

	for rowIdx, row := range rows {
		for colIdx, val := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				t.Fatalf("failed to set cell: %v", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("failed to write Excel file: %v", err)
	}

	return bytes.NewReader(buf.Bytes())
}

var semrushHeader = []string{"Domain", "Authority Score", "Organic Traffic", "Backlinks", "Referring Domains"}

func TestParseSemrushExcel(t *testing.T) {
	tests := []struct {
		name           string
		header         []string
		rows           [][]any
		wantRowCount   int
		wantErrorCount int
		wantErrorMsg   string
	}{
		{
			name:   "valid rows with numeric and suffixed cells",
			header: semrushHeader,
			rows: [][]any{
				{"example.com", 80, "1.2M", "3,400", 120},
				{"https://www.blog.io/", "45", "12.5K", "", ""},
			},
			wantRowCount: 2,
		},
		{
			name:           "missing domain",
			header:         semrushHeader,
			rows:           [][]any{{"", 50, 10, 10, 10}},
			wantErrorCount: 1,
			wantErrorMsg:   "domain is required",
		},
		{
			name:           "no metrics",
			header:         semrushHeader,
			rows:           [][]any{{"example.com", "n/a", "-", "", ""}},
			wantErrorCount: 1,
			wantErrorMsg:   "at least one metric",
		},
		{
			name:           "authority score out of range",
			header:         semrushHeader,
			rows:           [][]any{{"example.com", 150}},
			wantErrorCount: 1,
			wantErrorMsg:   "between 0 and 100",
		},
		{
			name:         "reordered header aliases",
			header:       []string{"AS", "Referring domain"},
			rows:         [][]any{{30, "a.org"}},
			wantRowCount: 1,
		},
		{
			name:   "header only",
			header: semrushHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := createTestExcel(t, tt.header, tt.rows)

			rows, errs, err := importer.ParseSemrushExcel(reader)
			if err != nil {
				t.Fatalf("ParseSemrushExcel() unexpected error: %v", err)
			}
			if len(rows) != tt.wantRowCount {
				t.Errorf("ParseSemrushExcel() got %d rows, want %d", len(rows), tt.wantRowCount)
			}
			if len(errs) != tt.wantErrorCount {
				t.Errorf("ParseSemrushExcel() got %d errors, want %d", len(errs), tt.wantErrorCount)
			}
			if tt.wantErrorMsg != "" && len(errs) > 0 && !strings.Contains(errs[0].Error, tt.wantErrorMsg) {
				t.Errorf("ParseSemrushExcel() error = %q, want to contain %q", errs[0].Error, tt.wantErrorMsg)
			}
		})
	}
}

func TestParseSemrushExcel_Values(t *testing.T) {
	reader := createTestExcel(t, semrushHeader, [][]any{{"example.com", 80, "1.2M", "3,400", 120}})

	rows, _, err := importer.ParseSemrushExcel(reader)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ParseSemrushExcel() = %d rows, err %v", len(rows), err)
	}

	row := rows[0]
	if row.Row != 2 {
		t.Errorf("Row = %d, want 2", row.Row)
	}
	if row.AuthorityScore == nil || *row.AuthorityScore != 80 {
		t.Errorf("AuthorityScore = %v, want 80", row.AuthorityScore)
	}
	if row.OrganicTraffic == nil || *row.OrganicTraffic != 1_200_000 {
		t.Errorf("OrganicTraffic = %v, want 1200000", row.OrganicTraffic)
	}
	if row.Backlinks == nil || *row.Backlinks != 3400 {
		t.Errorf("Backlinks = %v, want 3400", row.Backlinks)
	}
}

func TestParseSemrushExcel_NoDomainColumn(t *testing.T) {
	reader := createTestExcel(t, []string{"Name", "Score"}, [][]any{{"x", 1}})

	if _, _, err := importer.ParseSemrushExcel(reader); err == nil {
		t.Error("expected error for sheet without domain column")
	}
}

func TestParseSemrushExcel_NotAWorkbook(t *testing.T) {
	if _, _, err := importer.ParseSemrushExcel(strings.NewReader("domain,as\n")); err == nil {
		t.Error("expected error for non-xlsx input")
	}
}

func TestParseSemrushCSV(t *testing.T) {
	input := "Domain,Authority Score,Organic Traffic\n" +
		"example.com,80,\"1,500\"\n" +
		"\n" +
		",10,10\n" +
		"other.net,-5,10\n"

	rows, errs, err := importer.ParseSemrushCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseSemrushCSV() unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if *rows[0].OrganicTraffic != 1500 {
		t.Errorf("OrganicTraffic = %d, want 1500", *rows[0].OrganicTraffic)
	}
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2", len(errs))
	}
	if errs[0].Row != 4 || errs[1].Row != 5 {
		t.Errorf("error rows = %d, %d; want 4, 5", errs[0].Row, errs[1].Row)
	}
}

func TestSemrushRowsFromJSON(t *testing.T) {
	rows, errs := importer.SemrushRowsFromJSON([]importer.SemrushJSONRow{
		{Domain: "a.com", AuthorityScore: 50.0, OrganicTraffic: "2K"},
		{Domain: "b.com"},
	})

	if len(rows) != 1 || rows[0].Row != 1 {
		t.Fatalf("rows = %+v", rows)
	}
	if *rows[0].OrganicTraffic != 2000 {
		t.Errorf("OrganicTraffic = %d, want 2000", *rows[0].OrganicTraffic)
	}
	if len(errs) != 1 || errs[0].Row != 2 {
		t.Errorf("errs = %+v", errs)
	}
}
