// Package export renders leaderboard and backlink tables as CSV or Excel.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jonesrussell/site-portfolio/internal/models"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps "" to CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType is the response media type of f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Table is a header plus rows of cells. Cells are string, int, int64,
// float64, *float64, *int64, models.Date, time.Time, *time.Time or nil.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]any
}

// Write renders t in format f.
func Write(w io.Writer, f Format, t Table) error {
	if f == FormatXLSX {
		return WriteXLSX(w, t)
	}
	return WriteCSV(w, t)
}

// WriteCSV writes t with string cells JSON-quoted, so embedded commas, quotes
// and newlines survive. Dates and times are ISO-8601 and unquoted.
func WriteCSV(w io.Writer, t Table) error {
	bw := bufio.NewWriter(w)

	if err := writeCSVLine(bw, stringCells(t.Headers)); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := writeCSVLine(bw, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeCSVLine(w *bufio.Writer, cells []any) error {
	fields := make([]string, len(cells))
	for i, cell := range cells {
		field, err := csvField(cell)
		if err != nil {
			return err
		}
		fields[i] = field
	}
	if _, err := w.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
		return fmt.Errorf("write csv line: %w", err)
	}
	return nil
}

// csvField JSON-quotes strings without HTML escaping, so "&", "<" and ">"
// survive as written.
func csvField(cell any) (string, error) {
	v, ok := cell.(string)
	if !ok {
		return plainValue(cell), nil
	}

	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("quote csv field: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// plainValue formats non-string cells; nil pointers are empty.
func plainValue(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case *float64:
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	case *int64:
		if v == nil {
			return ""
		}
		return strconv.FormatInt(*v, 10)
	case models.Date:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// WriteXLSX writes t as a single-sheet workbook with a frozen header row.
func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := t.Sheet
	if sheet == "" {
		sheet = "Export"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &t.Headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.Rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = xlsxValue(cell)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err = f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// xlsxValue keeps numbers numeric and renders everything else as text.
func xlsxValue(cell any) any {
	switch v := cell.(type) {
	case int, int64, float64, string:
		return v
	case *float64:
		if v == nil {
			return nil
		}
		return *v
	case *int64:
		if v == nil {
			return nil
		}
		return *v
	default:
		if s := plainValue(v); s != "" {
			return s
		}
		return nil
	}
}

func stringCells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
