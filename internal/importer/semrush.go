package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/jonesrussell/site-portfolio/internal/scoring"
	"github.com/jonesrussell/site-portfolio/internal/urlutil"
)

// headerRowIndex is the 1-based spreadsheet row holding the column names;
// data starts on the next row.
const headerRowIndex = 1

type semrushColumn int

const (
	colDomain semrushColumn = iota
	colAuthorityScore
	colOrganicTraffic
	colBacklinks
	colRefDomains
)

// headerAliases maps normalized header text to a column. Semrush exports
// vary between tools, so several spellings are accepted.
var headerAliases = map[string]semrushColumn{
	"domain":           colDomain,
	"url":              colDomain,
	"site":             colDomain,
	"referringdomain":  colDomain,
	"authorityscore":   colAuthorityScore,
	"ascore":           colAuthorityScore,
	"as":               colAuthorityScore,
	"organictraffic":   colOrganicTraffic,
	"traffic":          colOrganicTraffic,
	"backlinks":        colBacklinks,
	"totalbacklinks":   colBacklinks,
	"refdomains":       colRefDomains,
	"referringdomains": colRefDomains,
}

// ErrNoDomainColumn is returned when a sheet has no recognizable domain
// header.
var ErrNoDomainColumn = errors.New("no domain column found in header row")

// SemrushRow is one parsed Semrush record. Nil metrics were empty or
// unparseable.
type SemrushRow struct {
	Row            int
	Domain         string
	AuthorityScore *float64
	OrganicTraffic *int64
	Backlinks      *int64
	RefDomains     *int64
}

// SemrushJSONRow is the JSON body form of a row. Metric values may be numbers
// or strings such as "12.5K".
type SemrushJSONRow struct {
	Domain         string `json:"domain"`
	AuthorityScore any    `json:"authorityScore"`
	OrganicTraffic any    `json:"organicTraffic"`
	Backlinks      any    `json:"backlinks"`
	RefDomains     any    `json:"refDomains"`
}

// ValidateSemrushRow returns an error message for row, or "".
func ValidateSemrushRow(row SemrushRow) string {
	if strings.TrimSpace(row.Domain) == "" {
		return "domain is required"
	}
	if urlutil.ExtractDomain(row.Domain) == "" {
		return "domain is not a valid host"
	}
	if row.AuthorityScore == nil && row.OrganicTraffic == nil && row.Backlinks == nil && row.RefDomains == nil {
		return "at least one metric is required"
	}
	if row.AuthorityScore != nil && (*row.AuthorityScore < 0 || *row.AuthorityScore > 100) {
		return "authority score must be between 0 and 100"
	}
	counts := []struct {
		name  string
		value *int64
	}{
		{"organic traffic", row.OrganicTraffic},
		{"backlinks", row.Backlinks},
		{"ref domains", row.RefDomains},
	}
	for _, c := range counts {
		if c.value != nil && *c.value < 0 {
			return c.name + " must be non-negative"
		}
	}
	return ""
}

// ParseSemrushExcel reads the first sheet of an .xlsx export. Rows that fail
// validation are returned as errors and left out of rows.
func ParseSemrushExcel(r io.Reader) ([]SemrushRow, []ImportError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.New("workbook has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return parseSemrushRecords(records)
}

// ParseSemrushCSV reads a comma-separated export with a header row.
func ParseSemrushCSV(r io.Reader) ([]SemrushRow, []ImportError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	return parseSemrushRecords(records)
}

// SemrushRowsFromJSON converts request rows, numbering them from 1.
func SemrushRowsFromJSON(in []SemrushJSONRow) ([]SemrushRow, []ImportError) {
	rows := make([]SemrushRow, 0, len(in))
	var importErrors []ImportError
	for i, j := range in {
		row := SemrushRow{
			Row:            i + 1,
			Domain:         strings.TrimSpace(j.Domain),
			AuthorityScore: scoring.ParseMetric(j.AuthorityScore),
			OrganicTraffic: scoring.ParseMetricInt(j.OrganicTraffic),
			Backlinks:      scoring.ParseMetricInt(j.Backlinks),
			RefDomains:     scoring.ParseMetricInt(j.RefDomains),
		}
		if msg := ValidateSemrushRow(row); msg != "" {
			importErrors = append(importErrors, ImportError{Row: row.Row, Error: msg})
			continue
		}
		rows = append(rows, row)
	}
	return rows, importErrors
}

func parseSemrushRecords(records [][]string) ([]SemrushRow, []ImportError, error) {
	if len(records) < headerRowIndex {
		return nil, nil, nil
	}

	columns, err := mapHeader(records[headerRowIndex-1])
	if err != nil {
		return nil, nil, err
	}

	var rows []SemrushRow
	var importErrors []ImportError
	for i, record := range records[headerRowIndex:] {
		if blankRecord(record) {
			continue
		}
		row := SemrushRow{Row: i + headerRowIndex + 1}
		for col, idx := range columns {
			if idx >= len(record) {
				continue
			}
			cell := strings.TrimSpace(record[idx])
			switch col {
			case colDomain:
				row.Domain = cell
			case colAuthorityScore:
				row.AuthorityScore = scoring.ParseMetric(cell)
			case colOrganicTraffic:
				row.OrganicTraffic = scoring.ParseMetricInt(cell)
			case colBacklinks:
				row.Backlinks = scoring.ParseMetricInt(cell)
			case colRefDomains:
				row.RefDomains = scoring.ParseMetricInt(cell)
			}
		}

		if msg := ValidateSemrushRow(row); msg != "" {
			importErrors = append(importErrors, ImportError{Row: row.Row, Error: msg})
			continue
		}
		rows = append(rows, row)
	}
	return rows, importErrors, nil
}

// mapHeader returns the record index of each recognized column. The first
// matching header wins.
func mapHeader(header []string) (map[semrushColumn]int, error) {
	columns := make(map[semrushColumn]int)
	for idx, name := range header {
		col, ok := headerAliases[normalizeHeader(name)]
		if !ok {
			continue
		}
		if _, seen := columns[col]; !seen {
			columns[col] = idx
		}
	}
	if _, ok := columns[colDomain]; !ok {
		return nil, ErrNoDomainColumn
	}
	return columns, nil
}

func normalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
