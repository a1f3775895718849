// Command gentemplate generates the Excel template accepted by the Semrush
// backlink import.
// Usage: go run ./cmd/gentemplate [output.xlsx]
package main

import (
	"log"
	"os"

	"github.com/xuri/excelize/v2"
)

const (
	dataSheet         = "Backlinks"
	instructionsSheet = "Instructions"
	defaultOutput     = "semrush_import_template.xlsx"
)

func main() {
	output := defaultOutput
	if len(os.Args) > 1 {
		output = os.Args[1]
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Println(err)
		}
	}()

	// The importer reads the first sheet, so Backlinks must stay first.
	if err := f.SetSheetName("Sheet1", dataSheet); err != nil {
		log.Fatal(err)
	}

	rows := [][]any{
		{"Domain", "Authority Score", "Organic Traffic", "Backlinks", "Referring Domains"},
		{"example-directory.com", 54, "12.5K", 18400, 2100},
		{"https://blog.example.org/", 31, 880, "1.2M", ""},
	}
	for i, row := range rows {
		if err := writeRow(f, dataSheet, i+1, row); err != nil {
			log.Fatal(err)
		}
	}

	if _, err := f.NewSheet(instructionsSheet); err != nil {
		log.Fatal(err)
	}
	instructions := []string{
		"Column Descriptions:",
		"",
		"Domain - Required. Bare domain or full URL; it is normalized to a host",
		"Authority Score - Optional. 0 to 100",
		"Organic Traffic - Optional. Non-negative; suffixes K, M and B are accepted",
		"Backlinks - Optional. Non-negative; suffixes K, M and B are accepted",
		"Referring Domains - Optional. Non-negative",
		"",
		"Each row needs a domain and at least one metric.",
		"Existing backlink sites are matched by domain and updated; blank cells keep stored values.",
	}
	for i, line := range instructions {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			log.Fatal(err)
		}
		if err := f.SetCellValue(instructionsSheet, cell, line); err != nil {
			log.Fatal(err)
		}
	}

	if err := f.SaveAs(output); err != nil {
		log.Fatal(err)
	}
	log.Printf("Template written to %s", output)
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}
