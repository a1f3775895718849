package export_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jonesrussell/site-portfolio/internal/export"
	"github.com/jonesrussell/site-portfolio/internal/models"
)

func mustDate(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestWriteCSV_QuotesStrings(t *testing.T) {
	entries := []models.LeaderboardEntry{{
		Rank:           1,
		SiteName:       `Acme, "Best" Widgets`,
		Domain:         "acme.com",
		EvaluationDate: mustDate(t, "2024-03-01"),
		Score:          81.5,
		CompositeScore: 81.5,
	}}

	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf, export.LeaderboardTable(models.DimensionComposite, entries)))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], `"rank","site","domain"`))
	assert.Contains(t, lines[0], `"composite_score"`)
	assert.Equal(t,
		`1,"Acme, \"Best\" Widgets","acme.com","",2024-03-01,81.5,0,0,0,0,0,81.5`,
		lines[1],
	)
}

func TestWriteCSV_KeepsMarkupCharacters(t *testing.T) {
	tests := []struct {
		name string
		cell string
		want string
	}{
		{"ampersand", "Tom & Jerry", `"Tom & Jerry"`},
		{"angle brackets", "<Shop>", `"<Shop>"`},
		{"mixed with comma", "Tom & Jerry <Shop>, Inc.", `"Tom & Jerry <Shop>, Inc."`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			table := export.Table{Headers: []string{"site"}, Rows: [][]any{{tt.cell}}}
			require.NoError(t, export.WriteCSV(&buf, table))

			assert.Equal(t, "\"site\"\n"+tt.want+"\n", buf.String())
			assert.NotContains(t, buf.String(), `\u00`)
		})
	}
}

func TestWriteCSV_BacklinkNilsAndTimes(t *testing.T) {
	submitted := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	rows := []models.BacklinkExportRow{{
		BacklinkDomain:  "dir.io",
		BacklinkURL:     "https://dir.io",
		ImportanceScore: 72,
		SiteName:        "Line\nBreak",
		Status:          models.SubmissionSubmitted,
		SubmittedAt:     &submitted,
	}}

	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf, export.BacklinkTable(rows)))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2, "embedded newline stays escaped")
	assert.Equal(t,
		`"dir.io","https://dir.io","",72,"Line\nBreak","","submitted",2024-02-03T04:05:06Z,`,
		lines[1],
	)
}

func TestWriteXLSX(t *testing.T) {
	as := 55.5
	table := export.Table{
		Sheet:   "Data",
		Headers: []string{"domain", "score", "as"},
		Rows: [][]any{
			{"a.com", 10, &as},
			{"b.com", 20, (*float64)(nil)},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, export.Write(&buf, export.FormatXLSX, table))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"domain", "score", "as"}, rows[0])
	assert.Equal(t, []string{"a.com", "10", "55.5"}, rows[1])
	assert.Equal(t, "b.com", rows[2][0])
}

func TestParseFormat(t *testing.T) {
	f, err := export.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, export.FormatCSV, f)

	f, err = export.ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, export.FormatXLSX, f)
	assert.Contains(t, f.ContentType(), "spreadsheetml")

	_, err = export.ParseFormat("pdf")
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "leaderboard-2024-03-01.csv", export.Filename("leaderboard", export.FormatCSV, mustDate(t, "2024-03-01")))
}
