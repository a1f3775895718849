package importer

import (
	"strings"

	"github.com/jonesrussell/site-portfolio/internal/scoring"
)

// QuickLine is one entry of a quick import: a URL and an optional DR.
type QuickLine struct {
	Row int
	URL string
	DR  *float64
}

// ParseQuickText splits newline separated "url[,dr]" lines. Blank lines and
// lines starting with "#" are ignored but still counted for row numbers.
func ParseQuickText(text string) []QuickLine {
	var lines []QuickLine
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		ql := QuickLine{Row: i + 1, URL: line}
		if u, dr, found := strings.Cut(line, ","); found {
			ql.URL = strings.TrimSpace(u)
			ql.DR = scoring.ParseMetric(strings.TrimSpace(dr))
		}
		lines = append(lines, ql)
	}
	return lines
}

// QuickLinesFromURLs numbers urls from 1 and applies dr to each.
func QuickLinesFromURLs(urls []string, dr *float64) []QuickLine {
	lines := make([]QuickLine, 0, len(urls))
	for i, u := range urls {
		if u = strings.TrimSpace(u); u == "" {
			continue
		}
		lines = append(lines, QuickLine{Row: i + 1, URL: u, DR: dr})
	}
	return lines
}
