package export

import "github.com/jonesrussell/site-portfolio/internal/models"

// LeaderboardTable lays out ranked entries, the ranked score first.
func LeaderboardTable(dim models.Dimension, entries []models.LeaderboardEntry) Table {
	t := Table{
		Sheet: "Leaderboard",
		Headers: []string{
			"rank", "site", "domain", "category", "evaluation_date", string(dim) + "_score",
			"market", "quality", "seo", "traffic", "revenue", "composite",
		},
		Rows: make([][]any, 0, len(entries)),
	}
	for _, e := range entries {
		t.Rows = append(t.Rows, []any{
			e.Rank, e.SiteName, e.Domain, e.Category, e.EvaluationDate, e.Score,
			e.MarketScore, e.QualityScore, e.SEOScore, e.TrafficScore, e.RevenueScore, e.CompositeScore,
		})
	}
	return t
}

// BacklinkTable lays out one row per submission.
func BacklinkTable(rows []models.BacklinkExportRow) Table {
	t := Table{
		Sheet: "Backlinks",
		Headers: []string{
			"backlink_domain", "backlink_url", "category", "importance_score",
			"site", "site_domain", "status", "submitted_at", "indexed_at",
		},
		Rows: make([][]any, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			r.BacklinkDomain, r.BacklinkURL, r.Category, r.ImportanceScore,
			r.SiteName, r.SiteDomain, string(r.Status), r.SubmittedAt, r.IndexedAt,
		})
	}
	return t
}

// Filename names an export download.
func Filename(base string, f Format, date models.Date) string {
	return base + "-" + date.String() + "." + string(f)
}
