// Package scoring computes derived scores: the 0-100 importance of a backlink
// target and the weighted composite of a site evaluation. Everything here is
// pure; callers persist the results.
package scoring

import (
	"math"

	"github.com/jonesrussell/site-portfolio/internal/models"
)

// Rich-path weights and saturation points.
const (
	weightAuthority = 0.40
	weightTraffic   = 0.35
	weightBacklinks = 0.15
	weightRefDomain = 0.10

	trafficCeiling   = 1e6
	backlinksCeiling = 1e8
	refDomainCeiling = 1e5
)

// Traditional-path weights.
const (
	weightDR          = 0.5
	weightStatus      = 0.3
	weightVolume      = 0.2
	volumeCeiling     = 10
	drScoreMultiplier = 2
)

var statusScores = map[models.SubmissionStatus]float64{
	models.SubmissionIndexed:   100,
	models.SubmissionSubmitted: 70,
	models.SubmissionContacted: 50,
	models.SubmissionPending:   30,
	models.SubmissionFailed:    0,
}

// Metrics are the raw inputs of the importance score. Nil means absent.
type Metrics struct {
	DR             *float64
	AuthorityScore *float64
	OrganicTraffic *int64
	Backlinks      *int64
	RefDomains     *int64
}

// MetricsOf extracts the scoring inputs of b.
func MetricsOf(b *models.BacklinkSite) Metrics {
	return Metrics{
		DR:             b.DR,
		AuthorityScore: b.AuthorityScore,
		OrganicTraffic: b.OrganicTraffic,
		Backlinks:      b.Backlinks,
		RefDomains:     b.RefDomains,
	}
}

// Rich reports whether any Semrush-style metric is present. A present zero
// counts. When Rich is true the DR value and submissions are ignored.
func (m Metrics) Rich() bool {
	return m.AuthorityScore != nil || m.OrganicTraffic != nil || m.Backlinks != nil || m.RefDomains != nil
}

// Importance returns the rounded 0-100 importance score.
func Importance(m Metrics, statuses []models.SubmissionStatus) int {
	var score float64
	if m.Rich() {
		score = RichScore(m)
	} else {
		score = TraditionalScore(m.DR, statuses)
	}
	return int(math.Round(clamp(score, 0, 100)))
}

// RichScore is the unrounded Semrush-metric score. Absent metrics add 0.
func RichScore(m Metrics) float64 {
	return weightAuthority*clamp(floatOr0(m.AuthorityScore), 0, 100) +
		weightTraffic*percentOf(intOr0(m.OrganicTraffic), trafficCeiling) +
		weightBacklinks*percentOf(intOr0(m.Backlinks), backlinksCeiling) +
		weightRefDomain*percentOf(intOr0(m.RefDomains), refDomainCeiling)
}

// TraditionalScore is the unrounded DR-and-submissions score.
func TraditionalScore(dr *float64, statuses []models.SubmissionStatus) float64 {
	return weightDR*clamp(floatOr0(dr)*drScoreMultiplier, 0, 100) +
		weightStatus*AverageStatusScore(statuses) +
		weightVolume*percentOf(float64(len(statuses)), volumeCeiling)
}

// StatusScore maps a status to its score. Unknown statuses score 0 with
// known=false so the caller can log them.
func StatusScore(s models.SubmissionStatus) (score float64, known bool) {
	score, known = statusScores[s]
	return score, known
}

// AverageStatusScore is the mean StatusScore, or 0 for no submissions.
func AverageStatusScore(statuses []models.SubmissionStatus) float64 {
	if len(statuses) == 0 {
		return 0
	}
	var total float64
	for _, s := range statuses {
		score, _ := StatusScore(s)
		total += score
	}
	return total / float64(len(statuses))
}

// UnknownStatuses returns the statuses StatusScore does not recognize.
func UnknownStatuses(statuses []models.SubmissionStatus) []models.SubmissionStatus {
	var unknown []models.SubmissionStatus
	for _, s := range statuses {
		if _, ok := StatusScore(s); !ok {
			unknown = append(unknown, s)
		}
	}
	return unknown
}

func percentOf[T int64 | float64](v T, ceiling float64) float64 {
	return clamp(float64(v)/ceiling*100, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func floatOr0(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func intOr0(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
