package scoring

import (
	"fmt"
	"math"

	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	"github.com/jonesrussell/site-portfolio/internal/models"
)

// DefaultWeights apply when an evaluation carries no weights of its own.
var DefaultWeights = models.EvaluationWeights{
	Market:  0.25,
	Quality: 0.25,
	SEO:     0.20,
	Traffic: 0.15,
	Revenue: 0.15,
}

// SubScores are the five caller-supplied evaluation scores, each 0-100.
type SubScores struct {
	Market  float64
	Quality float64
	SEO     float64
	Traffic float64
	Revenue float64
}

// SubScoresOf extracts the sub-scores of e.
func SubScoresOf(e *models.Evaluation) SubScores {
	return SubScores{
		Market:  e.MarketScore,
		Quality: e.QualityScore,
		SEO:     e.SEOScore,
		Traffic: e.TrafficScore,
		Revenue: e.RevenueScore,
	}
}

// Validate rejects sub-scores outside 0-100.
func (s SubScores) Validate() error {
	scores := []struct {
		name string
		v    float64
	}{
		{"marketScore", s.Market},
		{"qualityScore", s.Quality},
		{"seoScore", s.SEO},
		{"trafficScore", s.Traffic},
		{"revenueScore", s.Revenue},
	}
	for _, sc := range scores {
		if math.IsNaN(sc.v) || sc.v < 0 || sc.v > 100 {
			return apperrors.Validation("%s must be between 0 and 100", sc.name)
		}
	}
	return nil
}

// NormalizeWeights returns w scaled to sum to 1, or DefaultWeights when w is
// nil. Negative weights or a zero sum are validation errors.
func NormalizeWeights(w *models.EvaluationWeights) (models.EvaluationWeights, error) {
	if w == nil {
		return DefaultWeights, nil
	}

	parts := []float64{w.Market, w.Quality, w.SEO, w.Traffic, w.Revenue}
	var sum float64
	for _, p := range parts {
		if math.IsNaN(p) || p < 0 {
			return models.EvaluationWeights{}, apperrors.Validation("weights must be non-negative")
		}
		sum += p
	}
	if sum == 0 {
		return models.EvaluationWeights{}, apperrors.Validation("weights must not all be zero")
	}

	return models.EvaluationWeights{
		Market:  w.Market / sum,
		Quality: w.Quality / sum,
		SEO:     w.SEO / sum,
		Traffic: w.Traffic / sum,
		Revenue: w.Revenue / sum,
	}, nil
}

// Composite returns the weighted sum of s rounded to two decimals, together
// with the normalized weights that produced it.
func Composite(s SubScores, w *models.EvaluationWeights) (float64, models.EvaluationWeights, error) {
	if err := s.Validate(); err != nil {
		return 0, models.EvaluationWeights{}, err
	}
	weights, err := NormalizeWeights(w)
	if err != nil {
		return 0, models.EvaluationWeights{}, fmt.Errorf("normalize weights: %w", err)
	}

	sum := s.Market*weights.Market +
		s.Quality*weights.Quality +
		s.SEO*weights.SEO +
		s.Traffic*weights.Traffic +
		s.Revenue*weights.Revenue

	return Round2(sum), weights, nil
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
