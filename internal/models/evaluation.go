package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Dimension is a leaderboard ranking axis.
type Dimension string

const (
	DimensionComposite Dimension = "composite"
	DimensionMarket    Dimension = "market"
	DimensionQuality   Dimension = "quality"
	DimensionSEO       Dimension = "seo"
	DimensionTraffic   Dimension = "traffic"
	DimensionRevenue   Dimension = "revenue"
)

var dimensionColumns = map[Dimension]string{
	DimensionComposite: "composite_score",
	DimensionMarket:    "market_score",
	DimensionQuality:   "quality_score",
	DimensionSEO:       "seo_score",
	DimensionTraffic:   "traffic_score",
	DimensionRevenue:   "revenue_score",
}

// ParseDimension maps "" to composite and rejects unknown names.
func ParseDimension(s string) (Dimension, error) {
	if s == "" {
		return DimensionComposite, nil
	}
	d := Dimension(s)
	if _, ok := dimensionColumns[d]; !ok {
		return "", fmt.Errorf("unknown dimension %q", s)
	}
	return d, nil
}

// Column is the evaluations column ranked by d. Only whitelisted names are
// ever returned, so the value is safe to interpolate into ORDER BY.
func (d Dimension) Column() string {
	if col, ok := dimensionColumns[d]; ok {
		return col
	}
	return dimensionColumns[DimensionComposite]
}

// EvaluationWeights are the per-dimension weights used for a composite.
type EvaluationWeights struct {
	Market  float64 `json:"market"`
	Quality float64 `json:"quality"`
	SEO     float64 `json:"seo"`
	Traffic float64 `json:"traffic"`
	Revenue float64 `json:"revenue"`
}

// Value stores weights as JSONB.
func (w *EvaluationWeights) Value() (driver.Value, error) {
	if w == nil {
		return nil, nil
	}
	return json.Marshal(w)
}

// Scan reads JSONB weights.
func (w *EvaluationWeights) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, w)
	case string:
		return json.Unmarshal([]byte(v), w)
	default:
		return errors.New("unsupported type for evaluation weights")
	}
}

// Evaluation is a dated scoring snapshot of a site. CompositeScore is always
// derived from the sub-scores and Weights.
type Evaluation struct {
	ID             string             `db:"id"              json:"id"`
	SiteID         string             `db:"site_id"         json:"siteId"`
	SiteName       string             `db:"site_name"       json:"siteName,omitempty"`
	EvaluationDate Date               `db:"evaluation_date" json:"evaluationDate"`
	MarketScore    float64            `db:"market_score"    json:"marketScore"`
	QualityScore   float64            `db:"quality_score"   json:"qualityScore"`
	SEOScore       float64            `db:"seo_score"       json:"seoScore"`
	TrafficScore   float64            `db:"traffic_score"   json:"trafficScore"`
	RevenueScore   float64            `db:"revenue_score"   json:"revenueScore"`
	CompositeScore float64            `db:"composite_score" json:"compositeScore"`
	Weights        *EvaluationWeights `db:"weights"         json:"weights,omitempty"`
	Notes          string             `db:"notes"           json:"notes"`
	Evaluator      string             `db:"evaluator"       json:"evaluator"`
	CreatedAt      time.Time          `db:"created_at"      json:"createdAt"`
	UpdatedAt      time.Time          `db:"updated_at"      json:"updatedAt"`
}

// EvaluationFilter narrows evaluation listings.
type EvaluationFilter struct {
	SiteID string
	Page
}

// LeaderboardEntry is one site's latest evaluation with its rank on the
// requested dimension.
type LeaderboardEntry struct {
	Rank           int     `db:"rank"            json:"rank"`
	SiteID         string  `db:"site_id"         json:"siteId"`
	SiteName       string  `db:"site_name"       json:"siteName"`
	Domain         string  `db:"domain"          json:"domain"`
	Category       string  `db:"category"        json:"category"`
	EvaluationDate Date    `db:"evaluation_date" json:"evaluationDate"`
	Score          float64 `db:"score"           json:"score"`
	MarketScore    float64 `db:"market_score"    json:"marketScore"`
	QualityScore   float64 `db:"quality_score"   json:"qualityScore"`
	SEOScore       float64 `db:"seo_score"       json:"seoScore"`
	TrafficScore   float64 `db:"traffic_score"   json:"trafficScore"`
	RevenueScore   float64 `db:"revenue_score"   json:"revenueScore"`
	CompositeScore float64 `db:"composite_score" json:"compositeScore"`
}

// EvaluationStats aggregates all evaluations of active sites.
type EvaluationStats struct {
	TotalEvaluations int     `db:"total_evaluations" json:"totalEvaluations"`
	SitesEvaluated   int     `db:"sites_evaluated"   json:"sitesEvaluated"`
	AvgComposite     float64 `db:"avg_composite"     json:"avgComposite"`
	AvgMarket        float64 `db:"avg_market"        json:"avgMarket"`
	AvgQuality       float64 `db:"avg_quality"       json:"avgQuality"`
	AvgSEO           float64 `db:"avg_seo"           json:"avgSeo"`
	AvgTraffic       float64 `db:"avg_traffic"       json:"avgTraffic"`
	AvgRevenue       float64 `db:"avg_revenue"       json:"avgRevenue"`
	MaxComposite     float64 `db:"max_composite"     json:"maxComposite"`
	MinComposite     float64 `db:"min_composite"     json:"minComposite"`
	LatestDate       *Date   `db:"latest_date"       json:"latestDate,omitempty"`
}
