package analytics

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/analyticsdata/v1beta"

	"github.com/jonesrussell/site-portfolio/internal/models"
)

const (
	gaDateLayout    = "20060102"
	gaPageSize      = 10000
	gaReferralLimit = 1000
)

// Order matters: trafficRow reads metric values by position.
var trafficMetrics = []string{
	"sessions",
	"totalUsers",
	"newUsers",
	"screenPageViews",
	"bounceRate",
	"averageSessionDuration",
}

// PropertyName returns "properties/<id>" for a bare or prefixed property ID.
func PropertyName(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "properties/") {
		return id
	}
	return "properties/" + id
}

func (g *Google) FetchTraffic(
	ctx context.Context,
	c *models.Connector,
	rng models.DateRange,
) ([]models.TrafficData, error) {
	svc, err := g.dataService(ctx, c.Credentials)
	if err != nil {
		return nil, err
	}

	metrics := make([]*analyticsdata.Metric, len(trafficMetrics))
	for i, name := range trafficMetrics {
		metrics[i] = &analyticsdata.Metric{Name: name}
	}

	rows := make([]models.TrafficData, 0, rng.Days())
	for offset := int64(0); ; {
		req := &analyticsdata.RunReportRequest{
			DateRanges: []*analyticsdata.DateRange{{StartDate: rng.Start.String(), EndDate: rng.End.String()}},
			Dimensions: []*analyticsdata.Dimension{{Name: "date"}},
			Metrics:    metrics,
			Limit:      gaPageSize,
			Offset:     offset,
		}

		var resp *analyticsdata.RunReportResponse
		err = g.call(ctx, apiData, "run traffic report", func() error {
			var callErr error
			resp, callErr = svc.Properties.RunReport(PropertyName(c.PropertyID), req).Context(ctx).Do()
			return callErr
		})
		if err != nil {
			return nil, err
		}

		for _, r := range resp.Rows {
			row, rowErr := trafficRow(r)
			if rowErr != nil {
				return nil, rowErr
			}
			rows = append(rows, row)
		}

		offset += int64(len(resp.Rows))
		if len(resp.Rows) == 0 || offset >= resp.RowCount {
			break
		}
	}

	return rows, nil
}

func trafficRow(r *analyticsdata.Row) (models.TrafficData, error) {
	if len(r.DimensionValues) < 1 || len(r.MetricValues) < len(trafficMetrics) {
		return models.TrafficData{}, fmt.Errorf("malformed report row: %d dimensions, %d metrics",
			len(r.DimensionValues), len(r.MetricValues))
	}

	day, err := time.Parse(gaDateLayout, r.DimensionValues[0].Value)
	if err != nil {
		return models.TrafficData{}, fmt.Errorf("parse report date %q: %w", r.DimensionValues[0].Value, err)
	}

	m := r.MetricValues
	return models.TrafficData{
		Date:               models.NewDate(day),
		Sessions:           metricInt(m[0]),
		Users:              metricInt(m[1]),
		NewUsers:           metricInt(m[2]),
		Pageviews:          metricInt(m[3]),
		BounceRate:         metricFloat(m[4]),
		AvgSessionDuration: metricFloat(m[5]),
		Source:             models.TrafficSourceGoogleAnalytics,
	}, nil
}

func (g *Google) FetchReferralSources(
	ctx context.Context,
	c *models.Connector,
	rng models.DateRange,
) ([]ReferralSource, error) {
	svc, err := g.dataService(ctx, c.Credentials)
	if err != nil {
		return nil, err
	}

	req := &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{{StartDate: rng.Start.String(), EndDate: rng.End.String()}},
		Dimensions: []*analyticsdata.Dimension{{Name: "sessionSource"}},
		Metrics:    []*analyticsdata.Metric{{Name: "sessions"}},
		OrderBys: []*analyticsdata.OrderBy{{
			Metric: &analyticsdata.MetricOrderBy{MetricName: "sessions"},
			Desc:   true,
		}},
		Limit: gaReferralLimit,
	}

	var resp *analyticsdata.RunReportResponse
	err = g.call(ctx, apiData, "run referral report", func() error {
		var callErr error
		resp, callErr = svc.Properties.RunReport(PropertyName(c.PropertyID), req).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	sources := make([]ReferralSource, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		if len(r.DimensionValues) < 1 || len(r.MetricValues) < 1 {
			continue
		}
		sources = append(sources, ReferralSource{
			Source:   r.DimensionValues[0].Value,
			Sessions: metricInt(r.MetricValues[0]),
		})
	}
	return sources, nil
}

// metricFloat parses a GA metric value; GA reports numbers as strings and
// unparseable values count as 0.
func metricFloat(v *analyticsdata.MetricValue) float64 {
	if v == nil {
		return 0
	}
	f, err := strconv.ParseFloat(v.Value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func metricInt(v *analyticsdata.MetricValue) int64 {
	return int64(math.Round(metricFloat(v)))
}
