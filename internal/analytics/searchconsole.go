package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"google.golang.org/api/searchconsole/v1"

	"github.com/jonesrussell/site-portfolio/internal/models"
)

const gscRowLimit = 25000

func (g *Google) FetchSearchConsole(
	ctx context.Context,
	c *models.Connector,
	rng models.DateRange,
) ([]models.SearchConsoleData, error) {
	svc, err := g.searchService(ctx, c.Credentials)
	if err != nil {
		return nil, err
	}

	req := &searchconsole.SearchAnalyticsQueryRequest{
		StartDate:  rng.Start.String(),
		EndDate:    rng.End.String(),
		Dimensions: []string{"date"},
		RowLimit:   gscRowLimit,
	}

	var resp *searchconsole.SearchAnalyticsQueryResponse
	err = g.call(ctx, apiSearchConsole, "query search analytics", func() error {
		var callErr error
		resp, callErr = svc.Searchanalytics.Query(c.PropertyID, req).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	rows := make([]models.SearchConsoleData, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		if len(r.Keys) < 1 {
			continue
		}
		day, parseErr := time.Parse(models.DateLayout, r.Keys[0])
		if parseErr != nil {
			return nil, fmt.Errorf("parse search analytics date %q: %w", r.Keys[0], parseErr)
		}
		rows = append(rows, models.SearchConsoleData{
			Date:        models.NewDate(day),
			Clicks:      int64(math.Round(r.Clicks)),
			Impressions: int64(math.Round(r.Impressions)),
			CTR:         r.Ctr,
			Position:    r.Position,
		})
	}
	return rows, nil
}

func (g *Google) ListSearchSites(ctx context.Context, credentials string) ([]SearchSite, error) {
	svc, err := g.searchService(ctx, credentials)
	if err != nil {
		return nil, err
	}

	var resp *searchconsole.SitesListResponse
	err = g.call(ctx, apiSearchConsole, "list search console sites", func() error {
		var callErr error
		resp, callErr = svc.Sites.List().Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	sites := make([]SearchSite, 0, len(resp.SiteEntry))
	for _, s := range resp.SiteEntry {
		sites = append(sites, SearchSite{
			SiteURL:         s.SiteUrl,
			PermissionLevel: s.PermissionLevel,
			Domain:          SearchSiteDomain(s.SiteUrl),
		})
	}
	return sites, nil
}
