package analytics

import (
	"context"
	"strings"

	"google.golang.org/api/analyticsadmin/v1beta"

	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/urlutil"
)

const adminPageSize = 200

func (g *Google) ListProperties(ctx context.Context, credentials string) ([]Property, error) {
	svc, err := g.adminService(ctx, credentials)
	if err != nil {
		return nil, err
	}

	var properties []Property
	err = g.call(ctx, apiAdmin, "list account summaries", func() error {
		properties = properties[:0]
		return svc.AccountSummaries.List().PageSize(adminPageSize).Pages(ctx,
			func(page *analyticsadmin.GoogleAnalyticsAdminV1betaListAccountSummariesResponse) error {
				for _, account := range page.AccountSummaries {
					for _, p := range account.PropertySummaries {
						properties = append(properties, Property{
							PropertyID:  strings.TrimPrefix(p.Property, "properties/"),
							DisplayName: p.DisplayName,
							Account:     account.DisplayName,
						})
					}
				}
				return nil
			})
	})
	if err != nil {
		return nil, err
	}

	for i := range properties {
		uri, streamErr := g.webStreamURI(ctx, svc, properties[i].PropertyID)
		if streamErr != nil {
			// Without a stream the property is still listed, just unmatched.
			g.logger.Warn("List data streams failed",
				infralogger.String("property_id", properties[i].PropertyID),
				infralogger.Error(streamErr),
			)
			continue
		}
		properties[i].WebsiteURL = uri
		properties[i].Domain = urlutil.ExtractDomain(uri)
	}

	return properties, nil
}

// webStreamURI returns the default URI of the property's first web stream.
func (g *Google) webStreamURI(ctx context.Context, svc *analyticsadmin.Service, propertyID string) (string, error) {
	var resp *analyticsadmin.GoogleAnalyticsAdminV1betaListDataStreamsResponse
	err := g.call(ctx, apiAdmin, "list data streams", func() error {
		var callErr error
		resp, callErr = svc.Properties.DataStreams.List(PropertyName(propertyID)).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return "", err
	}

	for _, s := range resp.DataStreams {
		if s.WebStreamData != nil && s.WebStreamData.DefaultUri != "" {
			return s.WebStreamData.DefaultUri, nil
		}
	}
	return "", nil
}

// SearchSiteDomain returns the bare domain of a Search Console property,
// handling both "sc-domain:example.com" and URL-prefix properties.
func SearchSiteDomain(siteURL string) string {
	if rest, ok := strings.CutPrefix(siteURL, "sc-domain:"); ok {
		return urlutil.ExtractDomain(rest)
	}
	return urlutil.ExtractDomain(siteURL)
}
