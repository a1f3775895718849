// Package analytics fetches per-day metrics from Google Analytics 4 and
// Google Search Console, and lists the properties a credential set can see.
package analytics

import (
	"context"

	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	"github.com/jonesrussell/site-portfolio/internal/models"
)

// ErrNoCredentials is returned when neither the connector nor the process
// carries service-account credentials.
var ErrNoCredentials = apperrors.Validation("no Google credentials configured for this connector")

// TrafficProvider reads GA4 data for a connector's property.
type TrafficProvider interface {
	// FetchTraffic returns one row per day of rng that has data. SiteID is
	// left empty for the caller to fill.
	FetchTraffic(ctx context.Context, c *models.Connector, rng models.DateRange) ([]models.TrafficData, error)
	// FetchReferralSources returns sessions per session source, busiest first.
	FetchReferralSources(ctx context.Context, c *models.Connector, rng models.DateRange) ([]ReferralSource, error)
}

// SearchProvider reads Search Console data for a connector's site URL.
type SearchProvider interface {
	FetchSearchConsole(ctx context.Context, c *models.Connector, rng models.DateRange) ([]models.SearchConsoleData, error)
}

// Discoverer lists what a credential set can read. Empty credentials mean
// the process-wide service account.
type Discoverer interface {
	ListProperties(ctx context.Context, credentials string) ([]Property, error)
	ListSearchSites(ctx context.Context, credentials string) ([]SearchSite, error)
}

// ReferralSource is a GA session source with its session count.
type ReferralSource struct {
	Source   string `json:"source"`
	Sessions int64  `json:"sessions"`
}

// Property is a GA4 property. PropertyID is numeric, without "properties/".
type Property struct {
	PropertyID  string `json:"propertyId"`
	DisplayName string `json:"displayName"`
	Account     string `json:"account"`
	WebsiteURL  string `json:"websiteUrl,omitempty"`
	Domain      string `json:"domain,omitempty"`
}

// SearchSite is a Search Console property: a URL prefix or "sc-domain:".
type SearchSite struct {
	SiteURL         string `json:"siteUrl"`
	PermissionLevel string `json:"permissionLevel"`
	Domain          string `json:"domain,omitempty"`
}
