package syncer

import (
	"context"
	"errors"
	"fmt"

	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/analytics"
	"github.com/jonesrussell/site-portfolio/internal/models"
)

// SiteLister lists the active portfolio sites.
type SiteLister interface {
	ListActive(ctx context.Context) ([]models.Site, error)
}

// DiscoveredProperty is a GA4 property, matched to a site by domain when
// possible.
type DiscoveredProperty struct {
	analytics.Property
	SiteID   string `json:"siteId,omitempty"`
	SiteName string `json:"siteName,omitempty"`
}

// DiscoveredSearchSite is a Search Console property, matched like
// DiscoveredProperty.
type DiscoveredSearchSite struct {
	analytics.SearchSite
	SiteID   string `json:"siteId,omitempty"`
	SiteName string `json:"siteName,omitempty"`
}

// Discovery lists what a credential set can read. A provider that fails is
// reported in Errors and the other is still returned.
type Discovery struct {
	Properties  []DiscoveredProperty   `json:"properties"`
	SearchSites []DiscoveredSearchSite `json:"searchSites"`
	Errors      map[string]string      `json:"errors,omitempty"`
}

// Discoverer matches provider listings against portfolio sites.
type Discoverer struct {
	provider analytics.Discoverer
	sites    SiteLister
	logger   infralogger.Logger
}

func NewDiscoverer(provider analytics.Discoverer, sites SiteLister, log infralogger.Logger) *Discoverer {
	return &Discoverer{provider: provider, sites: sites, logger: log}
}

// Discover lists GA4 properties and Search Console sites. It fails only when
// both providers fail or the site list cannot be read.
func (d *Discoverer) Discover(ctx context.Context, credentials string) (*Discovery, error) {
	sites, err := d.sites.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	byDomain := make(map[string]models.Site, len(sites))
	for _, s := range sites {
		byDomain[s.Domain] = s
	}

	out := &Discovery{
		Properties:  []DiscoveredProperty{},
		SearchSites: []DiscoveredSearchSite{},
		Errors:      map[string]string{},
	}

	properties, propErr := d.provider.ListProperties(ctx, credentials)
	if propErr != nil {
		out.Errors[string(models.ConnectorGoogleAnalytics)] = propErr.Error()
	}
	for _, p := range properties {
		dp := DiscoveredProperty{Property: p}
		if s, ok := byDomain[p.Domain]; ok && p.Domain != "" {
			dp.SiteID, dp.SiteName = s.ID, s.Name
		}
		out.Properties = append(out.Properties, dp)
	}

	searchSites, searchErr := d.provider.ListSearchSites(ctx, credentials)
	if searchErr != nil {
		out.Errors[string(models.ConnectorSearchConsole)] = searchErr.Error()
	}
	for _, ss := range searchSites {
		ds := DiscoveredSearchSite{SearchSite: ss}
		if s, ok := byDomain[ss.Domain]; ok && ss.Domain != "" {
			ds.SiteID, ds.SiteName = s.ID, s.Name
		}
		out.SearchSites = append(out.SearchSites, ds)
	}

	if propErr != nil && searchErr != nil {
		return nil, errors.Join(propErr, searchErr)
	}
	if len(out.Errors) > 0 {
		d.logger.Warn("Discovery partially failed", infralogger.Any("errors", out.Errors))
	}
	return out, nil
}
