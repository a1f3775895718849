package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	infraevents "github.com/jonesrussell/site-portfolio/infrastructure/events"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/metadata"
	"github.com/jonesrussell/site-portfolio/internal/models"
	"github.com/jonesrussell/site-portfolio/internal/syncer"
	"github.com/jonesrussell/site-portfolio/internal/urlutil"
)

// SiteStore is the site persistence used by SiteHandler.
type SiteStore interface {
	Create(ctx context.Context, site *models.Site) error
	GetByID(ctx context.Context, id string) (*models.Site, error)
	List(ctx context.Context, filter models.SiteFilter) (*models.PageResult[models.Site], error)
	Update(ctx context.Context, site *models.Site) error
	SoftDelete(ctx context.Context, id string) error
}

// AnalyticsStore reads and writes per-day site metrics.
type AnalyticsStore interface {
	UpsertTraffic(ctx context.Context, d *models.TrafficData) error
	ListTraffic(ctx context.Context, siteID string, rng models.DateRange) ([]models.TrafficData, error)
	ListSearchConsole(ctx context.Context, siteID string, rng models.DateRange) ([]models.SearchConsoleData, error)
}

type MetadataExtractor interface {
	Extract(ctx context.Context, rawURL string) (*metadata.Metadata, error)
}

type EventPublisher interface {
	PublishAsync(event infraevents.Event)
}

type SiteHandler struct {
	base
	sites     SiteStore
	analytics AnalyticsStore
	extractor MetadataExtractor
	publisher EventPublisher
}

// NewSiteHandler wires the site routes. extractor and publisher may be nil.
func NewSiteHandler(
	sites SiteStore,
	analytics AnalyticsStore,
	extractor MetadataExtractor,
	publisher EventPublisher,
	log infralogger.Logger,
) *SiteHandler {
	return &SiteHandler{
		base:      newBase(log),
		sites:     sites,
		analytics: analytics,
		extractor: extractor,
		publisher: publisher,
	}
}

// siteRequest is the body of create and update. Nil fields are left
// unchanged on update.
type siteRequest struct {
	Name        *string `json:"name"`
	URL         *string `json:"url"`
	Domain      *string `json:"domain"`
	Category    *string `json:"category"`
	Status      *string `json:"status"`
	Description *string `json:"description"`
}

// apply copies the request onto site and returns the names of the fields
// that changed.
func (r *siteRequest) apply(site *models.Site) ([]string, error) {
	var changed []string
	set := func(name string, dst *string, src *string) {
		if src == nil {
			return
		}
		v := strings.TrimSpace(*src)
		if *dst != v {
			*dst = v
			changed = append(changed, name)
		}
	}

	set("name", &site.Name, r.Name)
	set("category", &site.Category, r.Category)
	set("description", &site.Description, r.Description)

	if r.URL != nil {
		normalized, err := urlutil.NormalizeURL(*r.URL)
		if err != nil {
			return nil, apperrors.Validation("invalid url: %v", err)
		}
		set("url", &site.URL, &normalized)
		if r.Domain == nil {
			domain := urlutil.ExtractDomain(normalized)
			set("domain", &site.Domain, &domain)
		}
	}
	if r.Domain != nil {
		domain := urlutil.ExtractDomain(*r.Domain)
		if domain == "" {
			return nil, apperrors.Validation("invalid domain %q", *r.Domain)
		}
		set("domain", &site.Domain, &domain)
	}

	if r.Status != nil {
		status := models.SiteStatus(strings.ToLower(strings.TrimSpace(*r.Status)))
		if !status.Valid() {
			return nil, apperrors.Validation("status must be one of online, maintenance, offline")
		}
		if site.Status != status {
			site.Status = status
			changed = append(changed, "status")
		}
	}

	if site.Name == "" {
		return nil, apperrors.Validation("name is required")
	}
	if site.URL == "" || site.Domain == "" {
		return nil, apperrors.Validation("url is required")
	}
	return changed, nil
}

func (h *SiteHandler) List(c *gin.Context) {
	filter := models.SiteFilter{
		Category: c.Query("category"),
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     pageQuery(c),
	}
	if s := c.Query("status"); s != "" {
		filter.Status = models.SiteStatus(s)
		if !filter.Status.Valid() {
			h.respondError(c, apperrors.Validation("unknown status %q", s), "list sites")
			return
		}
	}

	result, err := h.sites.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err, "list sites")
		return
	}
	respond(c, http.StatusOK, result)
}

func (h *SiteHandler) GetByID(c *gin.Context) {
	site, err := h.sites.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get site")
		return
	}
	respond(c, http.StatusOK, site)
}

func (h *SiteHandler) Create(c *gin.Context) {
	var req siteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.URL == nil {
		h.respondError(c, apperrors.Validation("url is required"), "create site")
		return
	}

	site := &models.Site{Status: models.SiteStatusOnline}
	if _, err := req.apply(site); err != nil {
		h.respondError(c, err, "create site")
		return
	}

	if err := h.sites.Create(c.Request.Context(), site); err != nil {
		h.respondError(c, err, "create site")
		return
	}

	h.log(c).Info("Site created",
		infralogger.String("site_id", site.ID),
		infralogger.String("domain", site.Domain),
	)
	h.publish(infraevents.SiteCreated, site, nil)

	respond(c, http.StatusCreated, site)
}

func (h *SiteHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	var req siteRequest
	if !h.bindJSON(c, &req) {
		return
	}

	site, err := h.sites.GetByID(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err, "update site")
		return
	}

	changed, err := req.apply(site)
	if err != nil {
		h.respondError(c, err, "update site")
		return
	}
	if len(changed) == 0 {
		respond(c, http.StatusOK, site)
		return
	}

	if err := h.sites.Update(ctx, site); err != nil {
		h.respondError(c, err, "update site")
		return
	}

	h.log(c).Info("Site updated",
		infralogger.String("site_id", site.ID),
		infralogger.Any("changed_fields", changed),
	)
	h.publish(infraevents.SiteUpdated, site, changed)

	respond(c, http.StatusOK, site)
}

func (h *SiteHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	site, err := h.sites.GetByID(ctx, id)
	if err != nil {
		h.respondError(c, err, "delete site")
		return
	}
	if err := h.sites.SoftDelete(ctx, id); err != nil {
		h.respondError(c, err, "delete site")
		return
	}

	h.log(c).Info("Site deleted", infralogger.String("site_id", id))
	h.publish(infraevents.SiteDeleted, site, nil)

	respond(c, http.StatusOK, gin.H{"id": id})
}

// Metadata suggests name and description for a URL being added.
func (h *SiteHandler) Metadata(c *gin.Context) {
	rawURL := strings.TrimSpace(c.Query("url"))
	if rawURL == "" {
		h.respondError(c, apperrors.Validation("url query parameter is required"), "fetch metadata")
		return
	}
	if h.extractor == nil {
		h.respondError(c, apperrors.Internal("metadata extractor not configured", nil), "fetch metadata")
		return
	}

	meta, err := h.extractor.Extract(c.Request.Context(), rawURL)
	if err != nil {
		h.respondError(c, err, "fetch metadata")
		return
	}
	respond(c, http.StatusOK, meta)
}

// Traffic lists stored traffic rows for a site over ?days= or
// ?startDate=&endDate= (default: the last 30 days up to today).
func (h *SiteHandler) Traffic(c *gin.Context) {
	siteID, rng, ok := h.siteRange(c, "list traffic")
	if !ok {
		return
	}
	rows, err := h.analytics.ListTraffic(c.Request.Context(), siteID, rng)
	if err != nil {
		h.respondError(c, err, "list traffic")
		return
	}
	respond(c, http.StatusOK, gin.H{"startDate": rng.Start, "endDate": rng.End, "items": rows})
}

func (h *SiteHandler) SearchConsole(c *gin.Context) {
	siteID, rng, ok := h.siteRange(c, "list search console data")
	if !ok {
		return
	}
	rows, err := h.analytics.ListSearchConsole(c.Request.Context(), siteID, rng)
	if err != nil {
		h.respondError(c, err, "list search console data")
		return
	}
	respond(c, http.StatusOK, gin.H{"startDate": rng.Start, "endDate": rng.End, "items": rows})
}

func (h *SiteHandler) siteRange(c *gin.Context, action string) (string, models.DateRange, bool) {
	site, err := h.sites.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, action)
		return "", models.DateRange{}, false
	}

	req := syncer.RangeRequest{
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
	}
	if d := c.Query("days"); d != "" {
		days, convErr := strconv.Atoi(d)
		if convErr != nil {
			h.respondError(c, apperrors.Validation("days must be an integer"), action)
			return "", models.DateRange{}, false
		}
		req.Days = days
	}

	rng, err := syncer.ResolveRange(req, 0, models.Today())
	if err != nil {
		h.respondError(c, err, action)
		return "", models.DateRange{}, false
	}
	return site.ID, rng, true
}

// trafficRequest is one manually entered day of traffic.
type trafficRequest struct {
	Date               models.Date `json:"date"`
	Sessions           int64       `json:"sessions"`
	Users              int64       `json:"users"`
	NewUsers           int64       `json:"newUsers"`
	Pageviews          int64       `json:"pageviews"`
	BounceRate         float64     `json:"bounceRate"`
	AvgSessionDuration float64     `json:"avgSessionDuration"`
}

func (r trafficRequest) validate() error {
	if r.Date.IsZero() {
		return apperrors.Validation("date is required")
	}
	if r.Sessions < 0 || r.Users < 0 || r.NewUsers < 0 || r.Pageviews < 0 {
		return apperrors.Validation("traffic counts must not be negative")
	}
	if r.BounceRate < 0 || r.BounceRate > 100 {
		return apperrors.Validation("bounceRate must be between 0 and 100")
	}
	if r.AvgSessionDuration < 0 {
		return apperrors.Validation("avgSessionDuration must not be negative")
	}
	return nil
}

// UpsertTraffic records manual traffic for one day, replacing any row
// already stored for that day.
func (h *SiteHandler) UpsertTraffic(c *gin.Context) {
	ctx := c.Request.Context()

	var req trafficRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := req.validate(); err != nil {
		h.respondError(c, err, "upsert traffic")
		return
	}

	site, err := h.sites.GetByID(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err, "upsert traffic")
		return
	}

	row := &models.TrafficData{
		SiteID:             site.ID,
		Date:               req.Date,
		Sessions:           req.Sessions,
		Users:              req.Users,
		NewUsers:           req.NewUsers,
		Pageviews:          req.Pageviews,
		BounceRate:         req.BounceRate,
		AvgSessionDuration: req.AvgSessionDuration,
		Source:             models.TrafficSourceManual,
	}
	if err := h.analytics.UpsertTraffic(ctx, row); err != nil {
		h.respondError(c, err, "upsert traffic")
		return
	}
	respond(c, http.StatusOK, row)
}

func (h *SiteHandler) publish(t infraevents.EventType, site *models.Site, changed []string) {
	if h.publisher == nil {
		return
	}
	h.publisher.PublishAsync(infraevents.Event{
		EventType: t,
		EntityID:  site.ID,
		Payload: infraevents.SitePayload{
			Name:          site.Name,
			Domain:        site.Domain,
			Status:        string(site.Status),
			ChangedFields: changed,
		},
	})
}
