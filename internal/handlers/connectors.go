package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/models"
	"github.com/jonesrussell/site-portfolio/internal/syncer"
)

type ConnectorStore interface {
	Create(ctx context.Context, c *models.Connector) error
	GetByID(ctx context.Context, id string) (*models.Connector, error)
	List(ctx context.Context, filter models.ConnectorFilter) ([]models.Connector, error)
	Update(ctx context.Context, c *models.Connector) error
	Delete(ctx context.Context, id string) error
}

// Syncer runs Analytics and Search Console batches.
type Syncer interface {
	SyncTraffic(ctx context.Context, req syncer.Request) (*syncer.Result, error)
	SyncSearchConsole(ctx context.Context, req syncer.Request) (*syncer.Result, error)
}

type PropertyDiscoverer interface {
	Discover(ctx context.Context, credentials string) (*syncer.Discovery, error)
}

type ConnectorHandler struct {
	base
	connectors  ConnectorStore
	sites       SiteGetter
	syncer      Syncer
	discoverer  PropertyDiscoverer
	syncTimeout time.Duration
}

// NewConnectorHandler wires the connector and sync routes. Sync requests run
// under syncTimeout rather than the HTTP request lifetime alone.
func NewConnectorHandler(
	connectors ConnectorStore,
	sites SiteGetter,
	s Syncer,
	discoverer PropertyDiscoverer,
	syncTimeout time.Duration,
	log infralogger.Logger,
) *ConnectorHandler {
	return &ConnectorHandler{
		base:        newBase(log),
		connectors:  connectors,
		sites:       sites,
		syncer:      s,
		discoverer:  discoverer,
		syncTimeout: syncTimeout,
	}
}

type connectorRequest struct {
	SiteID      *string `json:"siteId"`
	Type        *string `json:"type"`
	Name        *string `json:"name"`
	PropertyID  *string `json:"propertyId"`
	Credentials *string `json:"credentials"`
	Enabled     *bool   `json:"enabled"`
}

func (r *connectorRequest) apply(conn *models.Connector) error {
	if r.SiteID != nil {
		conn.SiteID = strings.TrimSpace(*r.SiteID)
	}
	if r.Type != nil {
		conn.Type = models.ConnectorType(strings.TrimSpace(*r.Type))
	}
	if r.Name != nil {
		conn.Name = strings.TrimSpace(*r.Name)
	}
	if r.PropertyID != nil {
		conn.PropertyID = strings.TrimSpace(*r.PropertyID)
	}
	if r.Credentials != nil {
		creds := strings.TrimSpace(*r.Credentials)
		if creds != "" && !json.Valid([]byte(creds)) {
			return apperrors.Validation("credentials must be a service account JSON document")
		}
		conn.Credentials = creds
		conn.HasCredentials = creds != ""
	}
	if r.Enabled != nil {
		conn.Enabled = *r.Enabled
	}

	if conn.SiteID == "" {
		return apperrors.Validation("siteId is required")
	}
	if !conn.Type.Valid() {
		return apperrors.Validation("type must be google_analytics or search_console")
	}
	if conn.PropertyID == "" {
		return apperrors.Validation("propertyId is required")
	}
	if conn.Name == "" {
		conn.Name = conn.PropertyID
	}
	return nil
}

func (h *ConnectorHandler) List(c *gin.Context) {
	filter := models.ConnectorFilter{
		SiteID: c.Query("siteId"),
		Type:   models.ConnectorType(c.Query("type")),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		h.respondError(c, apperrors.Validation("unknown connector type %q", filter.Type), "list connectors")
		return
	}

	connectors, err := h.connectors.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err, "list connectors")
		return
	}
	respond(c, http.StatusOK, connectors)
}

func (h *ConnectorHandler) GetByID(c *gin.Context) {
	conn, err := h.connectors.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get connector")
		return
	}
	respond(c, http.StatusOK, conn)
}

func (h *ConnectorHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req connectorRequest
	if !h.bindJSON(c, &req) {
		return
	}

	conn := &models.Connector{Enabled: true}
	if err := req.apply(conn); err != nil {
		h.respondError(c, err, "create connector")
		return
	}
	site, err := h.sites.GetByID(ctx, conn.SiteID)
	if err != nil {
		h.respondError(c, err, "create connector")
		return
	}

	if err = h.connectors.Create(ctx, conn); err != nil {
		h.respondError(c, err, "create connector")
		return
	}
	conn.SiteName = site.Name

	h.log(c).Info("Connector created",
		infralogger.String("connector_id", conn.ID),
		infralogger.String("site_id", conn.SiteID),
		infralogger.String("type", string(conn.Type)),
	)
	respond(c, http.StatusCreated, conn)
}

func (h *ConnectorHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	var req connectorRequest
	if !h.bindJSON(c, &req) {
		return
	}

	conn, err := h.connectors.GetByID(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err, "update connector")
		return
	}
	previousSite := conn.SiteID
	if err = req.apply(conn); err != nil {
		h.respondError(c, err, "update connector")
		return
	}
	if conn.SiteID != previousSite {
		if _, err = h.sites.GetByID(ctx, conn.SiteID); err != nil {
			h.respondError(c, err, "update connector")
			return
		}
	}

	if err = h.connectors.Update(ctx, conn); err != nil {
		h.respondError(c, err, "update connector")
		return
	}
	respond(c, http.StatusOK, conn)
}

func (h *ConnectorHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.connectors.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "delete connector")
		return
	}
	h.log(c).Info("Connector deleted", infralogger.String("connector_id", id))
	respond(c, http.StatusOK, gin.H{"id": id})
}

// Sync pulls Analytics traffic for one connector or one site.
func (h *ConnectorHandler) Sync(c *gin.Context) {
	var req syncer.Request
	if !h.bindJSON(c, &req) {
		return
	}
	if req.ConnectorID == "" && req.SiteID == "" {
		h.respondError(c, apperrors.Validation("connectorId or siteId is required"), "sync analytics")
		return
	}
	h.runSync(c, req, "sync analytics", h.syncer.SyncTraffic)
}

// SearchConsoleSyncConnector pulls Search Console data through one connector.
func (h *ConnectorHandler) SearchConsoleSyncConnector(c *gin.Context) {
	var req syncer.Request
	if !h.bindJSON(c, &req) {
		return
	}
	if req.ConnectorID == "" {
		h.respondError(c, apperrors.Validation("connectorId is required"), "sync search console")
		return
	}
	h.runSync(c, req, "sync search console", h.syncer.SyncSearchConsole)
}

// SearchConsoleSync pulls Search Console data for one site, or for every
// site with an enabled connector when siteId is omitted.
func (h *ConnectorHandler) SearchConsoleSync(c *gin.Context) {
	var req syncer.Request
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	h.runSync(c, req, "sync search console", h.syncer.SyncSearchConsole)
}

func (h *ConnectorHandler) runSync(
	c *gin.Context,
	req syncer.Request,
	action string,
	run func(context.Context, syncer.Request) (*syncer.Result, error),
) {
	ctx := c.Request.Context()
	if h.syncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.syncTimeout)
		defer cancel()
	}

	req.Trigger = syncer.TriggerAPI
	result, err := run(ctx, req)
	if err != nil {
		h.respondError(c, err, action)
		return
	}
	respond(c, http.StatusOK, result)
}

type discoverRequest struct {
	Credentials string `json:"credentials"`
}

// Discover lists the GA4 properties and Search Console sites visible to the
// given credentials, or to the process-wide service account.
func (h *ConnectorHandler) Discover(c *gin.Context) {
	var req discoverRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	discovery, err := h.discoverer.Discover(c.Request.Context(), strings.TrimSpace(req.Credentials))
	if err != nil {
		h.respondError(c, err, "discover properties")
		return
	}
	respond(c, http.StatusOK, discovery)
}
