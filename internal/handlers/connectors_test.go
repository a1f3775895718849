package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	"github.com/jonesrussell/site-portfolio/internal/handlers"
	"github.com/jonesrussell/site-portfolio/internal/models"
	"github.com/jonesrussell/site-portfolio/internal/syncer"
	"github.com/jonesrussell/site-portfolio/internal/testhelpers"
)

type connectorFixture struct {
	connectors *MockConnectorStore
	sites      *MockSiteStore
	syncer     *MockSyncer
	discoverer *MockDiscoverer
	router     *gin.Engine
}

func newConnectorFixture(t *testing.T) *connectorFixture {
	t.Helper()

	f := &connectorFixture{
		connectors: &MockConnectorStore{},
		sites:      &MockSiteStore{},
		syncer:     &MockSyncer{},
		discoverer: &MockDiscoverer{},
	}
	h := handlers.NewConnectorHandler(f.connectors, f.sites, f.syncer, f.discoverer, time.Minute, testhelpers.NewTestLogger())

	f.router = gin.New()
	f.router.GET("/connectors", h.List)
	f.router.POST("/connectors", h.Create)
	f.router.POST("/connectors/sync", h.Sync)
	f.router.POST("/connectors/gsc-sync", h.SearchConsoleSyncConnector)
	f.router.POST("/connectors/discover", h.Discover)
	f.router.GET("/connectors/:id", h.GetByID)
	f.router.PUT("/connectors/:id", h.Update)
	f.router.DELETE("/connectors/:id", h.Delete)
	f.router.POST("/gsc-sync", h.SearchConsoleSync)

	t.Cleanup(func() {
		f.connectors.AssertExpectations(t)
		f.sites.AssertExpectations(t)
		f.syncer.AssertExpectations(t)
		f.discoverer.AssertExpectations(t)
	})
	return f
}

func exampleConnector() *models.Connector {
	return &models.Connector{
		ID:         "conn-1",
		SiteID:     "site-1",
		Type:       models.ConnectorGoogleAnalytics,
		Name:       "Example GA4",
		PropertyID: "123456",
		Enabled:    true,
	}
}

func TestConnectorHandler_Create(t *testing.T) {
	t.Run("defaults name and enabled", func(t *testing.T) {
		f := newConnectorFixture(t)
		f.sites.On("GetByID", mock.Anything, "site-1").Return(exampleSite(), nil)
		f.connectors.On("Create", mock.Anything, mock.MatchedBy(func(c *models.Connector) bool {
			return c.Name == "sc-domain:example.com" && c.Enabled && c.Type == models.ConnectorSearchConsole
		})).Return(nil)

		w, env := doJSON(t, f.router, http.MethodPost, "/connectors", map[string]any{
			"siteId":     "site-1",
			"type":       "search_console",
			"propertyId": "sc-domain:example.com",
		})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		conn := decodeData[models.Connector](t, env)
		assert.Equal(t, "Example", conn.SiteName)
		assert.False(t, conn.HasCredentials)
	})

	t.Run("credentials never leave the server", func(t *testing.T) {
		f := newConnectorFixture(t)
		f.sites.On("GetByID", mock.Anything, "site-1").Return(exampleSite(), nil)
		f.connectors.On("Create", mock.Anything, mock.Anything).Return(nil)

		w, _ := doJSON(t, f.router, http.MethodPost, "/connectors", map[string]any{
			"siteId":      "site-1",
			"type":        "google_analytics",
			"propertyId":  "123456",
			"credentials": `{"type":"service_account","private_key":"secret"}`,
		})

		require.Equal(t, http.StatusCreated, w.Code)
		assert.NotContains(t, w.Body.String(), "secret")
		assert.Contains(t, w.Body.String(), `"hasCredentials":true`)
	})

	t.Run("credentials must be json", func(t *testing.T) {
		f := newConnectorFixture(t)

		w, _ := doJSON(t, f.router, http.MethodPost, "/connectors", map[string]any{
			"siteId":      "site-1",
			"type":        "google_analytics",
			"propertyId":  "123456",
			"credentials": "not json",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown type", func(t *testing.T) {
		f := newConnectorFixture(t)

		w, _ := doJSON(t, f.router, http.MethodPost, "/connectors", map[string]any{
			"siteId":     "site-1",
			"type":       "bing",
			"propertyId": "123456",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown site", func(t *testing.T) {
		f := newConnectorFixture(t)
		f.sites.On("GetByID", mock.Anything, "site-9").Return(nil, apperrors.NotFound("site"))

		w, _ := doJSON(t, f.router, http.MethodPost, "/connectors", map[string]any{
			"siteId":     "site-9",
			"type":       "google_analytics",
			"propertyId": "123456",
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestConnectorHandler_List(t *testing.T) {
	t.Run("filters by site and type", func(t *testing.T) {
		f := newConnectorFixture(t)
		f.connectors.On("List", mock.Anything, models.ConnectorFilter{
			SiteID: "site-1",
			Type:   models.ConnectorGoogleAnalytics,
		}).Return([]models.Connector{*exampleConnector()}, nil)

		w, env := doJSON(t, f.router, http.MethodGet, "/connectors?siteId=site-1&type=google_analytics", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decodeData[[]models.Connector](t, env), 1)
	})

	t.Run("unknown type", func(t *testing.T) {
		f := newConnectorFixture(t)

		w, _ := doJSON(t, f.router, http.MethodGet, "/connectors?type=bing", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestConnectorHandler_Update(t *testing.T) {
	t.Run("disable", func(t *testing.T) {
		f := newConnectorFixture(t)
		f.connectors.On("GetByID", mock.Anything, "conn-1").Return(exampleConnector(), nil)
		f.connectors.On("Update", mock.Anything, mock.MatchedBy(func(c *models.Connector) bool {
			return !c.Enabled && c.PropertyID == "123456"
		})).Return(nil)

		w, _ := doJSON(t, f.router, http.MethodPut, "/connectors/conn-1", map[string]any{"enabled": false})

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("moving to another site checks it exists", func(t *testing.T) {
		f := newConnectorFixture(t)
		f.connectors.On("GetByID", mock.Anything, "conn-1").Return(exampleConnector(), nil)
		f.sites.On("GetByID", mock.Anything, "site-2").Return(nil, apperrors.NotFound("site"))

		w, _ := doJSON(t, f.router, http.MethodPut, "/connectors/conn-1", map[string]any{"siteId": "site-2"})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestConnectorHandler_Delete(t *testing.T) {
	f := newConnectorFixture(t)
	f.connectors.On("Delete", mock.Anything, "conn-1").Return(apperrors.NotFound("connector"))

	w, _ := doJSON(t, f.router, http.MethodDelete, "/connectors/conn-1", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConnectorHandler_Sync(t *testing.T) {
	t.Run("runs with an api trigger and a deadline", func(t *testing.T) {
		f := newConnectorFixture(t)
		f.syncer.On("SyncTraffic", mock.MatchedBy(func(ctx context.Context) bool {
			_, ok := ctx.Deadline()
			return ok
		}), mock.MatchedBy(func(req syncer.Request) bool {
			return req.SiteID == "site-1" && req.Days == 7 && req.Trigger == syncer.TriggerAPI
		})).Return(&syncer.Result{
			Provider:     models.ConnectorGoogleAnalytics,
			SuccessCount: 1,
			Results:      []syncer.SiteResult{{SiteID: "site-1", Success: true, Rows: 7}},
		}, nil)

		w, env := doJSON(t, f.router, http.MethodPost, "/connectors/sync", map[string]any{"siteId": "site-1", "days": 7})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		result := decodeData[syncer.Result](t, env)
		assert.Equal(t, 1, result.SuccessCount)
		require.Len(t, result.Results, 1)
		assert.Equal(t, 7, result.Results[0].Rows)
	})

	t.Run("requires a target", func(t *testing.T) {
		f := newConnectorFixture(t)

		w, _ := doJSON(t, f.router, http.MethodPost, "/connectors/sync", map[string]any{"days": 7})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid range", func(t *testing.T) {
		f := newConnectorFixture(t)
		f.syncer.On("SyncTraffic", mock.Anything, mock.Anything).
			Return(nil, apperrors.Validation("days must be between 1 and 365"))

		w, _ := doJSON(t, f.router, http.MethodPost, "/connectors/sync", map[string]any{"siteId": "site-1", "days": 900})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestConnectorHandler_SearchConsoleSyncConnector(t *testing.T) {
	f := newConnectorFixture(t)

	w, env := doJSON(t, f.router, http.MethodPost, "/connectors/gsc-sync", map[string]any{"siteId": "site-1"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "connectorId is required", env.Error)
}

func TestConnectorHandler_SearchConsoleSync_EmptyBody(t *testing.T) {
	f := newConnectorFixture(t)
	f.syncer.On("SyncSearchConsole", mock.Anything, syncer.Request{Trigger: syncer.TriggerAPI}).
		Return(&syncer.Result{Provider: models.ConnectorSearchConsole, Results: []syncer.SiteResult{}}, nil)

	w, _ := doJSON(t, f.router, http.MethodPost, "/gsc-sync", nil)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestConnectorHandler_SearchConsoleSync_ChunkedEmptyBody(t *testing.T) {
	f := newConnectorFixture(t)
	f.syncer.On("SyncSearchConsole", mock.Anything, syncer.Request{Trigger: syncer.TriggerAPI}).
		Return(&syncer.Result{Provider: models.ConnectorSearchConsole, Results: []syncer.SiteResult{}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/gsc-sync", strings.NewReader(""))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestConnectorHandler_SearchConsoleSync_MalformedBody(t *testing.T) {
	f := newConnectorFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/gsc-sync", strings.NewReader(`{"siteId":`))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.syncer.AssertNotCalled(t, "SyncSearchConsole", mock.Anything, mock.Anything)
}

func TestConnectorHandler_Discover_ChunkedEmptyBody(t *testing.T) {
	f := newConnectorFixture(t)
	f.discoverer.On("Discover", mock.Anything, "").Return(&syncer.Discovery{
		Properties:  []syncer.DiscoveredProperty{},
		SearchSites: []syncer.DiscoveredSearchSite{},
		Errors:      map[string]string{},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/connectors/discover", strings.NewReader(""))
	req.ContentLength = -1
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestConnectorHandler_Discover(t *testing.T) {
	f := newConnectorFixture(t)
	f.discoverer.On("Discover", mock.Anything, "").Return(&syncer.Discovery{
		Properties:  []syncer.DiscoveredProperty{},
		SearchSites: []syncer.DiscoveredSearchSite{},
		Errors:      map[string]string{"search_console": "permission denied"},
	}, nil)

	w, env := doJSON(t, f.router, http.MethodPost, "/connectors/discover", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var discovery map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &discovery))
	assert.JSONEq(t, `{"search_console":"permission denied"}`, string(discovery["errors"]))
}
