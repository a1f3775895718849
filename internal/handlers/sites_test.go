package handlers_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	infraevents "github.com/jonesrussell/site-portfolio/infrastructure/events"
	"github.com/jonesrussell/site-portfolio/internal/handlers"
	"github.com/jonesrussell/site-portfolio/internal/metadata"
	"github.com/jonesrussell/site-portfolio/internal/models"
	"github.com/jonesrussell/site-portfolio/internal/testhelpers"
)

type siteFixture struct {
	sites     *MockSiteStore
	analytics *MockAnalyticsStore
	extractor *MockExtractor
	publisher *recordingPublisher
	router    *gin.Engine
}

func newSiteFixture(t *testing.T) *siteFixture {
	t.Helper()

	f := &siteFixture{
		sites:     &MockSiteStore{},
		analytics: &MockAnalyticsStore{},
		extractor: &MockExtractor{},
		publisher: &recordingPublisher{},
	}
	h := handlers.NewSiteHandler(f.sites, f.analytics, f.extractor, f.publisher, testhelpers.NewTestLogger())

	f.router = gin.New()
	f.router.GET("/sites", h.List)
	f.router.POST("/sites", h.Create)
	f.router.GET("/sites/metadata", h.Metadata)
	f.router.GET("/sites/:id", h.GetByID)
	f.router.PUT("/sites/:id", h.Update)
	f.router.DELETE("/sites/:id", h.Delete)
	f.router.GET("/sites/:id/traffic", h.Traffic)
	f.router.POST("/sites/:id/traffic", h.UpsertTraffic)
	f.router.GET("/sites/:id/search-console", h.SearchConsole)

	t.Cleanup(func() {
		f.sites.AssertExpectations(t)
		f.analytics.AssertExpectations(t)
		f.extractor.AssertExpectations(t)
	})
	return f
}

func exampleSite() *models.Site {
	return &models.Site{
		ID:     "site-1",
		Name:   "Example",
		URL:    "https://example.com",
		Domain: "example.com",
		Status: models.SiteStatusOnline,
	}
}

func TestSiteHandler_Create(t *testing.T) {
	t.Run("normalizes url and derives domain", func(t *testing.T) {
		f := newSiteFixture(t)
		f.sites.On("Create", mock.Anything, mock.MatchedBy(func(s *models.Site) bool {
			return s.URL == "https://example.com" &&
				s.Domain == "example.com" &&
				s.Status == models.SiteStatusOnline
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Site).ID = "site-1"
		}).Return(nil)

		w, env := doJSON(t, f.router, http.MethodPost, "/sites", map[string]any{
			"name": "  Example ",
			"url":  "www.Example.com/",
		})

		require.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, env.Success)
		site := decodeData[models.Site](t, env)
		assert.Equal(t, "site-1", site.ID)
		assert.Equal(t, "Example", site.Name)

		events := f.publisher.Events()
		require.Len(t, events, 1)
		assert.Equal(t, infraevents.SiteCreated, events[0].EventType)
		assert.Equal(t, "site-1", events[0].EntityID)
	})

	t.Run("url is required", func(t *testing.T) {
		f := newSiteFixture(t)

		w, env := doJSON(t, f.router, http.MethodPost, "/sites", map[string]any{"name": "Example"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, env.Success)
		assert.Equal(t, "url is required", env.Error)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		f := newSiteFixture(t)

		w, _ := doJSON(t, f.router, http.MethodPost, "/sites", map[string]any{
			"name":   "Example",
			"url":    "example.com",
			"status": "archived",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate domain is a conflict", func(t *testing.T) {
		f := newSiteFixture(t)
		f.sites.On("Create", mock.Anything, mock.Anything).
			Return(apperrors.Conflict("a site with this domain already exists", nil))

		w, env := doJSON(t, f.router, http.MethodPost, "/sites", map[string]any{
			"name": "Example",
			"url":  "https://example.com",
		})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "a site with this domain already exists", env.Error)
		assert.Empty(t, f.publisher.Events())
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newSiteFixture(t)

		w, env := doJSON(t, f.router, http.MethodPost, "/sites", "not an object")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request body", env.Error)
	})
}

func TestSiteHandler_List(t *testing.T) {
	f := newSiteFixture(t)
	f.sites.On("List", mock.Anything, models.SiteFilter{
		Status: models.SiteStatusOnline,
		Search: "exa",
		Page:   models.Page{Page: 2, PageSize: 10},
	}).Return(&models.PageResult[models.Site]{
		Items:    []models.Site{*exampleSite()},
		Total:    11,
		Page:     2,
		PageSize: 10,
	}, nil)

	w, env := doJSON(t, f.router, http.MethodGet, "/sites?status=online&search=exa&page=2&pageSize=10", nil)

	require.Equal(t, http.StatusOK, w.Code)
	page := decodeData[models.PageResult[models.Site]](t, env)
	assert.Equal(t, 11, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "example.com", page.Items[0].Domain)
}

func TestSiteHandler_List_InvalidStatus(t *testing.T) {
	f := newSiteFixture(t)

	w, _ := doJSON(t, f.router, http.MethodGet, "/sites?status=gone", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSiteHandler_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := newSiteFixture(t)
		f.sites.On("GetByID", mock.Anything, "site-1").Return(exampleSite(), nil)

		w, env := doJSON(t, f.router, http.MethodGet, "/sites/site-1", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Example", decodeData[models.Site](t, env).Name)
	})

	t.Run("not found", func(t *testing.T) {
		f := newSiteFixture(t)
		f.sites.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NotFound("site"))

		w, env := doJSON(t, f.router, http.MethodGet, "/sites/missing", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "site not found", env.Error)
	})

	t.Run("store failure hides the cause", func(t *testing.T) {
		f := newSiteFixture(t)
		f.sites.On("GetByID", mock.Anything, "site-1").Return(nil, errors.New("connection reset"))

		w, env := doJSON(t, f.router, http.MethodGet, "/sites/site-1", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Internal server error", env.Error)
		assert.NotContains(t, w.Body.String(), "connection reset")
	})
}

func TestSiteHandler_Update(t *testing.T) {
	t.Run("publishes changed fields", func(t *testing.T) {
		f := newSiteFixture(t)
		f.sites.On("GetByID", mock.Anything, "site-1").Return(exampleSite(), nil)
		f.sites.On("Update", mock.Anything, mock.MatchedBy(func(s *models.Site) bool {
			return s.Status == models.SiteStatusMaintenance && s.Name == "Example"
		})).Return(nil)

		w, _ := doJSON(t, f.router, http.MethodPut, "/sites/site-1", map[string]any{"status": "Maintenance"})

		require.Equal(t, http.StatusOK, w.Code)
		events := f.publisher.Events()
		require.Len(t, events, 1)
		assert.Equal(t, infraevents.SiteUpdated, events[0].EventType)
		payload, ok := events[0].Payload.(infraevents.SitePayload)
		require.True(t, ok)
		assert.Equal(t, []string{"status"}, payload.ChangedFields)
	})

	t.Run("unchanged body skips the write", func(t *testing.T) {
		f := newSiteFixture(t)
		f.sites.On("GetByID", mock.Anything, "site-1").Return(exampleSite(), nil)

		w, _ := doJSON(t, f.router, http.MethodPut, "/sites/site-1", map[string]any{"name": "Example"})

		require.Equal(t, http.StatusOK, w.Code)
		f.sites.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		assert.Empty(t, f.publisher.Events())
	})

	t.Run("new url moves the domain", func(t *testing.T) {
		f := newSiteFixture(t)
		f.sites.On("GetByID", mock.Anything, "site-1").Return(exampleSite(), nil)
		f.sites.On("Update", mock.Anything, mock.MatchedBy(func(s *models.Site) bool {
			return s.URL == "https://example.org" && s.Domain == "example.org"
		})).Return(nil)

		w, _ := doJSON(t, f.router, http.MethodPut, "/sites/site-1", map[string]any{"url": "http://example.org"})

		require.Equal(t, http.StatusOK, w.Code)
		payload := f.publisher.Events()[0].Payload.(infraevents.SitePayload)
		assert.Equal(t, []string{"url", "domain"}, payload.ChangedFields)
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		f := newSiteFixture(t)
		f.sites.On("GetByID", mock.Anything, "site-1").Return(exampleSite(), nil)

		w, env := doJSON(t, f.router, http.MethodPut, "/sites/site-1", map[string]any{"name": "  "})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "name is required", env.Error)
	})
}

func TestSiteHandler_Delete(t *testing.T) {
	f := newSiteFixture(t)
	f.sites.On("GetByID", mock.Anything, "site-1").Return(exampleSite(), nil)
	f.sites.On("SoftDelete", mock.Anything, "site-1").Return(nil)

	w, env := doJSON(t, f.router, http.MethodDelete, "/sites/site-1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"id": "site-1"}, decodeData[map[string]string](t, env))
	events := f.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, infraevents.SiteDeleted, events[0].EventType)
}

func TestSiteHandler_Metadata(t *testing.T) {
	t.Run("requires url", func(t *testing.T) {
		f := newSiteFixture(t)

		w, _ := doJSON(t, f.router, http.MethodGet, "/sites/metadata", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("returns extracted metadata", func(t *testing.T) {
		f := newSiteFixture(t)
		f.extractor.On("Extract", mock.Anything, "example.com").Return(&metadata.Metadata{
			URL:    "https://example.com",
			Domain: "example.com",
			Name:   "Example Site",
		}, nil)

		w, env := doJSON(t, f.router, http.MethodGet, "/sites/metadata?url=example.com", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Example Site", decodeData[metadata.Metadata](t, env).Name)
	})

	t.Run("upstream failure is a bad gateway", func(t *testing.T) {
		f := newSiteFixture(t)
		f.extractor.On("Extract", mock.Anything, "example.com").
			Return(nil, apperrors.Upstream("fetch page", errors.New("timeout")))

		w, _ := doJSON(t, f.router, http.MethodGet, "/sites/metadata?url=example.com", nil)

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestSiteHandler_Traffic(t *testing.T) {
	f := newSiteFixture(t)
	start, err := models.ParseDate("2026-03-01")
	require.NoError(t, err)
	end, err := models.ParseDate("2026-03-07")
	require.NoError(t, err)

	f.sites.On("GetByID", mock.Anything, "site-1").Return(exampleSite(), nil)
	f.analytics.On("ListTraffic", mock.Anything, "site-1", models.DateRange{Start: start, End: end}).
		Return([]models.TrafficData{{SiteID: "site-1", Date: start, Sessions: 12}}, nil)

	w, env := doJSON(t, f.router, http.MethodGet, "/sites/site-1/traffic?startDate=2026-03-01&endDate=2026-03-07", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeData[struct {
		StartDate string               `json:"startDate"`
		EndDate   string               `json:"endDate"`
		Items     []models.TrafficData `json:"items"`
	}](t, env)
	assert.Equal(t, "2026-03-01", body.StartDate)
	assert.Equal(t, "2026-03-07", body.EndDate)
	require.Len(t, body.Items, 1)
	assert.EqualValues(t, 12, body.Items[0].Sessions)
}

func TestSiteHandler_Traffic_InvalidDays(t *testing.T) {
	f := newSiteFixture(t)
	f.sites.On("GetByID", mock.Anything, "site-1").Return(exampleSite(), nil)

	w, _ := doJSON(t, f.router, http.MethodGet, "/sites/site-1/traffic?days=week", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSiteHandler_UpsertTraffic(t *testing.T) {
	t.Run("stores a manual row", func(t *testing.T) {
		f := newSiteFixture(t)
		f.sites.On("GetByID", mock.Anything, "site-1").Return(exampleSite(), nil)
		f.analytics.On("UpsertTraffic", mock.Anything, mock.MatchedBy(func(d *models.TrafficData) bool {
			return d.SiteID == "site-1" &&
				d.Date.String() == "2026-03-02" &&
				d.Sessions == 40 &&
				d.Source == models.TrafficSourceManual
		})).Return(nil)

		w, _ := doJSON(t, f.router, http.MethodPost, "/sites/site-1/traffic", map[string]any{
			"date":       "2026-03-02",
			"sessions":   40,
			"users":      31,
			"bounceRate": 42.5,
		})

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("date is required", func(t *testing.T) {
		f := newSiteFixture(t)

		w, env := doJSON(t, f.router, http.MethodPost, "/sites/site-1/traffic", map[string]any{"sessions": 1})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "date is required", env.Error)
	})

	t.Run("bounce rate is a percentage", func(t *testing.T) {
		f := newSiteFixture(t)

		w, _ := doJSON(t, f.router, http.MethodPost, "/sites/site-1/traffic", map[string]any{
			"date":       "2026-03-02",
			"bounceRate": 140,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
