package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	infraevents "github.com/jonesrussell/site-portfolio/infrastructure/events"
	"github.com/jonesrussell/site-portfolio/internal/importer"
	"github.com/jonesrussell/site-portfolio/internal/metadata"
	"github.com/jonesrussell/site-portfolio/internal/models"
	"github.com/jonesrussell/site-portfolio/internal/recompute"
	"github.com/jonesrussell/site-portfolio/internal/syncer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// envelope decodes the response envelope with Data left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type MockSiteStore struct{ mock.Mock }

func (m *MockSiteStore) Create(ctx context.Context, site *models.Site) error {
	return m.Called(ctx, site).Error(0)
}

func (m *MockSiteStore) GetByID(ctx context.Context, id string) (*models.Site, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// Copy so handler mutations do not leak into the fixture.
	site := *args.Get(0).(*models.Site)
	return &site, args.Error(1)
}

func (m *MockSiteStore) List(ctx context.Context, filter models.SiteFilter) (*models.PageResult[models.Site], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PageResult[models.Site]), args.Error(1)
}

func (m *MockSiteStore) Update(ctx context.Context, site *models.Site) error {
	return m.Called(ctx, site).Error(0)
}

func (m *MockSiteStore) SoftDelete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockAnalyticsStore struct{ mock.Mock }

func (m *MockAnalyticsStore) UpsertTraffic(ctx context.Context, d *models.TrafficData) error {
	return m.Called(ctx, d).Error(0)
}

func (m *MockAnalyticsStore) ListTraffic(ctx context.Context, siteID string, rng models.DateRange) ([]models.TrafficData, error) {
	args := m.Called(ctx, siteID, rng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TrafficData), args.Error(1)
}

func (m *MockAnalyticsStore) ListSearchConsole(ctx context.Context, siteID string, rng models.DateRange) ([]models.SearchConsoleData, error) {
	args := m.Called(ctx, siteID, rng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SearchConsoleData), args.Error(1)
}

type MockExtractor struct{ mock.Mock }

func (m *MockExtractor) Extract(ctx context.Context, rawURL string) (*metadata.Metadata, error) {
	args := m.Called(ctx, rawURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*metadata.Metadata), args.Error(1)
}

type MockEvaluationStore struct{ mock.Mock }

func (m *MockEvaluationStore) Create(ctx context.Context, e *models.Evaluation) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockEvaluationStore) List(ctx context.Context, filter models.EvaluationFilter) (*models.PageResult[models.Evaluation], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PageResult[models.Evaluation]), args.Error(1)
}

func (m *MockEvaluationStore) Stats(ctx context.Context) (*models.EvaluationStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EvaluationStats), args.Error(1)
}

func (m *MockEvaluationStore) Leaderboard(ctx context.Context, dim models.Dimension, p models.Page) (*models.PageResult[models.LeaderboardEntry], error) {
	args := m.Called(ctx, dim, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PageResult[models.LeaderboardEntry]), args.Error(1)
}

func (m *MockEvaluationStore) LeaderboardAll(ctx context.Context, dim models.Dimension) ([]models.LeaderboardEntry, error) {
	args := m.Called(ctx, dim)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LeaderboardEntry), args.Error(1)
}

type MockBacklinkStore struct{ mock.Mock }

func (m *MockBacklinkStore) Create(ctx context.Context, b *models.BacklinkSite) error {
	return m.Called(ctx, b).Error(0)
}

func (m *MockBacklinkStore) GetByID(ctx context.Context, id string) (*models.BacklinkSite, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	b := *args.Get(0).(*models.BacklinkSite)
	return &b, args.Error(1)
}

func (m *MockBacklinkStore) List(ctx context.Context, filter models.BacklinkSiteFilter) (*models.PageResult[models.BacklinkSite], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PageResult[models.BacklinkSite]), args.Error(1)
}

func (m *MockBacklinkStore) Update(ctx context.Context, b *models.BacklinkSite) error {
	return m.Called(ctx, b).Error(0)
}

func (m *MockBacklinkStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockBacklinkStore) ExportRows(ctx context.Context) ([]models.BacklinkExportRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BacklinkExportRow), args.Error(1)
}

type MockSubmissionStore struct{ mock.Mock }

func (m *MockSubmissionStore) Create(ctx context.Context, s *models.BacklinkSubmission) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSubmissionStore) GetByID(ctx context.Context, id string) (*models.BacklinkSubmission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	s := *args.Get(0).(*models.BacklinkSubmission)
	return &s, args.Error(1)
}

func (m *MockSubmissionStore) ListByBacklinkSite(ctx context.Context, backlinkSiteID string) ([]models.BacklinkSubmission, error) {
	args := m.Called(ctx, backlinkSiteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BacklinkSubmission), args.Error(1)
}

func (m *MockSubmissionStore) Statuses(ctx context.Context, backlinkSiteID string) ([]models.SubmissionStatus, error) {
	args := m.Called(ctx, backlinkSiteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SubmissionStatus), args.Error(1)
}

func (m *MockSubmissionStore) Update(ctx context.Context, s *models.BacklinkSubmission) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSubmissionStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockImporter struct{ mock.Mock }

func (m *MockImporter) Quick(ctx context.Context, req importer.QuickRequest) (*importer.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importer.Result), args.Error(1)
}

func (m *MockImporter) Semrush(ctx context.Context, rows []importer.SemrushRow, parseErrors []importer.ImportError) (*importer.Result, error) {
	args := m.Called(ctx, rows, parseErrors)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importer.Result), args.Error(1)
}

func (m *MockImporter) Referral(ctx context.Context, req importer.ReferralRequest) (*importer.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importer.Result), args.Error(1)
}

type MockRecomputer struct{ mock.Mock }

func (m *MockRecomputer) RecomputeAll(ctx context.Context) (*recompute.BatchResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recompute.BatchResult), args.Error(1)
}

type MockConnectorStore struct{ mock.Mock }

func (m *MockConnectorStore) Create(ctx context.Context, c *models.Connector) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockConnectorStore) GetByID(ctx context.Context, id string) (*models.Connector, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	c := *args.Get(0).(*models.Connector)
	return &c, args.Error(1)
}

func (m *MockConnectorStore) List(ctx context.Context, filter models.ConnectorFilter) ([]models.Connector, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Connector), args.Error(1)
}

func (m *MockConnectorStore) Update(ctx context.Context, c *models.Connector) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockConnectorStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockSyncer struct{ mock.Mock }

func (m *MockSyncer) SyncTraffic(ctx context.Context, req syncer.Request) (*syncer.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncer.Result), args.Error(1)
}

func (m *MockSyncer) SyncSearchConsole(ctx context.Context, req syncer.Request) (*syncer.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncer.Result), args.Error(1)
}

type MockDiscoverer struct{ mock.Mock }

func (m *MockDiscoverer) Discover(ctx context.Context, credentials string) (*syncer.Discovery, error) {
	args := m.Called(ctx, credentials)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncer.Discovery), args.Error(1)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []infraevents.Event
}

func (p *recordingPublisher) PublishAsync(event infraevents.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []infraevents.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]infraevents.Event(nil), p.events...)
}

// recordingQueue keeps every enqueued backlink site ID.
type recordingQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *recordingQueue) Enqueue(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return true
}

func (q *recordingQueue) IDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.ids...)
}
