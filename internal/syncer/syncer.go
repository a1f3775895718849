// Package syncer pulls per-day metrics from the analytics providers into
// local traffic and search console rows. A batch visits each target site in
// order; one site's failure is recorded in the result and never aborts the
// rest of the batch. Every write is an upsert keyed on (site, date), so a
// repeated sync over the same window is idempotent.
package syncer

import (
	"context"
	"fmt"
	"time"

	infracontext "github.com/jonesrussell/site-portfolio/infrastructure/context"
	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	infraevents "github.com/jonesrussell/site-portfolio/infrastructure/events"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/analytics"
	"github.com/jonesrussell/site-portfolio/internal/metrics"
	"github.com/jonesrussell/site-portfolio/internal/models"
)

const recordSyncTimeout = 5 * time.Second

// Triggers recorded on SYNC_COMPLETED events.
const (
	TriggerAPI      = "api"
	TriggerCLI      = "cli"
	TriggerSchedule = "schedule"
)

// ConnectorStore is the connector persistence the orchestrator needs.
type ConnectorStore interface {
	GetByID(ctx context.Context, id string) (*models.Connector, error)
	GetForSite(ctx context.Context, siteID string, t models.ConnectorType) (*models.Connector, error)
	ListEnabled(ctx context.Context, t models.ConnectorType) ([]models.Connector, error)
	RecordSync(ctx context.Context, id string, at time.Time, syncErr error) error
}

// MetricStore is where fetched rows are upserted.
type MetricStore interface {
	UpsertTraffic(ctx context.Context, d *models.TrafficData) error
	UpsertSearchConsole(ctx context.Context, d *models.SearchConsoleData) error
}

// EventPublisher receives the SYNC_COMPLETED event of each batch.
type EventPublisher interface {
	PublishAsync(event infraevents.Event)
}

// Request selects the targets and window of one batch. ConnectorID wins over
// SiteID; with neither, every enabled connector of the provider is synced.
type Request struct {
	ConnectorID string `json:"connectorId"`
	SiteID      string `json:"siteId"`
	RangeRequest
	Trigger string `json:"-"`
}

// SiteResult is the outcome for one site.
type SiteResult struct {
	SiteID      string `json:"siteId"`
	SiteName    string `json:"siteName"`
	ConnectorID string `json:"connectorId"`
	Success     bool   `json:"success"`
	Rows        int    `json:"rows"`
	Error       string `json:"error,omitempty"`
}

// Result aggregates a batch. Results holds one entry per target, in order.
type Result struct {
	Provider     models.ConnectorType `json:"provider"`
	StartDate    models.Date          `json:"startDate"`
	EndDate      models.Date          `json:"endDate"`
	SuccessCount int                  `json:"successCount"`
	FailureCount int                  `json:"failureCount"`
	Results      []SiteResult         `json:"results"`
}

// Orchestrator runs Analytics and Search Console batches.
type Orchestrator struct {
	connectors  ConnectorStore
	store       MetricStore
	traffic     analytics.TrafficProvider
	search      analytics.SearchProvider
	publisher   EventPublisher
	metrics     *metrics.Metrics
	logger      infralogger.Logger
	defaultDays int
	now         func() time.Time
}

// Deps are the collaborators of an Orchestrator. Publisher and Metrics may
// be nil.
type Deps struct {
	Connectors ConnectorStore
	Store      MetricStore
	Traffic    analytics.TrafficProvider
	Search     analytics.SearchProvider
	Publisher  EventPublisher
	Metrics    *metrics.Metrics
	Logger     infralogger.Logger
	// DefaultDays is the window used when a request names no range.
	DefaultDays int
}

func New(deps Deps) *Orchestrator {
	log := deps.Logger
	if log == nil {
		log = infralogger.NewNop()
	}
	return &Orchestrator{
		connectors:  deps.Connectors,
		store:       deps.Store,
		traffic:     deps.Traffic,
		search:      deps.Search,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		logger:      log,
		defaultDays: deps.DefaultDays,
		now:         time.Now,
	}
}

// syncFunc fetches and stores one connector's window, returning rows written.
type syncFunc func(ctx context.Context, c *models.Connector, rng models.DateRange) (int, error)

// SyncTraffic runs a Google Analytics batch.
func (o *Orchestrator) SyncTraffic(ctx context.Context, req Request) (*Result, error) {
	return o.run(ctx, models.ConnectorGoogleAnalytics, AnalyticsLagDays, req, o.syncTraffic)
}

// SyncSearchConsole runs a Search Console batch.
func (o *Orchestrator) SyncSearchConsole(ctx context.Context, req Request) (*Result, error) {
	return o.run(ctx, models.ConnectorSearchConsole, SearchConsoleLagDays, req, o.syncSearchConsole)
}

func (o *Orchestrator) run(
	ctx context.Context,
	provider models.ConnectorType,
	lagDays int,
	req Request,
	fn syncFunc,
) (*Result, error) {
	if req.Days == 0 && req.StartDate == "" && req.EndDate == "" {
		req.Days = o.defaultDays
	}
	rng, err := ResolveRange(req.RangeRequest, lagDays, models.NewDate(o.now().UTC()))
	if err != nil {
		return nil, err
	}

	targets, err := o.targets(ctx, provider, req)
	if err != nil {
		return nil, err
	}

	o.logger.Info("Sync batch started",
		infralogger.String("provider", string(provider)),
		infralogger.String("start_date", rng.Start.String()),
		infralogger.String("end_date", rng.End.String()),
		infralogger.Int("targets", len(targets)),
	)

	result := &Result{
		Provider:  provider,
		StartDate: rng.Start,
		EndDate:   rng.End,
		Results:   make([]SiteResult, 0, len(targets)),
	}

	for i := range targets {
		sr := o.syncOne(ctx, provider, &targets[i], rng, fn)
		if sr.Success {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
		result.Results = append(result.Results, sr)
	}

	o.metrics.BatchFinished(string(provider), o.now())
	o.logger.Info("Sync batch finished",
		infralogger.String("provider", string(provider)),
		infralogger.Int("success_count", result.SuccessCount),
		infralogger.Int("failure_count", result.FailureCount),
	)

	if o.publisher != nil {
		trigger := req.Trigger
		if trigger == "" {
			trigger = TriggerAPI
		}
		o.publisher.PublishAsync(infraevents.Event{
			EventType: infraevents.SyncCompleted,
			Payload: infraevents.SyncCompletedPayload{
				Provider:     string(provider),
				StartDate:    rng.Start.String(),
				EndDate:      rng.End.String(),
				SuccessCount: result.SuccessCount,
				FailureCount: result.FailureCount,
				Trigger:      trigger,
			},
		})
	}

	return result, nil
}

func (o *Orchestrator) targets(ctx context.Context, provider models.ConnectorType, req Request) ([]models.Connector, error) {
	switch {
	case req.ConnectorID != "":
		c, err := o.connectors.GetByID(ctx, req.ConnectorID)
		if err != nil {
			return nil, err
		}
		if c.Type != provider {
			return nil, apperrors.Validation("connector %s is a %s connector, not %s", c.ID, c.Type, provider)
		}
		if !c.Enabled {
			return nil, apperrors.Validation("connector %s is disabled", c.ID)
		}
		return []models.Connector{*c}, nil

	case req.SiteID != "":
		c, err := o.connectors.GetForSite(ctx, req.SiteID, provider)
		if err != nil {
			return nil, err
		}
		if !c.Enabled {
			return nil, apperrors.Validation("the %s connector of this site is disabled", provider)
		}
		return []models.Connector{*c}, nil

	default:
		return o.connectors.ListEnabled(ctx, provider)
	}
}

// syncOne never returns an error: failures are folded into the SiteResult.
func (o *Orchestrator) syncOne(
	ctx context.Context,
	provider models.ConnectorType,
	c *models.Connector,
	rng models.DateRange,
	fn syncFunc,
) SiteResult {
	start := o.now()
	rows, err := fn(ctx, c, rng)
	o.metrics.ObserveSiteSync(string(provider), err, o.now().Sub(start), rows)

	sr := SiteResult{
		SiteID:      c.SiteID,
		SiteName:    c.SiteName,
		ConnectorID: c.ID,
		Success:     err == nil,
		Rows:        rows,
	}
	if err != nil {
		sr.Error = err.Error()
		o.logger.Warn("Site sync failed",
			infralogger.String("provider", string(provider)),
			infralogger.String("site_id", c.SiteID),
			infralogger.String("connector_id", c.ID),
			infralogger.Error(err),
		)
	}

	// Bookkeeping must land even when the batch context was cancelled.
	recordCtx, cancel := infracontext.Detached(ctx, recordSyncTimeout)
	defer cancel()
	if recordErr := o.connectors.RecordSync(recordCtx, c.ID, o.now().UTC(), err); recordErr != nil {
		o.logger.Error("Failed to record connector sync",
			infralogger.String("connector_id", c.ID),
			infralogger.Error(recordErr),
		)
	}

	return sr
}

func (o *Orchestrator) syncTraffic(ctx context.Context, c *models.Connector, rng models.DateRange) (int, error) {
	if o.traffic == nil {
		return 0, apperrors.Validation("Google Analytics is not configured")
	}
	rows, err := o.traffic.FetchTraffic(ctx, c, rng)
	if err != nil {
		return 0, err
	}

	for i := range rows {
		rows[i].SiteID = c.SiteID
		if upsertErr := o.store.UpsertTraffic(ctx, &rows[i]); upsertErr != nil {
			return i, fmt.Errorf("store traffic: %w", upsertErr)
		}
	}
	return len(rows), nil
}

func (o *Orchestrator) syncSearchConsole(ctx context.Context, c *models.Connector, rng models.DateRange) (int, error) {
	if o.search == nil {
		return 0, apperrors.Validation("Search Console is not configured")
	}
	rows, err := o.search.FetchSearchConsole(ctx, c, rng)
	if err != nil {
		return 0, err
	}

	for i := range rows {
		rows[i].SiteID = c.SiteID
		if upsertErr := o.store.UpsertSearchConsole(ctx, &rows[i]); upsertErr != nil {
			return i, fmt.Errorf("store search console: %w", upsertErr)
		}
	}
	return len(rows), nil
}
