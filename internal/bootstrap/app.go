// Package bootstrap handles application initialization and lifecycle management
// for the site-portfolio service.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	infrahttp "github.com/jonesrussell/site-portfolio/infrastructure/http"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/analytics"
	"github.com/jonesrussell/site-portfolio/internal/config"
	"github.com/jonesrussell/site-portfolio/internal/events"
	"github.com/jonesrussell/site-portfolio/internal/importer"
	"github.com/jonesrussell/site-portfolio/internal/metrics"
	"github.com/jonesrussell/site-portfolio/internal/recompute"
	"github.com/jonesrussell/site-portfolio/internal/repository"
	"github.com/jonesrussell/site-portfolio/internal/syncer"
)

// Repositories are the per-aggregate stores over the shared pool.
type Repositories struct {
	Sites       *repository.SiteRepository
	Evaluations *repository.EvaluationRepository
	Backlinks   *repository.BacklinkSiteRepository
	Submissions *repository.SubmissionRepository
	Analytics   *repository.AnalyticsRepository
	Connectors  *repository.ConnectorRepository
}

// App holds the long-lived components shared by the serve, sync and
// recompute commands.
type App struct {
	Config   *config.Config
	Logger   infralogger.Logger
	DB       *sqlx.DB
	Redis    *redis.Client
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Publisher    *events.Publisher
	Repos        Repositories
	Google       *analytics.Google
	Orchestrator *syncer.Orchestrator
	Discoverer   *syncer.Discoverer
	Recomputer   *recompute.Recomputer
	Queue        *recompute.Queue
	Importer     *importer.Importer
}

// NewApp connects to PostgreSQL (and Redis when enabled) and builds the
// service graph. Close releases everything NewApp opened.
func NewApp(ctx context.Context, cfg *config.Config, log infralogger.Logger) (*App, error) {
	// Phase 1: database
	db, err := SetupDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Registry: prometheus.NewRegistry(),
	}
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = metrics.NewMetrics(app.Registry)

	// Phase 2: event publisher (optional)
	app.Redis, app.Publisher = SetupEventPublisher(ctx, cfg, log)

	// Phase 3: repositories and providers
	app.Repos = Repositories{
		Sites:       repository.NewSiteRepository(db, log),
		Evaluations: repository.NewEvaluationRepository(db, log),
		Backlinks:   repository.NewBacklinkSiteRepository(db, log),
		Submissions: repository.NewSubmissionRepository(db, log),
		Analytics:   repository.NewAnalyticsRepository(db, log),
		Connectors:  repository.NewConnectorRepository(db, log),
	}

	app.Google, err = setupGoogle(cfg, log)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	// Phase 4: services
	app.Orchestrator = syncer.New(syncer.Deps{
		Connectors:  app.Repos.Connectors,
		Store:       app.Repos.Analytics,
		Traffic:     app.Google,
		Search:      app.Google,
		Publisher:   app.Publisher,
		Metrics:     app.Metrics,
		Logger:      log.With(infralogger.String("component", "syncer")),
		DefaultDays: cfg.Sync.DefaultDays,
	})
	app.Discoverer = syncer.NewDiscoverer(app.Google, app.Repos.Sites, log)

	app.Recomputer = recompute.NewRecomputer(app.Repos.Backlinks, app.Repos.Submissions, app.Publisher, log)
	app.Queue = recompute.NewQueue(app.Recomputer, cfg.Recompute.QueueSize, app.Metrics,
		log.With(infralogger.String("component", "recompute")))

	app.Importer = importer.New(importer.Deps{
		Backlinks:   app.Repos.Backlinks,
		Submissions: app.Repos.Submissions,
		Sites:       app.Repos.Sites,
		Connectors:  app.Repos.Connectors,
		Referrals:   app.Google,
		Recompute:   app.Queue,
		Publisher:   app.Publisher,
		Metrics:     app.Metrics,
		Logger:      log.With(infralogger.String("component", "importer")),
	})

	return app, nil
}

// setupGoogle builds the Analytics / Search Console client. Missing
// process-wide credentials are not fatal: connectors may carry their own.
func setupGoogle(cfg *config.Config, log infralogger.Logger) (*analytics.Google, error) {
	creds, err := cfg.Analytics.Credentials()
	switch {
	case errors.Is(err, config.ErrNoCredentials):
		log.Info("No process-wide Google credentials; connectors must carry their own")
	case err != nil:
		return nil, fmt.Errorf("google credentials: %w", err)
	}

	client, err := infrahttp.NewClient(&infrahttp.ClientConfig{
		Timeout: cfg.Analytics.HTTPTimeout,
		Proxy:   cfg.Proxy,
	})
	if err != nil {
		return nil, fmt.Errorf("google http client: %w", err)
	}

	return analytics.NewGoogle(analytics.Config{
		HTTPClient:        client,
		Credentials:       creds,
		RequestsPerSecond: cfg.Analytics.RequestsPerSecond,
		Burst:             cfg.Analytics.Burst,
		Retry:             cfg.Analytics.Retry,
		Breaker:           cfg.Analytics.Breaker,
	}, log.With(infralogger.String("component", "analytics"))), nil
}

// Close drains the recompute queue and pending events, then closes Redis
// and the database, in that order.
func (a *App) Close(ctx context.Context) {
	if err := a.Queue.Close(ctx); err != nil && !errors.Is(err, recompute.ErrQueueClosed) {
		a.Logger.Warn("Recompute queue did not drain", infralogger.Error(err))
	}
	a.Publisher.Wait()

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("Failed to close Redis", infralogger.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("Failed to close database", infralogger.Error(err))
		}
	}
}
