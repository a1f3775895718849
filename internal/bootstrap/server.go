package bootstrap

import (
	"context"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	infragin "github.com/jonesrussell/site-portfolio/infrastructure/gin"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	inframetrics "github.com/jonesrussell/site-portfolio/infrastructure/metrics"
	"github.com/jonesrussell/site-portfolio/internal/api"
	"github.com/jonesrussell/site-portfolio/internal/handlers"
	"github.com/jonesrussell/site-portfolio/internal/metadata"
	"github.com/jonesrussell/site-portfolio/internal/metrics"
)

// SetupHTTPServer wires the handlers over app and builds the HTTP server.
func SetupHTTPServer(app *App, version string) *infragin.Server {
	cfg := app.Config
	log := app.Logger

	// The metadata route answers 500 when the extractor cannot be built.
	var extractor handlers.MetadataExtractor
	if ex, err := metadata.NewExtractor(metadata.Config{
		Timeout:   cfg.Metadata.Timeout,
		UserAgent: cfg.Metadata.UserAgent,
		Proxy:     cfg.Proxy,
	}, log); err != nil {
		log.Warn("Metadata extraction disabled", infralogger.Error(err))
	} else {
		extractor = ex
	}

	h := api.Handlers{
		Sites:       handlers.NewSiteHandler(app.Repos.Sites, app.Repos.Analytics, extractor, app.Publisher, log),
		Evaluations: handlers.NewEvaluationHandler(app.Repos.Evaluations, app.Repos.Sites, log),
		Backlinks: handlers.NewBacklinkHandler(handlers.BacklinkDeps{
			Backlinks:   app.Repos.Backlinks,
			Submissions: app.Repos.Submissions,
			Sites:       app.Repos.Sites,
			Importer:    app.Importer,
			Recomputer:  app.Recomputer,
			Queue:       app.Queue,
			Publisher:   app.Publisher,
			Logger:      log,
		}),
		Connectors: handlers.NewConnectorHandler(
			app.Repos.Connectors,
			app.Repos.Sites,
			app.Orchestrator,
			app.Discoverer,
			cfg.Sync.RequestTimeout,
			log,
		),
	}

	serverCfg := api.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Debug:          cfg.Debug,
		Version:        version,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
		DBPing:         app.DB.PingContext,
		HTTPMetrics:    inframetrics.NewHTTPMetrics(app.Registry, metrics.Namespace),
		MetricsHandler: promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}),
	}
	if app.Redis != nil {
		serverCfg.RedisPing = func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		}
	}

	return api.NewServer(h, serverCfg, log)
}
