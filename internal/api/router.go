// Package api assembles the HTTP server: the route table, health checks,
// metrics and CORS.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	infragin "github.com/jonesrussell/site-portfolio/infrastructure/gin"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	inframetrics "github.com/jonesrussell/site-portfolio/infrastructure/metrics"
	"github.com/jonesrussell/site-portfolio/internal/handlers"
)

const (
	serviceName        = "site-portfolio"
	healthCheckTimeout = 2 * time.Second
)

// Handlers groups the handler sets served under /api/v1.
type Handlers struct {
	Sites       *handlers.SiteHandler
	Evaluations *handlers.EvaluationHandler
	Backlinks   *handlers.BacklinkHandler
	Connectors  *handlers.ConnectorHandler
}

// ServerConfig carries what the server needs beyond the handlers.
type ServerConfig struct {
	Host         string
	Port         int
	Debug        bool
	Version      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string

	// DBPing is required; RedisPing is nil when events are disabled.
	DBPing    func(ctx context.Context) error
	RedisPing func(ctx context.Context) error

	HTTPMetrics    *inframetrics.HTTPMetrics
	MetricsHandler http.Handler
}

// NewServer builds the HTTP server with health, metrics and API routes.
func NewServer(h Handlers, cfg ServerConfig, log infralogger.Logger) *infragin.Server {
	builder := infragin.NewServerBuilder(&infragin.Config{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Debug:          cfg.Debug,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		CORS: infragin.CORSConfig{
			Enabled:        true,
			AllowedOrigins: cfg.CORSOrigins,
		},
	}).
		WithLogger(log).
		WithDatabaseHealthCheck(pingWithTimeout(cfg.DBPing))

	if cfg.RedisPing != nil {
		builder = builder.WithRedisHealthCheck(pingWithTimeout(cfg.RedisPing))
	}
	if cfg.HTTPMetrics != nil {
		builder = builder.WithMiddleware(cfg.HTTPMetrics.Middleware())
	}
	if cfg.MetricsHandler != nil {
		builder = builder.WithMetrics(cfg.MetricsHandler)
	}

	return builder.
		WithRoutes(func(router *gin.Engine) {
			SetupRoutes(router, h)
		}).
		Build()
}

func pingWithTimeout(ping func(ctx context.Context) error) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		defer cancel()
		return ping(ctx)
	}
}

// SetupRoutes registers the /api/v1 routes. Health and metrics routes are
// added by the server builder.
func SetupRoutes(router *gin.Engine, h Handlers) {
	v1 := router.Group("/api/v1")

	sites := v1.Group("/sites")
	sites.GET("", h.Sites.List)
	sites.GET("/metadata", h.Sites.Metadata)
	sites.POST("", h.Sites.Create)
	sites.GET("/:id", h.Sites.GetByID)
	sites.PUT("/:id", h.Sites.Update)
	sites.DELETE("/:id", h.Sites.Delete)
	sites.GET("/:id/traffic", h.Sites.Traffic)
	sites.POST("/:id/traffic", h.Sites.UpsertTraffic)
	sites.GET("/:id/search-console", h.Sites.SearchConsole)

	evaluations := v1.Group("/evaluations")
	evaluations.GET("", h.Evaluations.List)
	evaluations.POST("", h.Evaluations.Create)
	evaluations.GET("/stats", h.Evaluations.Stats)

	v1.GET("/leaderboard", h.Evaluations.Leaderboard)
	v1.GET("/leaderboard/export", h.Evaluations.ExportLeaderboard)

	backlinks := v1.Group("/backlink-sites")
	backlinks.GET("", h.Backlinks.List)
	backlinks.POST("", h.Backlinks.Create)
	backlinks.POST("/quick-import", h.Backlinks.QuickImport)
	backlinks.POST("/semrush-import", h.Backlinks.SemrushImport)
	backlinks.POST("/gsc-import", h.Backlinks.GSCImport)
	backlinks.POST("/recompute", h.Backlinks.Recompute)
	backlinks.GET("/:id", h.Backlinks.GetByID)
	backlinks.PUT("/:id", h.Backlinks.Update)
	backlinks.DELETE("/:id", h.Backlinks.Delete)
	backlinks.GET("/:id/submissions", h.Backlinks.ListSubmissions)
	backlinks.POST("/:id/submissions", h.Backlinks.CreateSubmission)
	backlinks.PUT("/:id/submissions/:submissionId", h.Backlinks.UpdateSubmission)
	backlinks.DELETE("/:id/submissions/:submissionId", h.Backlinks.DeleteSubmission)

	v1.GET("/backlinks/export", h.Backlinks.Export)

	connectors := v1.Group("/connectors")
	connectors.GET("", h.Connectors.List)
	connectors.POST("", h.Connectors.Create)
	connectors.POST("/sync", h.Connectors.Sync)
	connectors.POST("/gsc-sync", h.Connectors.SearchConsoleSyncConnector)
	connectors.POST("/discover", h.Connectors.Discover)
	connectors.GET("/:id", h.Connectors.GetByID)
	connectors.PUT("/:id", h.Connectors.Update)
	connectors.DELETE("/:id", h.Connectors.Delete)

	v1.POST("/gsc-sync", h.Connectors.SearchConsoleSync)
}
