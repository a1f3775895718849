package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	infraconfig "github.com/jonesrussell/site-portfolio/infrastructure/config"
	infracontext "github.com/jonesrussell/site-portfolio/infrastructure/context"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/infrastructure/profiling"
	"github.com/jonesrussell/site-portfolio/internal/config"
	"github.com/jonesrussell/site-portfolio/internal/scheduler"
	"github.com/jonesrussell/site-portfolio/internal/syncer"
)

// runtime is what PersistentPreRunE prepares for every subcommand.
type runtime struct {
	configPath string
	version    string
	cfg        *config.Config
	log        infralogger.Logger
}

// Execute runs the CLI. With no subcommand the HTTP server is started.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCommand(version).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	rt := &runtime{version: version}

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Portfolio dashboard API: sites, evaluations, backlinks and analytics sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return rt.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if rt.log != nil {
				_ = rt.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&rt.configPath, "config", infraconfig.GetConfigPath("config.yml"),
		"Path to configuration file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP API (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return rt.serve(cmd.Context())
			},
		},
		newMigrateCommand(rt),
		newSyncCommand(rt),
		&cobra.Command{
			Use:   "recompute",
			Short: "Recompute the importance score of every backlink site",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return rt.recompute(cmd.Context(), cmd)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", serviceName, version)
			},
		},
	)
	return root
}

func (rt *runtime) init() error {
	cfg, err := LoadConfig(rt.configPath)
	if err != nil {
		return err
	}
	log, err := CreateLogger(cfg, rt.version)
	if err != nil {
		return err
	}
	rt.cfg, rt.log = cfg, log
	infralogger.SetDefault(log)
	return nil
}

func newMigrateCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down [steps]",
		Short:     "Apply or roll back schema migrations",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n < 1 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[1])
				}
				steps = n
			}

			version, err := RunMigrations(rt.cfg, rt.log, args[0], steps)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
			return nil
		},
	}
}

func newSyncCommand(rt *runtime) *cobra.Command {
	var (
		siteID string
		days   int
		gsc    bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync Google Analytics (or Search Console with --gsc) for one or all sites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.sync(cmd.Context(), cmd, syncer.Request{
				SiteID:       siteID,
				RangeRequest: syncer.RangeRequest{Days: days},
				Trigger:      syncer.TriggerCLI,
			}, gsc)
		},
	}
	cmd.Flags().StringVar(&siteID, "site", "", "Sync only this site ID")
	cmd.Flags().IntVar(&days, "days", 0, "Days to sync (default from config)")
	cmd.Flags().BoolVar(&gsc, "gsc", false, "Sync Search Console instead of Analytics")
	return cmd
}

// serve runs the API until ctx is cancelled, then shuts down in order:
// HTTP server, pprof, scheduler, recompute queue, Redis, database.
func (rt *runtime) serve(ctx context.Context) error {
	app, err := NewApp(ctx, rt.cfg, rt.log)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	var sched *scheduler.Scheduler
	if rt.cfg.Sync.ScheduleEnabled {
		sched, err = scheduler.New(rt.cfg.Sync.Schedule, app.Orchestrator, rt.cfg.Sync.RequestTimeout,
			rt.log.With(infralogger.String("component", "scheduler")))
		if err != nil {
			app.Close(ctx)
			return err
		}
		sched.Start()
	}

	pprofServer := profiling.Start(rt.cfg.Profiling, rt.log)

	server := SetupHTTPServer(app, rt.version)
	runErr := server.Run(ctx)

	shutdownCtx, cancel := infracontext.WithShutdownTimeout()
	defer cancel()

	if err := pprofServer.Shutdown(shutdownCtx); err != nil {
		rt.log.Warn("pprof server did not stop cleanly", infralogger.Error(err))
	}
	if sched != nil {
		if stopErr := sched.Stop(shutdownCtx); stopErr != nil {
			rt.log.Warn("Scheduler did not stop cleanly", infralogger.Error(stopErr))
		}
	}
	app.Close(shutdownCtx)

	if runErr != nil {
		rt.log.Error("Server error", infralogger.Error(runErr))
		return fmt.Errorf("server error: %w", runErr)
	}
	rt.log.Info("Server exited")
	return nil
}

func (rt *runtime) sync(ctx context.Context, cmd *cobra.Command, req syncer.Request, gsc bool) error {
	app, err := NewApp(ctx, rt.cfg, rt.log)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer closeDetached(app)

	run := app.Orchestrator.SyncTraffic
	if gsc {
		run = app.Orchestrator.SyncSearchConsole
	}
	result, err := run(ctx, req)
	if err != nil {
		return err
	}

	renderSyncResult(cmd.OutOrStdout(), result)
	if result.FailureCount > 0 {
		return fmt.Errorf("%d of %d sites failed", result.FailureCount, len(result.Results))
	}
	return nil
}

func (rt *runtime) recompute(ctx context.Context, cmd *cobra.Command) error {
	app, err := NewApp(ctx, rt.cfg, rt.log)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer closeDetached(app)

	result, err := app.Recomputer.RecomputeAll(ctx)
	if err != nil {
		return err
	}

	renderRecomputeResult(cmd.OutOrStdout(), result)
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d backlink sites failed", result.Failed, result.Total)
	}
	return nil
}

// closeDetached closes app even when the command context was cancelled.
func closeDetached(app *App) {
	ctx, cancel := infracontext.WithShutdownTimeout()
	defer cancel()
	app.Close(ctx)
}
