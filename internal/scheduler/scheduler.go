// Package scheduler runs the periodic Analytics and Search Console sync of
// every site on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/syncer"
)

// Syncer is the sync surface the schedule drives.
type Syncer interface {
	SyncTraffic(ctx context.Context, req syncer.Request) (*syncer.Result, error)
	SyncSearchConsole(ctx context.Context, req syncer.Request) (*syncer.Result, error)
}

type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	spec     string
	syncer   Syncer
	timeout  time.Duration
	logger   infralogger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	runs   sync.WaitGroup
}

// New parses spec (standard 5-field cron) and registers the sync run. A run
// still in progress when the next tick fires makes that tick a no-op.
func New(spec string, s Syncer, timeout time.Duration, log infralogger.Logger) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse sync schedule %q: %w", spec, err)
	}

	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	sch := &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		schedule: schedule,
		spec:     spec,
		syncer:   s,
		timeout:  timeout,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
	}

	sch.cron.Schedule(schedule, cron.FuncJob(func() {
		sch.runs.Add(1)
		defer sch.runs.Done()
		sch.RunOnce(sch.ctx)
	}))
	return sch, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Sync scheduler started",
		infralogger.String("schedule", s.spec),
		infralogger.String("next_run", s.NextRun(time.Now()).Format(time.RFC3339)),
	)
}

// Stop cancels a running sync and waits for it, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Stopping sync scheduler")
	s.cancel()
	stopped := s.cron.Stop()

	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextRun is the first scheduled run after t.
func (s *Scheduler) NextRun(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// RunOnce syncs Analytics then Search Console for all enabled connectors.
// Failures are logged; a failed Analytics batch does not skip Search Console.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req := syncer.Request{Trigger: syncer.TriggerSchedule}
	runs := []struct {
		name string
		fn   func(context.Context, syncer.Request) (*syncer.Result, error)
	}{
		{"google_analytics", s.syncer.SyncTraffic},
		{"search_console", s.syncer.SyncSearchConsole},
	}

	for _, run := range runs {
		result, err := run.fn(ctx, req)
		if err != nil {
			s.logger.Error("Scheduled sync failed",
				infralogger.String("provider", run.name),
				infralogger.Error(err),
			)
			continue
		}
		s.logger.Info("Scheduled sync finished",
			infralogger.String("provider", run.name),
			infralogger.Int("success_count", result.SuccessCount),
			infralogger.Int("failure_count", result.FailureCount),
		)
	}
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	log infralogger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), infralogger.Error(err))...)
}

func kvFields(kv []any) []infralogger.Field {
	fields := make([]infralogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, infralogger.Any(key, kv[i+1]))
	}
	return fields
}
