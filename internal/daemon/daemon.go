package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/username/school-status/internal/build"
	"go.uber.org/zap"
)

// Runner executes one build target
type Runner interface {
	Build(ctx context.Context, target build.Target) error
}

// Daemon rebuilds the site on a cron schedule
type Daemon struct {
	runner     Runner
	schedule   string
	runOnStart bool
	loc        *time.Location
	logger     *zap.Logger

	cron    *cron.Cron
	entryID cron.EntryID

	mu          sync.Mutex // Protect against concurrent runs
	running     bool
	lastRunTime time.Time
	lastErr     error
}

// NewDaemon creates a new daemon that runs build all on schedule, evaluated in loc
func NewDaemon(runner Runner, schedule string, runOnStart bool, loc *time.Location, logger *zap.Logger) (*Daemon, error) {
	if loc == nil {
		loc = time.UTC
	}

	d := &Daemon{
		runner:     runner,
		schedule:   schedule,
		runOnStart: runOnStart,
		loc:        loc,
		logger:     logger,
	}

	d.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{logger: logger.Sugar()}),
		cron.WithChain(cron.Recover(cronLogger{logger: logger.Sugar()})),
	)

	id, err := d.cron.AddFunc(schedule, d.runScheduled)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule '%s': %w", schedule, err)
	}
	d.entryID = id

	return d, nil
}

// Start runs the daemon until ctx is cancelled or SIGINT/SIGTERM arrives
func (d *Daemon) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return d.Run(ctx)
}

// Run runs the daemon until ctx is cancelled
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("Daemon started",
		zap.String("schedule", d.schedule),
		zap.String("timezone", d.loc.String()),
		zap.Bool("run_on_start", d.runOnStart))

	if d.runOnStart {
		if err := d.RunNow(ctx); err != nil {
			d.logger.Error("Initial build failed", zap.Error(err))
		}
	}

	d.cron.Start()
	d.logger.Info("Next build scheduled", zap.Time("next_run", d.NextRun()))

	<-ctx.Done()
	d.logger.Info("Shutting down daemon")

	// wait for a running build to finish
	<-d.cron.Stop().Done()
	d.logger.Info("Daemon stopped")
	return nil
}

func (d *Daemon) runScheduled() {
	d.logger.Info("Starting scheduled build")
	if err := d.RunNow(context.Background()); err != nil {
		d.logger.Error("Scheduled build failed", zap.Error(err))
		return
	}
	d.logger.Info("Next build scheduled", zap.Time("next_run", d.NextRun()))
}

// RunNow builds everything immediately. Overlapping runs are rejected.
func (d *Daemon) RunNow(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		d.logger.Warn("Build already running, skipping concurrent execution")
		return fmt.Errorf("build already in progress")
	}
	d.running = true
	d.mu.Unlock()

	start := time.Now()
	err := d.runner.Build(ctx, build.TargetAll)

	d.mu.Lock()
	d.running = false
	d.lastRunTime = start
	d.lastErr = err
	d.mu.Unlock()

	if err != nil {
		return err
	}

	d.logger.Info("Build completed", zap.Duration("duration", time.Since(start)))
	return nil
}

// NextRun returns the next scheduled build time, zero before the scheduler starts
func (d *Daemon) NextRun() time.Time {
	return d.cron.Entry(d.entryID).Next
}

// GetStatus returns daemon status
func (d *Daemon) GetStatus() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	status := map[string]interface{}{
		"schedule": d.schedule,
		"running":  d.running,
		"next_run": d.NextRun(),
	}
	if !d.lastRunTime.IsZero() {
		status["last_run"] = d.lastRunTime
		status["last_ok"] = d.lastErr == nil
	}
	if d.lastErr != nil {
		status["last_error"] = d.lastErr.Error()
	}
	return status
}

// cronLogger routes scheduler logs through zap
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
