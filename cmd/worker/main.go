// Package main is the background worker of the progression engine.
//
// The worker refreshes the stored streak summary of every learner once a
// day, shortly after midnight in the reference zone.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devpath/progression-engine/config"
	"github.com/devpath/progression-engine/internal/bootstrap"
	"github.com/devpath/progression-engine/internal/infrastructure/scheduler"
	"github.com/devpath/progression-engine/internal/infrastructure/scheduler/jobs"
	"github.com/devpath/progression-engine/pkg/logger"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration and logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := bootstrap.NewLogger(cfg).With(logger.Component("worker"))
	defer log.Sync()

	log.Info("starting worker",
		logger.String("timezone", cfg.App.Zone.Name()),
		logger.Int("refresh_hour", cfg.Worker.RefreshHour),
		logger.Int("refresh_minute", cfg.Worker.RefreshMinute),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Backends (the worker also keeps the schema current)
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := bootstrap.Open(ctx, cfg, log, bootstrap.Options{Migrate: true})
	if err != nil {
		return err
	}
	defer infra.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Jobs
	// ─────────────────────────────────────────────────────────────────────────
	refresh := jobs.NewRefreshStreaksJob(infra.Learners, infra.NewRecomputeStreak(), log, jobs.RefreshStreaksConfig{
		Concurrency: cfg.Worker.Concurrency,
		PageSize:    cfg.Worker.PageSize,
		Timeout:     jobs.DefaultRefreshStreaksConfig().Timeout,
	})

	sched := scheduler.New(scheduler.Config{
		Logger: log,
		Clock:  timeutil.SystemClock{},
	})
	daily := scheduler.NewDailySchedule(cfg.App.Zone, cfg.Worker.RefreshHour, cfg.Worker.RefreshMinute)
	if err := sched.Register(refresh, daily); err != nil {
		return fmt.Errorf("failed to register %s: %w", refresh.Name(), err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Run until a shutdown signal arrives
	// ─────────────────────────────────────────────────────────────────────────
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if cfg.Worker.RunOnStart {
		if _, err := sched.RunNow(ctx, refresh.Name()); err != nil {
			log.Warn("initial refresh failed", logger.Err(err))
		}
	}

	log.Info("worker is running", logger.String("schedule", daily.String()))
	<-ctx.Done()
	log.Info("received shutdown signal, stopping scheduler",
		logger.Duration("timeout", cfg.App.ShutdownTimeout),
	)

	stopped := make(chan error, 1)
	go func() { stopped <- sched.Stop() }()

	select {
	case err := <-stopped:
		if err != nil {
			return fmt.Errorf("scheduler stop: %w", err)
		}
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("scheduler did not stop in time, abandoning running jobs")
	}

	if stats := refresh.LastStats(); stats != nil {
		log.Info("last refresh",
			logger.Int("refreshed", stats.Refreshed),
			logger.Int("failed", stats.Failed),
			logger.Duration("duration", stats.Duration),
		)
	}
	log.Info("shutdown completed")
	return nil
}
