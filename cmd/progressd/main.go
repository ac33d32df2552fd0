// Command progressd serves the progression engine over HTTP.
//
// It connects to Postgres (learner state), the content catalog and, when
// configured, Redis (streak lock and content cache), applies pending
// migrations and exposes every engine operation as JSON.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/devpath/progression-engine/config"
	"github.com/devpath/progression-engine/internal/application/command"
	"github.com/devpath/progression-engine/internal/application/query"
	"github.com/devpath/progression-engine/internal/bootstrap"
	apphttp "github.com/devpath/progression-engine/internal/interface/http"
	"github.com/devpath/progression-engine/internal/interface/http/handlers"
	"github.com/devpath/progression-engine/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
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
		return err
	}
	log := bootstrap.NewLogger(cfg)
	defer log.Sync()

	log.Info("starting progressd",
		logger.String("timezone", cfg.App.Zone.Name()),
		logger.String("address", cfg.HTTP.Addr()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Backends
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := bootstrap.Open(ctx, cfg, log, bootstrap.Options{Migrate: true})
	if err != nil {
		return err
	}
	defer infra.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Handlers
	// ─────────────────────────────────────────────────────────────────────────
	env := infra.Env()
	recompute := infra.NewRecomputeStreak()

	deps := apphttp.Dependencies{
		EnsureLearner:   command.NewEnsureLearnerHandler(infra.Learners, cfg.Streak.DefaultFreezes, env),
		RecomputeStreak: recompute,
		ConsumeFreeze:   command.NewConsumeFreezeHandler(infra.Learners, recompute, env),
		TrackTime:       command.NewTrackTimeHandler(infra.Learners, infra.Progress, recompute, env),
		CompleteLesson:  command.NewRecordLessonCompletionHandler(infra.Progress, infra.Catalog, env),
		ResetCourse:     command.NewResetCourseHandler(infra.Progress, infra.Catalog, env),
		SelectCareer:    command.NewSelectCareerHandler(infra.Learners, infra.Catalog, env),
		SubmitAttempt:   command.NewSubmitAttemptHandler(infra.Catalog, infra.Practice, infra.Progress, recompute, env),
		RevealSolution:  command.NewRevealSolutionHandler(infra.Catalog, infra.Practice, env),

		CourseProgress:  query.NewGetCourseProgressHandler(infra.Catalog, infra.Progress, env),
		CareerReadiness: query.NewGetCareerReadinessHandler(infra.Catalog, infra.Learners, infra.Progress, env),
		WeeklyActivity:  query.NewGetWeeklyActivityHandler(infra.Progress, env),
		Streak:          query.NewGetStreakHandler(recompute),
		Dashboard:       query.NewAssembleDashboardHandler(infra.Catalog, infra.Progress, recompute, env),

		Logger:        log,
		HealthChecker: healthChecker(cfg, infra),
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP server and graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := apphttp.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.Version = cfg.App.Version
	if cfg.IsDevelopment() {
		httpCfg.AllowedOrigins = []string{"*"}
	}

	server := apphttp.NewServer(httpCfg, deps)
	errCh := server.StartAsync()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info("progressd stopped")
	return nil
}

func healthChecker(cfg *config.Config, infra *bootstrap.Infra) *handlers.CompositeHealthChecker {
	checker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	checker.AddCheck("postgres", handlers.NewPingCheck(infra.DB))
	if cfg.Content.Driver != "postgres" || cfg.Content.DSN != cfg.Database.URL {
		checker.AddCheck("catalog", handlers.NewPingCheck(infra.CatalogStore))
	}
	if infra.Cache != nil {
		checker.AddOptionalCheck("redis", handlers.NewPingCheck(infra.Cache))
	}
	return checker
}
