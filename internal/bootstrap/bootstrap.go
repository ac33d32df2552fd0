// Package bootstrap wires the infrastructure shared by the processes:
// logger, Postgres gateway, content catalog, and the optional Redis lock
// and cache.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/devpath/progression-engine/config"
	"github.com/devpath/progression-engine/internal/application/command"
	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/learner"
	"github.com/devpath/progression-engine/internal/infrastructure/persistence/catalog"
	"github.com/devpath/progression-engine/internal/infrastructure/persistence/postgres"
	"github.com/devpath/progression-engine/internal/infrastructure/persistence/redis"
	"github.com/devpath/progression-engine/pkg/logger"
	"github.com/devpath/progression-engine/pkg/retry"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

// NewLogger builds the process logger from the observability settings.
func NewLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    cfg.Observability.LogFormat,
		AddCaller: !cfg.IsProduction(),
	}).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)
}

// Options selects what Open does besides connecting.
type Options struct {
	// Migrate applies pending Postgres migrations.
	Migrate bool
}

// Infra holds every opened backend. Cache, Locker and CachedCatalog are
// nil when Redis is disabled or unreachable.
type Infra struct {
	Config *config.Config
	Log    *logger.Logger

	DB           *postgres.Connection
	CatalogStore *catalog.Store
	Cache        *redis.Cache

	Learners *postgres.LearnerRepository
	Progress *postgres.ProgressRepository
	Practice *postgres.PracticeRepository

	// Catalog is the cached catalog when Redis is up, the store otherwise.
	Catalog       content.Catalog
	CachedCatalog *redis.CachedCatalog
	Locker        learner.Locker
}

// Open connects to every backend, retrying start-up failures with backoff.
// Redis failures are logged and leave the process running without it.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*Infra, error) {
	in := &Infra{Config: cfg, Log: log}

	// ─────────────────────────────────────────────────────────────────────────
	// Postgres
	// ─────────────────────────────────────────────────────────────────────────
	pgCfg := postgres.DefaultConfig(cfg.Database.URL)
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.QueryTimeout = cfg.Database.QueryTimeout
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	var conn *postgres.Connection
	err := retry.StartupRetrier(log, "postgres").Do(ctx, func(ctx context.Context) (err error) {
		conn, err = postgres.NewConnection(ctx, pgCfg)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: postgres: %w", err)
	}
	in.DB = conn
	log.Info("postgres connected")

	if opts.Migrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			in.Close()
			return nil, fmt.Errorf("bootstrap: migrate: %w", err)
		}
		log.Info("postgres schema is up to date")
	}

	in.Learners = postgres.NewLearnerRepository(conn)
	in.Progress = postgres.NewProgressRepository(conn)
	in.Practice = postgres.NewPracticeRepository(conn)

	// ─────────────────────────────────────────────────────────────────────────
	// Content catalog
	// ─────────────────────────────────────────────────────────────────────────
	var store *catalog.Store
	err = retry.StartupRetrier(log, "catalog").Do(ctx, func(context.Context) (err error) {
		store, err = catalog.Open(catalog.Options{
			Driver:       cfg.Content.Driver,
			DSN:          cfg.Content.DSN,
			QueryTimeout: cfg.Database.QueryTimeout,
			Silent:       cfg.IsProduction(),
		})
		return err
	})
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("bootstrap: catalog: %w", err)
	}
	in.CatalogStore = store
	in.Catalog = store
	log.Info("content catalog opened", logger.String("driver", cfg.Content.Driver))

	// ─────────────────────────────────────────────────────────────────────────
	// Redis (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Redis.Disabled {
		log.Info("redis disabled, running without streak lock and content cache")
		return in, nil
	}

	rcfg := redis.DefaultConfig(cfg.Redis.URL)
	rcfg.PoolSize = cfg.Redis.PoolSize
	rcfg.DialTimeout = cfg.Redis.DialTimeout
	rcfg.ReadTimeout = cfg.Redis.ReadTimeout
	rcfg.WriteTimeout = cfg.Redis.WriteTimeout

	var cache *redis.Cache
	err = retry.StartupRetrier(log, "redis", retry.WithMaxAttempts(3)).Do(ctx, func(ctx context.Context) (err error) {
		cache, err = redis.NewCache(ctx, rcfg)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			in.Close()
			return nil, ctx.Err()
		}
		log.Warn("redis unavailable, running without streak lock and content cache", logger.Err(err))
		return in, nil
	}
	in.Cache = cache
	in.Locker = redis.NewStreakLocker(cache, cfg.Redis.LockTTL, log)
	in.CachedCatalog = redis.NewCachedCatalog(store, cache, cfg.Content.CacheTTL, log)
	in.Catalog = in.CachedCatalog
	log.Info("redis connected")

	return in, nil
}

// Env returns the handler environment on the wall clock.
func (in *Infra) Env() command.Env {
	return command.Env{
		Clock:  timeutil.SystemClock{},
		Zone:   in.Config.App.Zone,
		Logger: in.Log,
	}
}

// NewRecomputeStreak builds the recompute handler every streak path shares.
func (in *Infra) NewRecomputeStreak() *command.RecomputeStreakHandler {
	return command.NewRecomputeStreakHandler(in.Learners, in.Progress, in.Locker, in.Config.Streak.WindowDays, in.Env())
}

// Close releases every opened backend.
func (in *Infra) Close() {
	if in.Cache != nil {
		if err := in.Cache.Close(); err != nil {
			in.Log.Warn("redis close failed", logger.Err(err))
		}
	}
	if in.CatalogStore != nil {
		if err := in.CatalogStore.Close(); err != nil {
			in.Log.Warn("catalog close failed", logger.Err(err))
		}
	}
	if in.DB != nil {
		in.DB.Close()
	}
}
