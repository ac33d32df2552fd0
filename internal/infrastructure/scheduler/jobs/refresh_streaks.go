// Package jobs contains the worker's scheduled jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devpath/progression-engine/internal/application/command"
	"github.com/devpath/progression-engine/internal/domain/learner"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH STREAKS JOB
// ══════════════════════════════════════════════════════════════════════════════

// StreakRecomputer is the command the job drives for every learner.
type StreakRecomputer interface {
	Handle(ctx context.Context, cmd command.RecomputeStreakCommand) (*command.RecomputeStreakResult, error)
}

// RefreshStreaksConfig tunes a refresh run.
type RefreshStreaksConfig struct {
	// Concurrency is the number of learners recomputed in parallel.
	Concurrency int

	// PageSize is the number of learner ids read per page.
	PageSize int

	// Timeout bounds the whole run. Zero means no bound.
	Timeout time.Duration

	// MaxFailureRatio fails the run when more learners than this share
	// could not be refreshed.
	MaxFailureRatio float64
}

// DefaultRefreshStreaksConfig returns sensible defaults.
func DefaultRefreshStreaksConfig() RefreshStreaksConfig {
	return RefreshStreaksConfig{
		Concurrency:     8,
		PageSize:        500,
		Timeout:         30 * time.Minute,
		MaxFailureRatio: 0.5,
	}
}

// RefreshStats summarizes one run.
type RefreshStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Total       int
	Refreshed   int
	Vanished    int // deleted between paging and recompute
	Failed      int
	Errors      []RefreshError
}

// RefreshError records one learner that could not be refreshed.
type RefreshError struct {
	LearnerID shared.LearnerID
	Err       error
}

// maxKeptErrors caps RefreshStats.Errors.
const maxKeptErrors = 50

// RefreshStreaksJob recomputes the stored streak summary of every learner
// once a day so summaries stay fresh for learners who do not open the app.
type RefreshStreaksJob struct {
	learners  learner.Repository
	recompute StreakRecomputer
	log       *logger.Logger
	config    RefreshStreaksConfig

	lastStats atomic.Pointer[RefreshStats]
}

// NewRefreshStreaksJob creates the job.
func NewRefreshStreaksJob(
	learners learner.Repository,
	recompute StreakRecomputer,
	log *logger.Logger,
	config RefreshStreaksConfig,
) *RefreshStreaksJob {
	if log == nil {
		log = logger.Nop()
	}
	def := DefaultRefreshStreaksConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = def.Concurrency
	}
	if config.PageSize <= 0 {
		config.PageSize = def.PageSize
	}
	if config.MaxFailureRatio <= 0 {
		config.MaxFailureRatio = def.MaxFailureRatio
	}
	return &RefreshStreaksJob{
		learners:  learners,
		recompute: recompute,
		log:       log.With(logger.Component("refresh_streaks")),
		config:    config,
	}
}

func (j *RefreshStreaksJob) Name() string { return "refresh_streaks" }

func (j *RefreshStreaksJob) Description() string {
	return "Recomputes the streak summary of every learner"
}

// Run pages through all learner ids and recomputes each streak. Per-learner
// failures are counted, not fatal; paging failures abort the run.
func (j *RefreshStreaksJob) Run(ctx context.Context) error {
	stats := &RefreshStats{StartedAt: time.Now()}
	defer func() {
		stats.CompletedAt = time.Now()
		stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	var (
		mu    sync.Mutex
		after shared.LearnerID
	)
	for {
		ids, err := j.learners.ListIDs(ctx, after, j.config.PageSize)
		if err != nil {
			return fmt.Errorf("refresh_streaks: list learners after %q: %w", after, err)
		}
		if len(ids) == 0 {
			break
		}
		after = ids[len(ids)-1]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(j.config.Concurrency)
		for _, id := range ids {
			g.Go(func() error {
				_, err := j.recompute.Handle(gctx, command.RecomputeStreakCommand{LearnerID: id.String()})

				mu.Lock()
				defer mu.Unlock()
				stats.Total++
				switch {
				case err == nil:
					stats.Refreshed++
				case shared.IsNotFound(err):
					stats.Vanished++
				default:
					stats.Failed++
					if len(stats.Errors) < maxKeptErrors {
						stats.Errors = append(stats.Errors, RefreshError{LearnerID: id, Err: err})
					}
					j.log.Warn("streak refresh failed", logger.LearnerID(id.String()), logger.Err(err))
				}
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("refresh_streaks: interrupted after %d learners: %w", stats.Total, err)
		}
		if len(ids) < j.config.PageSize {
			break
		}
	}

	j.log.Info("streaks refreshed",
		logger.Int("total", stats.Total),
		logger.Int("refreshed", stats.Refreshed),
		logger.Int("vanished", stats.Vanished),
		logger.Int("failed", stats.Failed),
	)

	if stats.Total > 0 && float64(stats.Failed)/float64(stats.Total) > j.config.MaxFailureRatio {
		return fmt.Errorf("refresh_streaks: %d of %d learners failed: %w",
			stats.Failed, stats.Total, errors.Join(firstErrors(stats.Errors, 3)...))
	}
	return nil
}

// LastStats returns the statistics of the last finished run, or nil.
func (j *RefreshStreaksJob) LastStats() *RefreshStats {
	return j.lastStats.Load()
}

func firstErrors(errs []RefreshError, n int) []error {
	out := make([]error, 0, n)
	for _, e := range errs {
		if len(out) == n {
			break
		}
		out = append(out, e.Err)
	}
	return out
}
