// Package scheduler runs periodic background jobs for the worker process.
// Jobs live outside the engine: they only call application handlers.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/devpath/progression-engine/pkg/logger"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of scheduled work.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. ctx is cancelled when the scheduler stops.
	Run(ctx context.Context) error

	Description() string
}

// Schedule decides when a job runs next.
type Schedule interface {
	// Next returns the first run time strictly after t.
	Next(t time.Time) time.Time
	String() string
}

// JobResult describes one execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Manual      bool
	Error       error
}

// Success reports whether the run returned no error.
func (r JobResult) Success() bool { return r.Error == nil }

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config configures a Scheduler.
type Config struct {
	Logger *logger.Logger
	Clock  timeutil.Clock

	// TickInterval is how often due jobs are checked (default 1s).
	TickInterval time.Duration

	// MaxHistorySize caps the kept run history (default 100).
	MaxHistorySize int
}

// Scheduler runs registered jobs on their schedules. A job never overlaps
// with itself: a run that is still going when the job is due again is skipped.
type Scheduler struct {
	mu sync.RWMutex

	log     *logger.Logger
	clock   timeutil.Clock
	tick    time.Duration
	maxHist int

	jobs    map[string]*scheduledJob
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	history []JobResult
}

type scheduledJob struct {
	job       Job
	schedule  Schedule
	nextRun   time.Time
	lastRun   time.Time
	active    bool
	runCount  int64
	failCount int64
}

// New creates a Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.SystemClock{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = 100
	}
	return &Scheduler{
		log:     cfg.Logger.With(logger.Component("scheduler")),
		clock:   cfg.Clock,
		tick:    cfg.TickInterval,
		maxHist: cfg.MaxHistorySize,
		jobs:    make(map[string]*scheduledJob),
	}
}

// Register adds job under schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}
	sj := &scheduledJob{job: job, schedule: schedule, nextRun: schedule.Next(s.clock.Now())}
	s.jobs[name] = sj

	s.log.Info("job registered",
		logger.String("job", name),
		logger.String("schedule", schedule.String()),
		logger.String("next_run", sj.nextRun.Format(time.RFC3339)),
	)
	return nil
}

// Start begins the scheduler loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerAlreadyRunning
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx)

	s.log.Info("scheduler started", logger.Int("jobs", len(s.jobs)))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sj := range s.jobs {
		if sj.active || now.Before(sj.nextRun) {
			continue
		}
		sj.active = true
		sj.lastRun = now
		sj.nextRun = sj.schedule.Next(now)
		sj.runCount++

		s.wg.Add(1)
		go func(sj *scheduledJob) {
			defer s.wg.Done()
			res := s.execute(ctx, sj.job, false)

			s.mu.Lock()
			sj.active = false
			if res.Error != nil {
				sj.failCount++
			}
			s.mu.Unlock()
		}(sj)
	}
}

func (s *Scheduler) execute(ctx context.Context, job Job, manual bool) JobResult {
	log := s.log.With(logger.String("job", job.Name()), logger.Bool("manual", manual))
	log.Info("job started")

	started := time.Now()
	err := job.Run(ctx)
	completed := time.Now()

	res := JobResult{
		JobName:     job.Name(),
		StartedAt:   started,
		CompletedAt: completed,
		Duration:    completed.Sub(started),
		Manual:      manual,
		Error:       err,
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("job cancelled", logger.Latency(res.Duration))
		} else {
			log.Error("job failed", logger.Latency(res.Duration), logger.Err(err))
		}
	} else {
		log.Info("job completed", logger.Latency(res.Duration))
	}

	s.mu.Lock()
	s.history = append(s.history, res)
	if len(s.history) > s.maxHist {
		s.history = s.history[len(s.history)-s.maxHist:]
	}
	s.mu.Unlock()

	return res
}

// RunNow executes a job immediately, ignoring its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (JobResult, error) {
	s.mu.RLock()
	sj, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	res := s.execute(ctx, sj.job, true)
	return res, res.Error
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo is a snapshot of one registered job.
type JobInfo struct {
	Name        string
	Description string
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	Running     bool
	RunCount    int64
	FailCount   int64
}

// Jobs returns every registered job, ordered by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		out = append(out, JobInfo{
			Name:        name,
			Description: sj.job.Description(),
			Schedule:    sj.schedule.String(),
			LastRun:     sj.lastRun,
			NextRun:     sj.nextRun,
			Running:     sj.active,
			RunCount:    sj.runCount,
			FailCount:   sj.failCount,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// History returns up to limit most recent results, oldest first.
func (s *Scheduler) History(limit int) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]JobResult, limit)
	copy(out, s.history[len(s.history)-limit:])
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)
