package command

import (
	"context"
	"fmt"
	"time"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/learner"
	"github.com/devpath/progression-engine/internal/domain/progress"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/logger"
)

// MaxTrackedSeconds caps a single time record at one day.
const MaxTrackedSeconds = 24 * 60 * 60

// TrackTimeCommand appends tracked learning time.
type TrackTimeCommand struct {
	LearnerID string
	LessonID  string // optional
	Seconds   int64

	// At is when the time was spent; zero means now.
	At time.Time
}

// Validate validates the command.
func (c TrackTimeCommand) Validate() error {
	if _, err := shared.NewLearnerID(c.LearnerID); err != nil {
		return err
	}
	if c.Seconds < 0 {
		return shared.Invalid("progress", "TrackTime", "seconds cannot be negative")
	}
	if c.Seconds > MaxTrackedSeconds {
		return shared.Invalid("progress", "TrackTime", "seconds cannot exceed %d", MaxTrackedSeconds)
	}
	return nil
}

// TrackTimeHandler handles TrackTimeCommand.
type TrackTimeHandler struct {
	learners  learner.Repository
	progress  progress.Repository
	recompute *RecomputeStreakHandler
	env       Env
}

// NewTrackTimeHandler creates a new TrackTimeHandler.
func NewTrackTimeHandler(
	learners learner.Repository,
	progressRepo progress.Repository,
	recompute *RecomputeStreakHandler,
	env Env,
) *TrackTimeHandler {
	return &TrackTimeHandler{learners: learners, progress: progressRepo, recompute: recompute, env: env}
}

// Handle appends one record on the day of At and recomputes the streak.
func (h *TrackTimeHandler) Handle(ctx context.Context, cmd TrackTimeCommand) (*StreakView, error) {
	log := h.env.log("TrackTime").With(logger.LearnerID(cmd.LearnerID))

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("track_time: validation failed: %w", err)
	}
	id := shared.LearnerID(cmd.LearnerID)

	if _, err := h.learners.Get(ctx, id); err != nil {
		logFailure(ctx, log, "learner lookup failed", err)
		return nil, fmt.Errorf("track_time: %w", err)
	}

	now := h.env.now()
	at := cmd.At
	if at.IsZero() {
		at = now
	}
	if at.After(now) {
		return nil, shared.Invalid("progress", "TrackTime", "tracked time is in the future")
	}

	rec := progress.TimeRecord{
		LearnerID:       id,
		Day:             h.env.dayOf(at),
		LessonID:        content.LessonID(cmd.LessonID),
		DurationSeconds: cmd.Seconds,
		CreatedAt:       now,
	}
	if err := h.progress.AppendTime(ctx, rec); err != nil {
		logFailure(ctx, log, "time append failed", err)
		return nil, fmt.Errorf("track_time: %w", err)
	}

	res, err := h.recompute.Handle(ctx, RecomputeStreakCommand{LearnerID: cmd.LearnerID})
	if err != nil {
		return nil, fmt.Errorf("track_time: %w", err)
	}
	return &res.Streak, nil
}
