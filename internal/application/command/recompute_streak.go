package command

import (
	"context"
	"fmt"

	"github.com/devpath/progression-engine/internal/domain/learner"
	"github.com/devpath/progression-engine/internal/domain/progress"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/logger"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE STREAK COMMAND
// The single authoritative streak algorithm. Every streak read and every
// write that can change activity ends here.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeStreakCommand asks for a fresh streak summary.
type RecomputeStreakCommand struct {
	LearnerID string
}

// Validate validates the command.
func (c RecomputeStreakCommand) Validate() error {
	if _, err := shared.NewLearnerID(c.LearnerID); err != nil {
		return err
	}
	return nil
}

// StreakView is the learner-facing streak block.
type StreakView struct {
	Current          int                 `json:"current"`
	Max              int                 `json:"max"`
	FreezesAvailable int                 `json:"freezes_available"`
	CanFreezeToday   bool                `json:"can_freeze_today"`
	State            learner.StreakState `json:"state"`
	LastActivityDay  timeutil.DayKey     `json:"last_activity_day,omitempty"`
	LastFreezeDay    timeutil.DayKey     `json:"last_freeze_day,omitempty"`
	Today            timeutil.DayKey     `json:"today"`
}

// NewStreakView projects a stored profile for today.
func NewStreakView(p *learner.Profile, today timeutil.DayKey) StreakView {
	return StreakView{
		Current:          p.CurrentStreak,
		Max:              p.MaxStreak,
		FreezesAvailable: p.FreezesAvailable,
		CanFreezeToday:   p.CanFreeze(today),
		State:            p.State(),
		LastActivityDay:  p.LastActivityDay,
		LastFreezeDay:    p.LastFreezeDay,
		Today:            today,
	}
}

// RecomputeStreakResult contains the persisted summary.
type RecomputeStreakResult struct {
	Streak  StreakView
	Profile *learner.Profile
}

// RecomputeStreakHandler handles RecomputeStreakCommand.
type RecomputeStreakHandler struct {
	learners   learner.Repository
	progress   progress.Repository
	locker     learner.Locker // optional
	windowDays int
	env        Env
}

// NewRecomputeStreakHandler creates a new RecomputeStreakHandler.
// locker may be nil; windowDays <= 0 selects learner.DefaultWindowDays.
func NewRecomputeStreakHandler(
	learners learner.Repository,
	progressRepo progress.Repository,
	locker learner.Locker,
	windowDays int,
	env Env,
) *RecomputeStreakHandler {
	if windowDays <= 0 {
		windowDays = learner.DefaultWindowDays
	}
	return &RecomputeStreakHandler{
		learners:   learners,
		progress:   progressRepo,
		locker:     locker,
		windowDays: windowDays,
		env:        env,
	}
}

// Handle reads the activity window, walks the streak and stores the summary
// in one atomic profile update.
func (h *RecomputeStreakHandler) Handle(ctx context.Context, cmd RecomputeStreakCommand) (*RecomputeStreakResult, error) {
	log := h.env.log("RecomputeStreak").With(logger.LearnerID(cmd.LearnerID))

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("recompute_streak: validation failed: %w", err)
	}
	id := shared.LearnerID(cmd.LearnerID)

	if h.locker != nil {
		unlock, err := h.locker.Lock(ctx, id)
		if err != nil {
			logFailure(ctx, log, "streak lock not acquired", err)
			return nil, fmt.Errorf("recompute_streak: lock: %w", err)
		}
		defer unlock()
	}

	now := h.env.now()
	today := h.env.dayOf(now)

	rows, err := h.progress.ListTime(ctx, id, today.AddDays(-h.windowDays), today)
	if err != nil {
		logFailure(ctx, log, "activity read failed", err)
		return nil, fmt.Errorf("recompute_streak: list time: %w", err)
	}
	activity := learner.DailySeconds(progress.SumByDay(rows))

	p, err := h.learners.Update(ctx, id, func(p *learner.Profile) error {
		p.ApplyStreak(learner.Recompute(p, activity, today, h.windowDays), now)
		return nil
	})
	if err != nil {
		logFailure(ctx, log, "streak update failed", err)
		return nil, fmt.Errorf("recompute_streak: %w", err)
	}

	log.Debug("streak recomputed",
		logger.DayKey(today.String()),
		logger.Int("current_streak", p.CurrentStreak),
		logger.Int("max_streak", p.MaxStreak),
	)

	return &RecomputeStreakResult{
		Streak:  NewStreakView(p, today),
		Profile: p,
	}, nil
}
