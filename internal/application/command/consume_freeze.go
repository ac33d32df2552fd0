package command

import (
	"context"
	"fmt"

	"github.com/devpath/progression-engine/internal/domain/learner"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSUME FREEZE COMMAND
// Spends one streak freeze on today and recomputes, so today counts as
// active and the streak survives a day without learning.
// ══════════════════════════════════════════════════════════════════════════════

// ConsumeFreezeCommand spends a freeze.
type ConsumeFreezeCommand struct {
	LearnerID string
}

// Validate validates the command.
func (c ConsumeFreezeCommand) Validate() error {
	_, err := shared.NewLearnerID(c.LearnerID)
	return err
}

// ConsumeFreezeHandler handles ConsumeFreezeCommand.
type ConsumeFreezeHandler struct {
	learners  learner.Repository
	recompute *RecomputeStreakHandler
	env       Env
}

// NewConsumeFreezeHandler creates a new ConsumeFreezeHandler.
func NewConsumeFreezeHandler(learners learner.Repository, recompute *RecomputeStreakHandler, env Env) *ConsumeFreezeHandler {
	return &ConsumeFreezeHandler{learners: learners, recompute: recompute, env: env}
}

// Handle fails with shared.ErrAlreadyFrozenToday or
// shared.ErrNoFreezesAvailable without touching the record.
func (h *ConsumeFreezeHandler) Handle(ctx context.Context, cmd ConsumeFreezeCommand) (*StreakView, error) {
	log := h.env.log("ConsumeFreeze").With(logger.LearnerID(cmd.LearnerID))

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("consume_freeze: validation failed: %w", err)
	}

	now := h.env.now()
	today := h.env.dayOf(now)

	_, err := h.learners.Update(ctx, shared.LearnerID(cmd.LearnerID), func(p *learner.Profile) error {
		return p.ConsumeFreeze(today, now)
	})
	if err != nil {
		logFailure(ctx, log, "freeze rejected", err)
		return nil, fmt.Errorf("consume_freeze: %w", err)
	}
	log.Info("streak freeze consumed", logger.DayKey(today.String()))

	res, err := h.recompute.Handle(ctx, RecomputeStreakCommand{LearnerID: cmd.LearnerID})
	if err != nil {
		return nil, fmt.Errorf("consume_freeze: %w", err)
	}
	return &res.Streak, nil
}
