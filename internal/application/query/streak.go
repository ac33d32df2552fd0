package query

import (
	"context"
	"fmt"

	"github.com/devpath/progression-engine/internal/application/command"
	"github.com/devpath/progression-engine/internal/domain/shared"
)

// GetStreakQuery asks for the learner's streak.
type GetStreakQuery struct {
	LearnerID string
}

// GetStreakHandler recomputes on every read and returns the stored summary.
type GetStreakHandler struct {
	recompute StreakRecomputer
}

// NewGetStreakHandler creates a new GetStreakHandler.
func NewGetStreakHandler(recompute StreakRecomputer) *GetStreakHandler {
	return &GetStreakHandler{recompute: recompute}
}

// Handle executes the query.
func (h *GetStreakHandler) Handle(ctx context.Context, q GetStreakQuery) (*command.StreakView, error) {
	if _, err := shared.NewLearnerID(q.LearnerID); err != nil {
		return nil, fmt.Errorf("get_streak: validation failed: %w", err)
	}
	res, err := h.recompute.Handle(ctx, command.RecomputeStreakCommand{LearnerID: q.LearnerID})
	if err != nil {
		return nil, fmt.Errorf("get_streak: %w", err)
	}
	return &res.Streak, nil
}
