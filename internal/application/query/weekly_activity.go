package query

import (
	"context"
	"fmt"

	"github.com/devpath/progression-engine/internal/application/command"
	"github.com/devpath/progression-engine/internal/domain/progress"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

// GetWeeklyActivityQuery asks for the week containing Anchor (today when
// empty).
type GetWeeklyActivityQuery struct {
	LearnerID string
	Anchor    timeutil.DayKey
}

// Validate validates the query.
func (q GetWeeklyActivityQuery) Validate() error {
	if _, err := shared.NewLearnerID(q.LearnerID); err != nil {
		return err
	}
	if !q.Anchor.IsZero() {
		if _, err := timeutil.ParseDayKey(string(q.Anchor)); err != nil {
			return shared.WrapError("progress", "GetWeeklyActivity", shared.ErrInvalidInput, "bad anchor day", err)
		}
	}
	return nil
}

// GetWeeklyActivityHandler handles GetWeeklyActivityQuery.
type GetWeeklyActivityHandler struct {
	progress progress.Repository
	env      command.Env
}

// NewGetWeeklyActivityHandler creates a new GetWeeklyActivityHandler.
func NewGetWeeklyActivityHandler(progressRepo progress.Repository, env command.Env) *GetWeeklyActivityHandler {
	return &GetWeeklyActivityHandler{progress: progressRepo, env: env}
}

// Handle reads only the seven days of the week.
func (h *GetWeeklyActivityHandler) Handle(ctx context.Context, q GetWeeklyActivityQuery) (*progress.WeeklyActivity, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_weekly_activity: validation failed: %w", err)
	}
	anchor := q.Anchor
	if anchor.IsZero() {
		anchor = today(h.env)
	}
	w, err := readWeek(ctx, h.progress, shared.LearnerID(q.LearnerID), anchor)
	if err != nil {
		return nil, fmt.Errorf("get_weekly_activity: %w", err)
	}
	return &w, nil
}

func readWeek(ctx context.Context, repo progress.Repository, id shared.LearnerID, anchor timeutil.DayKey) (progress.WeeklyActivity, error) {
	week := timeutil.WeekOf(anchor)
	rows, err := repo.ListTime(ctx, id, week.Start(), week.End())
	if err != nil {
		return progress.WeeklyActivity{}, err
	}
	return progress.ProjectWeek(anchor, rows), nil
}

func today(env command.Env) timeutil.DayKey {
	if env.Clock == nil {
		return env.Zone.Today(timeutil.SystemClock{})
	}
	return env.Zone.Today(env.Clock)
}
