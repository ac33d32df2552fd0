package command

import (
	"context"
	"fmt"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/progress"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD LESSON COMPLETION COMMAND
// Upserts a completion row. Replays are harmless: the row is unique on
// (learner, lesson).
// ══════════════════════════════════════════════════════════════════════════════

// RecordLessonCompletionCommand marks a lesson complete.
type RecordLessonCompletionCommand struct {
	LearnerID string
	CourseID  string
	LessonID  string
}

// Validate validates the command.
func (c RecordLessonCompletionCommand) Validate() error {
	if _, err := shared.NewLearnerID(c.LearnerID); err != nil {
		return err
	}
	if c.CourseID == "" || c.LessonID == "" {
		return shared.Invalid("progress", "RecordCompletion", "course_id and lesson_id are required")
	}
	return nil
}

// RecordLessonCompletionHandler handles RecordLessonCompletionCommand.
type RecordLessonCompletionHandler struct {
	progress progress.Repository
	catalog  content.Catalog
	env      Env
}

// NewRecordLessonCompletionHandler creates a new RecordLessonCompletionHandler.
func NewRecordLessonCompletionHandler(progressRepo progress.Repository, catalog content.Catalog, env Env) *RecordLessonCompletionHandler {
	return &RecordLessonCompletionHandler{progress: progressRepo, catalog: catalog, env: env}
}

// Handle writes the completion and returns the course projection after it.
func (h *RecordLessonCompletionHandler) Handle(ctx context.Context, cmd RecordLessonCompletionCommand) (*progress.CourseProgress, error) {
	log := h.env.log("RecordLessonCompletion").With(
		logger.LearnerID(cmd.LearnerID),
		logger.CourseID(cmd.CourseID),
		logger.String("lesson_id", cmd.LessonID),
	)

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_completion: validation failed: %w", err)
	}

	course, err := h.catalog.GetCourse(ctx, content.CourseID(cmd.CourseID))
	if err != nil {
		logFailure(ctx, log, "course lookup failed", err)
		return nil, fmt.Errorf("record_completion: %w", err)
	}
	if !course.HasLesson(content.LessonID(cmd.LessonID)) {
		return nil, shared.ErrLessonNotFound
	}

	id := shared.LearnerID(cmd.LearnerID)
	err = h.progress.RecordCompletion(ctx, progress.LessonCompletion{
		LearnerID: id,
		LessonID:  content.LessonID(cmd.LessonID),
		CourseID:  course.ID,
		Completed: true,
		UpdatedAt: h.env.now(),
	})
	if err != nil {
		logFailure(ctx, log, "completion write failed", err)
		return nil, fmt.Errorf("record_completion: %w", err)
	}

	rows, err := h.progress.ListCompletions(ctx, id, course.ID)
	if err != nil {
		return nil, fmt.Errorf("record_completion: reload: %w", err)
	}
	p := progress.ProjectCourse(course, rows)
	return &p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESET COURSE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ResetCourseCommand deletes every completion of (learner, course).
type ResetCourseCommand struct {
	LearnerID string
	CourseID  string
}

// Validate validates the command.
func (c ResetCourseCommand) Validate() error {
	if _, err := shared.NewLearnerID(c.LearnerID); err != nil {
		return err
	}
	if c.CourseID == "" {
		return shared.Invalid("progress", "ResetCourse", "course_id is required")
	}
	return nil
}

// ResetCourseResult reports what the reset removed.
type ResetCourseResult struct {
	Removed  int
	Progress progress.CourseProgress
}

// ResetCourseHandler handles ResetCourseCommand.
type ResetCourseHandler struct {
	progress progress.Repository
	catalog  content.Catalog
	env      Env
}

// NewResetCourseHandler creates a new ResetCourseHandler.
func NewResetCourseHandler(progressRepo progress.Repository, catalog content.Catalog, env Env) *ResetCourseHandler {
	return &ResetCourseHandler{progress: progressRepo, catalog: catalog, env: env}
}

// Handle returns the course to zero-state. Nothing derived is cached.
func (h *ResetCourseHandler) Handle(ctx context.Context, cmd ResetCourseCommand) (*ResetCourseResult, error) {
	log := h.env.log("ResetCourse").With(logger.LearnerID(cmd.LearnerID), logger.CourseID(cmd.CourseID))

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("reset_course: validation failed: %w", err)
	}

	course, err := h.catalog.GetCourse(ctx, content.CourseID(cmd.CourseID))
	if err != nil {
		logFailure(ctx, log, "course lookup failed", err)
		return nil, fmt.Errorf("reset_course: %w", err)
	}

	n, err := h.progress.DeleteCompletions(ctx, shared.LearnerID(cmd.LearnerID), course.ID)
	if err != nil {
		logFailure(ctx, log, "reset failed", err)
		return nil, fmt.Errorf("reset_course: %w", err)
	}
	log.Info("course progress reset", logger.Int("removed", n))

	return &ResetCourseResult{
		Removed:  n,
		Progress: progress.ProjectCourse(course, nil),
	}, nil
}
