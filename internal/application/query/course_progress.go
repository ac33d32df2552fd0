package query

import (
	"context"
	"fmt"

	"github.com/devpath/progression-engine/internal/application/command"
	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/progress"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/logger"
)

// GetCourseProgressQuery asks for one course projection.
type GetCourseProgressQuery struct {
	LearnerID string
	CourseID  string
}

// Validate validates the query.
func (q GetCourseProgressQuery) Validate() error {
	if _, err := shared.NewLearnerID(q.LearnerID); err != nil {
		return err
	}
	if q.CourseID == "" {
		return shared.Invalid("progress", "GetCourseProgress", "course_id is required")
	}
	return nil
}

// GetCourseProgressHandler handles GetCourseProgressQuery.
type GetCourseProgressHandler struct {
	catalog  content.Catalog
	progress progress.Repository
	env      command.Env
}

// NewGetCourseProgressHandler creates a new GetCourseProgressHandler.
func NewGetCourseProgressHandler(catalog content.Catalog, progressRepo progress.Repository, env command.Env) *GetCourseProgressHandler {
	return &GetCourseProgressHandler{catalog: catalog, progress: progressRepo, env: env}
}

// Handle returns the projection; nothing is cached between reads.
func (h *GetCourseProgressHandler) Handle(ctx context.Context, q GetCourseProgressQuery) (*progress.CourseProgress, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_course_progress: validation failed: %w", err)
	}
	log := queryLog(h.env, "GetCourseProgress").With(logger.LearnerID(q.LearnerID), logger.CourseID(q.CourseID))

	course, err := h.catalog.GetCourse(ctx, content.CourseID(q.CourseID))
	if err != nil {
		log.Debug("course lookup failed", logger.Err(err))
		return nil, fmt.Errorf("get_course_progress: %w", err)
	}
	rows, err := h.progress.ListCompletions(ctx, shared.LearnerID(q.LearnerID), course.ID)
	if err != nil {
		log.Error("completion read failed", logger.Err(err))
		return nil, fmt.Errorf("get_course_progress: %w", err)
	}

	p := progress.ProjectCourse(course, rows)
	return &p, nil
}
