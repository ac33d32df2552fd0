package query

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/devpath/progression-engine/internal/application/command"
	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/learner"
	"github.com/devpath/progression-engine/internal/domain/progress"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/logger"
)

// CareerView is the career block of the dashboard.
type CareerView struct {
	ID                  content.CareerID        `json:"id"`
	Name                string                  `json:"name"`
	ReadinessPercentage int                     `json:"readiness_percentage"`
	ReadinessLevel      progress.ReadinessLevel `json:"readiness_level"`
	Skills              []progress.SkillValue   `json:"skills"`
	EnrolledInCareer    int                     `json:"enrolled_in_career"`
	CompletedInCareer   int                     `json:"completed_in_career"`
	TotalRequired       int                     `json:"total_required"`

	// Recommended are required courses the learner has not started.
	Recommended []content.CourseID `json:"-"`
}

func buildCareerView(career *content.CareerPath, book *progressBook, warnings *shared.Warnings) *CareerView {
	r := progress.ProjectReadiness(career, book.lookup, warnings)
	req := progress.SummarizeRequired(career, book.lookup, warnings)
	name := career.Name
	if name == "" {
		name = career.Slug
	}
	return &CareerView{
		ID:                  career.ID,
		Name:                name,
		ReadinessPercentage: r.Percentage,
		ReadinessLevel:      r.Level,
		Skills:              r.Skills,
		EnrolledInCareer:    req.Enrolled,
		CompletedInCareer:   req.Completed,
		TotalRequired:       req.Total,
		Recommended:         req.NotEnrolled,
	}
}

// GetCareerReadinessQuery asks for readiness in a career. An empty CareerID
// uses the learner's selected career.
type GetCareerReadinessQuery struct {
	LearnerID string
	CareerID  string
}

// Validate validates the query.
func (q GetCareerReadinessQuery) Validate() error {
	_, err := shared.NewLearnerID(q.LearnerID)
	return err
}

// CareerReadinessResult carries the view and any authoring warnings.
type CareerReadinessResult struct {
	Career   *CareerView
	Warnings []shared.Warning
}

// GetCareerReadinessHandler handles GetCareerReadinessQuery.
type GetCareerReadinessHandler struct {
	catalog  content.Catalog
	learners learner.Repository
	progress progress.Repository
	env      command.Env
}

// NewGetCareerReadinessHandler creates a new GetCareerReadinessHandler.
func NewGetCareerReadinessHandler(
	catalog content.Catalog,
	learners learner.Repository,
	progressRepo progress.Repository,
	env command.Env,
) *GetCareerReadinessHandler {
	return &GetCareerReadinessHandler{catalog: catalog, learners: learners, progress: progressRepo, env: env}
}

// Handle fails with shared.ErrNotFound when the career does not exist or
// the learner has none selected.
func (h *GetCareerReadinessHandler) Handle(ctx context.Context, q GetCareerReadinessQuery) (*CareerReadinessResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_career_readiness: validation failed: %w", err)
	}
	id := shared.LearnerID(q.LearnerID)
	log := queryLog(h.env, "GetCareerReadiness").With(logger.LearnerID(q.LearnerID))

	careerID := content.CareerID(q.CareerID)
	if careerID == "" {
		p, err := h.learners.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get_career_readiness: %w", err)
		}
		if p.SelectedCareer == "" {
			return nil, shared.NotFound("progress", "GetCareerReadiness", "learner %s has no selected career", id)
		}
		careerID = p.SelectedCareer
	}

	var (
		career      *content.CareerPath
		courses     []*content.Course
		completions []progress.LessonCompletion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		career, err = h.catalog.GetCareer(gctx, careerID)
		return err
	})
	g.Go(func() (err error) {
		courses, err = h.catalog.ListCourses(gctx)
		return err
	})
	g.Go(func() (err error) {
		completions, err = h.progress.ListAllCompletions(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Debug("career readiness read failed", logger.CareerID(careerID.String()), logger.Err(err))
		return nil, fmt.Errorf("get_career_readiness: %w", err)
	}

	warnings := shared.NewWarnings()
	view := buildCareerView(career, newProgressBook(courses, completions), warnings)
	for _, w := range warnings.List() {
		log.Warn("authoring inconsistency", logger.String("code", string(w.Code)), logger.String("subject", w.Subject))
	}
	return &CareerReadinessResult{Career: view, Warnings: warnings.List()}, nil
}
