package query

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devpath/progression-engine/internal/application/command"
	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/learner"
	"github.com/devpath/progression-engine/internal/domain/progress"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/logger"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSEMBLE DASHBOARD QUERY
// Bundles every projector into one frozen view model. Reads fan out in
// parallel; projection happens once all reads are in.
// ══════════════════════════════════════════════════════════════════════════════

// LearnerView is the identity block of the dashboard.
type LearnerView struct {
	ID             shared.LearnerID `json:"id"`
	DisplayName    string           `json:"display_name"`
	AvatarURL      string           `json:"avatar"`
	SelectedCareer content.CareerID `json:"selected_career,omitempty"`
}

// CourseSummary describes a course in dashboard lists.
type CourseSummary struct {
	ID            content.CourseID `json:"id"`
	Slug          string           `json:"slug"`
	Title         string           `json:"title"`
	LearningHours *float64         `json:"learning_hours,omitempty"`
}

// CourseEntry pairs a course with the learner's progress in it.
type CourseEntry struct {
	Course   CourseSummary           `json:"course"`
	Progress progress.CourseProgress `json:"progress"`
}

// Dashboard is the learner dashboard view model.
type Dashboard struct {
	Learner           LearnerView             `json:"learner"`
	Streak            command.StreakView      `json:"streak"`
	Week              progress.WeeklyActivity `json:"week"`
	Career            *CareerView             `json:"career"`
	CoursesInProgress []CourseEntry           `json:"courses_in_progress"`
	Recommended       []content.CourseID      `json:"recommended"`
	Warnings          []shared.Warning        `json:"warnings,omitempty"`
	Today             timeutil.DayKey         `json:"today"`
	GeneratedAt       time.Time               `json:"generated_at"`
}

// AssembleDashboardQuery asks for a learner's dashboard.
type AssembleDashboardQuery struct {
	LearnerID string
}

// AssembleDashboardHandler handles AssembleDashboardQuery.
type AssembleDashboardHandler struct {
	catalog   content.Catalog
	progress  progress.Repository
	recompute StreakRecomputer
	env       command.Env
}

// NewAssembleDashboardHandler creates a new AssembleDashboardHandler.
func NewAssembleDashboardHandler(
	catalog content.Catalog,
	progressRepo progress.Repository,
	recompute StreakRecomputer,
	env command.Env,
) *AssembleDashboardHandler {
	return &AssembleDashboardHandler{
		catalog:   catalog,
		progress:  progressRepo,
		recompute: recompute,
		env:       env,
	}
}

// Handle fails with shared.ErrNotFound for unknown learners. A selected
// career that no longer exists is reported as a warning.
func (h *AssembleDashboardHandler) Handle(ctx context.Context, q AssembleDashboardQuery) (*Dashboard, error) {
	id, err := shared.NewLearnerID(q.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("assemble_dashboard: validation failed: %w", err)
	}
	log := queryLog(h.env, "AssembleDashboard").With(logger.LearnerID(q.LearnerID))
	start := time.Now()
	now := h.now()
	day := h.env.Zone.DayKey(now)

	var (
		streak      *command.RecomputeStreakResult
		week        progress.WeeklyActivity
		completions []progress.LessonCompletion
		courses     []*content.Course
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		streak, err = h.recompute.Handle(gctx, command.RecomputeStreakCommand{LearnerID: q.LearnerID})
		return err
	})
	g.Go(func() (err error) {
		week, err = readWeek(gctx, h.progress, id, day)
		return err
	})
	g.Go(func() (err error) {
		completions, err = h.progress.ListAllCompletions(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		courses, err = h.catalog.ListCourses(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Debug("dashboard read failed", logger.Err(err))
		return nil, fmt.Errorf("assemble_dashboard: %w", err)
	}

	warnings := shared.NewWarnings()
	book := newProgressBook(courses, completions)

	profile := streak.Profile
	career, err := h.career(ctx, profile, book, warnings)
	if err != nil {
		return nil, fmt.Errorf("assemble_dashboard: %w", err)
	}

	d := &Dashboard{
		Learner: LearnerView{
			ID:             profile.ID,
			DisplayName:    profile.DisplayName,
			AvatarURL:      profile.AvatarURL,
			SelectedCareer: profile.SelectedCareer,
		},
		Streak:            streak.Streak,
		Week:              week,
		Career:            career,
		CoursesInProgress: coursesInProgress(book),
		Recommended:       []content.CourseID{},
		Today:             day,
		GeneratedAt:       now,
	}
	if career != nil && career.Recommended != nil {
		d.Recommended = career.Recommended
	}
	d.Warnings = warnings.List()
	for _, w := range d.Warnings {
		log.Warn("authoring inconsistency", logger.String("code", string(w.Code)), logger.String("subject", w.Subject))
	}

	log.Debug("dashboard assembled", logger.Latency(time.Since(start)))
	return d, nil
}

func (h *AssembleDashboardHandler) career(ctx context.Context, p *learner.Profile, book *progressBook, warnings *shared.Warnings) (*CareerView, error) {
	if p.SelectedCareer == "" {
		return nil, nil
	}
	career, err := h.catalog.GetCareer(ctx, p.SelectedCareer)
	if err != nil {
		if shared.IsNotFound(err) {
			warnings.Add(shared.Warning{
				Code:    shared.WarnUnknownCareer,
				Subject: string(p.SelectedCareer),
				Message: fmt.Sprintf("selected career %s does not exist", p.SelectedCareer),
			})
			return nil, nil
		}
		return nil, err
	}
	return buildCareerView(career, book, warnings), nil
}

func (h *AssembleDashboardHandler) now() time.Time {
	if h.env.Clock == nil {
		return time.Now()
	}
	return h.env.Clock.Now()
}

// coursesInProgress keeps started, unfinished courses in catalog order.
func coursesInProgress(book *progressBook) []CourseEntry {
	out := make([]CourseEntry, 0)
	for _, p := range book.ordered {
		if !p.InProgress() {
			continue
		}
		c := book.courses[p.CourseID]
		out = append(out, CourseEntry{
			Course: CourseSummary{
				ID:            c.ID,
				Slug:          c.Slug,
				Title:         c.Title,
				LearningHours: c.LearningHours,
			},
			Progress: p,
		})
	}
	return out
}
