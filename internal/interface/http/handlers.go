package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/devpath/progression-engine/internal/application/command"
	"github.com/devpath/progression-engine/internal/application/query"
	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/learner"
	"github.com/devpath/progression-engine/internal/domain/practice"
	"github.com/devpath/progression-engine/internal/domain/progress"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// VIEW MODELS
// ══════════════════════════════════════════════════════════════════════════════

// ProfileView is the JSON form of a learner profile.
type ProfileView struct {
	ID               shared.LearnerID `json:"id"`
	DisplayName      string           `json:"display_name"`
	AvatarURL        string           `json:"avatar"`
	SelectedCareer   content.CareerID `json:"selected_career,omitempty"`
	CurrentStreak    int              `json:"current_streak"`
	MaxStreak        int              `json:"max_streak"`
	FreezesAvailable int              `json:"streak_freezes_available"`
	FreezesUsed      int              `json:"streak_freezes_used"`
	LastFreezeDay    timeutil.DayKey  `json:"last_freeze_day,omitempty"`
	LastActivityDay  timeutil.DayKey  `json:"last_activity_day,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func newProfileView(p *learner.Profile) *ProfileView {
	if p == nil {
		return nil
	}
	return &ProfileView{
		ID:               p.ID,
		DisplayName:      p.DisplayName,
		AvatarURL:        p.AvatarURL,
		SelectedCareer:   p.SelectedCareer,
		CurrentStreak:    p.CurrentStreak,
		MaxStreak:        p.MaxStreak,
		FreezesAvailable: p.FreezesAvailable,
		FreezesUsed:      p.FreezesUsed,
		LastFreezeDay:    p.LastFreezeDay,
		LastActivityDay:  p.LastActivityDay,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// AttemptView is the JSON form of an evaluated attempt.
type AttemptView struct {
	ID              string              `json:"id"`
	ProblemID       content.ProblemID   `json:"problem_id"`
	AttemptIndex    int                 `json:"attempt_index"`
	Kind            content.ProblemKind `json:"kind"`
	SubmittedOutput string              `json:"submitted_output,omitempty"`
	SelectedOptions []string            `json:"selected_options,omitempty"`
	IsCorrect       bool                `json:"is_correct"`
	Score           int                 `json:"score"`
	XPAwarded       int                 `json:"xp_awarded"`
	SolutionViewed  bool                `json:"solution_viewed"`
	SubmittedAt     time.Time           `json:"submitted_at"`
}

func newAttemptView(a *practice.Attempt) *AttemptView {
	if a == nil {
		return nil
	}
	return &AttemptView{
		ID:              a.ID,
		ProblemID:       a.ProblemID,
		AttemptIndex:    a.AttemptIndex,
		Kind:            a.Kind,
		SubmittedOutput: a.SubmittedOutput,
		SelectedOptions: a.SelectedOptions,
		IsCorrect:       a.IsCorrect,
		Score:           a.Score,
		XPAwarded:       a.XPAwarded,
		SolutionViewed:  a.SolutionViewed,
		SubmittedAt:     a.SubmittedAt,
	}
}

// SubmitAttemptView is the response of a submission.
type SubmitAttemptView struct {
	Attempt        *AttemptView        `json:"attempt"`
	Correct        bool                `json:"correct"`
	Score          int                 `json:"score"`
	XPAwarded      int                 `json:"xp_awarded"`
	SolutionViewed bool                `json:"solution_viewed"`
	Replayed       bool                `json:"replayed"`
	Streak         *command.StreakView `json:"streak,omitempty"`
}

// RevealView is the response of a reveal.
type RevealView struct {
	ProblemID      content.ProblemID `json:"problem_id"`
	ExpectedOutput string            `json:"expected_output,omitempty"`
	WrongOptionIDs []string          `json:"wrong_option_ids,omitempty"`
	Explanation    string            `json:"explanation,omitempty"`
	RevealedAt     time.Time         `json:"revealed_at"`
	FirstReveal    bool              `json:"first_reveal"`
}

// ResetCourseView is the response of a course reset.
type ResetCourseView struct {
	Removed  int                     `json:"removed"`
	Progress progress.CourseProgress `json:"progress"`
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

type ensureLearnerRequest struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar"`
}

type trackTimeRequest struct {
	LessonID string     `json:"lesson_id"`
	Seconds  int64      `json:"seconds"`
	At       *time.Time `json:"at"`
}

type selectCareerRequest struct {
	CareerID string `json:"career_id"`
}

type submitAttemptRequest struct {
	Output          string   `json:"output"`
	SelectedOptions []string `json:"selected_options"`
	SubmissionID    string   `json:"submission_id"`
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER
// ══════════════════════════════════════════════════════════════════════════════

// PUT /api/v1/learners/{learnerID}
func (s *Server) handleEnsureLearner(w http.ResponseWriter, r *http.Request) {
	if s.deps.EnsureLearner == nil {
		s.notImplemented(w, r)
		return
	}
	var req ensureLearnerRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.deps.EnsureLearner.Handle(r.Context(), command.EnsureLearnerCommand{
		LearnerID:   chi.URLParam(r, "learnerID"),
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	s.writeJSON(w, r, status, newProfileView(res.Profile), nil)
}

// GET /api/v1/learners/{learnerID}/dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.Dashboard == nil {
		s.notImplemented(w, r)
		return
	}
	d, err := s.deps.Dashboard.Handle(r.Context(), query.AssembleDashboardQuery{LearnerID: chi.URLParam(r, "learnerID")})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, d, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK
// ══════════════════════════════════════════════════════════════════════════════

// GET /api/v1/learners/{learnerID}/streak
func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	if s.deps.Streak == nil {
		s.notImplemented(w, r)
		return
	}
	view, err := s.deps.Streak.Handle(r.Context(), query.GetStreakQuery{LearnerID: chi.URLParam(r, "learnerID")})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view, nil)
}

// POST /api/v1/learners/{learnerID}/streak/recompute
func (s *Server) handleRecomputeStreak(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecomputeStreak == nil {
		s.notImplemented(w, r)
		return
	}
	res, err := s.deps.RecomputeStreak.Handle(r.Context(), command.RecomputeStreakCommand{LearnerID: chi.URLParam(r, "learnerID")})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, res.Streak, nil)
}

// POST /api/v1/learners/{learnerID}/streak/freeze
func (s *Server) handleConsumeFreeze(w http.ResponseWriter, r *http.Request) {
	if s.deps.ConsumeFreeze == nil {
		s.notImplemented(w, r)
		return
	}
	view, err := s.deps.ConsumeFreeze.Handle(r.Context(), command.ConsumeFreezeCommand{LearnerID: chi.URLParam(r, "learnerID")})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY
// ══════════════════════════════════════════════════════════════════════════════

// POST /api/v1/learners/{learnerID}/time
func (s *Server) handleTrackTime(w http.ResponseWriter, r *http.Request) {
	if s.deps.TrackTime == nil {
		s.notImplemented(w, r)
		return
	}
	var req trackTimeRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	cmd := command.TrackTimeCommand{
		LearnerID: chi.URLParam(r, "learnerID"),
		LessonID:  req.LessonID,
		Seconds:   req.Seconds,
	}
	if req.At != nil {
		cmd.At = *req.At
	}
	view, err := s.deps.TrackTime.Handle(r.Context(), cmd)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view, nil)
}

// GET /api/v1/learners/{learnerID}/activity/weekly?anchor=YYYY-MM-DD
func (s *Server) handleWeeklyActivity(w http.ResponseWriter, r *http.Request) {
	if s.deps.WeeklyActivity == nil {
		s.notImplemented(w, r)
		return
	}
	week, err := s.deps.WeeklyActivity.Handle(r.Context(), query.GetWeeklyActivityQuery{
		LearnerID: chi.URLParam(r, "learnerID"),
		Anchor:    timeutil.DayKey(r.URL.Query().Get("anchor")),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, week, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// CAREER
// ══════════════════════════════════════════════════════════════════════════════

// PUT /api/v1/learners/{learnerID}/career
func (s *Server) handleSelectCareer(w http.ResponseWriter, r *http.Request) {
	if s.deps.SelectCareer == nil {
		s.notImplemented(w, r)
		return
	}
	var req selectCareerRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.deps.SelectCareer.Handle(r.Context(), command.SelectCareerCommand{
		LearnerID: chi.URLParam(r, "learnerID"),
		CareerID:  req.CareerID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, newProfileView(p), nil)
}

// GET /api/v1/learners/{learnerID}/career/readiness
// GET /api/v1/learners/{learnerID}/careers/{careerID}/readiness
func (s *Server) handleCareerReadiness(w http.ResponseWriter, r *http.Request) {
	if s.deps.CareerReadiness == nil {
		s.notImplemented(w, r)
		return
	}
	res, err := s.deps.CareerReadiness.Handle(r.Context(), query.GetCareerReadinessQuery{
		LearnerID: chi.URLParam(r, "learnerID"),
		CareerID:  chi.URLParam(r, "careerID"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, res.Career, res.Warnings)
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSES
// ══════════════════════════════════════════════════════════════════════════════

// GET /api/v1/learners/{learnerID}/courses/{courseID}/progress
func (s *Server) handleCourseProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.CourseProgress == nil {
		s.notImplemented(w, r)
		return
	}
	p, err := s.deps.CourseProgress.Handle(r.Context(), query.GetCourseProgressQuery{
		LearnerID: chi.URLParam(r, "learnerID"),
		CourseID:  chi.URLParam(r, "courseID"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, p, nil)
}

// DELETE /api/v1/learners/{learnerID}/courses/{courseID}/progress
func (s *Server) handleResetCourse(w http.ResponseWriter, r *http.Request) {
	if s.deps.ResetCourse == nil {
		s.notImplemented(w, r)
		return
	}
	res, err := s.deps.ResetCourse.Handle(r.Context(), command.ResetCourseCommand{
		LearnerID: chi.URLParam(r, "learnerID"),
		CourseID:  chi.URLParam(r, "courseID"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, ResetCourseView{Removed: res.Removed, Progress: res.Progress}, nil)
}

// POST /api/v1/learners/{learnerID}/courses/{courseID}/lessons/{lessonID}/complete
func (s *Server) handleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	if s.deps.CompleteLesson == nil {
		s.notImplemented(w, r)
		return
	}
	p, err := s.deps.CompleteLesson.Handle(r.Context(), command.RecordLessonCompletionCommand{
		LearnerID: chi.URLParam(r, "learnerID"),
		CourseID:  chi.URLParam(r, "courseID"),
		LessonID:  chi.URLParam(r, "lessonID"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, p, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// PRACTICE
// ══════════════════════════════════════════════════════════════════════════════

// POST /api/v1/learners/{learnerID}/problems/{problemID}/attempts
func (s *Server) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	if s.deps.SubmitAttempt == nil {
		s.notImplemented(w, r)
		return
	}
	var req submitAttemptRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.deps.SubmitAttempt.Handle(r.Context(), command.SubmitAttemptCommand{
		LearnerID:       chi.URLParam(r, "learnerID"),
		ProblemID:       chi.URLParam(r, "problemID"),
		Output:          req.Output,
		SelectedOptions: req.SelectedOptions,
		SubmissionID:    req.SubmissionID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	s.writeJSON(w, r, status, SubmitAttemptView{
		Attempt:        newAttemptView(res.Attempt),
		Correct:        res.Correct,
		Score:          res.Score,
		XPAwarded:      res.XPAwarded,
		SolutionViewed: res.SolutionViewed,
		Replayed:       res.Replayed,
		Streak:         res.Streak,
	}, res.Warnings)
}

// POST /api/v1/learners/{learnerID}/problems/{problemID}/reveal
func (s *Server) handleRevealSolution(w http.ResponseWriter, r *http.Request) {
	if s.deps.RevealSolution == nil {
		s.notImplemented(w, r)
		return
	}
	res, err := s.deps.RevealSolution.Handle(r.Context(), command.RevealSolutionCommand{
		LearnerID: chi.URLParam(r, "learnerID"),
		ProblemID: chi.URLParam(r, "problemID"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, RevealView{
		ProblemID:      res.ProblemID,
		ExpectedOutput: res.ExpectedOutput,
		WrongOptionIDs: res.WrongOptionIDs,
		Explanation:    res.Explanation,
		RevealedAt:     res.RevealedAt,
		FirstReveal:    res.FirstReveal,
	}, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		s.writeJSON(w, r, http.StatusOK, map[string]any{"healthy": true, "uptime": s.Uptime().Round(time.Second).String()}, nil)
		return
	}
	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, code, status, nil)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		s.writeJSON(w, r, http.StatusOK, map[string]bool{"ready": true}, nil)
		return
	}
	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, code, map[string]bool{"ready": status.Ready}, nil)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
