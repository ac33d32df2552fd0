package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpath/progression-engine/internal/application/command"
	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/learner"
	"github.com/devpath/progression-engine/internal/domain/progress"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/devpath/progression-engine/pkg/logger"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

// 2024-06-12 is a Wednesday; its week is 06-09 .. 06-15.
var day0 = time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	catalog *memory.Catalog
	env     command.Env

	recompute *command.RecomputeStreakHandler
	course    *GetCourseProgressHandler
	career    *GetCareerReadinessHandler
	week      *GetWeeklyActivityHandler
	streak    *GetStreakHandler
	dashboard *AssembleDashboardHandler
}

func lessons(n int) []content.Lesson {
	out := make([]content.Lesson, n)
	for i := range out {
		out[i] = content.Lesson{
			ID:       content.LessonID(string(rune('a'+i)) + "-lesson"),
			Position: i,
			Status:   content.LessonPublished,
		}
	}
	return out
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewStore(),
		catalog: memory.NewCatalog(),
	}
	f.env = command.Env{Clock: timeutil.NewManualClock(day0), Zone: timeutil.UTC, Logger: logger.Nop()}
	f.recompute = command.NewRecomputeStreakHandler(f.store, f.store, nil, 0, f.env)
	f.course = NewGetCourseProgressHandler(f.catalog, f.store, f.env)
	f.career = NewGetCareerReadinessHandler(f.catalog, f.store, f.store, f.env)
	f.week = NewGetWeeklyActivityHandler(f.store, f.env)
	f.streak = NewGetStreakHandler(f.recompute)
	f.dashboard = NewAssembleDashboardHandler(f.catalog, f.store, f.recompute, f.env)

	f.catalog.PutCourse(&content.Course{ID: "A", Slug: "courseA", Title: "Course A", Lessons: lessons(2)})
	f.catalog.PutCourse(&content.Course{ID: "B", Slug: "courseB", Title: "Course B", Lessons: lessons(4)})
	f.catalog.PutCourse(&content.Course{ID: "C", Slug: "courseC", Title: "Course C", Lessons: lessons(3)})
	f.catalog.PutCareer(&content.CareerPath{
		ID:              "cX",
		Name:            "Backend Developer",
		RequiredCourses: []string{"courseA", "courseB", "courseC"},
		Skills: []content.CareerSkill{
			{
				Name:   "Programming",
				Weight: 60,
				Contributions: []content.SkillContribution{
					{CourseSlug: "courseA", Contribution: 50},
					{CourseSlug: "courseB", Contribution: 50},
				},
			},
			{
				Name:   "Databases",
				Weight: 40,
				Contributions: []content.SkillContribution{
					{CourseSlug: "courseC", Contribution: 60},
					{CourseSlug: "ghost", Contribution: 40},
				},
			},
		},
	})

	p, err := learner.NewProfile("u1", "Ann", "ann.png", 2, day0)
	require.NoError(t, err)
	p.SelectedCareer = "cX"
	require.NoError(t, f.store.Create(context.Background(), p))
	return f
}

func (f *fixture) complete(t *testing.T, courseID string, lessonIDs ...content.LessonID) {
	t.Helper()
	for _, l := range lessonIDs {
		require.NoError(t, f.store.RecordCompletion(context.Background(), progress.LessonCompletion{
			LearnerID: "u1", LessonID: l, CourseID: content.CourseID(courseID), Completed: true,
		}))
	}
}

func (f *fixture) spend(t *testing.T, day string, seconds int64) {
	t.Helper()
	require.NoError(t, f.store.AppendTime(context.Background(), progress.TimeRecord{
		LearnerID: "u1", Day: timeutil.MustDayKey(day), DurationSeconds: seconds,
	}))
}

func TestGetCourseProgress(t *testing.T) {
	f := newFixture(t)
	f.complete(t, "B", "a-lesson", "b-lesson")

	p, err := f.course.Handle(context.Background(), GetCourseProgressQuery{LearnerID: "u1", CourseID: "B"})
	require.NoError(t, err)
	assert.Equal(t, 2, p.CompletedCount)
	assert.Equal(t, 4, p.TotalCount)
	assert.Equal(t, 50, p.Percentage)
	assert.False(t, p.IsComplete)

	_, err = f.course.Handle(context.Background(), GetCourseProgressQuery{LearnerID: "u1", CourseID: "Z"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetCareerReadiness(t *testing.T) {
	f := newFixture(t)
	f.complete(t, "A", "a-lesson", "b-lesson")
	f.complete(t, "B", "a-lesson", "b-lesson")

	res, err := f.career.Handle(context.Background(), GetCareerReadinessQuery{LearnerID: "u1"})
	require.NoError(t, err)

	// Programming = 50*1 + 50*0.5 = 75; Databases = 0.
	// Readiness = (75*60 + 0*40) / 100 = 45.
	c := res.Career
	assert.Equal(t, 75, c.Skills[0].Value)
	assert.Equal(t, 0, c.Skills[1].Value)
	assert.Equal(t, 45, c.ReadinessPercentage)
	assert.Equal(t, progress.LevelBeginner, c.ReadinessLevel)
	assert.Equal(t, 2, c.EnrolledInCareer)
	assert.Equal(t, 1, c.CompletedInCareer)
	assert.Equal(t, 3, c.TotalRequired)

	if assert.Len(t, res.Warnings, 1) {
		assert.Equal(t, shared.WarnUnknownCourse, res.Warnings[0].Code)
	}

	_, err = f.career.Handle(context.Background(), GetCareerReadinessQuery{LearnerID: "u1", CareerID: "nope"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetWeeklyActivity(t *testing.T) {
	f := newFixture(t)
	f.spend(t, "2024-06-10", 600)  // Mon
	f.spend(t, "2024-06-12", 1200) // Wed
	f.spend(t, "2024-06-13", 1200) // Thu
	f.spend(t, "2024-06-16", 999)  // next Sunday

	w, err := f.week.Handle(context.Background(), GetWeeklyActivityQuery{LearnerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), w.TotalSeconds)
	assert.Equal(t, 3, w.ActiveDays)
	assert.Equal(t, int64(0), w.DailySeconds["2024-06-11"])
	assert.Equal(t, int64(600), w.DailySeconds["2024-06-10"])

	w, err = f.week.Handle(context.Background(), GetWeeklyActivityQuery{LearnerID: "u1", Anchor: "2024-06-20"})
	require.NoError(t, err)
	assert.Equal(t, int64(999), w.TotalSeconds)

	_, err = f.week.Handle(context.Background(), GetWeeklyActivityQuery{LearnerID: "u1", Anchor: "June 1"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestGetStreak(t *testing.T) {
	f := newFixture(t)
	f.spend(t, "2024-06-11", 60)
	f.spend(t, "2024-06-10", 60)

	s, err := f.streak.Handle(context.Background(), GetStreakQuery{LearnerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Current)
	assert.Equal(t, learner.StateHot, s.State)
	assert.True(t, s.CanFreezeToday)

	_, err = f.streak.Handle(context.Background(), GetStreakQuery{LearnerID: "nobody"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAssembleDashboard(t *testing.T) {
	f := newFixture(t)
	f.complete(t, "A", "a-lesson", "b-lesson")
	f.complete(t, "B", "a-lesson")
	f.spend(t, "2024-06-12", 600)
	f.spend(t, "2024-06-11", 600)

	d, err := f.dashboard.Handle(context.Background(), AssembleDashboardQuery{LearnerID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, "Ann", d.Learner.DisplayName)
	assert.Equal(t, "ann.png", d.Learner.AvatarURL)
	assert.Equal(t, 2, d.Streak.Current)
	assert.Equal(t, int64(1200), d.Week.TotalSeconds)
	assert.Equal(t, timeutil.DayKey("2024-06-12"), d.Today)

	require.NotNil(t, d.Career)
	// Programming = 50 + 50*0.25 = 62.5 -> 63; readiness = 63*0.6 = 37.8 -> 38.
	assert.Equal(t, 63, d.Career.Skills[0].Value)
	assert.Equal(t, 38, d.Career.ReadinessPercentage)
	assert.Equal(t, "Backend Developer", d.Career.Name)

	if assert.Len(t, d.CoursesInProgress, 1) {
		assert.Equal(t, content.CourseID("B"), d.CoursesInProgress[0].Course.ID)
		assert.Equal(t, 25, d.CoursesInProgress[0].Progress.Percentage)
	}
	assert.Equal(t, []content.CourseID{"C"}, d.Recommended)
	assert.Len(t, d.Warnings, 1)
}

func TestAssembleDashboard_NoCareer(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Update(context.Background(), "u1", func(p *learner.Profile) error {
		p.SelectedCareer = "retired-career"
		return nil
	})
	require.NoError(t, err)

	d, err := f.dashboard.Handle(context.Background(), AssembleDashboardQuery{LearnerID: "u1"})
	require.NoError(t, err)
	assert.Nil(t, d.Career)
	assert.Empty(t, d.Recommended)
	assert.Empty(t, d.CoursesInProgress)
	if assert.Len(t, d.Warnings, 1) {
		assert.Equal(t, shared.WarnUnknownCareer, d.Warnings[0].Code)
	}

	_, err = f.dashboard.Handle(context.Background(), AssembleDashboardQuery{LearnerID: "ghost"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
