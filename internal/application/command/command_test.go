package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/progress"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/devpath/progression-engine/pkg/logger"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

// 2024-06-12 is a Wednesday.
var day0 = time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	catalog *memory.Catalog
	clock   *timeutil.ManualClock
	env     Env

	ensure    *EnsureLearnerHandler
	recompute *RecomputeStreakHandler
	freeze    *ConsumeFreezeHandler
	track     *TrackTimeHandler
	complete  *RecordLessonCompletionHandler
	reset     *ResetCourseHandler
	career    *SelectCareerHandler
	submit    *SubmitAttemptHandler
	reveal    *RevealSolutionHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewStore(),
		catalog: memory.NewCatalog(),
		clock:   timeutil.NewManualClock(day0),
	}
	f.env = Env{Clock: f.clock, Zone: timeutil.UTC, Logger: logger.Nop()}

	f.recompute = NewRecomputeStreakHandler(f.store, f.store, nil, 0, f.env)
	f.ensure = NewEnsureLearnerHandler(f.store, 2, f.env)
	f.freeze = NewConsumeFreezeHandler(f.store, f.recompute, f.env)
	f.track = NewTrackTimeHandler(f.store, f.store, f.recompute, f.env)
	f.complete = NewRecordLessonCompletionHandler(f.store, f.catalog, f.env)
	f.reset = NewResetCourseHandler(f.store, f.catalog, f.env)
	f.career = NewSelectCareerHandler(f.store, f.catalog, f.env)
	f.submit = NewSubmitAttemptHandler(f.catalog, f.store, f.store, f.recompute, f.env)
	f.reveal = NewRevealSolutionHandler(f.catalog, f.store, f.env)

	f.catalog.PutCourse(&content.Course{
		ID:   "c1",
		Slug: "go-basics",
		Lessons: []content.Lesson{
			{ID: "L1", Position: 1, Status: content.LessonPublished},
			{ID: "L2", Position: 2, Status: content.LessonPublished},
			{ID: "L3", Position: 3, Status: content.LessonPublished},
			{ID: "L4", Position: 4, Status: content.LessonPublished},
		},
	})
	f.catalog.PutCareer(&content.CareerPath{ID: "backend", Name: "Backend"})

	_, err := f.ensure.Handle(context.Background(), EnsureLearnerCommand{LearnerID: "u1", DisplayName: "Ann"})
	require.NoError(t, err)
	return f
}

func (f *fixture) activity(t *testing.T, daysAgo ...int) {
	t.Helper()
	for _, d := range daysAgo {
		require.NoError(t, f.store.AppendTime(context.Background(), progress.TimeRecord{
			LearnerID:       "u1",
			Day:             timeutil.UTC.DayKey(day0).AddDays(-d),
			DurationSeconds: 300,
		}))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER
// ══════════════════════════════════════════════════════════════════════════════

func TestEnsureLearner_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.ensure.Handle(ctx, EnsureLearnerCommand{LearnerID: "u1", DisplayName: "Anna"})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, "Anna", res.Profile.DisplayName)
	assert.Equal(t, 2, res.Profile.FreezesAvailable)

	_, err = f.ensure.Handle(ctx, EnsureLearnerCommand{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestSelectCareer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.career.Handle(ctx, SelectCareerCommand{LearnerID: "u1", CareerID: "backend"})
	require.NoError(t, err)
	assert.Equal(t, content.CareerID("backend"), p.SelectedCareer)

	_, err = f.career.Handle(ctx, SelectCareerCommand{LearnerID: "u1", CareerID: "astronaut"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	p, err = f.career.Handle(ctx, SelectCareerCommand{LearnerID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, p.SelectedCareer)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETIONS
// ══════════════════════════════════════════════════════════════════════════════

func TestRecordCompletion_AndReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, l := range []string{"L1", "L2", "L2"} {
		_, err := f.complete.Handle(ctx, RecordLessonCompletionCommand{LearnerID: "u1", CourseID: "c1", LessonID: l})
		require.NoError(t, err)
	}
	p, err := f.complete.Handle(ctx, RecordLessonCompletionCommand{LearnerID: "u1", CourseID: "c1", LessonID: "L1"})
	require.NoError(t, err)
	assert.Equal(t, progress.CourseProgress{
		CourseID:       "c1",
		CourseSlug:     "go-basics",
		CompletedCount: 2,
		TotalCount:     4,
		Percentage:     50,
		ResumeLessonID: "L3",
	}, *p)

	_, err = f.complete.Handle(ctx, RecordLessonCompletionCommand{LearnerID: "u1", CourseID: "c1", LessonID: "L99"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	res, err := f.reset.Handle(ctx, ResetCourseCommand{LearnerID: "u1", CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)
	assert.Zero(t, res.Progress.CompletedCount)
	assert.Equal(t, content.LessonID("L1"), res.Progress.ResumeLessonID)
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK
// ══════════════════════════════════════════════════════════════════════════════

func TestFreezeScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activity(t, 1, 2, 3)

	view, err := f.freeze.Handle(ctx, ConsumeFreezeCommand{LearnerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 4, view.Current)
	assert.Equal(t, 4, view.Max)
	assert.Equal(t, 1, view.FreezesAvailable)
	assert.False(t, view.CanFreezeToday)

	_, err = f.freeze.Handle(ctx, ConsumeFreezeCommand{LearnerID: "u1"})
	assert.ErrorIs(t, err, shared.ErrAlreadyFrozenToday)

	// Next day the freeze from yesterday still bridges.
	f.clock.Advance(24 * time.Hour)
	res, err := f.recompute.Handle(ctx, RecomputeStreakCommand{LearnerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Streak.Current)
	assert.True(t, res.Streak.CanFreezeToday)
}

func TestConsumeFreeze_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.freeze.Handle(ctx, ConsumeFreezeCommand{LearnerID: "u1"})
		}(i)
	}
	wg.Wait()

	succeeded, frozen := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, shared.ErrAlreadyFrozenToday):
			frozen++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, frozen)

	p, err := f.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.FreezesAvailable)
}

func TestConsumeFreeze_NoneLeft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.freeze.Handle(ctx, ConsumeFreezeCommand{LearnerID: "u1"})
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)
	_, err = f.freeze.Handle(ctx, ConsumeFreezeCommand{LearnerID: "u1"})
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)
	_, err = f.freeze.Handle(ctx, ConsumeFreezeCommand{LearnerID: "u1"})
	assert.ErrorIs(t, err, shared.ErrNoFreezesAvailable)

	_, err = f.freeze.Handle(ctx, ConsumeFreezeCommand{LearnerID: "ghost"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRecompute_IdempotentAndMaxKept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activity(t, 0, 1, 2, 3, 4)

	first, err := f.recompute.Handle(ctx, RecomputeStreakCommand{LearnerID: "u1"})
	require.NoError(t, err)
	second, err := f.recompute.Handle(ctx, RecomputeStreakCommand{LearnerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, first.Streak, second.Streak)
	assert.Equal(t, 5, second.Streak.Current)

	// Two idle days later the streak is gone but max survives.
	f.clock.Advance(48 * time.Hour)
	third, err := f.recompute.Handle(ctx, RecomputeStreakCommand{LearnerID: "u1"})
	require.NoError(t, err)
	assert.Zero(t, third.Streak.Current)
	assert.Equal(t, 5, third.Streak.Max)
	assert.Equal(t, timeutil.DayKey("2024-06-12"), third.Streak.LastActivityDay)
}

func TestTrackTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.activity(t, 1)

	view, err := f.track.Handle(ctx, TrackTimeCommand{LearnerID: "u1", LessonID: "L1", Seconds: 120})
	require.NoError(t, err)
	assert.Equal(t, 2, view.Current)
	assert.Equal(t, timeutil.DayKey("2024-06-12"), view.LastActivityDay)

	_, err = f.track.Handle(ctx, TrackTimeCommand{LearnerID: "u1", Seconds: -1})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.track.Handle(ctx, TrackTimeCommand{LearnerID: "u1", Seconds: 1, At: day0.Add(time.Hour)})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.track.Handle(ctx, TrackTimeCommand{LearnerID: "ghost", Seconds: 1})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestTrackTime_ZeroSecondsIsNotActivity(t *testing.T) {
	f := newFixture(t)
	view, err := f.track.Handle(context.Background(), TrackTimeCommand{LearnerID: "u1", Seconds: 0})
	require.NoError(t, err)
	assert.Zero(t, view.Current)
}

// ══════════════════════════════════════════════════════════════════════════════
// PRACTICE
// ══════════════════════════════════════════════════════════════════════════════

func putProblem(f *fixture, mutate func(p *content.Problem)) {
	p := &content.Problem{
		ID:             "p1",
		Kind:           content.KindPredictOutput,
		Published:      true,
		ExpectedOutput: "[3, 2, 1]\n",
		MatchMode:      content.MatchNormalized,
		OutputType:     content.OutputText,
		XPValue:        10,
		RevealAllowed:  true,
		RevealPenalty:  content.PenaltyHalfXP,
		Explanation:    "reverse",
	}
	if mutate != nil {
		mutate(p)
	}
	f.catalog.PutProblem(p)
}

func TestSubmitAttempt_FirstCorrectOnly(t *testing.T) {
	f := newFixture(t)
	putProblem(f, nil)
	ctx := context.Background()

	wrong, err := f.submit.Handle(ctx, SubmitAttemptCommand{LearnerID: "u1", ProblemID: "p1", Output: "[1, 2, 3]"})
	require.NoError(t, err)
	assert.False(t, wrong.Correct)
	assert.Zero(t, wrong.XPAwarded)
	assert.Nil(t, wrong.Streak)

	first, err := f.submit.Handle(ctx, SubmitAttemptCommand{LearnerID: "u1", ProblemID: "p1", Output: "[3,  2,  1]"})
	require.NoError(t, err)
	assert.True(t, first.Correct)
	assert.Equal(t, 10, first.XPAwarded)
	assert.Equal(t, 2, first.Attempt.AttemptIndex)

	second, err := f.submit.Handle(ctx, SubmitAttemptCommand{LearnerID: "u1", ProblemID: "p1", Output: "[3, 2, 1]"})
	require.NoError(t, err)
	assert.True(t, second.Correct)
	assert.Zero(t, second.XPAwarded)

	attempts, err := f.store.ListAttempts(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Len(t, attempts, 3)
}

func TestSubmitAttempt_AfterReveal(t *testing.T) {
	f := newFixture(t)
	putProblem(f, func(p *content.Problem) { p.XPValue = 15 })
	ctx := context.Background()

	rev, err := f.reveal.Handle(ctx, RevealSolutionCommand{LearnerID: "u1", ProblemID: "p1"})
	require.NoError(t, err)
	assert.True(t, rev.FirstReveal)
	assert.Equal(t, "[3, 2, 1]\n", rev.ExpectedOutput)

	again, err := f.reveal.Handle(ctx, RevealSolutionCommand{LearnerID: "u1", ProblemID: "p1"})
	require.NoError(t, err)
	assert.False(t, again.FirstReveal)

	res, err := f.submit.Handle(ctx, SubmitAttemptCommand{LearnerID: "u1", ProblemID: "p1", Output: "[3, 2, 1]"})
	require.NoError(t, err)
	assert.Equal(t, 7, res.XPAwarded)
}

func TestRevealSolution_Policy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	putProblem(f, func(p *content.Problem) { p.RevealAllowed = false })
	_, err := f.reveal.Handle(ctx, RevealSolutionCommand{LearnerID: "u1", ProblemID: "p1"})
	assert.ErrorIs(t, err, shared.ErrRevealNotAllowed)

	putProblem(f, func(p *content.Problem) { p.RevealAfterAttempts = 1 })
	_, err = f.reveal.Handle(ctx, RevealSolutionCommand{LearnerID: "u1", ProblemID: "p1"})
	assert.ErrorIs(t, err, shared.ErrRevealNotYetAllowed)

	_, err = f.submit.Handle(ctx, SubmitAttemptCommand{LearnerID: "u1", ProblemID: "p1", Output: "nope"})
	require.NoError(t, err)
	_, err = f.reveal.Handle(ctx, RevealSolutionCommand{LearnerID: "u1", ProblemID: "p1"})
	assert.NoError(t, err)

	_, err = f.reveal.Handle(ctx, RevealSolutionCommand{LearnerID: "u1", ProblemID: "missing"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSubmitAttempt_Idempotent(t *testing.T) {
	f := newFixture(t)
	putProblem(f, func(p *content.Problem) { p.StreakEligible = true })
	ctx := context.Background()

	cmd := SubmitAttemptCommand{LearnerID: "u1", ProblemID: "p1", Output: "[3, 2, 1]", SubmissionID: "sub-1"}
	first, err := f.submit.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.Equal(t, 10, first.XPAwarded)
	require.NotNil(t, first.Streak)
	assert.Equal(t, 1, first.Streak.Current)

	replay, err := f.submit.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, first.Attempt.ID, replay.Attempt.ID)
	assert.Equal(t, 10, replay.XPAwarded)

	rows, err := f.store.ListTime(ctx, "u1", "2024-06-12", "2024-06-12")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "replay credits no second activity")

	attempts, err := f.store.ListAttempts(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestSubmitAttempt_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	putProblem(f, func(p *content.Problem) { p.Published = false })
	_, err := f.submit.Handle(ctx, SubmitAttemptCommand{LearnerID: "u1", ProblemID: "p1", Output: "x"})
	assert.ErrorIs(t, err, shared.ErrProblemNotPublished)

	putProblem(f, func(p *content.Problem) { p.OutputType = "csv" })
	_, err = f.submit.Handle(ctx, SubmitAttemptCommand{LearnerID: "u1", ProblemID: "p1", Output: "x"})
	assert.ErrorIs(t, err, shared.ErrInvalidOutputType)

	putProblem(f, func(p *content.Problem) { p.ExpectedOutput = "" })
	_, err = f.submit.Handle(ctx, SubmitAttemptCommand{LearnerID: "u1", ProblemID: "p1", Output: "x"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	attempts, err := f.store.ListAttempts(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Empty(t, attempts, "rejected submissions are not recorded")
}

func TestIdempotencyKey(t *testing.T) {
	a := IdempotencyKey("u1", "p1", "s1")
	assert.Len(t, a, 64)
	assert.Equal(t, a, IdempotencyKey("u1", "p1", "s1"))
	assert.NotEqual(t, a, IdempotencyKey("u1", "p1s", "1"))
}
