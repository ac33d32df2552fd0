package catalog

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/shared"
)

const sampleContent = `
courses:
  - id: c-go
    slug: go-basics
    title: Go Basics
    learning_hours: 12
    lessons:
      - {id: go-1, title: Variables, position: 1}
      - {id: go-2, title: Loops, position: 2}
      - {id: go-3, title: Draft, position: 3, status: draft}
  - id: c-sql
    slug: sql-intro
    title: SQL Intro
    lessons:
      - {id: sql-1, title: Select}
careers:
  - id: backend
    slug: backend-dev
    name: Backend Developer
    required_courses: [go-basics, sql-intro]
    skills:
      - name: Go
        weight: 2
        icon: gopher
        contributions:
          - {course: go-basics, contribution: 80}
      - name: Databases
        weight: 1
        contributions:
          - {course: sql-intro, contribution: 100}
problems:
  - id: p-hello
    title: Hello
    published: true
    expected_output: hello
    accepted_alternatives: ["Hello"]
    match_mode: trim
    reveal_allowed: true
    reveal_after_attempts: 2
    reveal_penalty: half_xp
    explanation: prints hello
    xp: 10
    streak_eligible: true
  - id: p-pick
    kind: eliminate_wrong
    title: Pick
    published: true
    options:
      - {id: a, text: one}
      - {id: b, text: two}
    wrong_option_ids: [b]
`

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "catalog.db"),
		Silent: true,
	})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seededStore(t *testing.T) *Store {
	t.Helper()
	b, err := LoadYAML(strings.NewReader(sampleContent))
	require.NoError(t, err)
	s := openTestStore(t)
	require.NoError(t, s.Seed(context.Background(), b))
	return s
}

func TestLoadYAML(t *testing.T) {
	b, err := LoadYAML(strings.NewReader(sampleContent))
	require.NoError(t, err)
	require.NoError(t, b.Validate())

	require.Len(t, b.Courses, 2)
	sql := b.Courses[1]
	require.Len(t, sql.Lessons, 1)
	assert.Equal(t, 1, sql.Lessons[0].Position)
	assert.Equal(t, content.LessonPublished, sql.Lessons[0].Status)
	assert.Nil(t, sql.LearningHours)

	require.Len(t, b.Careers, 1)
	assert.Equal(t, 3.0, b.Careers[0].TotalWeight())

	assert.Equal(t, content.PenaltyHalfXP, b.Problems[0].RevealPenalty)
	assert.Equal(t, 10, b.Problems[0].XPValue)
}

func TestLoadYAML_RejectsUnknownFields(t *testing.T) {
	_, err := LoadYAML(strings.NewReader("courses:\n  - id: c1\n    slug: x\n    colour: red\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestLoadYAML_Empty(t *testing.T) {
	b, err := LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, b.Courses)
}

func TestBundle_Validate(t *testing.T) {
	b := &Bundle{
		Courses: []*content.Course{
			{ID: "c1", Slug: "a", Lessons: []content.Lesson{{ID: "l1"}}},
			{ID: "c2", Slug: "a", Lessons: []content.Lesson{{ID: "l1"}}},
		},
		Problems: []*content.Problem{{ID: "p1", OutputType: "xml"}},
	}
	err := b.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared twice")
	assert.Contains(t, err.Error(), "belongs to both")
	assert.ErrorIs(t, err, shared.ErrInvalidOutputType)
}

func TestStore_Reads(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)

	c, err := s.GetCourseBySlug(ctx, "go-basics")
	require.NoError(t, err)
	assert.Equal(t, content.CourseID("c-go"), c.ID)
	require.Len(t, c.Lessons, 3)
	assert.Equal(t, content.LessonID("go-1"), c.Lessons[0].ID)
	assert.Equal(t, 2, c.TotalLessons())
	require.NotNil(t, c.LearningHours)
	assert.Equal(t, 12.0, *c.LearningHours)

	courses, err := s.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "go-basics", courses[0].Slug)
	assert.Equal(t, "sql-intro", courses[1].Slug)

	career, err := s.GetCareer(ctx, "backend")
	require.NoError(t, err)
	assert.Equal(t, []string{"go-basics", "sql-intro"}, career.RequiredCourses)
	require.Len(t, career.Skills, 2)
	assert.Equal(t, "Go", career.Skills[0].Name)
	require.Len(t, career.Skills[0].Contributions, 1)
	assert.Equal(t, 80.0, career.Skills[0].Contributions[0].Contribution)

	p, err := s.GetProblem(ctx, "p-pick")
	require.NoError(t, err)
	assert.Equal(t, content.KindEliminateWrong, p.Kind)
	assert.Equal(t, []string{"b"}, p.WrongOptionIDs)
	require.Len(t, p.Options, 2)

	hello, err := s.GetProblem(ctx, "p-hello")
	require.NoError(t, err)
	assert.Equal(t, content.KindPredictOutput, hello.Kind)
	assert.Equal(t, []string{"Hello"}, hello.AcceptedAlternatives)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)

	_, err := s.GetCourse(ctx, "nope")
	assert.ErrorIs(t, err, shared.ErrCourseNotFound)
	_, err = s.GetCareer(ctx, "nope")
	assert.ErrorIs(t, err, shared.ErrCareerNotFound)
	_, err = s.GetProblem(ctx, "nope")
	assert.ErrorIs(t, err, shared.ErrProblemNotFound)
	assert.True(t, shared.IsNotFound(err))
}

func TestStore_ReseedReplacesChildren(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)

	updated := &Bundle{
		Courses: []*content.Course{{
			ID: "c-go", Slug: "go-basics", Title: "Go Basics v2",
			Lessons: []content.Lesson{{ID: "go-9", Title: "Only", Position: 1, Status: content.LessonPublished}},
		}},
		Careers: []*content.CareerPath{{
			ID: "backend", Slug: "backend-dev", Name: "Backend",
			Skills: []content.CareerSkill{{Name: "Go", Weight: 1}},
		}},
	}
	require.NoError(t, s.Seed(ctx, updated))

	c, err := s.GetCourse(ctx, "c-go")
	require.NoError(t, err)
	assert.Equal(t, "Go Basics v2", c.Title)
	require.Len(t, c.Lessons, 1)
	assert.Equal(t, content.LessonID("go-9"), c.Lessons[0].ID)

	career, err := s.GetCareer(ctx, "backend")
	require.NoError(t, err)
	require.Len(t, career.Skills, 1)
	assert.Empty(t, career.Skills[0].Contributions)

	// Untouched entities survive.
	_, err = s.GetCourse(ctx, "c-sql")
	assert.NoError(t, err)
}

func TestStore_SeedRejectsInvalidBundle(t *testing.T) {
	s := openTestStore(t)
	err := s.Seed(context.Background(), &Bundle{Courses: []*content.Course{{ID: "c1"}}})
	assert.True(t, shared.IsValidation(err))
}
