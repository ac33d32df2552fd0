package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpath/progression-engine/internal/domain/shared"
)

func TestCourse_LessonsAndValidate(t *testing.T) {
	c := &Course{
		ID:   "c1",
		Slug: "go-basics",
		Lessons: []Lesson{
			{ID: "l3", Position: 3, Status: LessonPublished},
			{ID: "l1", Position: 1, Status: LessonPublished},
			{ID: "l2", Position: 2, Status: LessonDraft},
		},
	}
	require.NoError(t, c.Validate())

	c.SortLessons()
	assert.Equal(t, LessonID("l1"), c.Lessons[0].ID)
	assert.Equal(t, 2, c.TotalLessons())
	assert.Len(t, c.PublishedLessons(), 2)
	assert.True(t, c.HasLesson("l2"))

	c.Lessons = append(c.Lessons, Lesson{ID: "l1"})
	assert.ErrorIs(t, c.Validate(), shared.ErrInvalidInput)
}

func TestCareer_ValidateAndSlugs(t *testing.T) {
	career := &CareerPath{
		ID:              "backend",
		RequiredCourses: []string{"go", "sql"},
		Skills: []CareerSkill{
			{Name: "Go", Weight: 2, Contributions: []SkillContribution{{CourseSlug: "go", Contribution: 100}}},
			{Name: "Data", Weight: 1, Contributions: []SkillContribution{{CourseSlug: "sql", Contribution: 60}, {CourseSlug: "redis", Contribution: 40}}},
		},
	}
	require.NoError(t, career.Validate())
	assert.Equal(t, 3.0, career.TotalWeight())
	assert.Equal(t, []string{"go", "sql", "redis"}, career.ContributingSlugs())

	career.Skills[1].Contributions[0].Contribution = 120
	assert.ErrorIs(t, career.Validate(), shared.ErrInvalidInput)

	career.Skills[1].Contributions[0].Contribution = 60
	career.Skills[0].Weight = -1
	assert.ErrorIs(t, career.Validate(), shared.ErrInvalidInput)
}

func TestProblem_Validate(t *testing.T) {
	p := &Problem{ID: "p1", Published: true, ExpectedOutput: "1"}
	require.NoError(t, p.Validate())
	assert.Equal(t, MatchStrict, p.EffectiveMatchMode())
	assert.Equal(t, OutputText, p.EffectiveOutputType())
	assert.Equal(t, KindPredictOutput, p.EffectiveKind())

	p.OutputType = "yaml"
	assert.ErrorIs(t, p.Validate(), shared.ErrInvalidOutputType)

	p.OutputType = OutputJSON
	p.Kind = KindEliminateWrong
	p.Options = []Option{{ID: "a"}}
	p.WrongOptionIDs = []string{"b"}
	assert.ErrorIs(t, p.Validate(), shared.ErrInvalidInput)
}

func TestCourseIndex(t *testing.T) {
	idx := NewCourseIndex([]*Course{{ID: "c1", Slug: "go"}})
	c, ok := idx.BySlug("go")
	require.True(t, ok)
	assert.Equal(t, CourseID("c1"), c.ID)
	_, ok = idx.ByID("c2")
	assert.False(t, ok)
}
