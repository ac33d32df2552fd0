// Package content holds the authored catalog the engine reads: courses,
// lessons, career paths with their skills, and practice problems.
// Authored content is owned elsewhere and is read-only to the engine.
package content

import (
	"fmt"
	"sort"
	"strings"

	"github.com/devpath/progression-engine/internal/domain/shared"
)

// CourseID identifies a course.
type CourseID string

// LessonID identifies a lesson.
type LessonID string

// CareerID identifies a career path.
type CareerID string

// ProblemID identifies a practice problem.
type ProblemID string

func (c CourseID) String() string  { return string(c) }
func (l LessonID) String() string  { return string(l) }
func (c CareerID) String() string  { return string(c) }
func (p ProblemID) String() string { return string(p) }

// LessonStatus is the publication status of a lesson.
type LessonStatus string

const (
	LessonPublished LessonStatus = "published"
	LessonDraft     LessonStatus = "draft"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSES AND LESSONS
// ══════════════════════════════════════════════════════════════════════════════

// Lesson belongs to exactly one course.
type Lesson struct {
	ID       LessonID
	CourseID CourseID
	Title    string
	Position int
	Status   LessonStatus
}

// IsPublished reports whether the lesson counts toward course totals.
func (l Lesson) IsPublished() bool {
	return l.Status == LessonPublished
}

// Course is an ordered set of lessons.
type Course struct {
	ID    CourseID
	Slug  string
	Title string

	// LearningHours is the declared effort, nil when the author left it out.
	LearningHours *float64

	// Lessons are kept sorted by Position.
	Lessons []Lesson
}

// SortLessons orders lessons by position, then id for stability.
func (c *Course) SortLessons() {
	sort.SliceStable(c.Lessons, func(i, j int) bool {
		if c.Lessons[i].Position != c.Lessons[j].Position {
			return c.Lessons[i].Position < c.Lessons[j].Position
		}
		return c.Lessons[i].ID < c.Lessons[j].ID
	})
}

// PublishedLessons returns published lessons in course order.
func (c *Course) PublishedLessons() []Lesson {
	out := make([]Lesson, 0, len(c.Lessons))
	for _, l := range c.Lessons {
		if l.IsPublished() {
			out = append(out, l)
		}
	}
	return out
}

// TotalLessons is the published lesson count.
func (c *Course) TotalLessons() int {
	n := 0
	for _, l := range c.Lessons {
		if l.IsPublished() {
			n++
		}
	}
	return n
}

// HasLesson reports whether id belongs to this course.
func (c *Course) HasLesson(id LessonID) bool {
	for _, l := range c.Lessons {
		if l.ID == id {
			return true
		}
	}
	return false
}

// Validate checks the authored course shape.
func (c *Course) Validate() error {
	if c.ID == "" {
		return shared.Invalid("content", "ValidateCourse", "course id is required")
	}
	if strings.TrimSpace(c.Slug) == "" {
		return shared.Invalid("content", "ValidateCourse", "course %s has no slug", c.ID)
	}
	if c.LearningHours != nil && *c.LearningHours < 0 {
		return shared.Invalid("content", "ValidateCourse", "course %s has negative learning hours", c.ID)
	}
	seen := make(map[LessonID]bool, len(c.Lessons))
	for _, l := range c.Lessons {
		if l.ID == "" {
			return shared.Invalid("content", "ValidateCourse", "course %s has a lesson without id", c.ID)
		}
		if seen[l.ID] {
			return shared.Invalid("content", "ValidateCourse", "course %s lists lesson %s twice", c.ID, l.ID)
		}
		seen[l.ID] = true
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CAREER PATHS
// ══════════════════════════════════════════════════════════════════════════════

// SkillContribution: completing CourseSlug in full adds Contribution points
// to the owning skill.
type SkillContribution struct {
	CourseSlug   string
	Contribution float64
}

// CareerSkill is a weighted skill of a career path.
type CareerSkill struct {
	Name          string
	Weight        float64
	Icon          string
	Contributions []SkillContribution
}

// CareerPath is a target role with required courses and weighted skills.
type CareerPath struct {
	ID              CareerID
	Slug            string
	Name            string
	RequiredCourses []string // course slugs, in authored order
	Skills          []CareerSkill
}

// TotalWeight sums skill weights.
func (c *CareerPath) TotalWeight() float64 {
	var sum float64
	for _, s := range c.Skills {
		sum += s.Weight
	}
	return sum
}

// ContributingSlugs returns every course slug referenced by a contribution
// or by the required list, deduplicated, in first-seen order.
func (c *CareerPath) ContributingSlugs() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(slug string) {
		if slug == "" || seen[slug] {
			return
		}
		seen[slug] = true
		out = append(out, slug)
	}
	for _, slug := range c.RequiredCourses {
		add(slug)
	}
	for _, s := range c.Skills {
		for _, sc := range s.Contributions {
			add(sc.CourseSlug)
		}
	}
	return out
}

// Validate checks weights and contribution ranges.
func (c *CareerPath) Validate() error {
	if c.ID == "" {
		return shared.Invalid("content", "ValidateCareer", "career id is required")
	}
	names := make(map[string]bool, len(c.Skills))
	for _, s := range c.Skills {
		if s.Name == "" {
			return shared.Invalid("content", "ValidateCareer", "career %s has an unnamed skill", c.ID)
		}
		if names[s.Name] {
			return shared.Invalid("content", "ValidateCareer", "career %s lists skill %q twice", c.ID, s.Name)
		}
		names[s.Name] = true
		if s.Weight < 0 {
			return shared.Invalid("content", "ValidateCareer", "skill %q has negative weight", s.Name)
		}
		for _, sc := range s.Contributions {
			if sc.Contribution < 0 || sc.Contribution > 100 {
				return shared.Invalid("content", "ValidateCareer",
					"skill %q contribution for %s must be within [0, 100], got %v", s.Name, sc.CourseSlug, sc.Contribution)
			}
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROBLEMS
// ══════════════════════════════════════════════════════════════════════════════

// ProblemKind selects the evaluation strategy.
type ProblemKind string

const (
	KindPredictOutput  ProblemKind = "predict_output"
	KindFixError       ProblemKind = "fix_error"
	KindEliminateWrong ProblemKind = "eliminate_wrong"
)

// MatchMode controls output normalization before comparison.
type MatchMode string

const (
	MatchStrict     MatchMode = "strict"
	MatchTrim       MatchMode = "trim"
	MatchNormalized MatchMode = "normalized"
)

// OutputType is the shape of the expected output.
type OutputType string

const (
	OutputText OutputType = "text"
	OutputJSON OutputType = "json"
)

// RevealPenalty applies to the first correct attempt after a reveal.
type RevealPenalty string

const (
	PenaltyNoXP           RevealPenalty = "no_xp"
	PenaltyHalfXP         RevealPenalty = "half_xp"
	PenaltyViewedSolution RevealPenalty = "viewed_solution"
)

// Option is a selectable choice of an eliminate-wrong problem.
type Option struct {
	ID   string
	Text string
}

// Problem is an authored practice problem.
type Problem struct {
	ID        ProblemID
	Kind      ProblemKind
	Title     string
	Published bool

	ExpectedOutput       string
	AcceptedAlternatives []string
	MatchMode            MatchMode
	OutputType           OutputType

	RevealAllowed       bool
	RevealAfterAttempts int
	RevealPenalty       RevealPenalty
	Explanation         string

	XPValue        int
	StreakEligible bool

	// Eliminate-wrong only.
	Options        []Option
	WrongOptionIDs []string
}

// EffectiveMatchMode defaults an unset mode to strict.
func (p *Problem) EffectiveMatchMode() MatchMode {
	if p.MatchMode == "" {
		return MatchStrict
	}
	return p.MatchMode
}

// EffectiveOutputType defaults an unset type to text.
func (p *Problem) EffectiveOutputType() OutputType {
	if p.OutputType == "" {
		return OutputText
	}
	return p.OutputType
}

// EffectiveKind defaults an unset kind to predict_output.
func (p *Problem) EffectiveKind() ProblemKind {
	if p.Kind == "" {
		return KindPredictOutput
	}
	return p.Kind
}

// Validate checks enum values and option references.
func (p *Problem) Validate() error {
	const op = "ValidateProblem"
	if p.ID == "" {
		return shared.Invalid("content", op, "problem id is required")
	}
	switch p.EffectiveKind() {
	case KindPredictOutput, KindFixError, KindEliminateWrong:
	default:
		return shared.Invalid("content", op, "problem %s has unknown kind %q", p.ID, p.Kind)
	}
	switch p.EffectiveMatchMode() {
	case MatchStrict, MatchTrim, MatchNormalized:
	default:
		return shared.Invalid("content", op, "problem %s has unknown match mode %q", p.ID, p.MatchMode)
	}
	switch p.EffectiveOutputType() {
	case OutputText, OutputJSON:
	default:
		return shared.WrapError("content", op, shared.ErrInvalidOutputType,
			fmt.Sprintf("problem %s has output type %q", p.ID, p.OutputType), nil)
	}
	switch p.RevealPenalty {
	case "", PenaltyNoXP, PenaltyHalfXP, PenaltyViewedSolution:
	default:
		return shared.Invalid("content", op, "problem %s has unknown reveal penalty %q", p.ID, p.RevealPenalty)
	}
	if p.XPValue < 0 {
		return shared.Invalid("content", op, "problem %s has negative xp", p.ID)
	}
	if p.RevealAfterAttempts < 0 {
		return shared.Invalid("content", op, "problem %s has negative reveal_after_attempts", p.ID)
	}
	if p.EffectiveKind() == KindEliminateWrong {
		ids := make(map[string]bool, len(p.Options))
		for _, o := range p.Options {
			ids[o.ID] = true
		}
		for _, w := range p.WrongOptionIDs {
			if !ids[w] {
				return shared.Invalid("content", op, "problem %s marks unknown option %q as wrong", p.ID, w)
			}
		}
	}
	return nil
}
