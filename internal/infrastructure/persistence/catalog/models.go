// Package catalog stores authored content (courses, lessons, career paths,
// skills, contributions and problems) with gorm on PostgreSQL or SQLite,
// and seeds it from YAML files.
package catalog

import (
	"time"

	"github.com/devpath/progression-engine/internal/domain/content"
)

// ══════════════════════════════════════════════════════════════════════════════
// TABLE MODELS
// ══════════════════════════════════════════════════════════════════════════════

type courseModel struct {
	ID            string        `gorm:"primaryKey"`
	Slug          string        `gorm:"uniqueIndex;not null"`
	Title         string        `gorm:"not null"`
	LearningHours *float64      `gorm:"column:learning_hours"`
	Lessons       []lessonModel `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`
	UpdatedAt     time.Time
}

func (courseModel) TableName() string { return "content_courses" }

type lessonModel struct {
	ID       string `gorm:"primaryKey"`
	CourseID string `gorm:"index;not null"`
	Title    string
	Position int
	Status   string `gorm:"not null;default:published"`
}

func (lessonModel) TableName() string { return "content_lessons" }

type careerModel struct {
	ID              string       `gorm:"primaryKey"`
	Slug            string       `gorm:"uniqueIndex;not null"`
	Name            string       `gorm:"not null"`
	RequiredCourses []string     `gorm:"serializer:json"`
	Skills          []skillModel `gorm:"foreignKey:CareerID;constraint:OnDelete:CASCADE"`
	UpdatedAt       time.Time
}

func (careerModel) TableName() string { return "content_careers" }

type skillModel struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	CareerID      string `gorm:"index;not null"`
	Position      int
	Name          string `gorm:"not null"`
	Weight        float64
	Icon          string
	Contributions []contributionModel `gorm:"foreignKey:SkillID;constraint:OnDelete:CASCADE"`
}

func (skillModel) TableName() string { return "content_career_skills" }

type contributionModel struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	SkillID      uint   `gorm:"index;not null"`
	CourseSlug   string `gorm:"not null"`
	Contribution float64
}

func (contributionModel) TableName() string { return "content_skill_contributions" }

type problemModel struct {
	ID                   string   `gorm:"primaryKey"`
	Kind                 string   `gorm:"not null;default:predict_output"`
	Title                string
	Published            bool
	ExpectedOutput       string
	AcceptedAlternatives []string `gorm:"serializer:json"`
	MatchMode            string
	OutputType           string
	RevealAllowed        bool
	RevealAfterAttempts  int
	RevealPenalty        string
	Explanation          string
	XPValue              int `gorm:"column:xp_value"`
	StreakEligible       bool
	Options              []content.Option `gorm:"serializer:json"`
	WrongOptionIDs       []string         `gorm:"serializer:json"`
	UpdatedAt            time.Time
}

func (problemModel) TableName() string { return "content_problems" }

func allModels() []any {
	return []any{
		&courseModel{}, &lessonModel{},
		&careerModel{}, &skillModel{}, &contributionModel{},
		&problemModel{},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Mapping
// ─────────────────────────────────────────────────────────────────────────────

func (m *courseModel) toDomain() *content.Course {
	c := &content.Course{
		ID:            content.CourseID(m.ID),
		Slug:          m.Slug,
		Title:         m.Title,
		LearningHours: m.LearningHours,
		Lessons:       make([]content.Lesson, 0, len(m.Lessons)),
	}
	for _, l := range m.Lessons {
		c.Lessons = append(c.Lessons, content.Lesson{
			ID:       content.LessonID(l.ID),
			CourseID: c.ID,
			Title:    l.Title,
			Position: l.Position,
			Status:   content.LessonStatus(l.Status),
		})
	}
	c.SortLessons()
	return c
}

func courseFromDomain(c *content.Course) courseModel {
	m := courseModel{
		ID:            string(c.ID),
		Slug:          c.Slug,
		Title:         c.Title,
		LearningHours: c.LearningHours,
	}
	for _, l := range c.Lessons {
		status := l.Status
		if status == "" {
			status = content.LessonPublished
		}
		m.Lessons = append(m.Lessons, lessonModel{
			ID:       string(l.ID),
			CourseID: string(c.ID),
			Title:    l.Title,
			Position: l.Position,
			Status:   string(status),
		})
	}
	return m
}

func (m *careerModel) toDomain() *content.CareerPath {
	c := &content.CareerPath{
		ID:              content.CareerID(m.ID),
		Slug:            m.Slug,
		Name:            m.Name,
		RequiredCourses: append([]string(nil), m.RequiredCourses...),
		Skills:          make([]content.CareerSkill, 0, len(m.Skills)),
	}
	for _, s := range m.Skills {
		skill := content.CareerSkill{Name: s.Name, Weight: s.Weight, Icon: s.Icon}
		for _, sc := range s.Contributions {
			skill.Contributions = append(skill.Contributions, content.SkillContribution{
				CourseSlug:   sc.CourseSlug,
				Contribution: sc.Contribution,
			})
		}
		c.Skills = append(c.Skills, skill)
	}
	return c
}

func careerFromDomain(c *content.CareerPath) careerModel {
	m := careerModel{
		ID:              string(c.ID),
		Slug:            c.Slug,
		Name:            c.Name,
		RequiredCourses: c.RequiredCourses,
	}
	for i, s := range c.Skills {
		sm := skillModel{CareerID: string(c.ID), Position: i, Name: s.Name, Weight: s.Weight, Icon: s.Icon}
		for _, sc := range s.Contributions {
			sm.Contributions = append(sm.Contributions, contributionModel{
				CourseSlug:   sc.CourseSlug,
				Contribution: sc.Contribution,
			})
		}
		m.Skills = append(m.Skills, sm)
	}
	return m
}

func (m *problemModel) toDomain() *content.Problem {
	return &content.Problem{
		ID:                   content.ProblemID(m.ID),
		Kind:                 content.ProblemKind(m.Kind),
		Title:                m.Title,
		Published:            m.Published,
		ExpectedOutput:       m.ExpectedOutput,
		AcceptedAlternatives: m.AcceptedAlternatives,
		MatchMode:            content.MatchMode(m.MatchMode),
		OutputType:           content.OutputType(m.OutputType),
		RevealAllowed:        m.RevealAllowed,
		RevealAfterAttempts:  m.RevealAfterAttempts,
		RevealPenalty:        content.RevealPenalty(m.RevealPenalty),
		Explanation:          m.Explanation,
		XPValue:              m.XPValue,
		StreakEligible:       m.StreakEligible,
		Options:              m.Options,
		WrongOptionIDs:       m.WrongOptionIDs,
	}
}

func problemFromDomain(p *content.Problem) problemModel {
	return problemModel{
		ID:                   string(p.ID),
		Kind:                 string(p.EffectiveKind()),
		Title:                p.Title,
		Published:            p.Published,
		ExpectedOutput:       p.ExpectedOutput,
		AcceptedAlternatives: p.AcceptedAlternatives,
		MatchMode:            string(p.MatchMode),
		OutputType:           string(p.OutputType),
		RevealAllowed:        p.RevealAllowed,
		RevealAfterAttempts:  p.RevealAfterAttempts,
		RevealPenalty:        string(p.RevealPenalty),
		Explanation:          p.Explanation,
		XPValue:              p.XPValue,
		StreakEligible:       p.StreakEligible,
		Options:              p.Options,
		WrongOptionIDs:       p.WrongOptionIDs,
	}
}
