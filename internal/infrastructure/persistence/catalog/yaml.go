package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/devpath/progression-engine/internal/domain/content"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHORED CONTENT FILES
// ══════════════════════════════════════════════════════════════════════════════

// Bundle is a decoded content file.
type Bundle struct {
	Courses  []*content.Course
	Careers  []*content.CareerPath
	Problems []*content.Problem
}

// Validate checks every entity and cross-entity id uniqueness.
func (b *Bundle) Validate() error {
	var errs []error
	seenCourse := map[content.CourseID]bool{}
	seenSlug := map[string]bool{}
	seenLesson := map[content.LessonID]content.CourseID{}
	for _, c := range b.Courses {
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seenCourse[c.ID] || seenSlug[c.Slug] {
			errs = append(errs, fmt.Errorf("course %s (%s) declared twice", c.ID, c.Slug))
		}
		seenCourse[c.ID], seenSlug[c.Slug] = true, true
		for _, l := range c.Lessons {
			if owner, ok := seenLesson[l.ID]; ok && owner != c.ID {
				errs = append(errs, fmt.Errorf("lesson %s belongs to both %s and %s", l.ID, owner, c.ID))
			}
			seenLesson[l.ID] = c.ID
		}
	}
	for _, c := range b.Careers {
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range b.Problems {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type fileDoc struct {
	Courses  []courseDoc  `yaml:"courses"`
	Careers  []careerDoc  `yaml:"careers"`
	Problems []problemDoc `yaml:"problems"`
}

type lessonDoc struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Position int    `yaml:"position"`
	Status   string `yaml:"status"`
}

type courseDoc struct {
	ID            string      `yaml:"id"`
	Slug          string      `yaml:"slug"`
	Title         string      `yaml:"title"`
	LearningHours *float64    `yaml:"learning_hours"`
	Lessons       []lessonDoc `yaml:"lessons"`
}

type contributionDoc struct {
	Course       string  `yaml:"course"`
	Contribution float64 `yaml:"contribution"`
}

type skillDoc struct {
	Name          string            `yaml:"name"`
	Weight        float64           `yaml:"weight"`
	Icon          string            `yaml:"icon"`
	Contributions []contributionDoc `yaml:"contributions"`
}

type careerDoc struct {
	ID              string     `yaml:"id"`
	Slug            string     `yaml:"slug"`
	Name            string     `yaml:"name"`
	RequiredCourses []string   `yaml:"required_courses"`
	Skills          []skillDoc `yaml:"skills"`
}

type optionDoc struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
}

type problemDoc struct {
	ID                   string      `yaml:"id"`
	Kind                 string      `yaml:"kind"`
	Title                string      `yaml:"title"`
	Published            bool        `yaml:"published"`
	ExpectedOutput       string      `yaml:"expected_output"`
	AcceptedAlternatives []string    `yaml:"accepted_alternatives"`
	MatchMode            string      `yaml:"match_mode"`
	OutputType           string      `yaml:"output_type"`
	RevealAllowed        bool        `yaml:"reveal_allowed"`
	RevealAfterAttempts  int         `yaml:"reveal_after_attempts"`
	RevealPenalty        string      `yaml:"reveal_penalty"`
	Explanation          string      `yaml:"explanation"`
	XP                   int         `yaml:"xp"`
	StreakEligible       bool        `yaml:"streak_eligible"`
	Options              []optionDoc `yaml:"options"`
	WrongOptionIDs       []string    `yaml:"wrong_option_ids"`
}

// LoadYAML decodes one content document. Unknown keys are rejected.
func LoadYAML(r io.Reader) (*Bundle, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc fileDoc
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("catalog: invalid content file: %w", err)
	}
	return doc.bundle(), nil
}

// LoadYAMLFile reads and decodes path.
func LoadYAMLFile(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadYAML(f)
}

func (d fileDoc) bundle() *Bundle {
	b := &Bundle{}
	for _, c := range d.Courses {
		course := &content.Course{
			ID:            content.CourseID(c.ID),
			Slug:          c.Slug,
			Title:         c.Title,
			LearningHours: c.LearningHours,
		}
		for i, l := range c.Lessons {
			pos := l.Position
			if pos == 0 {
				pos = i + 1
			}
			status := content.LessonStatus(l.Status)
			if status == "" {
				status = content.LessonPublished
			}
			course.Lessons = append(course.Lessons, content.Lesson{
				ID:       content.LessonID(l.ID),
				CourseID: course.ID,
				Title:    l.Title,
				Position: pos,
				Status:   status,
			})
		}
		course.SortLessons()
		b.Courses = append(b.Courses, course)
	}

	for _, c := range d.Careers {
		career := &content.CareerPath{
			ID:              content.CareerID(c.ID),
			Slug:            c.Slug,
			Name:            c.Name,
			RequiredCourses: c.RequiredCourses,
		}
		for _, s := range c.Skills {
			skill := content.CareerSkill{Name: s.Name, Weight: s.Weight, Icon: s.Icon}
			for _, sc := range s.Contributions {
				skill.Contributions = append(skill.Contributions, content.SkillContribution{
					CourseSlug:   sc.Course,
					Contribution: sc.Contribution,
				})
			}
			career.Skills = append(career.Skills, skill)
		}
		b.Careers = append(b.Careers, career)
	}

	for _, p := range d.Problems {
		problem := &content.Problem{
			ID:                   content.ProblemID(p.ID),
			Kind:                 content.ProblemKind(p.Kind),
			Title:                p.Title,
			Published:            p.Published,
			ExpectedOutput:       p.ExpectedOutput,
			AcceptedAlternatives: p.AcceptedAlternatives,
			MatchMode:            content.MatchMode(p.MatchMode),
			OutputType:           content.OutputType(p.OutputType),
			RevealAllowed:        p.RevealAllowed,
			RevealAfterAttempts:  p.RevealAfterAttempts,
			RevealPenalty:        content.RevealPenalty(p.RevealPenalty),
			Explanation:          p.Explanation,
			XPValue:              p.XP,
			StreakEligible:       p.StreakEligible,
			WrongOptionIDs:       p.WrongOptionIDs,
		}
		for _, o := range p.Options {
			problem.Options = append(problem.Options, content.Option{ID: o.ID, Text: o.Text})
		}
		b.Problems = append(b.Problems, problem)
	}
	return b
}
