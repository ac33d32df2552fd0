package progress

import (
	"fmt"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/shared"
)

// ReadinessLevel is the qualitative bucket of a readiness percentage.
type ReadinessLevel string

const (
	LevelGettingStarted ReadinessLevel = "Getting Started"
	LevelBeginner       ReadinessLevel = "Beginner"
	LevelIntermediate   ReadinessLevel = "Intermediate"
	LevelJobReady       ReadinessLevel = "Job Ready"
)

// LevelFor maps a percentage to its level. Lower bounds are inclusive.
func LevelFor(pct int) ReadinessLevel {
	switch {
	case pct >= 80:
		return LevelJobReady
	case pct >= 50:
		return LevelIntermediate
	case pct >= 20:
		return LevelBeginner
	default:
		return LevelGettingStarted
	}
}

// CourseLookup resolves a course slug to the learner's progress in it.
// ok is false when the slug does not name a course.
type CourseLookup func(slug string) (p CourseProgress, ok bool)

// SkillValue is a projected skill.
type SkillValue struct {
	Name   string  `json:"name"`
	Icon   string  `json:"icon,omitempty"`
	Weight float64 `json:"weight"`
	Value  int     `json:"value"`
}

// ProjectSkill rolls course progress into a skill value in [0, 100].
// Contributions whose slug does not resolve are skipped with a warning.
func ProjectSkill(careerID content.CareerID, skill content.CareerSkill, lookup CourseLookup, warnings *shared.Warnings) int {
	var value float64
	for _, sc := range skill.Contributions {
		p, ok := lookup(sc.CourseSlug)
		if !ok {
			warnings.Add(unknownCourse(careerID, sc.CourseSlug))
			continue
		}
		value += p.Ratio() * sc.Contribution
	}
	return shared.ClampPercentage(value).Int()
}

// Readiness is the career readiness projection.
type Readiness struct {
	CareerID   content.CareerID `json:"career_id"`
	Percentage int              `json:"readiness_percentage"`
	Level      ReadinessLevel   `json:"readiness_level"`
	Skills     []SkillValue     `json:"skills"`
}

// ProjectReadiness computes the weighted mean of skill values. A career
// whose weights sum to zero yields 0 and a warning.
func ProjectReadiness(career *content.CareerPath, lookup CourseLookup, warnings *shared.Warnings) Readiness {
	out := Readiness{
		CareerID: career.ID,
		Skills:   make([]SkillValue, 0, len(career.Skills)),
	}

	var numerator, denominator float64
	for _, skill := range career.Skills {
		v := ProjectSkill(career.ID, skill, lookup, warnings)
		out.Skills = append(out.Skills, SkillValue{
			Name:   skill.Name,
			Icon:   skill.Icon,
			Weight: skill.Weight,
			Value:  v,
		})
		numerator += float64(v) * skill.Weight
		denominator += skill.Weight
	}

	if denominator > 0 {
		out.Percentage = shared.ClampPercentage(numerator / denominator).Int()
	} else {
		warnings.Add(shared.Warning{
			Code:    shared.WarnZeroSkillWeights,
			Subject: string(career.ID),
			Message: fmt.Sprintf("skill weights of career %s sum to zero", career.ID),
		})
	}
	out.Level = LevelFor(out.Percentage)
	return out
}

// RequiredSummary counts the career's required courses by learner state.
type RequiredSummary struct {
	Enrolled  int `json:"enrolled_in_career"`
	Completed int `json:"completed_in_career"`
	Total     int `json:"total_required"`

	// NotEnrolled lists required course ids the learner has not started,
	// in authored order.
	NotEnrolled []content.CourseID `json:"-"`
}

// SummarizeRequired walks the required course slugs of career.
func SummarizeRequired(career *content.CareerPath, lookup CourseLookup, warnings *shared.Warnings) RequiredSummary {
	var out RequiredSummary
	seen := make(map[string]bool, len(career.RequiredCourses))
	for _, slug := range career.RequiredCourses {
		if seen[slug] {
			continue
		}
		seen[slug] = true
		out.Total++

		p, ok := lookup(slug)
		if !ok {
			warnings.Add(unknownCourse(career.ID, slug))
			continue
		}
		if p.Started() {
			out.Enrolled++
		} else {
			out.NotEnrolled = append(out.NotEnrolled, p.CourseID)
		}
		if p.IsComplete {
			out.Completed++
		}
	}
	return out
}

func unknownCourse(careerID content.CareerID, slug string) shared.Warning {
	return shared.Warning{
		Code:    shared.WarnUnknownCourse,
		Subject: string(careerID) + "/" + slug,
		Message: fmt.Sprintf("career %s references unknown course %q", careerID, slug),
	}
}
