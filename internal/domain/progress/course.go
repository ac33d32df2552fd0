package progress

import (
	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/shared"
)

// CourseProgress is the per-learner, per-course projection.
type CourseProgress struct {
	CourseID   content.CourseID `json:"course_id"`
	CourseSlug string           `json:"course_slug"`

	// CompletedCount is the raw number of distinct completed lessons
	// recorded under this course. It can exceed TotalCount when lessons
	// moved between courses after completion.
	CompletedCount int  `json:"completed_count"`
	TotalCount     int  `json:"total_count"`
	IsComplete     bool `json:"is_complete"`
	Percentage     int  `json:"percentage"`

	// ResumeLessonID is the first published lesson, in course order, that
	// has no completion row. Empty when every published lesson is done.
	ResumeLessonID content.LessonID `json:"resume_lesson_id,omitempty"`
}

// Ratio is the completion ratio clamped to [0, 1]; zero for empty courses.
func (p CourseProgress) Ratio() float64 {
	return shared.Ratio(p.CompletedCount, p.TotalCount)
}

// Started reports whether the learner has at least one completion row.
func (p CourseProgress) Started() bool {
	return p.CompletedCount > 0
}

// InProgress reports started and not yet complete.
func (p CourseProgress) InProgress() bool {
	return p.Started() && !p.IsComplete
}

// ProjectCourse counts distinct completed lessons of course in completions.
// Rows belonging to other courses are ignored.
func ProjectCourse(course *content.Course, completions []LessonCompletion) CourseProgress {
	done := make(map[content.LessonID]bool, len(completions))
	for _, c := range completions {
		if c.CourseID == course.ID && c.Completed {
			done[c.LessonID] = true
		}
	}

	total := course.TotalLessons()
	completed := len(done)

	out := CourseProgress{
		CourseID:       course.ID,
		CourseSlug:     course.Slug,
		CompletedCount: completed,
		TotalCount:     total,
		IsComplete:     total > 0 && completed >= total,
	}
	if total > 0 {
		out.Percentage = shared.ClampPercentage(100 * shared.Ratio(completed, total)).Int()
	}
	for _, l := range course.PublishedLessons() {
		if !done[l.ID] {
			out.ResumeLessonID = l.ID
			break
		}
	}
	return out
}
