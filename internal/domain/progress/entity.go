// Package progress contains lesson completions, time tracking records and
// the projectors that derive course progress, skill proficiency, career
// readiness and weekly activity from them.
// Projectors are pure functions of their inputs.
package progress

import (
	"time"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

// LessonCompletion is unique per (learner, lesson). CourseID is denormalized
// from the lesson at write time.
type LessonCompletion struct {
	LearnerID shared.LearnerID
	LessonID  content.LessonID
	CourseID  content.CourseID
	Completed bool
	UpdatedAt time.Time
}

// Validate checks required keys.
func (c LessonCompletion) Validate() error {
	if !c.LearnerID.IsValid() {
		return shared.ErrInvalidLearnerID
	}
	if c.LessonID == "" || c.CourseID == "" {
		return shared.Invalid("progress", "RecordCompletion", "lesson and course ids are required")
	}
	return nil
}

// TimeRecord is one append-only slice of tracked learning time.
// Several records per day are allowed and always summed.
type TimeRecord struct {
	LearnerID       shared.LearnerID
	Day             timeutil.DayKey
	LessonID        content.LessonID // optional
	DurationSeconds int64
	CreatedAt       time.Time
}

// Validate rejects negative durations and malformed days.
func (r TimeRecord) Validate() error {
	if !r.LearnerID.IsValid() {
		return shared.ErrInvalidLearnerID
	}
	if _, err := timeutil.ParseDayKey(string(r.Day)); err != nil {
		return shared.WrapError("progress", "AppendTime", shared.ErrInvalidInput, "bad tracked day", err)
	}
	if r.DurationSeconds < 0 {
		return shared.Invalid("progress", "AppendTime", "duration cannot be negative")
	}
	return nil
}

// DaySeconds is a (day, seconds) row as returned by the gateway. Rows are
// unsorted and may repeat a day.
type DaySeconds struct {
	Day     timeutil.DayKey
	Seconds int64
}

// SumByDay folds rows into per-day totals.
func SumByDay(rows []DaySeconds) map[timeutil.DayKey]int64 {
	out := make(map[timeutil.DayKey]int64, len(rows))
	for _, r := range rows {
		out[r.Day] += r.Seconds
	}
	return out
}
