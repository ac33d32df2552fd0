package progress

import (
	"context"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

// Repository is the event-store side of lesson progress and time tracking.
// Reads return empty slices, never NotFound, for learners without rows.
type Repository interface {
	// RecordCompletion upserts; idempotent on (learner, lesson).
	RecordCompletion(ctx context.Context, c LessonCompletion) error

	// DeleteCompletions removes all rows of (learner, course) and returns
	// how many were removed.
	DeleteCompletions(ctx context.Context, learnerID shared.LearnerID, courseID content.CourseID) (int, error)

	// ListCompletions returns the completed rows of (learner, course).
	ListCompletions(ctx context.Context, learnerID shared.LearnerID, courseID content.CourseID) ([]LessonCompletion, error)

	// ListAllCompletions returns every completed row of the learner.
	ListAllCompletions(ctx context.Context, learnerID shared.LearnerID) ([]LessonCompletion, error)

	// AppendTime never merges rows.
	AppendTime(ctx context.Context, r TimeRecord) error

	// ListTime returns rows with from <= day <= to, unsorted.
	ListTime(ctx context.Context, learnerID shared.LearnerID, from, to timeutil.DayKey) ([]DaySeconds, error)
}
