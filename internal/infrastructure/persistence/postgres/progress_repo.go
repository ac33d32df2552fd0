package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/progress"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository over lesson_progress
// and lesson_time_tracking.
type ProgressRepository struct {
	conn *Connection
}

var _ progress.Repository = (*ProgressRepository)(nil)

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// RecordCompletion upserts on (learner_id, lesson_id).
func (r *ProgressRepository) RecordCompletion(ctx context.Context, c progress.LessonCompletion) error {
	q, err := r.conn.querier()
	if err != nil {
		return mapError("RecordCompletion", err)
	}
	ctx, cancel := r.conn.bounded(ctx)
	defer cancel()

	_, err = q.Exec(ctx, `
		INSERT INTO lesson_progress (learner_id, lesson_id, course_id, completed, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (learner_id, lesson_id) DO UPDATE SET
			course_id = EXCLUDED.course_id,
			completed = EXCLUDED.completed,
			updated_at = EXCLUDED.updated_at
	`, string(c.LearnerID), string(c.LessonID), string(c.CourseID), c.Completed, c.UpdatedAt)
	return mapError("RecordCompletion", err)
}

// DeleteCompletions removes every row of (learner, course).
func (r *ProgressRepository) DeleteCompletions(ctx context.Context, learnerID shared.LearnerID, courseID content.CourseID) (int, error) {
	q, err := r.conn.querier()
	if err != nil {
		return 0, mapError("DeleteCompletions", err)
	}
	ctx, cancel := r.conn.bounded(ctx)
	defer cancel()

	tag, err := q.Exec(ctx,
		`DELETE FROM lesson_progress WHERE learner_id = $1 AND course_id = $2`,
		string(learnerID), string(courseID))
	if err != nil {
		return 0, mapError("DeleteCompletions", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListCompletions returns completed rows of (learner, course).
func (r *ProgressRepository) ListCompletions(ctx context.Context, learnerID shared.LearnerID, courseID content.CourseID) ([]progress.LessonCompletion, error) {
	return r.listCompletions(ctx, "ListCompletions", `
		SELECT learner_id, lesson_id, course_id, completed, updated_at
		FROM lesson_progress
		WHERE learner_id = $1 AND course_id = $2 AND completed
		ORDER BY lesson_id
	`, string(learnerID), string(courseID))
}

// ListAllCompletions returns completed rows across all courses.
func (r *ProgressRepository) ListAllCompletions(ctx context.Context, learnerID shared.LearnerID) ([]progress.LessonCompletion, error) {
	return r.listCompletions(ctx, "ListAllCompletions", `
		SELECT learner_id, lesson_id, course_id, completed, updated_at
		FROM lesson_progress
		WHERE learner_id = $1 AND completed
		ORDER BY lesson_id
	`, string(learnerID))
}

func (r *ProgressRepository) listCompletions(ctx context.Context, op, sql string, args ...any) ([]progress.LessonCompletion, error) {
	q, err := r.conn.querier()
	if err != nil {
		return nil, mapError(op, err)
	}
	ctx, cancel := r.conn.bounded(ctx)
	defer cancel()

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (progress.LessonCompletion, error) {
		var c progress.LessonCompletion
		var learnerID, lessonID, courseID string
		err := row.Scan(&learnerID, &lessonID, &courseID, &c.Completed, &c.UpdatedAt)
		c.LearnerID = shared.LearnerID(learnerID)
		c.LessonID = content.LessonID(lessonID)
		c.CourseID = content.CourseID(courseID)
		return c, err
	})
	if err != nil {
		return nil, mapError(op, err)
	}
	return out, nil
}

// AppendTime inserts one tracking row.
func (r *ProgressRepository) AppendTime(ctx context.Context, rec progress.TimeRecord) error {
	q, err := r.conn.querier()
	if err != nil {
		return mapError("AppendTime", err)
	}
	ctx, cancel := r.conn.bounded(ctx)
	defer cancel()

	_, err = q.Exec(ctx, `
		INSERT INTO lesson_time_tracking (learner_id, lesson_id, date, duration_seconds, created_at)
		VALUES ($1, $2, $3::text::date, $4, $5)
	`, string(rec.LearnerID), string(rec.LessonID), rec.Day.String(), rec.DurationSeconds, rec.CreatedAt)
	return mapError("AppendTime", err)
}

// ListTime returns per-row seconds with from <= date <= to.
func (r *ProgressRepository) ListTime(ctx context.Context, learnerID shared.LearnerID, from, to timeutil.DayKey) ([]progress.DaySeconds, error) {
	q, err := r.conn.querier()
	if err != nil {
		return nil, mapError("ListTime", err)
	}
	ctx, cancel := r.conn.bounded(ctx)
	defer cancel()

	rows, err := q.Query(ctx, `
		SELECT date::text, duration_seconds
		FROM lesson_time_tracking
		WHERE learner_id = $1 AND date BETWEEN $2::text::date AND $3::text::date
	`, string(learnerID), from.String(), to.String())
	if err != nil {
		return nil, mapError("ListTime", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (progress.DaySeconds, error) {
		var d progress.DaySeconds
		var day string
		err := row.Scan(&day, &d.Seconds)
		d.Day = timeutil.DayKey(day)
		return d, err
	})
	if err != nil {
		return nil, mapError("ListTime", err)
	}
	return out, nil
}
