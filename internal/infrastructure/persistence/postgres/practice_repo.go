package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/practice"
	"github.com/devpath/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTEMPT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// PracticeRepository implements practice.Repository over problem_attempts
// and problem_reveals.
type PracticeRepository struct {
	conn *Connection
}

var _ practice.Repository = (*PracticeRepository)(nil)

// NewPracticeRepository creates a new PracticeRepository.
func NewPracticeRepository(conn *Connection) *PracticeRepository {
	return &PracticeRepository{conn: conn}
}

const attemptColumns = `
	id, learner_id, problem_id, attempt_index, kind, submitted_output,
	selected_options, match_mode, output_type, is_correct, score,
	xp_awarded, solution_viewed, COALESCE(idempotency_key, ''), submitted_at`

// RecordAttempt assigns the next attempt index under a transaction-scoped
// advisory lock on (learner, problem). A replayed idempotency key returns
// the stored attempt.
func (r *PracticeRepository) RecordAttempt(ctx context.Context, a *practice.Attempt) (*practice.Attempt, bool, error) {
	ctx, cancel := r.conn.bounded(ctx)
	defer cancel()

	var (
		stored  *practice.Attempt
		created bool
	)
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1 || chr(0) || $2))`,
			string(a.LearnerID), string(a.ProblemID)); err != nil {
			return err
		}

		if a.IdempotencyKey != "" {
			prev, err := scanAttempt(tx.QueryRow(ctx,
				`SELECT `+attemptColumns+` FROM problem_attempts WHERE idempotency_key = $1`, a.IdempotencyKey))
			if err == nil {
				stored = prev
				return nil
			}
			if !IsNoRows(err) {
				return err
			}
		}

		var next int
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(attempt_index), 0) + 1
			FROM problem_attempts WHERE learner_id = $1 AND problem_id = $2
		`, string(a.LearnerID), string(a.ProblemID)).Scan(&next); err != nil {
			return err
		}

		row := *a
		row.AttemptIndex = next
		if row.SelectedOptions == nil {
			row.SelectedOptions = []string{}
		}
		var key any
		if row.IdempotencyKey != "" {
			key = row.IdempotencyKey
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO problem_attempts (
				id, learner_id, problem_id, attempt_index, kind, submitted_output,
				selected_options, match_mode, output_type, is_correct, score,
				xp_awarded, solution_viewed, idempotency_key, submitted_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`,
			row.ID, string(row.LearnerID), string(row.ProblemID), row.AttemptIndex,
			string(row.Kind), row.SubmittedOutput, row.SelectedOptions,
			string(row.MatchMode), string(row.OutputType), row.IsCorrect, row.Score,
			row.XPAwarded, row.SolutionViewed, key, row.SubmittedAt,
		); err != nil {
			return err
		}
		stored, created = &row, true
		return nil
	})
	if err != nil && IsUniqueViolation(err) && a.IdempotencyKey != "" {
		// A concurrent insert won the key.
		prev, ferr := r.FindAttemptByKey(ctx, a.IdempotencyKey)
		return prev, false, ferr
	}
	if err != nil {
		return nil, false, mapError("RecordAttempt", err)
	}
	return stored, created, nil
}

// FindAttemptByKey looks an attempt up by idempotency key.
func (r *PracticeRepository) FindAttemptByKey(ctx context.Context, key string) (*practice.Attempt, error) {
	q, err := r.conn.querier()
	if err != nil {
		return nil, mapError("FindAttemptByKey", err)
	}
	ctx, cancel := r.conn.bounded(ctx)
	defer cancel()

	a, err := scanAttempt(q.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM problem_attempts WHERE idempotency_key = $1`, key))
	if IsNoRows(err) {
		return nil, shared.NotFound("practice", "FindAttemptByKey", "no attempt for key")
	}
	if err != nil {
		return nil, mapError("FindAttemptByKey", err)
	}
	return a, nil
}

// ListAttempts returns attempts of (learner, problem) by attempt index.
func (r *PracticeRepository) ListAttempts(ctx context.Context, learnerID shared.LearnerID, problemID content.ProblemID) ([]practice.Attempt, error) {
	q, err := r.conn.querier()
	if err != nil {
		return nil, mapError("ListAttempts", err)
	}
	ctx, cancel := r.conn.bounded(ctx)
	defer cancel()

	rows, err := q.Query(ctx, `
		SELECT `+attemptColumns+`
		FROM problem_attempts
		WHERE learner_id = $1 AND problem_id = $2
		ORDER BY attempt_index
	`, string(learnerID), string(problemID))
	if err != nil {
		return nil, mapError("ListAttempts", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (practice.Attempt, error) {
		a, err := scanAttempt(row)
		if err != nil {
			return practice.Attempt{}, err
		}
		return *a, nil
	})
	if err != nil {
		return nil, mapError("ListAttempts", err)
	}
	return out, nil
}

// RecordReveal inserts once; later calls read the first row back.
func (r *PracticeRepository) RecordReveal(ctx context.Context, rv *practice.Reveal) (*practice.Reveal, error) {
	q, err := r.conn.querier()
	if err != nil {
		return nil, mapError("RecordReveal", err)
	}
	ctx, cancel := r.conn.bounded(ctx)
	defer cancel()

	_, err = q.Exec(ctx, `
		INSERT INTO problem_reveals (id, learner_id, problem_id, attempts_before, revealed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (learner_id, problem_id) DO NOTHING
	`, rv.ID, string(rv.LearnerID), string(rv.ProblemID), rv.AttemptsBefore, rv.RevealedAt)
	if err != nil {
		return nil, mapError("RecordReveal", err)
	}
	return r.GetReveal(ctx, rv.LearnerID, rv.ProblemID)
}

// GetReveal returns the learner's reveal of a problem.
func (r *PracticeRepository) GetReveal(ctx context.Context, learnerID shared.LearnerID, problemID content.ProblemID) (*practice.Reveal, error) {
	q, err := r.conn.querier()
	if err != nil {
		return nil, mapError("GetReveal", err)
	}
	ctx, cancel := r.conn.bounded(ctx)
	defer cancel()

	var (
		rv               practice.Reveal
		learner, problem string
	)
	err = q.QueryRow(ctx, `
		SELECT id, learner_id, problem_id, attempts_before, revealed_at
		FROM problem_reveals WHERE learner_id = $1 AND problem_id = $2
	`, string(learnerID), string(problemID)).Scan(&rv.ID, &learner, &problem, &rv.AttemptsBefore, &rv.RevealedAt)
	if IsNoRows(err) {
		return nil, shared.NotFound("practice", "GetReveal", "no reveal")
	}
	if err != nil {
		return nil, mapError("GetReveal", err)
	}
	rv.LearnerID = shared.LearnerID(learner)
	rv.ProblemID = content.ProblemID(problem)
	return &rv, nil
}

func scanAttempt(row pgx.Row) (*practice.Attempt, error) {
	var (
		a                                     practice.Attempt
		learner, problem, kind, mode, outType string
	)
	err := row.Scan(
		&a.ID, &learner, &problem, &a.AttemptIndex, &kind, &a.SubmittedOutput,
		&a.SelectedOptions, &mode, &outType, &a.IsCorrect, &a.Score,
		&a.XPAwarded, &a.SolutionViewed, &a.IdempotencyKey, &a.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}
	a.LearnerID = shared.LearnerID(learner)
	a.ProblemID = content.ProblemID(problem)
	a.Kind = content.ProblemKind(kind)
	a.MatchMode = content.MatchMode(mode)
	a.OutputType = content.OutputType(outType)
	return &a, nil
}
