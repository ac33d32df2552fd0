package practice

import (
	"context"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/shared"
)

// Repository persists attempts and reveals. Attempts are append-only.
type Repository interface {
	// RecordAttempt appends a, assigning AttemptIndex. When a carries an
	// IdempotencyKey already stored, the stored attempt is returned with
	// created=false and nothing is written.
	RecordAttempt(ctx context.Context, a *Attempt) (stored *Attempt, created bool, err error)

	// FindAttemptByKey returns an error matching shared.ErrNotFound when
	// no attempt carries key.
	FindAttemptByKey(ctx context.Context, key string) (*Attempt, error)

	// ListAttempts returns attempts of (learner, problem) by AttemptIndex.
	ListAttempts(ctx context.Context, learnerID shared.LearnerID, problemID content.ProblemID) ([]Attempt, error)

	// RecordReveal stores r once. A second call returns the first reveal.
	RecordReveal(ctx context.Context, r *Reveal) (*Reveal, error)

	// GetReveal returns an error matching shared.ErrNotFound when the
	// learner never revealed the problem.
	GetReveal(ctx context.Context, learnerID shared.LearnerID, problemID content.ProblemID) (*Reveal, error)
}
