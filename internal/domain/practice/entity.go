// Package practice evaluates problem attempts: output normalization and
// matching, elimination scoring, XP rules and the reveal policy.
package practice

import (
	"time"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/shared"
)

// MaxSubmissionBytes bounds a submitted output.
const MaxSubmissionBytes = 64 << 10

// Submission is the learner input to evaluate.
type Submission struct {
	LearnerID shared.LearnerID
	ProblemID content.ProblemID
	Output    string

	// SelectedOptions are the option ids eliminated by the learner
	// (eliminate-wrong problems only).
	SelectedOptions []string

	// SubmissionID is an optional caller key that makes the submit
	// idempotent under retries.
	SubmissionID string
}

// Validate checks the shape of the submission.
func (s Submission) Validate() error {
	if !s.LearnerID.IsValid() {
		return shared.ErrInvalidLearnerID
	}
	if s.ProblemID == "" {
		return shared.Invalid("practice", "Submit", "problem id is required")
	}
	if len(s.Output) > MaxSubmissionBytes {
		return shared.ErrSubmissionTooLarge
	}
	return nil
}

// Attempt is an immutable record of one evaluated submission.
type Attempt struct {
	ID           string
	LearnerID    shared.LearnerID
	ProblemID    content.ProblemID
	AttemptIndex int // 1-based, assigned by the repository

	Kind            content.ProblemKind
	SubmittedOutput string
	SelectedOptions []string
	MatchMode       content.MatchMode
	OutputType      content.OutputType

	IsCorrect      bool
	Score          int
	XPAwarded      int
	SolutionViewed bool

	// IdempotencyKey is empty when the caller gave no submission id.
	IdempotencyKey string
	SubmittedAt    time.Time
}

// Reveal records that the learner asked for the answer. At most one per
// (learner, problem).
type Reveal struct {
	ID             string
	LearnerID      shared.LearnerID
	ProblemID      content.ProblemID
	AttemptsBefore int
	RevealedAt     time.Time
}
