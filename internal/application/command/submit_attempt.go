package command

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/practice"
	"github.com/devpath/progression-engine/internal/domain/progress"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT ATTEMPT COMMAND
// Evaluates a practice submission, decides XP and records the attempt.
// Streak-eligible problems also count as a day of activity.
// ══════════════════════════════════════════════════════════════════════════════

// StreakActivitySeconds is the time credited for a streak-eligible attempt.
const StreakActivitySeconds = 1

// SubmitAttemptCommand contains a learner submission.
type SubmitAttemptCommand struct {
	LearnerID       string
	ProblemID       string
	Output          string
	SelectedOptions []string

	// SubmissionID is optional. Retrying with the same id returns the
	// first stored attempt and grants nothing twice.
	SubmissionID string
}

func (c SubmitAttemptCommand) submission() practice.Submission {
	return practice.Submission{
		LearnerID:       shared.LearnerID(c.LearnerID),
		ProblemID:       content.ProblemID(c.ProblemID),
		Output:          c.Output,
		SelectedOptions: c.SelectedOptions,
		SubmissionID:    c.SubmissionID,
	}
}

// Validate validates the command.
func (c SubmitAttemptCommand) Validate() error {
	return c.submission().Validate()
}

// SubmitAttemptResult contains the evaluated attempt.
type SubmitAttemptResult struct {
	Attempt        *practice.Attempt
	Correct        bool
	Score          int
	XPAwarded      int
	SolutionViewed bool

	// Replayed is true when the submission id was seen before.
	Replayed bool

	Warnings []shared.Warning

	// Streak is set when the attempt counted as activity.
	Streak *StreakView
}

// SubmitAttemptHandler handles SubmitAttemptCommand.
type SubmitAttemptHandler struct {
	catalog   content.Catalog
	attempts  practice.Repository
	progress  progress.Repository
	recompute *RecomputeStreakHandler
	env       Env
}

// NewSubmitAttemptHandler creates a new SubmitAttemptHandler.
func NewSubmitAttemptHandler(
	catalog content.Catalog,
	attempts practice.Repository,
	progressRepo progress.Repository,
	recompute *RecomputeStreakHandler,
	env Env,
) *SubmitAttemptHandler {
	return &SubmitAttemptHandler{
		catalog:   catalog,
		attempts:  attempts,
		progress:  progressRepo,
		recompute: recompute,
		env:       env,
	}
}

// Handle executes the submit attempt command.
func (h *SubmitAttemptHandler) Handle(ctx context.Context, cmd SubmitAttemptCommand) (*SubmitAttemptResult, error) {
	log := h.env.log("SubmitAttempt").With(logger.LearnerID(cmd.LearnerID), logger.ProblemID(cmd.ProblemID))

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("submit_attempt: validation failed: %w", err)
	}
	sub := cmd.submission()

	key := ""
	if cmd.SubmissionID != "" {
		key = IdempotencyKey(cmd.LearnerID, cmd.ProblemID, cmd.SubmissionID)
		prev, err := h.attempts.FindAttemptByKey(ctx, key)
		switch {
		case err == nil:
			return replayed(prev), nil
		case !shared.IsNotFound(err):
			logFailure(ctx, log, "idempotency lookup failed", err)
			return nil, fmt.Errorf("submit_attempt: %w", err)
		}
	}

	problem, err := h.catalog.GetProblem(ctx, sub.ProblemID)
	if err != nil {
		logFailure(ctx, log, "problem lookup failed", err)
		return nil, fmt.Errorf("submit_attempt: %w", err)
	}

	warnings := shared.NewWarnings()
	eval, err := practice.Evaluate(problem, sub, warnings)
	if err != nil {
		for _, w := range warnings.List() {
			log.Warn("authoring inconsistency", logger.String("code", string(w.Code)), logger.String("subject", w.Subject))
		}
		logFailure(ctx, log, "evaluation failed", err)
		return nil, fmt.Errorf("submit_attempt: %w", err)
	}

	prior, err := h.attempts.ListAttempts(ctx, sub.LearnerID, sub.ProblemID)
	if err != nil {
		logFailure(ctx, log, "attempt history read failed", err)
		return nil, fmt.Errorf("submit_attempt: %w", err)
	}
	reveal, err := h.attempts.GetReveal(ctx, sub.LearnerID, sub.ProblemID)
	if err != nil {
		if !shared.IsNotFound(err) {
			logFailure(ctx, log, "reveal read failed", err)
			return nil, fmt.Errorf("submit_attempt: %w", err)
		}
		reveal = nil
	}

	award := practice.AwardFor(problem, eval.Correct, prior, reveal)

	attempt := &practice.Attempt{
		ID:              uuid.NewString(),
		LearnerID:       sub.LearnerID,
		ProblemID:       sub.ProblemID,
		Kind:            problem.EffectiveKind(),
		SubmittedOutput: sub.Output,
		SelectedOptions: sub.SelectedOptions,
		MatchMode:       problem.EffectiveMatchMode(),
		OutputType:      problem.EffectiveOutputType(),
		IsCorrect:       eval.Correct,
		Score:           eval.Score,
		XPAwarded:       award.XP,
		SolutionViewed:  award.SolutionViewed,
		IdempotencyKey:  key,
		SubmittedAt:     h.env.now(),
	}

	stored, created, err := h.attempts.RecordAttempt(ctx, attempt)
	if err != nil {
		logFailure(ctx, log, "attempt write failed", err)
		return nil, fmt.Errorf("submit_attempt: %w", err)
	}
	if !created {
		return replayed(stored), nil
	}

	res := &SubmitAttemptResult{
		Attempt:        stored,
		Correct:        stored.IsCorrect,
		Score:          stored.Score,
		XPAwarded:      stored.XPAwarded,
		SolutionViewed: stored.SolutionViewed,
		Warnings:       warnings.List(),
	}
	for _, w := range res.Warnings {
		log.Warn("authoring inconsistency", logger.String("code", string(w.Code)), logger.String("subject", w.Subject))
	}

	if problem.StreakEligible {
		streak, err := h.countActivity(ctx, stored)
		if err != nil {
			return nil, err
		}
		res.Streak = streak
	}

	log.Info("attempt recorded",
		logger.Int("attempt_index", stored.AttemptIndex),
		logger.Bool("correct", stored.IsCorrect),
		logger.Int("xp", stored.XPAwarded),
	)
	return res, nil
}

// countActivity credits the attempt day and recomputes. Learners without a
// profile have no streak to update.
func (h *SubmitAttemptHandler) countActivity(ctx context.Context, a *practice.Attempt) (*StreakView, error) {
	err := h.progress.AppendTime(ctx, progress.TimeRecord{
		LearnerID:       a.LearnerID,
		Day:             h.env.dayOf(a.SubmittedAt),
		DurationSeconds: StreakActivitySeconds,
		CreatedAt:       a.SubmittedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("submit_attempt: activity: %w", err)
	}

	res, err := h.recompute.Handle(ctx, RecomputeStreakCommand{LearnerID: a.LearnerID.String()})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("submit_attempt: %w", err)
	}
	return &res.Streak, nil
}

func replayed(a *practice.Attempt) *SubmitAttemptResult {
	return &SubmitAttemptResult{
		Attempt:        a,
		Correct:        a.IsCorrect,
		Score:          a.Score,
		XPAwarded:      a.XPAwarded,
		SolutionViewed: a.SolutionViewed,
		Replayed:       true,
	}
}

// IdempotencyKey derives the storage key of a caller submission id.
func IdempotencyKey(learnerID, problemID, submissionID string) string {
	sum := blake2b.Sum256([]byte(learnerID + "\x00" + problemID + "\x00" + submissionID))
	return hex.EncodeToString(sum[:])
}

