package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/practice"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/logger"
)

// RevealSolutionCommand asks for a problem's answer.
type RevealSolutionCommand struct {
	LearnerID string
	ProblemID string
}

// Validate validates the command.
func (c RevealSolutionCommand) Validate() error {
	if _, err := shared.NewLearnerID(c.LearnerID); err != nil {
		return err
	}
	if c.ProblemID == "" {
		return shared.Invalid("practice", "Reveal", "problem_id is required")
	}
	return nil
}

// RevealSolutionResult carries the answer.
type RevealSolutionResult struct {
	ProblemID      content.ProblemID
	ExpectedOutput string
	WrongOptionIDs []string
	Explanation    string
	RevealedAt     time.Time

	// FirstReveal is false when the learner had revealed before.
	FirstReveal bool
}

// RevealSolutionHandler handles RevealSolutionCommand.
type RevealSolutionHandler struct {
	catalog  content.Catalog
	attempts practice.Repository
	env      Env
}

// NewRevealSolutionHandler creates a new RevealSolutionHandler.
func NewRevealSolutionHandler(catalog content.Catalog, attempts practice.Repository, env Env) *RevealSolutionHandler {
	return &RevealSolutionHandler{catalog: catalog, attempts: attempts, env: env}
}

// Handle fails with shared.ErrRevealNotAllowed or shared.ErrRevealNotYetAllowed
// per the problem's reveal policy.
func (h *RevealSolutionHandler) Handle(ctx context.Context, cmd RevealSolutionCommand) (*RevealSolutionResult, error) {
	log := h.env.log("RevealSolution").With(logger.LearnerID(cmd.LearnerID), logger.ProblemID(cmd.ProblemID))

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("reveal_solution: validation failed: %w", err)
	}
	learnerID := shared.LearnerID(cmd.LearnerID)
	problemID := content.ProblemID(cmd.ProblemID)

	problem, err := h.catalog.GetProblem(ctx, problemID)
	if err != nil {
		logFailure(ctx, log, "problem lookup failed", err)
		return nil, fmt.Errorf("reveal_solution: %w", err)
	}

	prior, err := h.attempts.ListAttempts(ctx, learnerID, problemID)
	if err != nil {
		logFailure(ctx, log, "attempt history read failed", err)
		return nil, fmt.Errorf("reveal_solution: %w", err)
	}
	if err := practice.CheckReveal(problem, len(prior)); err != nil {
		logFailure(ctx, log, "reveal refused", err)
		return nil, fmt.Errorf("reveal_solution: %w", err)
	}

	proposed := &practice.Reveal{
		ID:             uuid.NewString(),
		LearnerID:      learnerID,
		ProblemID:      problemID,
		AttemptsBefore: len(prior),
		RevealedAt:     h.env.now(),
	}
	stored, err := h.attempts.RecordReveal(ctx, proposed)
	if err != nil {
		logFailure(ctx, log, "reveal write failed", err)
		return nil, fmt.Errorf("reveal_solution: %w", err)
	}

	first := stored.ID == proposed.ID
	if first {
		log.Info("solution revealed", logger.Int("attempts_before", len(prior)))
	}

	return &RevealSolutionResult{
		ProblemID:      problemID,
		ExpectedOutput: problem.ExpectedOutput,
		WrongOptionIDs: append([]string(nil), problem.WrongOptionIDs...),
		Explanation:    problem.Explanation,
		RevealedAt:     stored.RevealedAt,
		FirstReveal:    first,
	}, nil
}
