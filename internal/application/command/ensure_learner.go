package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/devpath/progression-engine/internal/domain/learner"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENSURE LEARNER COMMAND
// Creates the profile on first sign-in; later calls refresh display fields.
// ══════════════════════════════════════════════════════════════════════════════

// EnsureLearnerCommand contains the data to bootstrap a learner.
type EnsureLearnerCommand struct {
	LearnerID   string
	DisplayName string
	AvatarURL   string
}

// Validate validates the command.
func (c EnsureLearnerCommand) Validate() error {
	if _, err := shared.NewLearnerID(c.LearnerID); err != nil {
		return err
	}
	if len(c.DisplayName) > 100 {
		return shared.Invalid("learner", "Ensure", "display_name must be at most 100 characters")
	}
	return nil
}

// EnsureLearnerResult contains the stored profile.
type EnsureLearnerResult struct {
	Profile *learner.Profile
	Created bool
}

// EnsureLearnerHandler handles EnsureLearnerCommand.
type EnsureLearnerHandler struct {
	learners       learner.Repository
	defaultFreezes int
	env            Env
}

// NewEnsureLearnerHandler creates a new EnsureLearnerHandler. New profiles
// start with defaultFreezes streak freezes.
func NewEnsureLearnerHandler(learners learner.Repository, defaultFreezes int, env Env) *EnsureLearnerHandler {
	if defaultFreezes < 0 {
		defaultFreezes = learner.DefaultFreezes
	}
	return &EnsureLearnerHandler{learners: learners, defaultFreezes: defaultFreezes, env: env}
}

// Handle is idempotent.
func (h *EnsureLearnerHandler) Handle(ctx context.Context, cmd EnsureLearnerCommand) (*EnsureLearnerResult, error) {
	log := h.env.log("EnsureLearner").With(logger.LearnerID(cmd.LearnerID))

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("ensure_learner: validation failed: %w", err)
	}
	id := shared.LearnerID(cmd.LearnerID)
	now := h.env.now()

	p, err := learner.NewProfile(id, cmd.DisplayName, cmd.AvatarURL, h.defaultFreezes, now)
	if err != nil {
		return nil, fmt.Errorf("ensure_learner: %w", err)
	}

	err = h.learners.Create(ctx, p)
	switch {
	case err == nil:
		log.Info("learner profile created")
		return &EnsureLearnerResult{Profile: p, Created: true}, nil
	case !errors.Is(err, shared.ErrAlreadyExists):
		logFailure(ctx, log, "profile create failed", err)
		return nil, fmt.Errorf("ensure_learner: create: %w", err)
	}

	updated, err := h.learners.Update(ctx, id, func(p *learner.Profile) error {
		p.Rename(cmd.DisplayName, cmd.AvatarURL, now)
		return nil
	})
	if err != nil {
		logFailure(ctx, log, "profile refresh failed", err)
		return nil, fmt.Errorf("ensure_learner: update: %w", err)
	}
	return &EnsureLearnerResult{Profile: updated}, nil
}
