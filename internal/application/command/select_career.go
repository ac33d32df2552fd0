package command

import (
	"context"
	"fmt"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/learner"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/logger"
)

// SelectCareerCommand sets the learner's career path. An empty CareerID
// clears the selection.
type SelectCareerCommand struct {
	LearnerID string
	CareerID  string
}

// Validate validates the command.
func (c SelectCareerCommand) Validate() error {
	_, err := shared.NewLearnerID(c.LearnerID)
	return err
}

// SelectCareerHandler handles SelectCareerCommand.
type SelectCareerHandler struct {
	learners learner.Repository
	catalog  content.Catalog
	env      Env
}

// NewSelectCareerHandler creates a new SelectCareerHandler.
func NewSelectCareerHandler(learners learner.Repository, catalog content.Catalog, env Env) *SelectCareerHandler {
	return &SelectCareerHandler{learners: learners, catalog: catalog, env: env}
}

// Handle fails with shared.ErrNotFound for unknown careers.
func (h *SelectCareerHandler) Handle(ctx context.Context, cmd SelectCareerCommand) (*learner.Profile, error) {
	log := h.env.log("SelectCareer").With(logger.LearnerID(cmd.LearnerID), logger.CareerID(cmd.CareerID))

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("select_career: validation failed: %w", err)
	}

	careerID := content.CareerID(cmd.CareerID)
	if careerID != "" {
		if _, err := h.catalog.GetCareer(ctx, careerID); err != nil {
			logFailure(ctx, log, "career lookup failed", err)
			return nil, fmt.Errorf("select_career: %w", err)
		}
	}

	now := h.env.now()
	p, err := h.learners.Update(ctx, shared.LearnerID(cmd.LearnerID), func(p *learner.Profile) error {
		p.SelectCareer(careerID, now)
		return nil
	})
	if err != nil {
		logFailure(ctx, log, "career selection failed", err)
		return nil, fmt.Errorf("select_career: %w", err)
	}
	return p, nil
}
