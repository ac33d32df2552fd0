package practice

import (
	"fmt"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/shared"
)

// Evaluation is the outcome of checking one submission.
type Evaluation struct {
	Correct bool
	Score   int
}

// Evaluate checks sub against p. Unpublished problems and problems published
// without an expected output are rejected; the latter also adds a warning.
func Evaluate(p *content.Problem, sub Submission, warnings *shared.Warnings) (Evaluation, error) {
	if !p.Published {
		return Evaluation{}, shared.ErrUnpublishedProblem
	}

	if p.EffectiveKind() == content.KindEliminateWrong {
		return evaluateElimination(p, sub.SelectedOptions), nil
	}

	if p.ExpectedOutput == "" {
		warnings.Add(shared.Warning{
			Code:    shared.WarnMissingExpectedOutput,
			Subject: string(p.ID),
			Message: fmt.Sprintf("problem %s is published without an expected output", p.ID),
		})
		return Evaluation{}, shared.ErrMissingExpected
	}

	m, err := NewMatcher(p)
	if err != nil {
		return Evaluation{}, err
	}
	ok, err := m.Match(sub.Output, warnings)
	if err != nil {
		return Evaluation{}, err
	}
	if ok {
		return Evaluation{Correct: true, Score: 100}, nil
	}
	return Evaluation{}, nil
}

// evaluateElimination is correct when the selected set equals the wrong set.
// Partial score: 100 * max(0, hits - false eliminations) / |wrong|.
func evaluateElimination(p *content.Problem, selected []string) Evaluation {
	wrong := make(map[string]bool, len(p.WrongOptionIDs))
	for _, id := range p.WrongOptionIDs {
		wrong[id] = true
	}

	picked := make(map[string]bool, len(selected))
	hits, misses := 0, 0
	for _, id := range selected {
		if picked[id] {
			continue
		}
		picked[id] = true
		if wrong[id] {
			hits++
		} else {
			misses++
		}
	}

	if len(wrong) == 0 {
		if misses == 0 {
			return Evaluation{Correct: true, Score: 100}
		}
		return Evaluation{}
	}

	correct := hits == len(wrong) && misses == 0
	net := hits - misses
	if net < 0 {
		net = 0
	}
	return Evaluation{
		Correct: correct,
		Score:   shared.Round(100 * float64(net) / float64(len(wrong))),
	}
}

// Award is the XP decision for one attempt.
type Award struct {
	XP             int
	SolutionViewed bool
}

// AwardFor applies the XP rules: only the first correct attempt earns XP,
// and a reveal before solving applies the problem's penalty. An unset
// penalty behaves as no_xp.
func AwardFor(p *content.Problem, correct bool, prior []Attempt, reveal *Reveal) Award {
	var a Award
	if reveal != nil && p.RevealPenalty == content.PenaltyViewedSolution {
		a.SolutionViewed = true
	}
	if !correct {
		return a
	}
	for _, prev := range prior {
		if prev.IsCorrect {
			return a
		}
	}

	xp := shared.XP(p.XPValue)
	if reveal == nil {
		a.XP = xp.Int()
		return a
	}
	switch p.RevealPenalty {
	case content.PenaltyHalfXP:
		a.XP = xp.Half().Int()
	default:
		a.XP = 0
	}
	return a
}

// CheckReveal enforces the reveal policy given how many attempts the learner
// has already made.
func CheckReveal(p *content.Problem, attemptsSoFar int) error {
	if !p.Published {
		return shared.ErrUnpublishedProblem
	}
	if !p.RevealAllowed {
		return shared.ErrRevealDisabled
	}
	if attemptsSoFar < p.RevealAfterAttempts {
		return shared.NewDomainError("practice", "Reveal", shared.ErrRevealNotYetAllowed,
			fmt.Sprintf("reveal unlocks after %d attempts, %d made", p.RevealAfterAttempts, attemptsSoFar))
	}
	return nil
}
