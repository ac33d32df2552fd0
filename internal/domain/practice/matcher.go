package practice

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/shared"
)

// Normalize applies mode to s.
//
//	strict     - unchanged
//	trim       - outer whitespace of the whole text and of every line removed
//	normalized - whitespace runs collapsed to one space, blank lines dropped,
//	             trailing whitespace removed
func Normalize(s string, mode content.MatchMode) (string, error) {
	switch mode {
	case content.MatchStrict, "":
		return s, nil
	case content.MatchTrim:
		lines := strings.Split(strings.TrimSpace(s), "\n")
		for i, l := range lines {
			lines[i] = strings.TrimSpace(l)
		}
		return strings.Join(lines, "\n"), nil
	case content.MatchNormalized:
		lines := strings.Split(s, "\n")
		out := lines[:0]
		for _, l := range lines {
			if f := strings.Fields(l); len(f) > 0 {
				out = append(out, strings.Join(f, " "))
			}
		}
		return strings.Join(out, "\n"), nil
	default:
		return "", shared.Invalid("practice", "Normalize", "unknown match mode %q", mode)
	}
}

// Matcher compares submissions against a problem's accepted outputs.
type Matcher struct {
	problemID    content.ProblemID
	mode         content.MatchMode
	outputType   content.OutputType
	expected     string
	alternatives []string
}

// NewMatcher builds a matcher for p. It fails with shared.ErrInvalidOutputType
// for output types other than text and json.
func NewMatcher(p *content.Problem) (*Matcher, error) {
	t := p.EffectiveOutputType()
	if t != content.OutputText && t != content.OutputJSON {
		return nil, shared.WrapError("practice", "Evaluate", shared.ErrInvalidOutputType,
			fmt.Sprintf("problem %s has output type %q", p.ID, p.OutputType), nil)
	}
	return &Matcher{
		problemID:    p.ID,
		mode:         p.EffectiveMatchMode(),
		outputType:   t,
		expected:     p.ExpectedOutput,
		alternatives: p.AcceptedAlternatives,
	}, nil
}

// Match reports whether submitted equals the expected output or any
// accepted alternative. Alternatives that cannot be read under the output
// type are skipped with a warning; an unreadable expected output is an
// error matching shared.ErrInvalidInput.
func (m *Matcher) Match(submitted string, warnings *shared.Warnings) (bool, error) {
	if m.outputType == content.OutputJSON {
		return m.matchJSON(submitted, warnings)
	}
	return m.matchText(submitted)
}

func (m *Matcher) matchText(submitted string) (bool, error) {
	got, err := Normalize(submitted, m.mode)
	if err != nil {
		return false, err
	}
	for _, candidate := range m.candidates() {
		want, err := Normalize(candidate, m.mode)
		if err != nil {
			return false, err
		}
		if got == want {
			return true, nil
		}
	}
	return false, nil
}

func (m *Matcher) matchJSON(submitted string, warnings *shared.Warnings) (bool, error) {
	expected, err := decodeJSON(m.expected)
	if err != nil {
		return false, shared.WrapError("practice", "Evaluate", shared.ErrInvalidInput,
			fmt.Sprintf("expected output of problem %s is not valid JSON", m.problemID), err)
	}

	got, err := decodeJSON(submitted)
	if err != nil {
		return false, nil
	}
	if reflect.DeepEqual(got, expected) {
		return true, nil
	}

	for i, alt := range m.alternatives {
		want, err := decodeJSON(alt)
		if err != nil {
			warnings.Add(shared.Warning{
				Code:    shared.WarnInvalidAlternative,
				Subject: fmt.Sprintf("%s#%d", m.problemID, i),
				Message: fmt.Sprintf("accepted alternative %d of problem %s is not valid JSON", i, m.problemID),
			})
			continue
		}
		if reflect.DeepEqual(got, want) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Matcher) candidates() []string {
	out := make([]string, 0, 1+len(m.alternatives))
	out = append(out, m.expected)
	return append(out, m.alternatives...)
}

// decodeJSON reads exactly one JSON value. Object key order is irrelevant
// after decoding; array order is kept.
func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}
