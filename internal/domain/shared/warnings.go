package shared

import (
	"sort"
	"sync"
)

// WarningCode identifies a class of AuthoringInconsistency.
type WarningCode string

const (
	// WarnUnknownCourse: a skill contribution references a course slug that
	// does not resolve.
	WarnUnknownCourse WarningCode = "unknown_course"

	// WarnUnknownCareer: a learner's selected career no longer exists.
	WarnUnknownCareer WarningCode = "unknown_career"

	// WarnZeroSkillWeights: a career's skill weights sum to zero.
	WarnZeroSkillWeights WarningCode = "zero_skill_weights"

	// WarnMissingExpectedOutput: a published problem has no expected output.
	WarnMissingExpectedOutput WarningCode = "missing_expected_output"

	// WarnInvalidAlternative: an accepted alternative could not be parsed
	// under the problem's output type and was skipped.
	WarnInvalidAlternative WarningCode = "invalid_alternative"
)

// Warning is a non-fatal AuthoringInconsistency. The engine continues with
// best-effort defaults and returns warnings alongside the result.
type Warning struct {
	Code    WarningCode `json:"code"`
	Subject string      `json:"subject"`
	Message string      `json:"message"`
}

// Warnings collects warnings, keeping one entry per (code, subject).
// Safe for concurrent use.
type Warnings struct {
	mu   sync.Mutex
	seen map[string]Warning
}

// NewWarnings creates an empty collector.
func NewWarnings() *Warnings {
	return &Warnings{seen: make(map[string]Warning)}
}

// Add records w unless an equal (code, subject) pair is already present.
// It reports whether w was new.
func (ws *Warnings) Add(w Warning) bool {
	if ws == nil {
		return false
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.seen == nil {
		ws.seen = make(map[string]Warning)
	}
	key := string(w.Code) + "\x00" + w.Subject
	if _, ok := ws.seen[key]; ok {
		return false
	}
	ws.seen[key] = w
	return true
}

// Merge adds every warning in list.
func (ws *Warnings) Merge(list []Warning) {
	for _, w := range list {
		ws.Add(w)
	}
}

// List returns the collected warnings ordered by code then subject.
func (ws *Warnings) List() []Warning {
	if ws == nil {
		return nil
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	out := make([]Warning, 0, len(ws.seen))
	for _, w := range ws.seen {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].Subject < out[j].Subject
	})
	return out
}

// Len returns the number of distinct warnings.
func (ws *Warnings) Len() int {
	if ws == nil {
		return 0
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.seen)
}
