package shared

import (
	"math"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER ID
// ══════════════════════════════════════════════════════════════════════════════

// LearnerID is the opaque identifier of a learner. The engine never
// interprets it; identity has been verified by the caller.
type LearnerID string

// IsValid checks if the learner ID is non-empty.
func (l LearnerID) IsValid() bool {
	return strings.TrimSpace(string(l)) != ""
}

// String returns the string representation of LearnerID.
func (l LearnerID) String() string {
	return string(l)
}

// NewLearnerID creates a validated LearnerID.
func NewLearnerID(id string) (LearnerID, error) {
	l := LearnerID(id)
	if !l.IsValid() {
		return "", ErrInvalidLearnerID
	}
	return l, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// XP
// ══════════════════════════════════════════════════════════════════════════════

// XP is an experience-point amount awarded by a problem attempt.
type XP int

// IsValid checks that XP is non-negative.
func (x XP) IsValid() bool {
	return x >= 0
}

// Int returns the raw value.
func (x XP) Int() int {
	return int(x)
}

// Half returns ⌊x/2⌋.
func (x XP) Half() XP {
	if x <= 0 {
		return 0
	}
	return x / 2
}

// ══════════════════════════════════════════════════════════════════════════════
// PERCENTAGE
// ══════════════════════════════════════════════════════════════════════════════

// Percentage is an integer in [0, 100].
type Percentage int

// Int returns the raw value.
func (p Percentage) Int() int {
	return int(p)
}

// IsValid checks the [0, 100] range.
func (p Percentage) IsValid() bool {
	return p >= 0 && p <= 100
}

// Round rounds half away from zero. All projector rounding goes through here
// so that every read path agrees on .5 boundaries.
func Round(v float64) int {
	return int(math.Round(v))
}

// ClampPercentage rounds v and bounds it to [0, 100].
func ClampPercentage(v float64) Percentage {
	r := Round(v)
	switch {
	case r < 0:
		return 0
	case r > 100:
		return 100
	default:
		return Percentage(r)
	}
}

// Ratio returns part/whole bounded to [0, 1]; zero when whole is not positive.
func Ratio(part, whole int) float64 {
	if whole <= 0 || part <= 0 {
		return 0
	}
	if part >= whole {
		return 1
	}
	return float64(part) / float64(whole)
}
