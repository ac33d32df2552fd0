// Package learner contains the learner profile and the streak record it
// carries: current and max streak, freeze counters and activity days.
// This is a pure domain layer with zero external dependencies.
package learner

import (
	"time"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

// DefaultFreezes is the freeze allowance of a new profile.
const DefaultFreezes = 2

// StreakState is the two-state streak machine.
type StreakState string

const (
	StateCold StreakState = "cold"
	StateHot  StreakState = "hot"
)

// Profile is the per-learner record. The streak fields are the only shared
// mutable state of the engine and are changed through Repository.Update.
type Profile struct {
	ID          shared.LearnerID
	DisplayName string
	AvatarURL   string

	// SelectedCareer is empty when no career is chosen.
	SelectedCareer content.CareerID

	CurrentStreak    int
	MaxStreak        int
	FreezesAvailable int
	FreezesUsed      int

	// Zero value means "never".
	LastFreezeDay   timeutil.DayKey
	LastActivityDay timeutil.DayKey

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProfile creates a profile with the given freeze allowance.
func NewProfile(id shared.LearnerID, displayName, avatarURL string, freezes int, now time.Time) (*Profile, error) {
	if !id.IsValid() {
		return nil, shared.ErrInvalidLearnerID
	}
	if freezes < 0 {
		return nil, shared.ErrNegativeFreezeGrant
	}
	return &Profile{
		ID:               id,
		DisplayName:      displayName,
		AvatarURL:        avatarURL,
		FreezesAvailable: freezes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// State reports Hot while the current streak is alive.
func (p *Profile) State() StreakState {
	if p.CurrentStreak > 0 {
		return StateHot
	}
	return StateCold
}

// CanFreeze reports whether ConsumeFreeze would succeed on today.
func (p *Profile) CanFreeze(today timeutil.DayKey) bool {
	return p.FreezesAvailable > 0 && p.LastFreezeDay != today
}

// ConsumeFreeze spends one freeze on today. A day can be frozen once;
// that check runs before the allowance check.
func (p *Profile) ConsumeFreeze(today timeutil.DayKey, now time.Time) error {
	if p.LastFreezeDay == today {
		return shared.ErrFrozenToday
	}
	if p.FreezesAvailable <= 0 {
		return shared.ErrNoFreezes
	}
	p.FreezesAvailable--
	p.FreezesUsed++
	p.LastFreezeDay = today
	p.UpdatedAt = now
	return nil
}

// ApplyStreak stores a recompute result. max_streak never decreases and
// never drops below current_streak.
func (p *Profile) ApplyStreak(s Summary, now time.Time) {
	p.CurrentStreak = s.Current
	if s.Max > p.MaxStreak {
		p.MaxStreak = s.Max
	}
	if p.CurrentStreak > p.MaxStreak {
		p.MaxStreak = p.CurrentStreak
	}
	if !s.LastActivityDay.IsZero() {
		p.LastActivityDay = s.LastActivityDay
	}
	p.UpdatedAt = now
}

// SelectCareer sets or clears (empty id) the chosen career.
func (p *Profile) SelectCareer(id content.CareerID, now time.Time) {
	p.SelectedCareer = id
	p.UpdatedAt = now
}

// Rename updates display fields; empty values leave the field unchanged.
func (p *Profile) Rename(displayName, avatarURL string, now time.Time) bool {
	changed := false
	if displayName != "" && displayName != p.DisplayName {
		p.DisplayName = displayName
		changed = true
	}
	if avatarURL != "" && avatarURL != p.AvatarURL {
		p.AvatarURL = avatarURL
		changed = true
	}
	if changed {
		p.UpdatedAt = now
	}
	return changed
}
