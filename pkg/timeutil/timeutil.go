// Package timeutil canonicalizes instants to calendar-day keys in a single
// reference zone and provides an injectable clock.
//
// The reference zone is chosen once at start-up (see config.AppConfig.Timezone)
// and every day-key in the engine is derived through the same Zone value.
// Streak semantics depend on it, so the zone is never re-resolved per call.
package timeutil

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// FormatDate is the day-key layout (YYYY-MM-DD).
const FormatDate = "2006-01-02"

// ErrInvalidDayKey is returned when a string is not a valid YYYY-MM-DD day-key.
var ErrInvalidDayKey = errors.New("timeutil: invalid day key")

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock is a settable clock for tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock pinned at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

// Now returns the pinned instant.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ══════════════════════════════════════════════════════════════════════════════
// DAY KEYS
// ══════════════════════════════════════════════════════════════════════════════

// DayKey is a calendar date in the reference zone, formatted YYYY-MM-DD.
// Day keys compare lexicographically in chronological order.
type DayKey string

// ParseDayKey validates s and returns it as a DayKey.
func ParseDayKey(s string) (DayKey, error) {
	if len(s) != len(FormatDate) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDayKey, s)
	}
	if _, err := time.Parse(FormatDate, s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDayKey, s)
	}
	return DayKey(s), nil
}

// MustDayKey is ParseDayKey for literals; it panics on invalid input.
func MustDayKey(s string) DayKey {
	d, err := ParseDayKey(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String returns the key itself.
func (d DayKey) String() string { return string(d) }

// IsZero reports whether the key is empty (null).
func (d DayKey) IsZero() bool { return d == "" }

// date returns midnight UTC of the key. Arithmetic on keys is zone-free once
// the key has been derived.
func (d DayKey) date() time.Time {
	t, err := time.Parse(FormatDate, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the key n days away (n may be negative).
func (d DayKey) AddDays(n int) DayKey {
	return DayKey(d.date().AddDate(0, 0, n).Format(FormatDate))
}

// Previous returns the day before d.
func (d DayKey) Previous() DayKey { return d.AddDays(-1) }

// Next returns the day after d.
func (d DayKey) Next() DayKey { return d.AddDays(1) }

// Weekday returns the day of week of d (Sunday = 0).
func (d DayKey) Weekday() time.Weekday { return d.date().Weekday() }

// Before reports whether d is strictly earlier than other.
func (d DayKey) Before(other DayKey) bool { return d < other }

// DaysBetween returns the number of days from d to other (other - d).
func (d DayKey) DaysBetween(other DayKey) int {
	return int(other.date().Sub(d.date()).Hours() / 24)
}

// PreviousDay is the functional form of DayKey.Previous.
func PreviousDay(d DayKey) DayKey { return d.Previous() }

// ══════════════════════════════════════════════════════════════════════════════
// ZONE
// ══════════════════════════════════════════════════════════════════════════════

// Zone is the reference zone day-keys are computed in.
type Zone struct {
	name string
	loc  *time.Location
}

// UTC is the default reference zone.
var UTC = Zone{name: "UTC", loc: time.UTC}

// LoadZone resolves an IANA zone name. An empty name means UTC.
func LoadZone(name string) (Zone, error) {
	if name == "" || name == "UTC" {
		return UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Zone{}, fmt.Errorf("timeutil: load zone %q: %w", name, err)
	}
	return Zone{name: name, loc: loc}, nil
}

// FixedZone builds a zone with a constant offset (seconds east of UTC).
func FixedZone(name string, offset int) Zone {
	return Zone{name: name, loc: time.FixedZone(name, offset)}
}

// Name returns the zone name.
func (z Zone) Name() string {
	if z.loc == nil {
		return UTC.name
	}
	return z.name
}

// Location returns the underlying *time.Location.
func (z Zone) Location() *time.Location {
	if z.loc == nil {
		return time.UTC
	}
	return z.loc
}

// DayKey canonicalizes an instant to its calendar day in the zone.
func (z Zone) DayKey(t time.Time) DayKey {
	return DayKey(t.In(z.Location()).Format(FormatDate))
}

// Today returns the day-key of clock.Now() in the zone.
func (z Zone) Today(clock Clock) DayKey {
	return z.DayKey(clock.Now())
}

// StartOfDay returns the first instant of the key's day in the zone.
func (z Zone) StartOfDay(d DayKey) time.Time {
	t := d.date()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, z.Location())
}

// Week is the Sunday..Saturday span containing an anchor day.
type Week [7]DayKey

// WeekOf returns the week (Sunday = index 0) containing anchor.
func WeekOf(anchor DayKey) Week {
	start := anchor.AddDays(-int(anchor.Weekday()))
	var w Week
	for i := range w {
		w[i] = start.AddDays(i)
	}
	return w
}

// Start returns the Sunday of the week.
func (w Week) Start() DayKey { return w[0] }

// End returns the Saturday of the week.
func (w Week) End() DayKey { return w[6] }

// Contains reports whether d falls within the week.
func (w Week) Contains(d DayKey) bool {
	return !d.Before(w[0]) && !w[6].Before(d)
}
