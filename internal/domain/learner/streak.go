package learner

import "github.com/devpath/progression-engine/pkg/timeutil"

// DefaultWindowDays bounds how far back activity is read and how long a
// streak can grow.
const DefaultWindowDays = 365

// DailySeconds maps a day-key to the tracked seconds summed for that day.
type DailySeconds map[timeutil.DayKey]int64

// Active reports whether day counts toward a streak: tracked seconds are
// positive, or the day was frozen.
func Active(activity DailySeconds, freezeDay, day timeutil.DayKey) bool {
	if !freezeDay.IsZero() && freezeDay == day {
		return true
	}
	return activity[day] > 0
}

// Summary is the outcome of one recompute.
type Summary struct {
	Current int
	Max     int

	// LastActivityDay is today when today is active, otherwise the stored
	// value is carried over.
	LastActivityDay timeutil.DayKey
}

// Walk counts consecutive active days ending at today. When today is not
// active yet the walk starts from yesterday, so an ongoing streak stays
// visible until the day is over.
func Walk(activity DailySeconds, freezeDay, today timeutil.DayKey, window int) int {
	if window <= 0 {
		window = DefaultWindowDays
	}
	cursor := today
	if !Active(activity, freezeDay, cursor) {
		cursor = cursor.Previous()
	}
	streak := 0
	for streak < window && Active(activity, freezeDay, cursor) {
		streak++
		cursor = cursor.Previous()
	}
	return streak
}

// Recompute derives the streak summary for p from activity. It does not
// mutate p; callers persist the result with ApplyStreak.
func Recompute(p *Profile, activity DailySeconds, today timeutil.DayKey, window int) Summary {
	current := Walk(activity, p.LastFreezeDay, today, window)
	best := p.MaxStreak
	if current > best {
		best = current
	}
	last := p.LastActivityDay
	if Active(activity, p.LastFreezeDay, today) {
		last = today
	}
	return Summary{Current: current, Max: best, LastActivityDay: last}
}
