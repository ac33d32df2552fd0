package progress

import (
	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/timeutil"
)

// DayActivity is one bucket of the week.
type DayActivity struct {
	Day     timeutil.DayKey `json:"day"`
	Seconds int64           `json:"seconds"`
}

// WeeklyActivity aggregates one Sunday-to-Saturday week.
type WeeklyActivity struct {
	WeekStart timeutil.DayKey `json:"week_start"`
	WeekEnd   timeutil.DayKey `json:"week_end"`

	DailySeconds map[timeutil.DayKey]int64 `json:"daily_seconds"`
	Days         []DayActivity             `json:"days"`

	TotalSeconds               int64 `json:"total_seconds"`
	ActiveDays                 int   `json:"active_days"`
	AverageMinutesPerActiveDay int   `json:"average_minutes_per_active_day"`
}

// ProjectWeek buckets rows into the week containing anchor. Rows outside
// the week are ignored.
func ProjectWeek(anchor timeutil.DayKey, rows []DaySeconds) WeeklyActivity {
	week := timeutil.WeekOf(anchor)
	totals := SumByDay(rows)

	out := WeeklyActivity{
		WeekStart:    week.Start(),
		WeekEnd:      week.End(),
		DailySeconds: make(map[timeutil.DayKey]int64, len(week)),
		Days:         make([]DayActivity, 0, len(week)),
	}
	for _, d := range week {
		s := totals[d]
		if s < 0 {
			s = 0
		}
		out.DailySeconds[d] = s
		out.Days = append(out.Days, DayActivity{Day: d, Seconds: s})
		out.TotalSeconds += s
		if s > 0 {
			out.ActiveDays++
		}
	}
	if out.ActiveDays > 0 {
		out.AverageMinutesPerActiveDay = shared.Round(float64(out.TotalSeconds) / 60 / float64(out.ActiveDays))
	}
	return out
}
