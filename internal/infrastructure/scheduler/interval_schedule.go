package scheduler

import (
	"fmt"
	"time"

	"github.com/devpath/progression-engine/pkg/timeutil"
)

// IntervalSchedule runs a job at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval)
}

// DailySchedule runs a job once a day at Hour:Minute wall time in Zone.
type DailySchedule struct {
	Zone   timeutil.Zone
	Hour   int
	Minute int
}

// NewDailySchedule creates a DailySchedule. hour is clamped to [0, 23].
func NewDailySchedule(zone timeutil.Zone, hour, minute int) *DailySchedule {
	hour = min(max(hour, 0), 23)
	minute = min(max(minute, 0), 59)
	return &DailySchedule{Zone: zone, Hour: hour, Minute: minute}
}

func (s *DailySchedule) Next(t time.Time) time.Time {
	day := s.Zone.DayKey(t)
	for i := 0; i < 3; i++ {
		start := s.Zone.StartOfDay(day)
		at := time.Date(start.Year(), start.Month(), start.Day(), s.Hour, s.Minute, 0, 0, s.Zone.Location())
		if at.After(t) {
			return at
		}
		day = day.Next()
	}
	return t.Add(24 * time.Hour)
}

func (s *DailySchedule) String() string {
	return fmt.Sprintf("daily %02d:%02d %s", s.Hour, s.Minute, s.Zone.Name())
}
