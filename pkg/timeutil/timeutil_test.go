package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZone_DayKey(t *testing.T) {
	instant := time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC)

	assert.Equal(t, DayKey("2024-03-10"), UTC.DayKey(instant))

	almaty := FixedZone("Asia/Almaty", 5*60*60)
	assert.Equal(t, DayKey("2024-03-11"), almaty.DayKey(instant))
}

func TestLoadZone(t *testing.T) {
	z, err := LoadZone("")
	require.NoError(t, err)
	assert.Equal(t, "UTC", z.Name())

	_, err = LoadZone("Not/AZone")
	assert.Error(t, err)
}

func TestDayKey_Arithmetic(t *testing.T) {
	tests := []struct {
		name string
		in   DayKey
		days int
		want DayKey
	}{
		{"previous across month", "2024-03-01", -1, "2024-02-29"},
		{"previous across year", "2024-01-01", -1, "2023-12-31"},
		{"next across leap day", "2024-02-28", 1, "2024-02-29"},
		{"a year back", "2024-06-15", -365, "2023-06-16"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.AddDays(tc.days))
		})
	}

	assert.Equal(t, DayKey("2024-02-29"), PreviousDay("2024-03-01"))
	assert.Equal(t, 3, DayKey("2024-02-27").DaysBetween("2024-03-01"))
}

func TestDayKey_LexicographicOrder(t *testing.T) {
	a := MustDayKey("2023-12-31")
	b := MustDayKey("2024-01-01")
	assert.True(t, a.Before(b))
	assert.True(t, a < b)
}

func TestParseDayKey(t *testing.T) {
	_, err := ParseDayKey("2024-3-1")
	assert.ErrorIs(t, err, ErrInvalidDayKey)

	_, err = ParseDayKey("2024-13-01")
	assert.ErrorIs(t, err, ErrInvalidDayKey)

	d, err := ParseDayKey("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, DayKey("2024-03-01"), d)
}

func TestWeekOf(t *testing.T) {
	// 2024-06-12 is a Wednesday.
	w := WeekOf("2024-06-12")
	assert.Equal(t, DayKey("2024-06-09"), w.Start())
	assert.Equal(t, DayKey("2024-06-15"), w.End())
	assert.Equal(t, time.Sunday, w.Start().Weekday())
	assert.True(t, w.Contains("2024-06-12"))
	assert.False(t, w.Contains("2024-06-16"))

	// A Sunday anchors its own week.
	assert.Equal(t, DayKey("2024-06-09"), WeekOf("2024-06-09").Start())
}

func TestManualClock(t *testing.T) {
	start := time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC)
	c := NewManualClock(start)
	assert.Equal(t, DayKey("2024-06-01"), UTC.Today(c))

	c.Advance(2 * time.Minute)
	assert.Equal(t, DayKey("2024-06-02"), UTC.Today(c))
}
