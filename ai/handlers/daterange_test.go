package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDateRange(t *testing.T) {
	// Friday, 2025-03-14 10:30 local.
	now := time.Date(2025, 3, 14, 10, 30, 0, 0, time.Local)
	day := func(d int) time.Time { return time.Date(2025, 3, d, 0, 0, 0, 0, time.Local) }
	eod := func(d int) time.Time { return time.Date(2025, 3, d, 23, 59, 59, 999999000, time.Local) }

	tests := []struct {
		name      string
		text      string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"today", "what's on my calendar today", day(14), eod(14)},
		{"tomorrow", "delete the dentist tomorrow", day(15), eod(15)},
		{"later weekday", "move lunch on Monday", day(17), eod(17)},
		{"same weekday skips a week", "cancel the standup friday", day(21), eod(21)},
		{"default next seven days", "cancel the haircut", day(14), eod(21)},
		{"case insensitive", "TOMORROW please", day(15), eod(15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := ParseDateRange(tt.text, now)
			assert.True(t, tt.wantStart.Equal(start), "start = %v", start)
			assert.True(t, tt.wantEnd.Equal(end), "end = %v", end)
		})
	}
}

func TestParseDateRange_TomorrowIsTodayShifted(t *testing.T) {
	now := time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)
	ts, te := ParseDateRange("today", now)
	ms, me := ParseDateRange("tomorrow", now)

	assert.Equal(t, ts.AddDate(0, 0, 1), ms)
	assert.Equal(t, te.AddDate(0, 0, 1), me)
	assert.Equal(t, 2026, ms.Year())
}

func TestDayLabel(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, "today", dayLabel(now.Add(2*time.Hour), now))
	assert.Equal(t, "tomorrow", dayLabel(now.AddDate(0, 0, 1), now))
	assert.Equal(t, "yesterday", dayLabel(now.AddDate(0, 0, -1), now))
	assert.Equal(t, "on Tuesday, March 18", dayLabel(now.AddDate(0, 0, 4), now))
}

func TestClockTime(t *testing.T) {
	assert.Equal(t, "3:00 PM", clockTime(time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)))
	assert.Equal(t, "9:05 AM", clockTime(time.Date(2025, 3, 14, 9, 5, 0, 0, time.UTC)))
}
