package handlers

import (
	"math"
	"strings"
	"time"
)

var weekdays = []struct {
	name string
	day  time.Weekday
}{
	{"monday", time.Monday},
	{"tuesday", time.Tuesday},
	{"wednesday", time.Wednesday},
	{"thursday", time.Thursday},
	{"friday", time.Friday},
	{"saturday", time.Saturday},
	{"sunday", time.Sunday},
}

// ParseDateRange resolves a natural-language day reference relative to now.
//
//   - "today" is the current local day, 00:00 to 23:59:59.999999.
//   - "tomorrow" is the same window one day later.
//   - A weekday name is its next occurrence; on that weekday it is a week ahead.
//   - Anything else spans today 00:00 through the end of the day seven days out.
func ParseDateRange(text string, now time.Time) (start, end time.Time) {
	lower := strings.ToLower(text)
	today := startOfDay(now)

	switch {
	case strings.Contains(lower, "today"):
		return today, endOfDay(today)
	case strings.Contains(lower, "tomorrow"):
		day := today.AddDate(0, 0, 1)
		return day, endOfDay(day)
	}

	if wd, ok := mentionedWeekday(lower); ok {
		day := nextWeekday(today, wd)
		return day, endOfDay(day)
	}

	return today, endOfDay(today.AddDate(0, 0, 7))
}

func mentionedWeekday(lower string) (time.Weekday, bool) {
	for _, w := range weekdays {
		if strings.Contains(lower, w.name) {
			return w.day, true
		}
	}
	return 0, false
}

// nextWeekday returns the next day after today falling on wd, never today itself.
func nextWeekday(today time.Time, wd time.Weekday) time.Time {
	ahead := (int(wd) - int(today.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return today.AddDate(0, 0, ahead)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999999000, t.Location())
}

// dayLabel describes day relative to now: "today", "tomorrow" or "on Monday, January 02".
func dayLabel(day, now time.Time) string {
	switch int(math.Round(startOfDay(day).Sub(startOfDay(now)).Hours() / 24)) {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	case -1:
		return "yesterday"
	}
	return "on " + day.Format("Monday, January 02")
}

// rangeLabel describes a parsed range for messages.
func rangeLabel(start, end, now time.Time) string {
	if startOfDay(start).Equal(startOfDay(end)) {
		return dayLabel(start, now)
	}
	return "in the next week"
}

// clockTime formats t as "3:04 PM".
func clockTime(t time.Time) string {
	return t.Format("3:04 PM")
}
