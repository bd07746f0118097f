// Package timetable models the university timetable grid: weekdays, class
// periods and the courses occupying them.
//
// Weekday numbering follows time.Weekday (Sunday = 0 through Saturday = 6).
// The portal, the calendar API and the recurrence library each speak a
// different weekday alphabet (kanji symbols, two-letter BYDAY codes and
// rrule weekday values); this package holds the one table that maps between
// all of them so the schemes cannot drift apart.
package timetable

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// JST is the timezone every portal wall-clock time is anchored in.
var JST = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		// Zoneinfo may be unavailable in minimal containers.
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}()

// weekdayTable is the canonical weekday mapping, indexed by time.Weekday.
var weekdayTable = [7]struct {
	kanji string
	byDay string
	rrule rrule.Weekday
}{
	time.Sunday:    {"日", "SU", rrule.SU},
	time.Monday:    {"月", "MO", rrule.MO},
	time.Tuesday:   {"火", "TU", rrule.TU},
	time.Wednesday: {"水", "WE", rrule.WE},
	time.Thursday:  {"木", "TH", rrule.TH},
	time.Friday:    {"金", "FR", rrule.FR},
	time.Saturday:  {"土", "SA", rrule.SA},
}

// WeekdayFromKanji maps a single-character Japanese weekday symbol
// (日月火水木金土) to its time.Weekday.
func WeekdayFromKanji(s string) (time.Weekday, error) {
	for i := range weekdayTable {
		if weekdayTable[i].kanji == s {
			return time.Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday symbol %q", s)
}

// Kanji returns the Japanese symbol for a weekday.
func Kanji(w time.Weekday) string {
	return weekdayTable[w].kanji
}

// ByDay returns the two-letter recurrence-rule code (SU, MO, ...) the
// calendar API expects for a weekday.
func ByDay(w time.Weekday) string {
	return weekdayTable[w].byDay
}

// RRuleWeekday returns the rrule-go weekday for a time.Weekday.
func RRuleWeekday(w time.Weekday) rrule.Weekday {
	return weekdayTable[w].rrule
}

// FirstOnOrAfter returns the earliest date on or after t whose weekday is w.
// The result is at most six days after t and keeps t's clock time and
// location.
func FirstOnOrAfter(t time.Time, w time.Weekday) time.Time {
	diff := (int(w) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, diff)
}
