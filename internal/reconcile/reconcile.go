package reconcile

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/gakucal/gakucal/internal/timetable"
)

// Range is a closed date range. Only the calendar dates of Start and End
// matter; clock times are ignored.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the date of t falls within the range.
func (r Range) Contains(t time.Time) bool {
	key := dateKey(t)
	return key >= dateKey(r.Start) && key <= dateKey(r.End)
}

// Validate rejects empty or inverted ranges.
func (r Range) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("term range requires both start and end dates")
	}
	if dateKey(r.End) < dateKey(r.Start) {
		return fmt.Errorf("term range end %s precedes start %s", dateKey(r.End), dateKey(r.Start))
	}
	return nil
}

// Replacement is a request for one standalone event representing a course
// meeting on a date outside its natural weekly pattern.
type Replacement struct {
	Date       time.Time
	Start      time.Time
	End        time.Time
	Annotation string
}

// Plan is the reconciliation result for one course over one term.
type Plan struct {
	Course          timetable.CourseSlot
	FirstOccurrence time.Time
	RRule           string
	Suppress        []time.Time
	Replacements    []Replacement
}

// RecurrenceRule builds the weekly recurrence-rule string the calendar API
// expects. The field order is part of the wire contract, so the string is
// assembled here rather than serialized through the rrule library.
func RecurrenceRule(day time.Weekday, termEnd time.Time) string {
	until := termEnd.In(timetable.JST).Format("20060102")
	return fmt.Sprintf("RRULE:FREQ=WEEKLY;BYDAY=%s;UNTIL=%sT235959Z", timetable.ByDay(day), until)
}

// BuildPlan reconciles one course's weekly recurrence against the term's
// holidays and schedule changes.
//
// A natural occurrence date is suppressed when it is a holiday, or when a
// schedule change displaces that day's timetable; the holiday check takes
// precedence so a date is never marked twice. Independently, every change
// that borrows this course's weekday onto another date yields a replacement
// request, unless that date is itself a holiday.
//
// The result is deterministic: dates are deduplicated and ordered.
func BuildPlan(course timetable.CourseSlot, term Range, holidays *HolidaySet, changes *ChangeSet) (*Plan, error) {
	if err := term.Validate(); err != nil {
		return nil, err
	}
	window, err := timetable.PeriodWindow(course.Period)
	if err != nil {
		return nil, fmt.Errorf("course %q: %w", course.Name, err)
	}

	start := midnight(term.Start)
	end := midnight(term.End)
	first := timetable.FirstOnOrAfter(start, course.Day)

	plan := &Plan{
		Course:          course,
		FirstOccurrence: first,
		RRule:           RecurrenceRule(course.Day, end),
		Suppress:        []time.Time{},
		Replacements:    []Replacement{},
	}

	// Natural occurrence dates of the weekly pattern. When the anchor falls
	// past the term end the rule yields nothing and only replacements can
	// remain.
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{timetable.RRuleWeekday(course.Day)},
		Dtstart:   first,
		Until:     end.Add(24*time.Hour - time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("course %q: building recurrence: %w", course.Name, err)
	}

	seen := make(map[string]bool)
	for _, natural := range rule.All() {
		key := dateKey(natural)
		if seen[key] {
			continue
		}
		if holidays.Contains(natural) {
			seen[key] = true
			plan.Suppress = append(plan.Suppress, midnight(natural))
			continue
		}
		if _, displaced := changes.ForDate(natural); displaced {
			seen[key] = true
			plan.Suppress = append(plan.Suppress, midnight(natural))
		}
	}

	// Inbound substitutions: dates that behave like this course's weekday
	// even though they are not naturally one. All() is date-ordered, which
	// keeps the plan deterministic.
	for _, change := range changes.All() {
		if change.ToDay != course.Day || !term.Contains(change.Date) {
			continue
		}
		if holidays.Contains(change.Date) {
			continue
		}
		date := midnight(change.Date)
		plan.Replacements = append(plan.Replacements, Replacement{
			Date:       date,
			Start:      window.Start.On(date),
			End:        window.End.On(date),
			Annotation: change.Description,
		})
	}

	return plan, nil
}

func midnight(t time.Time) time.Time {
	t = t.In(timetable.JST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, timetable.JST)
}
