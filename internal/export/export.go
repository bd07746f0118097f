// Package export renders sync plans as an iCalendar file, for users who
// load their timetable into a client directly instead of syncing through
// the calendar API.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/samber/mo"

	"github.com/gakucal/gakucal/internal/reconcile"
	"github.com/gakucal/gakucal/internal/syllabus"
	"github.com/gakucal/gakucal/internal/timetable"
)

const prodID = "-//gakucal//gakucal//JA"

// utcStamp is the DATE-TIME form SetStartAt serializes; EXDATE values must
// match it.
const utcStamp = "20060102T150405Z"

// Course pairs a sync plan with its optional syllabus data.
type Course struct {
	Plan     *reconcile.Plan
	Syllabus mo.Option[syllabus.Syllabus]
}

// Write renders one VEVENT with RRULE and EXDATEs per course, plus a
// standalone VEVENT per replacement, and serializes the calendar to w.
func Write(w io.Writer, courses []Course) error {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(prodID)

	now := time.Now()
	for _, course := range courses {
		if err := addCourse(cal, course, now); err != nil {
			return err
		}
	}
	return cal.SerializeTo(w)
}

func addCourse(cal *ics.Calendar, course Course, now time.Time) error {
	plan := course.Plan
	slot := plan.Course

	window, err := timetable.PeriodWindow(slot.Period)
	if err != nil {
		return fmt.Errorf("course %q: %w", slot.Name, err)
	}

	location := ""
	if data, ok := course.Syllabus.Get(); ok {
		location = data.Room
	}
	details := syllabus.FormatDetails(slot.Instructor, slot.SyllabusURL, course.Syllabus)

	event := cal.AddEvent(eventUID(slot, plan.FirstOccurrence, ""))
	event.SetDtStampTime(now)
	event.SetSummary(slot.Name)
	event.SetDescription(details)
	if location != "" {
		event.SetLocation(location)
	}
	event.SetStartAt(window.Start.On(plan.FirstOccurrence))
	event.SetEndAt(window.End.On(plan.FirstOccurrence))
	// AddRrule takes the property value; Plan.RRule carries the full line.
	event.AddRrule(strings.TrimPrefix(plan.RRule, "RRULE:"))
	for _, date := range plan.Suppress {
		event.AddExdate(window.Start.On(date).UTC().Format(utcStamp))
	}

	for _, rep := range plan.Replacements {
		annotation := rep.Annotation
		if annotation == "" {
			annotation = "時間割変更"
		}
		standalone := cal.AddEvent(eventUID(slot, rep.Date, "rep-"))
		standalone.SetDtStampTime(now)
		standalone.SetSummary(fmt.Sprintf("%s (%s)", slot.Name, annotation))
		standalone.SetDescription(details)
		if location != "" {
			standalone.SetLocation(location)
		}
		standalone.SetStartAt(rep.Start)
		standalone.SetEndAt(rep.End)
	}
	return nil
}

// eventUID builds a stable UID so regenerated files replace rather than
// duplicate events in clients that honor UIDs.
func eventUID(slot timetable.CourseSlot, date time.Time, prefix string) string {
	return fmt.Sprintf("%s%s%d-%s@gakucal",
		prefix, timetable.ByDay(slot.Day), slot.Period, date.In(timetable.JST).Format("20060102"))
}
