// Package sync drives the calendar API from a scraped timetable: one
// recurring event per course, suppressed occurrences deleted, replacement
// events created for substituted days.
package sync

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/samber/mo"

	"github.com/gakucal/gakucal/internal/gcal"
	"github.com/gakucal/gakucal/internal/logger"
	"github.com/gakucal/gakucal/internal/reconcile"
	"github.com/gakucal/gakucal/internal/syllabus"
	"github.com/gakucal/gakucal/internal/timetable"
)

const (
	// Base delay and jitter between consecutive remote calls. The upstream
	// API rate-limits bursts; the workload is small enough that a
	// cooperative delay suffices.
	DefaultDelay  = 300 * time.Millisecond
	DefaultJitter = 200 * time.Millisecond
)

// Calendar is the slice of the calendar API the orchestrator needs.
type Calendar interface {
	CreateEvent(ctx context.Context, req gcal.EventRequest) (*gcal.Event, error)
	DeleteEventInstance(ctx context.Context, calendarID, eventID string, date time.Time) error
	ListHolidays(ctx context.Context, timeMin, timeMax time.Time) ([]reconcile.Holiday, error)
}

// SyllabusFetcher enriches courses with syllabus data.
type SyllabusFetcher interface {
	Fetch(ctx context.Context, url string) mo.Option[syllabus.Syllabus]
}

// Options configures one sync run.
type Options struct {
	CalendarID string
	Term       reconcile.Range
	Changes    *reconcile.ChangeSet

	// Delay/Jitter between remote calls. Zero values use the defaults; a
	// negative value disables that component.
	Delay  time.Duration
	Jitter time.Duration

	// OnProgress is called after each course with the number of courses
	// finished and the total. Optional.
	OnProgress func(done, total int)
}

// CourseResult records what one course's sync did.
type CourseResult struct {
	Course       timetable.CourseSlot
	Plan         *reconcile.Plan
	EventID      string
	Suppressed   int
	Replacements int
}

// Result summarizes a run. On a hard failure the run stops at the failing
// course; work already performed against the calendar is not undone.
type Result struct {
	Courses  []CourseResult
	Holidays int
}

// Syncer orchestrates sync runs.
type Syncer struct {
	calendar Calendar
	syllabi  SyllabusFetcher
}

// New creates a Syncer.
func New(calendar Calendar, syllabi SyllabusFetcher) *Syncer {
	return &Syncer{calendar: calendar, syllabi: syllabi}
}

// Run syncs every course into the configured calendar. Validation happens
// before any remote call. The run stops on the first hard failure: a failed
// recurring-event creation, instance deletion or replacement creation.
// Cancelling ctx stops the run before the next remote call.
func (s *Syncer) Run(ctx context.Context, courses []timetable.CourseSlot, opts Options) (*Result, error) {
	if opts.CalendarID == "" {
		return nil, fmt.Errorf("calendar id is required")
	}
	if err := opts.Term.Validate(); err != nil {
		return nil, err
	}
	if err := timetable.ValidateSlots(courses); err != nil {
		return nil, err
	}
	if opts.Changes == nil {
		opts.Changes = reconcile.NewChangeSet()
	}
	switch {
	case opts.Delay == 0:
		opts.Delay = DefaultDelay
	case opts.Delay < 0:
		opts.Delay = 0
	}
	switch {
	case opts.Jitter == 0:
		opts.Jitter = DefaultJitter
	case opts.Jitter < 0:
		opts.Jitter = 0
	}

	holidays, err := s.calendar.ListHolidays(ctx, opts.Term.Start, endOfDay(opts.Term.End))
	if err != nil {
		return nil, fmt.Errorf("fetching holidays: %w", err)
	}
	holidaySet := reconcile.NewHolidaySet(holidays)
	logger.Info("Fetched holidays", logger.Fields{
		"count": holidaySet.Len(),
		"from":  opts.Term.Start.Format("2006-01-02"),
		"to":    opts.Term.End.Format("2006-01-02"),
	})

	logger.SetGauge("sync.courses", float64(len(courses)))

	result := &Result{Holidays: holidaySet.Len()}
	for i, course := range courses {
		courseResult, err := s.syncCourse(ctx, course, holidaySet, opts)
		if courseResult != nil {
			result.Courses = append(result.Courses, *courseResult)
		}
		if err != nil {
			logger.Error("Course sync failed", logger.Fields{
				"course": course.Name,
				"cell":   course.Cell(),
			}, err)
			return result, fmt.Errorf("course %q (%s): %w", course.Name, course.Cell(), err)
		}
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(courses))
		}
	}
	return result, nil
}

func (s *Syncer) syncCourse(ctx context.Context, course timetable.CourseSlot, holidays *reconcile.HolidaySet, opts Options) (*CourseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Every course opens with the inter-call delay so a timetable with no
	// suppressions or replacements still paces its create calls.
	if err := pause(ctx, opts.Delay, opts.Jitter); err != nil {
		return nil, err
	}

	// Syllabus data only decorates the event; failures degrade to None.
	syl := mo.None[syllabus.Syllabus]()
	if course.SyllabusURL != "" && s.syllabi != nil {
		syl = s.syllabi.Fetch(ctx, course.SyllabusURL)
	}
	location := ""
	if data, ok := syl.Get(); ok {
		location = data.Room
	}
	details := syllabus.FormatDetails(course.Instructor, course.SyllabusURL, syl)

	plan, err := reconcile.BuildPlan(course, opts.Term, holidays, opts.Changes)
	if err != nil {
		return nil, err
	}

	window, err := timetable.PeriodWindow(course.Period)
	if err != nil {
		return nil, err
	}

	created, err := s.calendar.CreateEvent(ctx, gcal.EventRequest{
		CalendarID:  opts.CalendarID,
		Summary:     course.Name,
		Description: details,
		Location:    location,
		Start:       window.Start.On(plan.FirstOccurrence),
		End:         window.End.On(plan.FirstOccurrence),
		Recurrence:  plan.RRule,
	})
	if err != nil {
		return nil, fmt.Errorf("creating recurring event: %w", err)
	}
	logger.IncrCounter("sync.recurring_events")

	courseResult := &CourseResult{Course: course, Plan: plan, EventID: created.ID}

	for _, date := range plan.Suppress {
		if err := pause(ctx, opts.Delay, opts.Jitter); err != nil {
			return courseResult, err
		}
		if err := s.calendar.DeleteEventInstance(ctx, opts.CalendarID, created.ID, date); err != nil {
			return courseResult, fmt.Errorf("suppressing %s: %w", date.Format("2006-01-02"), err)
		}
		courseResult.Suppressed++
		logger.IncrCounter("sync.suppressed_occurrences")
	}

	for _, rep := range plan.Replacements {
		if err := pause(ctx, opts.Delay, opts.Jitter); err != nil {
			return courseResult, err
		}
		annotation := rep.Annotation
		if annotation == "" {
			annotation = "時間割変更"
		}
		_, err := s.calendar.CreateEvent(ctx, gcal.EventRequest{
			CalendarID:  opts.CalendarID,
			Summary:     fmt.Sprintf("%s (%s)", course.Name, annotation),
			Description: fmt.Sprintf("%s\n\n時間割変更: %s", details, rep.Annotation),
			Location:    location,
			Start:       rep.Start,
			End:         rep.End,
		})
		if err != nil {
			return courseResult, fmt.Errorf("creating replacement on %s: %w", rep.Date.Format("2006-01-02"), err)
		}
		courseResult.Replacements++
		logger.IncrCounter("sync.replacement_events")
	}

	logger.Info("Synced course", logger.Fields{
		"course":       course.Name,
		"cell":         course.Cell(),
		"event_id":     created.ID,
		"suppressed":   courseResult.Suppressed,
		"replacements": courseResult.Replacements,
	})
	return courseResult, nil
}

// pause waits the jittered inter-call delay, or returns early when ctx is
// cancelled.
func pause(ctx context.Context, delay, jitter time.Duration) error {
	d := delay
	if jitter > 0 {
		d += time.Duration(rand.Int63n(int64(jitter)))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func endOfDay(t time.Time) time.Time {
	t = t.In(timetable.JST)
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, timetable.JST)
}
