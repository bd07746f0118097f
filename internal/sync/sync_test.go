package sync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/samber/mo"

	"github.com/gakucal/gakucal/internal/gcal"
	"github.com/gakucal/gakucal/internal/logger"
	"github.com/gakucal/gakucal/internal/reconcile"
	"github.com/gakucal/gakucal/internal/syllabus"
	"github.com/gakucal/gakucal/internal/timetable"
)

type fakeCalendar struct {
	holidays []reconcile.Holiday

	created   []gcal.EventRequest
	createdAt []time.Time
	deleted   []time.Time
	nextID    int
	failWith  error
	failOn    string // substring of the summary that triggers failWith
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, req gcal.EventRequest) (*gcal.Event, error) {
	if f.failWith != nil && (f.failOn == "" || strings.Contains(req.Summary, f.failOn)) {
		return nil, f.failWith
	}
	f.created = append(f.created, req)
	f.createdAt = append(f.createdAt, time.Now())
	f.nextID++
	return &gcal.Event{ID: string(rune('a' + f.nextID - 1))}, nil
}

func (f *fakeCalendar) DeleteEventInstance(ctx context.Context, calendarID, eventID string, date time.Time) error {
	f.deleted = append(f.deleted, date)
	return nil
}

func (f *fakeCalendar) ListHolidays(ctx context.Context, timeMin, timeMax time.Time) ([]reconcile.Holiday, error) {
	return f.holidays, nil
}

type fakeSyllabi struct {
	data mo.Option[syllabus.Syllabus]
	urls []string
}

func (f *fakeSyllabi) Fetch(ctx context.Context, url string) mo.Option[syllabus.Syllabus] {
	f.urls = append(f.urls, url)
	return f.data
}

func jstDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, timetable.JST)
}

var springTerm = reconcile.Range{
	Start: jstDate(2025, time.April, 7),
	End:   jstDate(2025, time.July, 31),
}

func fastOptions() Options {
	return Options{
		CalendarID: "primary",
		Term:       springTerm,
		Delay:      -1,
		Jitter:     -1,
	}
}

func TestRunValidation(t *testing.T) {
	syncer := New(&fakeCalendar{}, nil)
	course := timetable.CourseSlot{Day: time.Tuesday, Period: 2, Name: "線形代数学"}

	t.Run("missing calendar id", func(t *testing.T) {
		opts := fastOptions()
		opts.CalendarID = ""
		if _, err := syncer.Run(context.Background(), []timetable.CourseSlot{course}, opts); err == nil {
			t.Error("expected error for empty calendar id")
		}
	})

	t.Run("invalid term", func(t *testing.T) {
		opts := fastOptions()
		opts.Term = reconcile.Range{Start: springTerm.End, End: springTerm.Start}
		if _, err := syncer.Run(context.Background(), []timetable.CourseSlot{course}, opts); err == nil {
			t.Error("expected error for inverted term")
		}
	})

	t.Run("duplicate cells", func(t *testing.T) {
		dup := []timetable.CourseSlot{course, {Day: time.Tuesday, Period: 2, Name: "幾何学"}}
		if _, err := syncer.Run(context.Background(), dup, fastOptions()); err == nil {
			t.Error("expected error for colliding slots")
		}
	})
}

func TestRunCreatesRecurringEvent(t *testing.T) {
	cal := &fakeCalendar{}
	syl := &fakeSyllabi{data: mo.Some(syllabus.Syllabus{Room: "自然科学1号館201"})}
	syncer := New(cal, syl)

	course := timetable.CourseSlot{
		Day: time.Tuesday, Period: 2,
		Name:        "線形代数学",
		Instructor:  "金沢太郎",
		SyllabusURL: "https://example.ac.jp/syllabus/1",
	}

	result, err := syncer.Run(context.Background(), []timetable.CourseSlot{course}, fastOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(cal.created) != 1 {
		t.Fatalf("created %d events, want 1", len(cal.created))
	}

	req := cal.created[0]
	if req.Summary != "線形代数学" {
		t.Errorf("Summary = %q", req.Summary)
	}
	// First Tuesday on or after 2025-04-07 is the 8th, period 2.
	wantStart := time.Date(2025, time.April, 8, 10, 30, 0, 0, timetable.JST)
	if !req.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", req.Start, wantStart)
	}
	if req.Recurrence != "RRULE:FREQ=WEEKLY;BYDAY=TU;UNTIL=20250731T235959Z" {
		t.Errorf("Recurrence = %q", req.Recurrence)
	}
	if req.Location != "自然科学1号館201" {
		t.Errorf("Location = %q, want the syllabus room", req.Location)
	}
	if !strings.Contains(req.Description, "担当教員: 金沢太郎") {
		t.Errorf("Description missing instructor:\n%s", req.Description)
	}

	if len(syl.urls) != 1 || syl.urls[0] != course.SyllabusURL {
		t.Errorf("syllabus fetches = %v", syl.urls)
	}
	if len(result.Courses) != 1 || result.Courses[0].EventID == "" {
		t.Errorf("result = %+v", result)
	}
}

func TestRunSuppressesHolidays(t *testing.T) {
	// 2025-04-29 (昭和の日) is a Tuesday inside the term.
	cal := &fakeCalendar{holidays: []reconcile.Holiday{
		{Date: jstDate(2025, time.April, 29), Label: "昭和の日"},
	}}
	syncer := New(cal, nil)
	course := timetable.CourseSlot{Day: time.Tuesday, Period: 2, Name: "線形代数学"}

	result, err := syncer.Run(context.Background(), []timetable.CourseSlot{course}, fastOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(cal.deleted) != 1 || cal.deleted[0].Day() != 29 {
		t.Errorf("deleted instances = %v, want the holiday occurrence", cal.deleted)
	}
	if result.Courses[0].Suppressed != 1 {
		t.Errorf("Suppressed = %d, want 1", result.Courses[0].Suppressed)
	}
	if result.Holidays != 1 {
		t.Errorf("Holidays = %d, want 1", result.Holidays)
	}
}

func TestRunCreatesReplacementEvents(t *testing.T) {
	cal := &fakeCalendar{}
	syncer := New(cal, nil)
	course := timetable.CourseSlot{Day: time.Tuesday, Period: 2, Name: "線形代数学"}

	// Wednesday 2025-05-14 runs a Tuesday schedule.
	changes := reconcile.NewChangeSet()
	if _, err := changes.Add(jstDate(2025, time.May, 14), time.Tuesday, "火曜授業日"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	opts := fastOptions()
	opts.Changes = changes
	result, err := syncer.Run(context.Background(), []timetable.CourseSlot{course}, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(cal.created) != 2 {
		t.Fatalf("created %d events, want recurring + replacement", len(cal.created))
	}
	rep := cal.created[1]
	if rep.Summary != "線形代数学 (火曜授業日)" {
		t.Errorf("replacement Summary = %q", rep.Summary)
	}
	if rep.Recurrence != "" {
		t.Errorf("replacement should be standalone, got %q", rep.Recurrence)
	}
	wantStart := time.Date(2025, time.May, 14, 10, 30, 0, 0, timetable.JST)
	if !rep.Start.Equal(wantStart) {
		t.Errorf("replacement Start = %v, want %v", rep.Start, wantStart)
	}
	if result.Courses[0].Replacements != 1 {
		t.Errorf("Replacements = %d, want 1", result.Courses[0].Replacements)
	}
}

func TestRunStopsOnCreateFailure(t *testing.T) {
	cal := &fakeCalendar{failWith: errors.New("quota exceeded"), failOn: "幾何学"}
	syncer := New(cal, nil)
	courses := []timetable.CourseSlot{
		{Day: time.Monday, Period: 1, Name: "解析学"},
		{Day: time.Tuesday, Period: 2, Name: "幾何学"},
		{Day: time.Wednesday, Period: 3, Name: "代数学"},
	}

	var progress []int
	opts := fastOptions()
	opts.OnProgress = func(done, total int) { progress = append(progress, done) }

	result, err := syncer.Run(context.Background(), courses, opts)
	if err == nil {
		t.Fatal("expected error from failing create")
	}
	if !strings.Contains(err.Error(), "幾何学") {
		t.Errorf("error should name the failing course: %v", err)
	}
	// The first course's event stays; the third course is never attempted.
	if len(cal.created) != 1 {
		t.Errorf("created %d events, want 1", len(cal.created))
	}
	if len(progress) != 1 || progress[0] != 1 {
		t.Errorf("progress = %v, want [1]", progress)
	}
	if len(result.Courses) != 1 {
		t.Errorf("result has %d courses, want the one that finished", len(result.Courses))
	}
}

func TestRunContextCancellation(t *testing.T) {
	cal := &fakeCalendar{}
	syncer := New(cal, nil)
	courses := []timetable.CourseSlot{
		{Day: time.Monday, Period: 1, Name: "解析学"},
		{Day: time.Tuesday, Period: 2, Name: "幾何学"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	opts := fastOptions()
	opts.OnProgress = func(done, total int) { cancel() }

	_, err := syncer.Run(ctx, courses, opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(cal.created) != 1 {
		t.Errorf("created %d events after cancel, want 1", len(cal.created))
	}
}

func TestRunPacesCreateCalls(t *testing.T) {
	cal := &fakeCalendar{}
	syncer := New(cal, nil)
	// No holidays and no changes: the only remote calls are the three
	// recurring creates, which must still be spaced by the delay.
	courses := []timetable.CourseSlot{
		{Day: time.Monday, Period: 1, Name: "解析学"},
		{Day: time.Tuesday, Period: 2, Name: "幾何学"},
		{Day: time.Wednesday, Period: 3, Name: "代数学"},
	}

	opts := fastOptions()
	opts.Delay = 30 * time.Millisecond
	opts.Jitter = -1 // deterministic spacing

	if _, err := syncer.Run(context.Background(), courses, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(cal.createdAt) != 3 {
		t.Fatalf("created %d events, want 3", len(cal.createdAt))
	}
	for i := 1; i < len(cal.createdAt); i++ {
		if gap := cal.createdAt[i].Sub(cal.createdAt[i-1]); gap < opts.Delay {
			t.Errorf("creates %d and %d only %v apart, want >= %v", i-1, i, gap, opts.Delay)
		}
	}
}

func TestRunRecordsMetrics(t *testing.T) {
	cal := &fakeCalendar{}
	syncer := New(cal, nil)
	courses := []timetable.CourseSlot{
		{Day: time.Monday, Period: 1, Name: "解析学"},
		{Day: time.Tuesday, Period: 2, Name: "幾何学"},
	}

	if _, err := syncer.Run(context.Background(), courses, fastOptions()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snapshot := logger.GetMetricsSnapshot()
	counters := snapshot["counters"].(map[string]int64)
	if counters["sync.recurring_events"] < 2 {
		t.Errorf("sync.recurring_events = %d, want >= 2", counters["sync.recurring_events"])
	}
	gauges := snapshot["gauges"].(map[string]float64)
	if gauges["sync.courses"] != 2 {
		t.Errorf("sync.courses gauge = %v, want 2", gauges["sync.courses"])
	}
}

func TestRunWithoutSyllabusFetcher(t *testing.T) {
	cal := &fakeCalendar{}
	syncer := New(cal, nil)
	course := timetable.CourseSlot{
		Day: time.Friday, Period: 1,
		Name:        "英語",
		Instructor:  "Smith",
		SyllabusURL: "https://example.ac.jp/syllabus/2",
	}

	if _, err := syncer.Run(context.Background(), []timetable.CourseSlot{course}, fastOptions()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cal.created[0].Location != "" {
		t.Errorf("Location = %q, want empty without syllabus data", cal.created[0].Location)
	}
}
