package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gakucal/gakucal/internal/reconcile"
	"github.com/gakucal/gakucal/internal/timetable"
)

func samplePlan(t *testing.T) *reconcile.Plan {
	t.Helper()
	term := reconcile.Range{
		Start: time.Date(2025, time.April, 7, 0, 0, 0, 0, timetable.JST),
		End:   time.Date(2025, time.July, 31, 0, 0, 0, 0, timetable.JST),
	}
	holidays := reconcile.NewHolidaySet([]reconcile.Holiday{
		{Date: time.Date(2025, time.April, 29, 0, 0, 0, 0, timetable.JST), Label: "昭和の日"},
	})
	changes := reconcile.NewChangeSet()
	if _, err := changes.Add(time.Date(2025, time.May, 14, 0, 0, 0, 0, timetable.JST), time.Tuesday, "火曜授業日"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	course := timetable.CourseSlot{Day: time.Tuesday, Period: 2, Name: "線形代数学", Instructor: "金沢太郎"}
	plan, err := reconcile.BuildPlan(course, term, holidays, changes)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	return plan
}

func TestWritePlanResultText(t *testing.T) {
	result := &PlanResult{
		TermStart: "2025-04-07",
		TermEnd:   "2025-07-31",
		Holidays:  1,
		Courses:   []CoursePlan{NewCoursePlan(samplePlan(t))},
	}

	var buf bytes.Buffer
	if err := WritePlanResult(&buf, result, FormatText); err != nil {
		t.Fatalf("WritePlanResult: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"1 courses planned",
		"火2 線形代数学 (金沢太郎)",
		"first: 2025-04-08",
		"skip:  2025-04-29",
		"extra: 2025-05-14 (火曜授業日)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWritePlanResultJSON(t *testing.T) {
	result := &PlanResult{
		TermStart: "2025-04-07",
		TermEnd:   "2025-07-31",
		Courses:   []CoursePlan{NewCoursePlan(samplePlan(t))},
	}

	var buf bytes.Buffer
	if err := WritePlanResult(&buf, result, FormatJSON); err != nil {
		t.Fatalf("WritePlanResult: %v", err)
	}

	var decoded PlanResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded.Courses) != 1 || decoded.Courses[0].Cell != "火2" {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Courses[0].RRule != "RRULE:FREQ=WEEKLY;BYDAY=TU;UNTIL=20250731T235959Z" {
		t.Errorf("RRule = %q", decoded.Courses[0].RRule)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWritePlanResultWriterError(t *testing.T) {
	result := &PlanResult{
		TermStart: "2025-04-07",
		TermEnd:   "2025-07-31",
		Courses:   []CoursePlan{NewCoursePlan(samplePlan(t))},
	}
	if err := WritePlanResult(failingWriter{}, result, FormatJSON); err == nil {
		t.Error("expected error from failing writer")
	}
}

func TestWriteChanges(t *testing.T) {
	changes := reconcile.NewChangeSet()
	added, err := changes.Add(time.Date(2025, time.May, 14, 0, 0, 0, 0, timetable.JST), time.Tuesday, "火曜授業日")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteChanges(&buf, changes.All(), FormatText); err != nil {
			t.Fatalf("WriteChanges: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, added.ID) || !strings.Contains(out, "2025-05-14") {
			t.Errorf("output = %q", out)
		}
		if !strings.Contains(out, "水→火") {
			t.Errorf("output should show the substitution: %q", out)
		}
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteChanges(&buf, nil, FormatText); err != nil {
			t.Fatalf("WriteChanges: %v", err)
		}
		if !strings.Contains(buf.String(), "No schedule changes") {
			t.Errorf("output = %q", buf.String())
		}
	})
}
