package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gakucal/gakucal/internal/reconcile"
	"github.com/gakucal/gakucal/internal/timetable"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

const dateLayout = "2006-01-02"

// CoursePlan is the per-course slice of a plan or sync result.
type CoursePlan struct {
	Cell         string   `json:"cell"`
	Name         string   `json:"name"`
	Instructor   string   `json:"instructor,omitempty"`
	RRule        string   `json:"rrule"`
	First        string   `json:"first_occurrence"`
	Suppressed   []string `json:"suppressed,omitempty"`
	Replacements []string `json:"replacements,omitempty"`
	EventID      string   `json:"event_id,omitempty"`
}

// PlanResult is the output of the plan and sync commands.
type PlanResult struct {
	GeneratedAt time.Time    `json:"generated_at"`
	TermStart   string       `json:"term_start"`
	TermEnd     string       `json:"term_end"`
	Holidays    int          `json:"holidays"`
	Courses     []CoursePlan `json:"courses"`
	Synced      bool         `json:"synced"`
}

// NewCoursePlan flattens a reconciliation plan for output.
func NewCoursePlan(plan *reconcile.Plan) CoursePlan {
	out := CoursePlan{
		Cell:       plan.Course.Cell(),
		Name:       plan.Course.Name,
		Instructor: plan.Course.Instructor,
		RRule:      plan.RRule,
		First:      plan.FirstOccurrence.Format(dateLayout),
	}
	for _, date := range plan.Suppress {
		out.Suppressed = append(out.Suppressed, date.Format(dateLayout))
	}
	for _, rep := range plan.Replacements {
		label := rep.Date.Format(dateLayout)
		if rep.Annotation != "" {
			label += " (" + rep.Annotation + ")"
		}
		out.Replacements = append(out.Replacements, label)
	}
	return out
}

// WritePlanResult writes the result in the specified format
func WritePlanResult(w io.Writer, result *PlanResult, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, result)
	}

	verb := "planned"
	if result.Synced {
		verb = "synced"
	}
	fmt.Fprintf(w, "Term %s .. %s, %d holidays, %d courses %s\n",
		result.TermStart, result.TermEnd, result.Holidays, len(result.Courses), verb)
	for _, course := range result.Courses {
		fmt.Fprintf(w, "\n%s %s", course.Cell, course.Name)
		if course.Instructor != "" {
			fmt.Fprintf(w, " (%s)", course.Instructor)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  first: %s\n", course.First)
		fmt.Fprintf(w, "  rule:  %s\n", course.RRule)
		for _, date := range course.Suppressed {
			fmt.Fprintf(w, "  skip:  %s\n", date)
		}
		for _, rep := range course.Replacements {
			fmt.Fprintf(w, "  extra: %s\n", rep)
		}
		if course.EventID != "" {
			fmt.Fprintf(w, "  event: %s\n", course.EventID)
		}
	}
	return nil
}

// ChangeRow is one schedule change for output.
type ChangeRow struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	FromDay     string `json:"from_day"`
	ToDay       string `json:"to_day"`
	Description string `json:"description,omitempty"`
}

// WriteChanges lists the configured schedule changes.
func WriteChanges(w io.Writer, changes []reconcile.ScheduleChange, format OutputFormat) error {
	rows := make([]ChangeRow, 0, len(changes))
	for _, change := range changes {
		rows = append(rows, ChangeRow{
			ID:          change.ID,
			Date:        change.Date.Format(dateLayout),
			FromDay:     change.FromDay,
			ToDay:       timetable.Kanji(change.ToDay),
			Description: change.Description,
		})
	}

	if format == FormatJSON {
		return writeJSON(w, rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, "No schedule changes configured.")
		return nil
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s  %s %s→%s", row.ID, row.Date, row.FromDay, row.ToDay)
		if row.Description != "" {
			fmt.Fprintf(w, "  %s", row.Description)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// writeJSON outputs results as indented JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
