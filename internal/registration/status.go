// Package registration parses the portal's course-registration status table
// and computes per-priority fill ratios.
package registration

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/gakucal/gakucal/internal/timetable"
)

// The status table comes in exactly two layouts. During the registration
// period the portal shows capacity plus six priority buckets; after
// adjustment it shows capacity plus the final registered count.
const (
	fullRowLen     = 14
	adjustedRowLen = 9
)

// Course is the course identity carried on each status row.
type Course struct {
	Number        string
	Type          string
	Name          string
	Instructor    string
	TargetStudent string
	DayPeriods    []timetable.Slot
}

// Status is one row of the full (pre-adjustment) registration table.
type Status struct {
	Course   Course
	Capacity int // 適正人数
	Total    int
	Primary  int
	First    int
	Second   int
	Third    int
	Fourth   int
	Fifth    int
}

// AdjustedStatus is one row of the post-adjustment table.
type AdjustedStatus struct {
	Course     Course
	Capacity   int
	Registered int
}

// Table holds the parsed status rows. Exactly one of Full or Adjusted is
// populated, depending on which layout the portal served.
type Table struct {
	Full     []Status
	Adjusted []AdjustedStatus
}

// ParseRows converts raw table rows into a Table. Rows must all share one of
// the two known column widths; any other width is a fatal parse error that
// points at a scraper/selector problem upstream.
func ParseRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return &Table{}, nil
	}

	switch len(rows[0]) {
	case fullRowLen:
		full := make([]Status, 0, len(rows))
		for i, row := range rows {
			st, err := parseFullRow(row)
			if err != nil {
				return nil, errors.Wrapf(err, "status row %d", i)
			}
			full = append(full, st)
		}
		return &Table{Full: full}, nil
	case adjustedRowLen:
		adjusted := make([]AdjustedStatus, 0, len(rows))
		for i, row := range rows {
			st, err := parseAdjustedRow(row)
			if err != nil {
				return nil, errors.Wrapf(err, "status row %d", i)
			}
			adjusted = append(adjusted, st)
		}
		return &Table{Adjusted: adjusted}, nil
	default:
		return nil, errors.Errorf("invalid status row length %d, expected %d or %d",
			len(rows[0]), adjustedRowLen, fullRowLen)
	}
}

func parseCourse(row []string) (Course, error) {
	dayPeriods, err := timetable.ParseDayPeriods(row[3])
	if err != nil {
		return Course{}, errors.WithStack(err)
	}
	return Course{
		Number:        row[0],
		Type:          row[1],
		Name:          row[2],
		Instructor:    row[4],
		TargetStudent: row[5],
		DayPeriods:    dayPeriods,
	}, nil
}

func parseFullRow(row []string) (Status, error) {
	if len(row) != fullRowLen {
		return Status{}, errors.Errorf("row length %d, expected %d", len(row), fullRowLen)
	}
	course, err := parseCourse(row)
	if err != nil {
		return Status{}, err
	}

	counts := make([]int, 0, 8)
	for _, cell := range row[6:] {
		n, err := strconv.Atoi(cell)
		if err != nil {
			return Status{}, errors.Wrapf(err, "count cell %q", cell)
		}
		counts = append(counts, n)
	}

	return Status{
		Course:   course,
		Capacity: counts[0],
		Total:    counts[1],
		Primary:  counts[2],
		First:    counts[3],
		Second:   counts[4],
		Third:    counts[5],
		Fourth:   counts[6],
		Fifth:    counts[7],
	}, nil
}

func parseAdjustedRow(row []string) (AdjustedStatus, error) {
	if len(row) != adjustedRowLen {
		return AdjustedStatus{}, errors.Errorf("row length %d, expected %d", len(row), adjustedRowLen)
	}
	course, err := parseCourse(row)
	if err != nil {
		return AdjustedStatus{}, err
	}
	capacity, err := strconv.Atoi(row[6])
	if err != nil {
		return AdjustedStatus{}, errors.Wrapf(err, "capacity cell %q", row[6])
	}
	registered, err := strconv.Atoi(row[7])
	if err != nil {
		return AdjustedStatus{}, errors.Wrapf(err, "registered cell %q", row[7])
	}
	return AdjustedStatus{Course: course, Capacity: capacity, Registered: registered}, nil
}
