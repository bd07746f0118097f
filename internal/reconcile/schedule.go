// Package reconcile computes, per course, which occurrences of its weekly
// recurring calendar event must be suppressed and which standalone
// replacement events must be created, given the term's public holidays and
// any administratively declared day substitutions.
package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gakucal/gakucal/internal/timetable"
)

// dateKey normalizes a time to its JST calendar date.
func dateKey(t time.Time) string {
	return t.In(timetable.JST).Format("2006-01-02")
}

// Holiday is one public holiday, as served by the holiday calendar.
type Holiday struct {
	Date  time.Time `json:"date"`
	Label string    `json:"label"`
}

// HolidaySet answers "is this date a holiday" lookups. The upstream feed
// does not guarantee unique dates; the first entry per date wins.
type HolidaySet struct {
	byDate map[string]Holiday
}

// NewHolidaySet builds a set from a holiday list.
func NewHolidaySet(holidays []Holiday) *HolidaySet {
	s := &HolidaySet{byDate: make(map[string]Holiday, len(holidays))}
	for _, h := range holidays {
		key := dateKey(h.Date)
		if _, ok := s.byDate[key]; !ok {
			s.byDate[key] = h
		}
	}
	return s
}

// Contains reports whether the date of t is a holiday.
func (s *HolidaySet) Contains(t time.Time) bool {
	_, ok := s.byDate[dateKey(t)]
	return ok
}

// Lookup returns the holiday on the date of t, if any.
func (s *HolidaySet) Lookup(t time.Time) (Holiday, bool) {
	h, ok := s.byDate[dateKey(t)]
	return h, ok
}

// Len returns the number of distinct holiday dates.
func (s *HolidaySet) Len() int {
	return len(s.byDate)
}

// ScheduleChange declares that one calendar date follows a different
// weekday's timetable than its natural weekday would imply. FromDay is
// informational; ToDay is the weekday whose timetable applies on Date.
type ScheduleChange struct {
	ID          string       `json:"id"`
	Date        time.Time    `json:"date"`
	FromDay     string       `json:"from_day"`
	ToDay       time.Weekday `json:"to_day"`
	Description string       `json:"description,omitempty"`
}

// ChangeSet holds the schedule changes for one sync session and enforces
// that at most one change exists per date.
type ChangeSet struct {
	changes map[string]ScheduleChange // keyed by date
}

// NewChangeSet returns an empty change set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{changes: make(map[string]ScheduleChange)}
}

// Add records a substitution for date: that day follows toDay's timetable.
// A second change for an already-configured date is rejected.
func (c *ChangeSet) Add(date time.Time, toDay time.Weekday, description string) (ScheduleChange, error) {
	key := dateKey(date)
	if prev, ok := c.changes[key]; ok {
		return ScheduleChange{}, fmt.Errorf("date %s already has a schedule change (%s)", key, prev.ID)
	}
	change := ScheduleChange{
		ID:          uuid.NewString(),
		Date:        date.In(timetable.JST),
		FromDay:     timetable.Kanji(date.In(timetable.JST).Weekday()),
		ToDay:       toDay,
		Description: description,
	}
	c.changes[key] = change
	return change, nil
}

// Restore loads previously persisted changes, enforcing the same
// one-change-per-date invariant.
func (c *ChangeSet) Restore(changes []ScheduleChange) error {
	for _, change := range changes {
		key := dateKey(change.Date)
		if _, ok := c.changes[key]; ok {
			return fmt.Errorf("date %s appears twice in restored schedule changes", key)
		}
		c.changes[key] = change
	}
	return nil
}

// Remove deletes the change with the given id and reports whether one
// existed.
func (c *ChangeSet) Remove(id string) bool {
	for key, change := range c.changes {
		if change.ID == id {
			delete(c.changes, key)
			return true
		}
	}
	return false
}

// ForDate returns the change configured for the date of t, if any.
func (c *ChangeSet) ForDate(t time.Time) (ScheduleChange, bool) {
	change, ok := c.changes[dateKey(t)]
	return change, ok
}

// All returns every change ordered by date.
func (c *ChangeSet) All() []ScheduleChange {
	out := make([]ScheduleChange, 0, len(c.changes))
	for _, change := range c.changes {
		out = append(out, change)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Len returns the number of configured changes.
func (c *ChangeSet) Len() int {
	return len(c.changes)
}
