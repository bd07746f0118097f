package timetable

import (
	"fmt"
	"time"
)

// CourseSlot is one course occupying one (weekday, period) cell of the
// timetable, as scraped from the registration list page. Immutable once
// scraped.
type CourseSlot struct {
	Day         time.Weekday `json:"day"`
	Period      int          `json:"period"`
	Name        string       `json:"name"`
	Instructor  string       `json:"instructor"`
	SyllabusURL string       `json:"syllabus_url"`
}

// Cell returns the timetable cell label, e.g. "火2".
func (c CourseSlot) Cell() string {
	return fmt.Sprintf("%s%d", Kanji(c.Day), c.Period)
}

// ValidateSlots rejects timetables where two courses occupy the same
// (weekday, period) cell. The portal renders such collisions by silently
// keeping the first match; syncing them would create overlapping recurring
// events, so they are refused at ingestion instead.
func ValidateSlots(slots []CourseSlot) error {
	seen := make(map[string]string, len(slots))
	for _, slot := range slots {
		cell := slot.Cell()
		if prev, ok := seen[cell]; ok {
			return fmt.Errorf("timetable cell %s occupied by both %q and %q", cell, prev, slot.Name)
		}
		seen[cell] = slot.Name
	}
	return nil
}
