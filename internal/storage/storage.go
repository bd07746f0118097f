package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gakucal/gakucal/internal/reconcile"
	"github.com/gakucal/gakucal/internal/timetable"
)

const (
	changesFile   = "changes.json"
	holidaysFile  = "holidays.json"
	timetableFile = "timetable.json"
)

// Storage handles persistence of local state under the data directory.
type Storage struct {
	dataDir string
}

// New creates a Storage instance, creating the data directory when needed.
func New(dataDir string) (*Storage, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{dataDir: dataDir}, nil
}

// changesDocument is the on-disk shape of the schedule-change list.
type changesDocument struct {
	UpdatedAt string                     `json:"updated_at"`
	Changes   []reconcile.ScheduleChange `json:"changes"`
}

// LoadChanges reads the recorded schedule changes. A missing file yields an
// empty set.
func (s *Storage) LoadChanges() (*reconcile.ChangeSet, error) {
	data, err := os.ReadFile(filepath.Join(s.dataDir, changesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return reconcile.NewChangeSet(), nil
		}
		return nil, fmt.Errorf("reading changes: %w", err)
	}

	var doc changesDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing changes: %w", err)
	}

	changes := reconcile.NewChangeSet()
	if err := changes.Restore(doc.Changes); err != nil {
		return nil, fmt.Errorf("restoring changes: %w", err)
	}
	return changes, nil
}

// SaveChanges writes the schedule-change list to disk.
func (s *Storage) SaveChanges(changes *reconcile.ChangeSet) error {
	doc := changesDocument{
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Changes:   changes.All(),
	}
	return s.writeJSON(changesFile, doc)
}

// holidaysDocument caches the fetched holiday calendar for one term.
type holidaysDocument struct {
	UpdatedAt string              `json:"updated_at"`
	TermStart string              `json:"term_start"`
	TermEnd   string              `json:"term_end"`
	Holidays  []reconcile.Holiday `json:"holidays"`
}

// LoadHolidays returns the cached holidays when the cache covers the given
// term; ok is false on a miss. A missing or stale cache is not an error.
func (s *Storage) LoadHolidays(term reconcile.Range) ([]reconcile.Holiday, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dataDir, holidaysFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading holiday cache: %w", err)
	}

	var doc holidaysDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("parsing holiday cache: %w", err)
	}
	if doc.TermStart != dateKey(term.Start) || doc.TermEnd != dateKey(term.End) {
		return nil, false, nil
	}
	return doc.Holidays, true, nil
}

// SaveHolidays caches the holidays fetched for a term.
func (s *Storage) SaveHolidays(term reconcile.Range, holidays []reconcile.Holiday) error {
	doc := holidaysDocument{
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		TermStart: dateKey(term.Start),
		TermEnd:   dateKey(term.End),
		Holidays:  holidays,
	}
	return s.writeJSON(holidaysFile, doc)
}

// timetableDocument is the on-disk shape of the last scraped timetable.
type timetableDocument struct {
	UpdatedAt string                 `json:"updated_at"`
	Courses   []timetable.CourseSlot `json:"courses"`
}

// LoadTimetable reads the last scraped timetable. A missing file yields an
// empty slice.
func (s *Storage) LoadTimetable() ([]timetable.CourseSlot, error) {
	data, err := os.ReadFile(filepath.Join(s.dataDir, timetableFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []timetable.CourseSlot{}, nil
		}
		return nil, fmt.Errorf("reading timetable: %w", err)
	}

	var doc timetableDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing timetable: %w", err)
	}
	if doc.Courses == nil {
		doc.Courses = []timetable.CourseSlot{}
	}
	return doc.Courses, nil
}

// SaveTimetable writes the scraped timetable to disk.
func (s *Storage) SaveTimetable(courses []timetable.CourseSlot) error {
	doc := timetableDocument{
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Courses:   courses,
	}
	return s.writeJSON(timetableFile, doc)
}

func (s *Storage) writeJSON(name string, doc interface{}) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dataDir, name), data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func dateKey(t time.Time) string {
	return t.In(timetable.JST).Format("2006-01-02")
}
