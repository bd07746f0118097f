// Package cli implements the command-line interface for gakucal.
//
// The cli package provides the Cobra-based CLI with commands for syncing the
// scraped timetable into a calendar, previewing the sync plan, exporting an
// ICS file, inspecting registration status, listing writable calendars, and
// managing schedule changes. It coordinates the scraper, reconcile, gcal,
// and storage packages.
package cli
