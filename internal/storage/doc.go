// Package storage provides JSON-based persistence for gakucal's local state.
//
// Three files live under the data directory: changes.json holds the
// user-recorded schedule changes, holidays.json caches the holiday calendar
// for a term, and timetable.json keeps the last scraped timetable so plan
// and export can run offline. The default location is ~/.local/share/gakucal/.
package storage
