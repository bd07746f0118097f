// Command gakucal syncs a university timetable into Google Calendar.
package main

import "github.com/gakucal/gakucal/internal/cli"

func main() {
	cli.Execute()
}
