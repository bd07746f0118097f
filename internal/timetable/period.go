package timetable

import (
	"fmt"
	"time"
)

// ClockTime is a wall-clock time of day without a date.
type ClockTime struct {
	Hour   int
	Minute int
}

// On anchors the clock time to the date of d in JST.
func (c ClockTime) On(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour, c.Minute, 0, 0, JST)
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) minutes() int {
	return c.Hour*60 + c.Minute
}

// Window is the wall-clock start/end of one class period.
type Window struct {
	Start ClockTime
	End   ClockTime
}

// periodWindows is the institution's period schedule, aligned with the card
// touch terminals in each lecture room.
var periodWindows = [8]Window{
	1: {ClockTime{8, 45}, ClockTime{10, 15}},
	2: {ClockTime{10, 30}, ClockTime{12, 0}},
	3: {ClockTime{13, 0}, ClockTime{14, 30}},
	4: {ClockTime{14, 45}, ClockTime{16, 15}},
	5: {ClockTime{16, 30}, ClockTime{18, 0}},
	6: {ClockTime{18, 15}, ClockTime{19, 45}},
	7: {ClockTime{20, 0}, ClockTime{21, 15}},
}

// PeriodWindow returns the wall-clock window for periods 1 through 7.
func PeriodWindow(period int) (Window, error) {
	if period < 1 || period > 7 {
		return Window{}, fmt.Errorf("period %d out of range 1..7", period)
	}
	return periodWindows[period], nil
}

// periodBands maps times of day back to periods. Each band is half-open,
// [start, next start), so a time belongs to exactly one band. Band 1 opens
// before period 1 starts and each band runs a few minutes past its period's
// end to absorb card touches between classes.
var periodBands = [...]ClockTime{
	{8, 0},   // period 1
	{10, 20}, // period 2
	{12, 5},  // period 3
	{14, 35}, // period 4
	{16, 20}, // period 5
	{18, 5},  // period 6
	{19, 50}, // period 7
	{21, 20}, // period 8
	{22, 45}, // end of period 8 band
}

// PeriodAt returns the period whose band contains t, or 0 when t falls
// outside every band (before 08:00 or from 22:45 on).
func PeriodAt(t time.Time) int {
	m := t.Hour()*60 + t.Minute()
	for p := 1; p < len(periodBands); p++ {
		if m >= periodBands[p-1].minutes() && m < periodBands[p].minutes() {
			return p
		}
	}
	return 0
}
