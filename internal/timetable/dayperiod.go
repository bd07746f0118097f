package timetable

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ktnyt/go-moji"
)

// IntensiveMarker is the literal token the portal uses for intensive
// (non-weekly) courses in a day/period column.
const IntensiveMarker = "集中"

// Slot is one entry parsed from a day/period string: either an intensive
// marker or a concrete weekday+period pair.
type Slot struct {
	Intensive bool
	Day       time.Weekday
	Period    int
}

func (s Slot) String() string {
	if s.Intensive {
		return IntensiveMarker
	}
	return fmt.Sprintf("%s%d", Kanji(s.Day), s.Period)
}

var (
	// The portal mixes half-width and Japanese delimiters freely.
	listDelim  = regexp.MustCompile(`[,，、]`)
	rangeDelim = regexp.MustCompile(`[~〜～]`)
)

// ParseDayPeriods parses a portal day/period string such as "月1~3" or
// "集中,金1~2,土3" into slots. Full-width digits and delimiters are
// normalized to half-width first, so "月１〜３、火４" parses identically to
// "月1~3,火4".
//
// An empty string yields an empty slice. A descending range ("月3~1")
// expands to nothing for that token; this mirrors the portal's own
// rendering, which shows no meetings for such entries. Unknown weekday
// symbols and non-numeric periods are errors.
func ParseDayPeriods(s string) ([]Slot, error) {
	slots := []Slot{}
	if s == "" {
		return slots, nil
	}

	// go-moji's ZE class covers full-width forms of ASCII, so digits and
	// ，～ come out half-width. 、 and 〜 are Japanese punctuation, not
	// full-width ASCII, and are handled by the delimiter classes instead.
	normalized := moji.Convert(s, moji.ZE, moji.HE)

	for _, token := range listDelim.Split(normalized, -1) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if token == IntensiveMarker {
			slots = append(slots, Slot{Intensive: true})
			continue
		}

		runes := []rune(token)
		day, err := WeekdayFromKanji(string(runes[0]))
		if err != nil {
			return nil, fmt.Errorf("day/period token %q: %w", token, err)
		}

		bounds := rangeDelim.Split(string(runes[1:]), -1)
		if len(bounds) > 2 {
			return nil, fmt.Errorf("day/period token %q: more than one range delimiter", token)
		}

		first, err := strconv.Atoi(bounds[0])
		if err != nil {
			return nil, fmt.Errorf("day/period token %q: period %q is not a number", token, bounds[0])
		}
		last := first
		if len(bounds) == 2 {
			last, err = strconv.Atoi(bounds[1])
			if err != nil {
				return nil, fmt.Errorf("day/period token %q: period %q is not a number", token, bounds[1])
			}
		}

		for p := first; p <= last; p++ {
			slots = append(slots, Slot{Day: day, Period: p})
		}
	}

	return slots, nil
}
