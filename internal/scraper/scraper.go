// Package scraper extracts course data from the student portal's rendered
// pages: the timetable grid on the registration list page and the raw rows
// of the registration status table.
package scraper

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/gakucal/gakucal/internal/logger"
	"github.com/gakucal/gakucal/internal/timetable"
)

const (
	UserAgent = "gakucal/1.0 (github.com/gakucal/gakucal)"
	Timeout   = 30 * time.Second
)

// Timetable cell ids follow the portal's ASP.NET naming scheme:
// ..._ttTable_lct<Day><Period>_ctl00_<field>.
const cellIDFormat = "#ctl00_phContents_rrMain_ttTable_lct%s%d_ctl00_%s"

var timetableDays = []struct {
	code string
	day  time.Weekday
}{
	{"Mon", time.Monday},
	{"Tue", time.Tuesday},
	{"Wed", time.Wednesday},
	{"Thu", time.Thursday},
	{"Fri", time.Friday},
	{"Sat", time.Saturday},
}

var (
	instructorParens = regexp.MustCompile(`[(（](.*)[)）]`)
	collapseSpace    = regexp.MustCompile(`(\s{2,}|　)`)
)

// Scraper fetches portal pages over HTTP. Pages saved to disk can be parsed
// directly with ParseTimetable / ParseRegistrationRows.
type Scraper struct {
	client *http.Client
}

// New creates a Scraper.
func New() *Scraper {
	return &Scraper{client: &http.Client{Timeout: Timeout}}
}

// FetchTimetable downloads and parses the timetable grid on the
// registration list page.
func (s *Scraper) FetchTimetable(pageURL string) ([]timetable.CourseSlot, error) {
	var slots []timetable.CourseSlot
	err := s.fetch(pageURL, "scrape.timetable", func(body io.Reader) error {
		parsed, err := ParseTimetable(body, pageURL)
		if err != nil {
			return err
		}
		slots = parsed
		return nil
	})
	return slots, err
}

// FetchRegistrationRows downloads the registration list page and extracts
// the raw rows of the status table.
func (s *Scraper) FetchRegistrationRows(pageURL string) ([][]string, error) {
	var rows [][]string
	err := s.fetch(pageURL, "scrape.registration", func(body io.Reader) error {
		parsed, err := ParseRegistrationRows(body)
		if err != nil {
			return err
		}
		rows = parsed
		return nil
	})
	return rows, err
}

func (s *Scraper) fetch(pageURL, metric string, parse func(io.Reader) error) error {
	start := time.Now()
	defer func() { logger.RecordTiming(metric, time.Since(start)) }()

	req, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return parse(DecodeReader(resp.Body, resp.Header.Get("Content-Type")))
}

// DecodeReader wraps r with a Shift_JIS decoder when the content type says
// the page is not UTF-8. Older portal deployments still serve Shift_JIS.
func DecodeReader(r io.Reader, contentType string) io.Reader {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r
	}
	charset := strings.ToLower(params["charset"])
	if charset == "shift_jis" || charset == "shift-jis" || charset == "sjis" {
		return transform.NewReader(r, japanese.ShiftJIS.NewDecoder())
	}
	return r
}

// ParseTimetable extracts the registered courses from the timetable grid.
// baseURL resolves the relative syllabus links. Cell collisions are
// rejected rather than silently resolved.
func ParseTimetable(r io.Reader, baseURL string) ([]timetable.CourseSlot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing HTML")
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "base url %q", baseURL)
	}

	slots := make([]timetable.CourseSlot, 0)
	for _, d := range timetableDays {
		for period := 1; period <= 8; period++ {
			codeLink := doc.Find(fmt.Sprintf(cellIDFormat, d.code, period, "lblLctCd") + " a").First()
			nameLink := doc.Find(fmt.Sprintf(cellIDFormat, d.code, period, "lblStaffName") + " a").First()
			if codeLink.Length() == 0 || nameLink.Length() == 0 {
				continue
			}

			name, instructor := splitNameAndInstructor(nameLink.Text())
			if name == "" {
				continue
			}

			syllabusURL := ""
			if href, ok := codeLink.Attr("href"); ok {
				if ref, err := url.Parse(href); err == nil {
					syllabusURL = base.ResolveReference(ref).String()
				}
			}

			slots = append(slots, timetable.CourseSlot{
				Day:         d.day,
				Period:      period,
				Name:        name,
				Instructor:  instructor,
				SyllabusURL: syllabusURL,
			})
		}
	}

	if err := timetable.ValidateSlots(slots); err != nil {
		return nil, errors.Wrap(err, "timetable")
	}
	return slots, nil
}

// splitNameAndInstructor separates the cell text into the course name and
// the instructor. The portal renders the name on the first line (primary
// courses carry a ★ prefix) and the instructor parenthesized on the second.
func splitNameAndInstructor(text string) (string, string) {
	text = strings.ReplaceAll(strings.TrimSpace(text), "★", "")
	lines := strings.SplitN(text, "\n", 2)
	name := strings.TrimSpace(lines[0])
	if len(lines) < 2 {
		return name, ""
	}

	instructorLine := strings.TrimSpace(lines[1])
	if match := instructorParens.FindStringSubmatch(instructorLine); match != nil {
		instructorLine = match[1]
	}
	return name, strings.ReplaceAll(instructorLine, "　", "")
}

// ParseRegistrationRows extracts the raw rows of the registration status
// table, header excluded, with runs of whitespace and full-width spaces
// collapsed away. Row widths are validated downstream by the registration
// package.
func ParseRegistrationRows(r io.Reader) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing HTML")
	}

	table := doc.Find("#ctl00_phContents_ucRegistrationStatus_gv")
	if table.Length() == 0 {
		return nil, errors.New("registration status table not found")
	}

	rows := make([][]string, 0)
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return // header row uses th
		}
		cols := make([]string, 0, cells.Length())
		cells.Each(func(j int, cell *goquery.Selection) {
			cols = append(cols, collapseSpace.ReplaceAllString(strings.TrimSpace(cell.Text()), ""))
		})
		rows = append(rows, cols)
	})
	return rows, nil
}
