// Package syllabus fetches and parses a course's syllabus page. Syllabus
// data only enriches calendar events, so every failure here degrades to
// "no syllabus" rather than failing the sync.
package syllabus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/mo"
)

const (
	UserAgent = "gakucal/1.0 (github.com/gakucal/gakucal)"
	Timeout   = 30 * time.Second
)

// Book is one textbook or reference book entry.
type Book struct {
	Title     string
	Author    string
	Publisher string
}

// ScheduleRow is one row of the per-lecture schedule table.
type ScheduleRow struct {
	No      string
	Theme   string
	Detail  string
	Teacher string
}

// Syllabus holds the fields extracted from a syllabus page.
type Syllabus struct {
	SubjectNumber string
	Credits       string
	LectureType   string
	DayPeriod     string
	Term          string
	Room          string
	Books         []Book
	Schedule      []ScheduleRow
}

// Fetcher retrieves syllabus pages over HTTP.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with the default timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: Timeout}}
}

// Fetch downloads and parses the syllabus at url. Network and parse
// failures both yield None.
func (f *Fetcher) Fetch(ctx context.Context, url string) mo.Option[Syllabus] {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return mo.None[Syllabus]()
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return mo.None[Syllabus]()
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return mo.None[Syllabus]()
	}

	syl, err := Parse(resp.Body)
	if err != nil {
		return mo.None[Syllabus]()
	}
	return mo.Some(*syl)
}

// Parse extracts syllabus fields from a rendered syllabus page.
func Parse(r io.Reader) (*Syllabus, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	text := func(selector string) string {
		return strings.TrimSpace(doc.Find(selector).First().Text())
	}

	syl := &Syllabus{
		SubjectNumber: text("#ctl00_phContents_Detail_lbl_numbering"),
		Credits:       text("#ctl00_phContents_Detail_lbl_credits_disp"),
		LectureType:   text("#ctl00_phContents_Detail_lbl_lct_type_name"),
		DayPeriod:     text("#ctl00_phContents_Detail_lbl_day_period"),
		Term:          text("#ctl00_phContents_Detail_lbl_lct_term_name"),
		Room:          text("#ctl00_phContents_Detail_lbl_lecture_room_infomation"),
	}

	// Per-lecture schedule table, header row skipped.
	doc.Find("#ctl00_phContents_Detail_ucLctSchedule_gvRefer tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() != 4 {
			return
		}
		syl.Schedule = append(syl.Schedule, ScheduleRow{
			No:      strings.TrimSpace(cells.Eq(0).Text()),
			Theme:   strings.TrimSpace(cells.Eq(1).Text()),
			Detail:  strings.TrimSpace(cells.Eq(2).Text()),
			Teacher: strings.TrimSpace(cells.Eq(3).Text()),
		})
	})

	// Textbook table. The page renders one labelled row per book.
	doc.Find("#ctl00_phContents_Detail_ItemSyllabusReferenceBook_tdTextBooks table tr").Each(func(i int, row *goquery.Selection) {
		title := strings.TrimSpace(row.Find("span[id$='txtBookName_lbl']").Text())
		if title == "" {
			return
		}
		syl.Books = append(syl.Books, Book{
			Title:     title,
			Author:    strings.TrimSpace(row.Find("span[id$='txtAuthor_lbl']").Text()),
			Publisher: strings.TrimSpace(row.Find("span[id$='txtPublisher_lbl']").Text()),
		})
	})

	return syl, nil
}

// FormatDetails renders the event-description block for a course: the
// instructor and syllabus link first, then whichever syllabus fields are
// present.
func FormatDetails(instructor, syllabusURL string, syl mo.Option[Syllabus]) string {
	var b strings.Builder
	fmt.Fprintf(&b, "担当教員: %s\nシラバス: %s", instructor, syllabusURL)

	s, ok := syl.Get()
	if !ok {
		return b.String()
	}

	lines := []struct{ label, value string }{
		{"科目ナンバー", s.SubjectNumber},
		{"単位数", s.Credits},
		{"講義形態", s.LectureType},
		{"曜日・時限", s.DayPeriod},
		{"学期", s.Term},
		{"講義室", s.Room},
	}
	for _, line := range lines {
		if line.value != "" {
			fmt.Fprintf(&b, "\n%s: %s", line.label, line.value)
		}
	}
	if len(s.Books) > 0 {
		titles := make([]string, 0, len(s.Books))
		for _, book := range s.Books {
			titles = append(titles, book.Title)
		}
		fmt.Fprintf(&b, "\n教科書: %s", strings.Join(titles, ", "))
	}
	return b.String()
}
