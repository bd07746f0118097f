package scraper

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/gakucal/gakucal/internal/logger"
)

const timetableHTML = `<html><body><table>
<tr><td>
<span id="ctl00_phContents_rrMain_ttTable_lctTue2_ctl00_lblLctCd"><a href="/Portal/Public/Syllabus/Detail.aspx?lct_year=2025&lct_cd=31A0011">31A0011</a></span>
<span id="ctl00_phContents_rrMain_ttTable_lctTue2_ctl00_lblStaffName"><a href="#">★解析学II
(金沢　太郎)</a></span>
</td></tr>
<tr><td>
<span id="ctl00_phContents_rrMain_ttTable_lctFri1_ctl00_lblLctCd"><a href="Detail.aspx?lct_cd=31B0022">31B0022</a></span>
<span id="ctl00_phContents_rrMain_ttTable_lctFri1_ctl00_lblStaffName"><a href="#">英語コミュニケーション
(Smith)</a></span>
</td></tr>
</table></body></html>`

func TestParseTimetable(t *testing.T) {
	slots, err := ParseTimetable(strings.NewReader(timetableHTML),
		"https://eduweb.example.ac.jp/Portal/StudentApp/Regist/RegistList.aspx")
	if err != nil {
		t.Fatalf("ParseTimetable: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(slots))
	}

	tue := slots[0]
	if tue.Day != time.Tuesday || tue.Period != 2 {
		t.Errorf("slot cell = %s, want 火2", tue.Cell())
	}
	if tue.Name != "解析学II" {
		t.Errorf("Name = %q, ★ should be stripped", tue.Name)
	}
	if tue.Instructor != "金沢太郎" {
		t.Errorf("Instructor = %q, full-width space should be removed", tue.Instructor)
	}
	if tue.SyllabusURL != "https://eduweb.example.ac.jp/Portal/Public/Syllabus/Detail.aspx?lct_year=2025&lct_cd=31A0011" {
		t.Errorf("SyllabusURL = %q", tue.SyllabusURL)
	}

	fri := slots[1]
	if fri.Day != time.Friday || fri.Period != 1 || fri.Instructor != "Smith" {
		t.Errorf("friday slot = %+v", fri)
	}
	// Relative link resolved against the page directory.
	if fri.SyllabusURL != "https://eduweb.example.ac.jp/Portal/StudentApp/Regist/Detail.aspx?lct_cd=31B0022" {
		t.Errorf("SyllabusURL = %q", fri.SyllabusURL)
	}
}

func TestFetchTimetable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(timetableHTML))
	}))
	defer server.Close()

	slots, err := New().FetchTimetable(server.URL)
	if err != nil {
		t.Fatalf("FetchTimetable: %v", err)
	}
	if len(slots) != 2 || slots[0].Name != "解析学II" {
		t.Errorf("slots = %+v", slots)
	}

	snapshot := logger.GetMetricsSnapshot()
	timings := snapshot["timings"].(map[string]map[string]interface{})
	if _, ok := timings["scrape.timetable"]; !ok {
		t.Error("scrape.timetable timing not recorded")
	}
}

func TestFetchTimetableHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := New().FetchTimetable(server.URL); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestParseTimetableEmptyCells(t *testing.T) {
	slots, err := ParseTimetable(strings.NewReader("<html><body></body></html>"), "https://example.ac.jp/")
	if err != nil {
		t.Fatalf("ParseTimetable: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("got %d slots from empty page", len(slots))
	}
}

const registrationHTML = `<html><body>
<table id="ctl00_phContents_ucRegistrationStatus_gv">
<tr><th>科目番号</th><th>区分</th></tr>
<tr><td>31A0011</td><td>専門</td><td>線形代数学</td><td>火2</td><td>金沢　太郎</td><td>理工1年</td><td>60</td><td>72</td><td>50</td><td>58</td><td>6</td><td>4</td><td>2</td><td>2</td></tr>
<tr><td>31B0022</td><td>共通</td><td>英語</td><td>金1</td><td>Smith</td><td>全学1年</td><td>40</td><td>38</td><td>30</td><td>35</td><td>2</td><td>1</td><td>0</td><td>0</td></tr>
</table>
</body></html>`

func TestParseRegistrationRows(t *testing.T) {
	rows, err := ParseRegistrationRows(strings.NewReader(registrationHTML))
	if err != nil {
		t.Fatalf("ParseRegistrationRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (header dropped)", len(rows))
	}
	if len(rows[0]) != 14 {
		t.Errorf("row width = %d, want 14", len(rows[0]))
	}
	if rows[0][4] != "金沢太郎" {
		t.Errorf("cell = %q, full-width space should be collapsed", rows[0][4])
	}
	if rows[1][0] != "31B0022" {
		t.Errorf("rows[1][0] = %q", rows[1][0])
	}
}

func TestParseRegistrationRowsMissingTable(t *testing.T) {
	if _, err := ParseRegistrationRows(strings.NewReader("<html><body></body></html>")); err == nil {
		t.Error("expected error when the status table is absent")
	}
}

func TestDecodeReader(t *testing.T) {
	t.Run("shift_jis content is decoded", func(t *testing.T) {
		var buf bytes.Buffer
		w := transform.NewWriter(&buf, japanese.ShiftJIS.NewEncoder())
		w.Write([]byte("解析学"))
		w.Close()

		r := DecodeReader(&buf, "text/html; charset=Shift_JIS")
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if string(got) != "解析学" {
			t.Errorf("decoded %q", got)
		}
	})

	t.Run("utf-8 content passes through", func(t *testing.T) {
		r := DecodeReader(strings.NewReader("解析学"), "text/html; charset=utf-8")
		got, _ := io.ReadAll(r)
		if string(got) != "解析学" {
			t.Errorf("got %q", got)
		}
	})
}
