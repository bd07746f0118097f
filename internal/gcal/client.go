// Package gcal is a thin Google Calendar v3 client covering the handful of
// operations the sync workflow needs. Authentication is a collaborator: the
// client asks a TokenSource for a valid bearer token per request and never
// manages refresh or expiry itself.
package gcal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gakucal/gakucal/internal/logger"
	"github.com/gakucal/gakucal/internal/reconcile"
	"github.com/gakucal/gakucal/internal/timetable"
)

const (
	DefaultBaseURL = "https://www.googleapis.com/calendar/v3"
	Timeout        = 30 * time.Second

	// Public holiday calendar for Japan.
	holidayCalendarID = "ja.japanese#holiday@group.v.calendar.google.com"
)

// TokenSource supplies a valid OAuth bearer token on demand.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for an already-obtained token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", fmt.Errorf("no access token configured")
	}
	return string(t), nil
}

// APIError is a non-2xx response from the calendar API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("calendar API returned status %d: %s", e.StatusCode, e.Body)
}

// NotFound reports whether the error means the resource is already gone.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone
}

// Client calls the calendar API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// NewClient creates a client against the production API.
func NewClient(tokens TokenSource) *Client {
	return &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: Timeout},
		tokens:     tokens,
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint, used by
// tests.
func NewClientWithBaseURL(tokens TokenSource, baseURL string) *Client {
	c := NewClient(tokens)
	c.baseURL = baseURL
	return c
}

// Calendar is one entry of the user's calendar list.
type Calendar struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	AccessRole string `json:"accessRole"`
}

// EventTime is the API's event boundary: either a dateTime or an all-day
// date.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Event is a calendar event as returned by the API.
type Event struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Summary    string    `json:"summary"`
	Start      EventTime `json:"start"`
	End        EventTime `json:"end"`
	Recurrence []string  `json:"recurrence,omitempty"`
}

// EventRequest describes an event to create. Recurrence, when set, is a
// single RRULE line; the event is then weekly-recurring.
type EventRequest struct {
	CalendarID  string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Recurrence  string
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("getting access token: %w", err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	defer func() { logger.RecordTiming("gcal.request", time.Since(start)) }()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}

// ListCalendars returns every calendar on the user's calendar list.
func (c *Client) ListCalendars(ctx context.Context) ([]Calendar, error) {
	var result struct {
		Items []Calendar `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/me/calendarList", nil, nil, &result); err != nil {
		return nil, fmt.Errorf("listing calendars: %w", err)
	}
	return result.Items, nil
}

// Writable filters a calendar list down to those the user can write to.
func Writable(calendars []Calendar) []Calendar {
	out := make([]Calendar, 0, len(calendars))
	for _, cal := range calendars {
		if cal.AccessRole == "writer" || cal.AccessRole == "owner" {
			out = append(out, cal)
		}
	}
	return out
}

// CreateEvent creates an event, recurring when req.Recurrence is set.
func (c *Client) CreateEvent(ctx context.Context, req EventRequest) (*Event, error) {
	body := map[string]interface{}{
		"summary":     req.Summary,
		"description": req.Description,
		"start": EventTime{
			DateTime: req.Start.In(timetable.JST).Format(time.RFC3339),
			TimeZone: "Asia/Tokyo",
		},
		"end": EventTime{
			DateTime: req.End.In(timetable.JST).Format(time.RFC3339),
			TimeZone: "Asia/Tokyo",
		},
	}
	if req.Location != "" {
		body["location"] = req.Location
	}
	if req.Recurrence != "" {
		body["recurrence"] = []string{req.Recurrence}
	}

	var created Event
	path := "/calendars/" + url.PathEscape(req.CalendarID) + "/events"
	if err := c.do(ctx, http.MethodPost, path, nil, body, &created); err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}
	return &created, nil
}

// DeleteEventInstance deletes the single occurrence of a recurring event on
// the given JST date. A missing instance is success: suppression may be
// re-applied across runs without accumulating failures.
func (c *Client) DeleteEventInstance(ctx context.Context, calendarID, eventID string, date time.Time) error {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, timetable.JST)
	dayEnd := dayStart.Add(24*time.Hour - time.Second)

	query := url.Values{}
	query.Set("timeMin", dayStart.Format(time.RFC3339))
	query.Set("timeMax", dayEnd.Format(time.RFC3339))

	var result struct {
		Items []Event `json:"items"`
	}
	path := "/calendars/" + url.PathEscape(calendarID) + "/events/" + url.PathEscape(eventID) + "/instances"
	if err := c.do(ctx, http.MethodGet, path, query, nil, &result); err != nil {
		return fmt.Errorf("listing instances on %s: %w", dayStart.Format("2006-01-02"), err)
	}
	if len(result.Items) == 0 {
		return nil
	}

	for _, instance := range result.Items {
		delPath := "/calendars/" + url.PathEscape(calendarID) + "/events/" + url.PathEscape(instance.ID)
		err := c.do(ctx, http.MethodDelete, delPath, nil, nil, nil)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.NotFound() {
				continue
			}
			return fmt.Errorf("deleting instance %s: %w", instance.ID, err)
		}
	}
	return nil
}

// ListHolidays fetches public holidays between timeMin and timeMax.
func (c *Client) ListHolidays(ctx context.Context, timeMin, timeMax time.Time) ([]reconcile.Holiday, error) {
	query := url.Values{}
	query.Set("timeMin", timeMin.In(timetable.JST).Format(time.RFC3339))
	query.Set("timeMax", timeMax.In(timetable.JST).Format(time.RFC3339))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")
	query.Set("maxResults", "100")

	var result struct {
		Items []Event `json:"items"`
	}
	path := "/calendars/" + url.PathEscape(holidayCalendarID) + "/events"
	if err := c.do(ctx, http.MethodGet, path, query, nil, &result); err != nil {
		return nil, fmt.Errorf("listing holidays: %w", err)
	}

	holidays := make([]reconcile.Holiday, 0, len(result.Items))
	for _, item := range result.Items {
		if item.Start.Date == "" {
			continue
		}
		date, err := time.ParseInLocation("2006-01-02", item.Start.Date, timetable.JST)
		if err != nil {
			return nil, fmt.Errorf("parsing holiday date %q: %w", item.Start.Date, err)
		}
		holidays = append(holidays, reconcile.Holiday{Date: date, Label: item.Summary})
	}
	return holidays, nil
}

// EventsInRange lists events on a calendar between timeMin and timeMax.
func (c *Client) EventsInRange(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]Event, error) {
	query := url.Values{}
	query.Set("timeMin", timeMin.In(timetable.JST).Format(time.RFC3339))
	query.Set("timeMax", timeMax.In(timetable.JST).Format(time.RFC3339))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")

	var result struct {
		Items []Event `json:"items"`
	}
	path := "/calendars/" + url.PathEscape(calendarID) + "/events"
	if err := c.do(ctx, http.MethodGet, path, query, nil, &result); err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return result.Items, nil
}
