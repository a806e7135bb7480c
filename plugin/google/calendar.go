package google

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/plugin/apiclient"
)

const (
	DefaultCalendarURL = "https://www.googleapis.com/calendar/v3"

	primaryCalendar = "primary"
	maxListed       = 50
	dateLayout      = "2006-01-02"
)

// Calendar implements handlers.Calendar on the user's primary Google calendar.
type Calendar struct {
	baseURL string
	client  *apiclient.Client
}

// NewCalendar creates a calendar client over an authorized HTTP client.
// An empty baseURL uses DefaultCalendarURL.
func NewCalendar(hc *http.Client, baseURL string, ratePerSecond int) *Calendar {
	if baseURL == "" {
		baseURL = DefaultCalendarURL
	}
	return &Calendar{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  apiclient.New("google_calendar", apiclient.WithHTTPClient(hc), apiclient.WithRate(ratePerSecond)),
	}
}

type eventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

type calendarEvent struct {
	ID       string     `json:"id,omitempty"`
	Summary  string     `json:"summary,omitempty"`
	Location string     `json:"location,omitempty"`
	Start    *eventTime `json:"start,omitempty"`
	End      *eventTime `json:"end,omitempty"`
}

type eventList struct {
	Items []calendarEvent `json:"items"`
}

func (c *Calendar) eventsURL() string {
	return c.baseURL + "/calendars/" + primaryCalendar + "/events"
}

// ListEvents returns single events starting in [start, end), ordered by start time.
func (c *Calendar) ListEvents(ctx context.Context, start, end time.Time) ([]handlers.Event, error) {
	params := url.Values{
		"timeMin":      {start.Format(time.RFC3339)},
		"timeMax":      {end.Format(time.RFC3339)},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
		"maxResults":   {fmt.Sprint(maxListed)},
	}

	var resp eventList
	if err := c.client.GetJSON(ctx, c.eventsURL(), params, &resp); err != nil {
		return nil, err
	}

	events := make([]handlers.Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		e, err := toEvent(item, start.Location())
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, nil
}

// CreateEvent inserts a timed event.
func (c *Calendar) CreateEvent(ctx context.Context, summary string, start, end time.Time) (*handlers.Event, error) {
	body := calendarEvent{
		Summary: summary,
		Start:   &eventTime{DateTime: start.Format(time.RFC3339)},
		End:     &eventTime{DateTime: end.Format(time.RFC3339)},
	}

	var created calendarEvent
	if err := c.client.PostJSON(ctx, c.eventsURL(), body, &created); err != nil {
		return nil, err
	}
	return toEvent(created, start.Location())
}

// UpdateEvent patches the fields set in patch.
func (c *Calendar) UpdateEvent(ctx context.Context, id string, patch handlers.EventPatch) (*handlers.Event, error) {
	var body calendarEvent
	if patch.Summary != nil {
		body.Summary = *patch.Summary
	}
	if patch.Start != nil {
		body.Start = &eventTime{DateTime: patch.Start.Format(time.RFC3339)}
	}
	if patch.End != nil {
		body.End = &eventTime{DateTime: patch.End.Format(time.RFC3339)}
	}

	var updated calendarEvent
	if err := c.client.Do(ctx, http.MethodPatch, c.eventsURL()+"/"+url.PathEscape(id), body, &updated); err != nil {
		return nil, err
	}
	loc := time.Local
	if patch.Start != nil {
		loc = patch.Start.Location()
	}
	return toEvent(updated, loc)
}

// DeleteEvent removes the event.
func (c *Calendar) DeleteEvent(ctx context.Context, id string) error {
	return c.client.Do(ctx, http.MethodDelete, c.eventsURL()+"/"+url.PathEscape(id), nil, nil)
}

func toEvent(item calendarEvent, loc *time.Location) (*handlers.Event, error) {
	e := &handlers.Event{ID: item.ID, Summary: item.Summary, Location: item.Location}
	if e.Summary == "" {
		e.Summary = "(No title)"
	}

	var err error
	if e.Start, e.AllDay, err = parseEventTime(item.Start, loc); err != nil {
		return nil, fmt.Errorf("failed to parse start of event %s: %w", item.ID, err)
	}
	if e.End, _, err = parseEventTime(item.End, loc); err != nil {
		return nil, fmt.Errorf("failed to parse end of event %s: %w", item.ID, err)
	}
	return e, nil
}

// parseEventTime reads a timed or all-day boundary. All-day dates are placed in loc.
func parseEventTime(t *eventTime, loc *time.Location) (time.Time, bool, error) {
	switch {
	case t == nil:
		return time.Time{}, false, nil
	case t.DateTime != "":
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		return parsed.In(loc), false, err
	case t.Date != "":
		parsed, err := time.ParseInLocation(dateLayout, t.Date, loc)
		return parsed, true, err
	default:
		return time.Time{}, false, nil
	}
}

var _ handlers.Calendar = (*Calendar)(nil)
