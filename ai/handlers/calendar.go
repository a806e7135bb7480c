package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hrygo/manas/ai/core/llm"
	"github.com/hrygo/manas/ai/errs"
)

const defaultEventMinutes = 60

type eventDetails struct {
	Title    string  `json:"title"`
	Date     *string `json:"date"`
	Hour     *int    `json:"hour"`
	Minute   *int    `json:"minute"`
	Duration *int    `json:"duration"`
}

type eventUpdate struct {
	EventName string  `json:"event_name"`
	NewTitle  *string `json:"new_title"`
	NewHour   *int    `json:"new_hour"`
	NewMinute *int    `json:"new_minute"`
}

var deleteEventPattern = regexp.MustCompile(
	`(?:delete|remove|cancel)\s+(?:the\s+|my\s+)?([\w\s']+?)(?:\s+event|\s+appointment|\s+from|\s+at|\s+on|\s+today|\s+tomorrow|[.?!]|$)`)

func eventsData(events []Event) []map[string]any {
	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		out = append(out, eventData(e))
	}
	return out
}

func eventData(e Event) map[string]any {
	return map[string]any{
		"id":       e.ID,
		"summary":  e.Summary,
		"start":    e.Start.Format(time.RFC3339),
		"end":      e.End.Format(time.RFC3339),
		"all_day":  e.AllDay,
		"location": e.Location,
	}
}

func eventNames(events []Event) []string {
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Summary)
	}
	return names
}

func calendarUnavailable(resultType, op string) *Result {
	return clarify(resultType, "I don't have access to your calendar yet. You can connect it in your settings!",
		errs.Configuration(op, "calendar"), map[string]any{"error": "not_authorized"})
}

// CreateEvent adds an event to the calendar.
// Without an explicit date, a time that already passed today moves to tomorrow.
func (h *Handlers) CreateEvent(ctx context.Context, req *Request) *Result {
	if h.calendar == nil {
		return calendarUnavailable(TypeCalendarCreate, "handlers.create_event")
	}

	now := h.now()
	prompt := fmt.Sprintf(`%sExtract calendar event details. Return JSON only.
Current date and time: %s

User: "%s"

Extract:
- title: short event name
- date: ISO date (YYYY-MM-DD) or null if not mentioned. Resolve "tomorrow", "Friday", "next Monday".
- hour: 0-23 in 24-hour time, or null
- minute: 0-59, or null
- duration: length in minutes, or null

Format: {"title": "...", "date": null, "hour": 15, "minute": 0, "duration": null}`,
		historyBlock(req, 4), now.Format("2006-01-02 15:04 (Monday)"), req.Utterance)

	var details eventDetails
	if err := llm.Extract(ctx, h.light, prompt, 150, &details); err != nil {
		return failure(TypeCalendarCreate, "I had trouble creating that calendar event. Please try again.", err)
	}

	title := strings.TrimSpace(details.Title)
	if title == "" {
		title = "New Event"
	}
	hour := (now.Hour() + 1) % 24
	if details.Hour != nil && *details.Hour >= 0 && *details.Hour < 24 {
		hour = *details.Hour
	}
	minute := 0
	if details.Minute != nil && *details.Minute >= 0 && *details.Minute < 60 {
		minute = *details.Minute
	}
	duration := defaultEventMinutes
	if details.Duration != nil && *details.Duration > 0 && *details.Duration <= 24*60 {
		duration = *details.Duration
	}

	day := now
	explicitDate := false
	if details.Date != nil {
		if d, err := time.ParseInLocation("2006-01-02", *details.Date, now.Location()); err == nil {
			day, explicitDate = d, true
		}
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
	if !explicitDate && start.Before(now) {
		start = start.AddDate(0, 0, 1)
	}
	end := start.Add(time.Duration(duration) * time.Minute)

	event, err := h.calendar.CreateEvent(ctx, title, start, end)
	if err != nil {
		return failure(TypeCalendarCreate, "I had trouble creating that calendar event. Please try again.", err)
	}

	return &Result{
		Type:    TypeCalendarCreate,
		Data:    eventData(*event),
		Message: fmt.Sprintf("I've created '%s' in your calendar at %s %s.", event.Summary, clockTime(start), dayLabel(start, now)),
	}
}

// UpdateEvent renames or reschedules an event within the referenced date range.
func (h *Handlers) UpdateEvent(ctx context.Context, req *Request) *Result {
	if h.calendar == nil {
		return calendarUnavailable(TypeCalendarUpdate, "handlers.update_event")
	}

	prompt := fmt.Sprintf(`%sExtract the calendar update. Return JSON only.
User: "%s"

Extract:
- event_name: the event being changed
- new_title: new name or null
- new_hour: new start hour 0-23 or null
- new_minute: new start minute 0-59 or null

Format: {"event_name": "...", "new_title": null, "new_hour": null, "new_minute": null}`,
		historyBlock(req, 4), req.Utterance)

	var upd eventUpdate
	if err := llm.Extract(ctx, h.light, prompt, 100, &upd); err != nil {
		return failure(TypeCalendarUpdate, "I had trouble updating that calendar event. Please try again.", err)
	}
	name := strings.TrimSpace(upd.EventName)
	if name == "" {
		return clarify(TypeCalendarUpdate, "I couldn't tell which event you want to update. Please specify the event name.",
			errs.Resolution("handlers.update_event", "no event name"), nil)
	}

	now := h.now()
	start, end := ParseDateRange(req.Utterance, now)
	events, err := h.calendar.ListEvents(ctx, start, end)
	if err != nil {
		return failure(TypeCalendarUpdate, "I had trouble updating that calendar event. Please try again.", err)
	}

	match, ok := matchEvent(name, events)
	if !ok {
		message := fmt.Sprintf("I couldn't find '%s' %s.", name, rangeLabel(start, end, now))
		if len(events) > 0 {
			message = fmt.Sprintf("I couldn't find '%s'. Available events: %s.", name, strings.Join(eventNames(events), ", "))
		}
		return clarify(TypeCalendarUpdate, message, errs.NotFound("handlers.update_event", name),
			map[string]any{"available_events": eventNames(events)})
	}

	var patch EventPatch
	var changes []string
	if upd.NewTitle != nil {
		if title := strings.TrimSpace(*upd.NewTitle); title != "" && title != match.Summary {
			patch.Summary = &title
			changes = append(changes, fmt.Sprintf("name to '%s'", title))
		}
	}
	if upd.NewHour != nil && *upd.NewHour >= 0 && *upd.NewHour < 24 {
		minute := 0
		if upd.NewMinute != nil && *upd.NewMinute >= 0 && *upd.NewMinute < 60 {
			minute = *upd.NewMinute
		}
		length := match.End.Sub(match.Start)
		if length <= 0 {
			length = defaultEventMinutes * time.Minute
		}
		newStart := time.Date(match.Start.Year(), match.Start.Month(), match.Start.Day(), *upd.NewHour, minute, 0, 0, match.Start.Location())
		newEnd := newStart.Add(length)
		patch.Start, patch.End = &newStart, &newEnd
		changes = append(changes, "time to "+clockTime(newStart))
	}
	if len(changes) == 0 {
		return clarify(TypeCalendarUpdate, fmt.Sprintf("What would you like to change about '%s'?", match.Summary),
			errs.Resolution("handlers.update_event", "no changes"), map[string]any{"event": eventData(match)})
	}

	updated, err := h.calendar.UpdateEvent(ctx, match.ID, patch)
	if err != nil {
		return failure(TypeCalendarUpdate, "I had trouble updating that calendar event. Please try again.", err)
	}

	return &Result{
		Type:    TypeCalendarUpdate,
		Data:    eventData(*updated),
		Message: fmt.Sprintf("I've updated '%s' - changed %s.", match.Summary, strings.Join(changes, " and ")),
	}
}

// deleteTarget pulls the event name out of "cancel the dentist appointment" style requests.
// Without a verb it falls back to the last three words.
func deleteTarget(utterance string) string {
	if m := deleteEventPattern.FindStringSubmatch(strings.ToLower(utterance)); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			return name
		}
	}
	words := strings.Fields(utterance)
	if len(words) > 3 {
		words = words[len(words)-3:]
	}
	return strings.Join(words, " ")
}

// DeleteEvent removes an event within the referenced date range.
func (h *Handlers) DeleteEvent(ctx context.Context, req *Request) *Result {
	if h.calendar == nil {
		return calendarUnavailable(TypeCalendarDelete, "handlers.delete_event")
	}

	name := deleteTarget(req.Utterance)
	now := h.now()
	start, end := ParseDateRange(req.Utterance, now)
	events, err := h.calendar.ListEvents(ctx, start, end)
	if err != nil {
		return failure(TypeCalendarDelete, "I had trouble deleting that event. Please try again.", err)
	}
	if len(events) == 0 {
		return clarify(TypeCalendarDelete, fmt.Sprintf("You don't have any events %s to delete.", rangeLabel(start, end, now)),
			errs.NotFound("handlers.delete_event", name), map[string]any{"error": "no_events"})
	}

	match, ok := matchEvent(name, events)
	if !ok {
		return clarify(TypeCalendarDelete,
			fmt.Sprintf("I couldn't find '%s'. You have: %s.", name, strings.Join(eventNames(events), ", ")),
			errs.NotFound("handlers.delete_event", name),
			map[string]any{"available_events": eventNames(events)})
	}

	if err := h.calendar.DeleteEvent(ctx, match.ID); err != nil {
		return failure(TypeCalendarDelete, "I had trouble deleting that event. Please try again.", err)
	}

	return &Result{
		Type:    TypeCalendarDelete,
		Data:    map[string]any{"deleted_event": match.Summary, "event": eventData(match)},
		Message: fmt.Sprintf("I've deleted '%s' from your calendar.", match.Summary),
	}
}
