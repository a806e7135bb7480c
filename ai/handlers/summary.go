package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/manas/store"
)

var summaryDateKeywords = []string{
	"today", "tomorrow", "yesterday", "next", "last",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

func hasDateKeyword(utterance string) bool {
	lower := strings.ToLower(utterance)
	for _, kw := range summaryDateKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// summaryDay picks the single day a summary request refers to. Without a day reference it is today.
func summaryDay(text string, now time.Time) time.Time {
	lower := strings.ToLower(text)
	today := startOfDay(now)
	switch {
	case strings.Contains(lower, "yesterday"):
		return today.AddDate(0, 0, -1)
	case strings.Contains(lower, "today"), strings.Contains(lower, "tomorrow"):
		start, _ := ParseDateRange(lower, now)
		return start
	}
	if wd, ok := mentionedWeekday(lower); ok {
		return nextWeekday(today, wd)
	}
	return today
}

// summarizeEvents renders "You have 2 events today: Standup at 9:00 AM, Offsite all day."
func summarizeEvents(events []Event, label string) string {
	if len(events) == 0 {
		return fmt.Sprintf("You have no events scheduled %s.", label)
	}
	parts := make([]string, 0, len(events))
	for _, e := range events {
		name := e.Summary
		if name == "" {
			name = "Untitled"
		}
		if e.AllDay {
			parts = append(parts, name+" all day")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s at %s", name, clockTime(e.Start)))
	}
	return fmt.Sprintf("You have %d %s %s: %s.", len(events), plural(len(events), "event"), label, strings.Join(parts, ", "))
}

// DailySummary reports the events and due tasks of one day.
// Calendar events and pending tasks are fetched in parallel.
func (h *Handlers) DailySummary(ctx context.Context, req *Request) *Result {
	text := req.Utterance
	if len(req.History) > 0 && !hasDateKeyword(text) {
		text = h.resolver.Resolve(ctx, text, req.History)
	}

	now := h.now()
	day := summaryDay(text, now)
	dayStart, dayEnd := day, endOfDay(day)
	label := dayLabel(day, now)

	var (
		events            []Event
		tasks             []*store.Task
		eventErr, taskErr error
	)
	var g errgroup.Group
	if h.calendar != nil {
		g.Go(func() error {
			events, eventErr = h.calendar.ListEvents(ctx, dayStart, dayEnd)
			return nil
		})
	}
	if h.tasks != nil {
		g.Go(func() error {
			tasks, taskErr = h.pendingTasks(ctx, req.UserID)
			return nil
		})
	}
	_ = g.Wait()

	if taskErr != nil {
		slog.Warn("daily summary without tasks", "user_id", req.UserID, "error", taskErr)
	}
	if h.calendar == nil || eventErr != nil {
		message := "I don't have access to your calendar yet. You can connect it in your settings!"
		if eventErr != nil {
			slog.Warn("daily summary without calendar", "user_id", req.UserID, "error", eventErr)
			message = "I couldn't reach your calendar right now."
		}
		if section := dueTaskSections(tasks, dayStart, dayEnd, label); section != "" {
			message += section
		}
		return &Result{
			Type:    TypeSummary,
			Data:    map[string]any{"error": "calendar_unavailable", "date": day.Format("2006-01-02")},
			Message: message,
		}
	}

	message := summarizeEvents(events, label) + dueTaskSections(tasks, dayStart, dayEnd, label)
	return &Result{
		Type: TypeSummary,
		Data: map[string]any{
			"date":        day.Format("2006-01-02"),
			"events":      eventsData(events),
			"event_count": len(events),
			"source":      "google_calendar",
		},
		Message: message,
	}
}

// dueTaskSections lists tasks overdue before the day and tasks due on it.
func dueTaskSections(tasks []*store.Task, dayStart, dayEnd time.Time, label string) string {
	var overdue, due []*store.Task
	for _, t := range tasks {
		switch {
		case t.DueDate == nil:
		case t.DueDate.Before(dayStart):
			overdue = append(overdue, t)
		case !t.DueDate.After(dayEnd):
			due = append(due, t)
		}
	}
	sortByPriority(overdue)
	sortByPriority(due)

	var b strings.Builder
	if len(overdue) > 0 {
		fmt.Fprintf(&b, "\n\nOverdue (%d %s):", len(overdue), plural(len(overdue), "task"))
		for _, t := range overdue {
			fmt.Fprintf(&b, "\n- %s%s", priorityPrefix(t), t.Title)
		}
	}
	if len(due) > 0 {
		fmt.Fprintf(&b, "\n\nTasks due %s (%d):", label, len(due))
		for _, t := range due {
			fmt.Fprintf(&b, "\n- %s%s", priorityPrefix(t), t.Title)
		}
	}
	return b.String()
}
