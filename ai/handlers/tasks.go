package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hrygo/manas/ai/core/llm"
	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/store"
)

type taskDetails struct {
	Title    string  `json:"title"`
	Priority *string `json:"priority"`
	DueDate  *string `json:"due_date"`
}

type taskReference struct {
	TaskName string  `json:"task_name"`
	Priority *string `json:"priority"`
	NewTitle *string `json:"new_title"`
}

func taskData(t *store.Task) map[string]any {
	data := map[string]any{
		"id":       t.ID,
		"title":    t.Title,
		"status":   string(t.Status),
		"priority": nil,
		"due_date": nil,
	}
	if t.Priority != "" {
		data["priority"] = t.Priority
	}
	if t.DueDate != nil {
		data["due_date"] = t.DueDate.Format(time.RFC3339)
	}
	return data
}

func tasksData(tasks []*store.Task) []map[string]any {
	out := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskData(t))
	}
	return out
}

// priorityPrefix renders "HIGH: " style labels.
func priorityPrefix(t *store.Task) string {
	if t.Priority == "" {
		return ""
	}
	return strings.ToUpper(t.Priority) + ": "
}

func sortByPriority(tasks []*store.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return store.PriorityRank(tasks[i].Priority) < store.PriorityRank(tasks[j].Priority)
	})
}

func (h *Handlers) pendingTasks(ctx context.Context, userID string) ([]*store.Task, error) {
	status := store.TaskPending
	return h.tasks.ListTasks(ctx, &store.FindTask{UserID: &userID, Status: &status})
}

// AddTask creates a task with optional priority and due date.
func (h *Handlers) AddTask(ctx context.Context, req *Request) *Result {
	if h.tasks == nil {
		return failure(TypeTaskCreation, "I can't manage tasks right now.", errs.Configuration("handlers.add_task", "task store"))
	}

	now := h.now()
	prompt := fmt.Sprintf(`%sExtract task details. Return JSON only.
Use the history to resolve pronouns if the user says something like "add that to my list".
Current date: %s

User: "%s"

Extract:
- title: task description (clean, no words like "add", "create", "task", "todo")
- priority: "high", "medium", "low", or null if not mentioned
- due_date: ISO date string (YYYY-MM-DD) or null if not mentioned.
  Parse natural dates: "tomorrow", "Friday", "next Monday", "in 3 days", "by Friday"

Format: {"title": "...", "priority": null, "due_date": null}

Examples:
- "Add buy groceries" -> {"title": "buy groceries", "priority": null, "due_date": null}
- "Add high priority task finish presentation" -> {"title": "finish presentation", "priority": "high", "due_date": null}
- "Add finish report tomorrow" -> {"title": "finish report", "priority": null, "due_date": "%s"}`,
		historyBlock(req, 4), now.Format("2006-01-02 (Monday)"), req.Utterance, now.AddDate(0, 0, 1).Format("2006-01-02"))

	var details taskDetails
	if err := llm.Extract(ctx, h.light, prompt, 150, &details); err != nil {
		return failure(TypeTaskCreation, "I had trouble adding that task. Please try again.", err)
	}
	title := strings.TrimSpace(details.Title)
	if title == "" {
		return clarify(TypeTaskCreation, "What task would you like me to add?",
			errs.Resolution("handlers.add_task", "empty title"), nil)
	}

	task := &store.Task{UserID: req.UserID, Title: title}
	if details.Priority != nil {
		task.Priority = store.NormalizePriority(*details.Priority)
	}
	if details.DueDate != nil && *details.DueDate != "" {
		if day, err := time.ParseInLocation("2006-01-02", *details.DueDate, now.Location()); err == nil {
			due := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, now.Location())
			task.DueDate = &due
		}
	}

	created, err := h.tasks.CreateTask(ctx, task)
	if err != nil {
		return failure(TypeTaskCreation, "I had trouble adding that task. Please try again.", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I've added '%s'", created.Title)
	if created.Priority != "" {
		fmt.Fprintf(&b, " with %s priority", created.Priority)
	}
	if created.DueDate != nil {
		fmt.Fprintf(&b, " due %s", created.DueDate.Format("Monday, January 02"))
	}
	b.WriteString(" to your task list.")

	return &Result{Type: TypeTaskCreation, Data: taskData(created), Message: b.String()}
}

// extractTaskReference pulls the referenced task name (and update fields) out of the utterance.
// Unusable model output falls back to the raw utterance as the task name.
func (h *Handlers) extractTaskReference(ctx context.Context, req *Request, instruction, format string) (*taskReference, error) {
	prompt := fmt.Sprintf(`%s%s JSON only.
User: "%s"
Format: %s`, historyBlock(req, 4), instruction, req.Utterance, format)

	var ref taskReference
	err := llm.Extract(ctx, h.light, prompt, 100, &ref)
	if errs.Is(err, errs.KindResolution) {
		return &taskReference{TaskName: req.Utterance}, nil
	}
	if err != nil {
		return nil, err
	}
	ref.TaskName = strings.TrimSpace(ref.TaskName)
	return &ref, nil
}

// CompleteTask marks the best-matching pending task as completed.
func (h *Handlers) CompleteTask(ctx context.Context, req *Request) *Result {
	if h.tasks == nil {
		return failure(TypeTaskCompletion, "I can't manage tasks right now.", errs.Configuration("handlers.complete_task", "task store"))
	}

	ref, err := h.extractTaskReference(ctx, req, "Extract task name.", `{"task_name": "..."}`)
	if err != nil {
		return failure(TypeTaskCompletion, "I had trouble completing that task. Please try again.", err)
	}
	if ref.TaskName == "" {
		return clarify(TypeTaskCompletion, "Which task would you like to mark as complete?",
			errs.Resolution("handlers.complete_task", "no task name"), nil)
	}

	tasks, err := h.pendingTasks(ctx, req.UserID)
	if err != nil {
		return failure(TypeTaskCompletion, "I had trouble completing that task. Please try again.", err)
	}
	if len(tasks) == 0 {
		return &Result{Type: TypeTaskCompletion, Data: map[string]any{"tasks": []any{}}, Message: "You don't have any pending tasks."}
	}

	match, score, ok := BestMatch(ref.TaskName, tasks, func(t *store.Task) string { return t.Title })
	if !ok {
		return clarify(TypeTaskCompletion, fmt.Sprintf("I couldn't find a task matching '%s'.", ref.TaskName),
			errs.NotFound("handlers.complete_task", ref.TaskName), map[string]any{"query": ref.TaskName})
	}

	status := store.TaskCompleted
	updated, err := h.tasks.UpdateTask(ctx, &store.UpdateTask{ID: match.ID, UserID: req.UserID, Status: &status})
	if err != nil {
		return failure(TypeTaskCompletion, "I had trouble completing that task. Please try again.", err)
	}

	data := taskData(updated)
	data["match_score"] = score
	return &Result{Type: TypeTaskCompletion, Data: data, Message: fmt.Sprintf("I've marked '%s' as complete.", updated.Title)}
}

// UpdateTask changes the priority or title of the best-matching pending task.
func (h *Handlers) UpdateTask(ctx context.Context, req *Request) *Result {
	if h.tasks == nil {
		return failure(TypeTaskUpdate, "I can't manage tasks right now.", errs.Configuration("handlers.update_task", "task store"))
	}

	ref, err := h.extractTaskReference(ctx, req,
		`Extract the task to update and the changes. priority is "high", "medium", "low" or null; new_title is the new name or null.`,
		`{"task_name": "...", "priority": null, "new_title": null}`)
	if err != nil {
		return failure(TypeTaskUpdate, "I had trouble updating that task. Please try again.", err)
	}
	if ref.TaskName == "" {
		return clarify(TypeTaskUpdate, "Which task would you like to update?",
			errs.Resolution("handlers.update_task", "no task name"), nil)
	}

	tasks, err := h.pendingTasks(ctx, req.UserID)
	if err != nil {
		return failure(TypeTaskUpdate, "I had trouble updating that task. Please try again.", err)
	}
	if len(tasks) == 0 {
		return &Result{Type: TypeTaskUpdate, Data: map[string]any{"tasks": []any{}}, Message: "You don't have any pending tasks."}
	}

	match, _, ok := BestMatch(ref.TaskName, tasks, func(t *store.Task) string { return t.Title })
	if !ok {
		return clarify(TypeTaskUpdate, fmt.Sprintf("I couldn't find a task matching '%s'.", ref.TaskName),
			errs.NotFound("handlers.update_task", ref.TaskName), map[string]any{"query": ref.TaskName})
	}

	update := &store.UpdateTask{ID: match.ID, UserID: req.UserID}
	var changes []string
	if ref.Priority != nil {
		if p := store.NormalizePriority(*ref.Priority); p != "" {
			update.Priority = &p
			changes = append(changes, "priority to "+p)
		}
	}
	if ref.NewTitle != nil {
		if title := strings.TrimSpace(*ref.NewTitle); title != "" && title != match.Title {
			update.Title = &title
			changes = append(changes, fmt.Sprintf("title to '%s'", title))
		}
	}
	if len(changes) == 0 {
		return clarify(TypeTaskUpdate, "What would you like to update for this task?",
			errs.Resolution("handlers.update_task", "no changes"), map[string]any{"task": taskData(match)})
	}

	if _, err := h.tasks.UpdateTask(ctx, update); err != nil {
		return failure(TypeTaskUpdate, "I had trouble updating that task. Please try again.", err)
	}

	return &Result{
		Type:    TypeTaskUpdate,
		Data:    map[string]any{"task_id": match.ID, "changes": changes},
		Message: fmt.Sprintf("I've updated '%s' - changed %s.", match.Title, strings.Join(changes, " and ")),
	}
}

// DeleteTask removes the best-matching task, pending or completed.
func (h *Handlers) DeleteTask(ctx context.Context, req *Request) *Result {
	if h.tasks == nil {
		return failure(TypeTaskDeletion, "I can't manage tasks right now.", errs.Configuration("handlers.delete_task", "task store"))
	}

	ref, err := h.extractTaskReference(ctx, req, "Extract task to delete.", `{"task_name": "..."}`)
	if err != nil {
		return failure(TypeTaskDeletion, "I had trouble deleting that task. Please try again.", err)
	}
	if ref.TaskName == "" {
		return clarify(TypeTaskDeletion, "Which task would you like to delete?",
			errs.Resolution("handlers.delete_task", "no task name"), nil)
	}

	tasks, err := h.tasks.ListTasks(ctx, &store.FindTask{UserID: &req.UserID})
	if err != nil {
		return failure(TypeTaskDeletion, "I had trouble deleting that task. Please try again.", err)
	}
	if len(tasks) == 0 {
		return &Result{Type: TypeTaskDeletion, Data: map[string]any{"tasks": []any{}}, Message: "You don't have any tasks to delete."}
	}

	match, _, ok := BestMatch(ref.TaskName, tasks, func(t *store.Task) string { return t.Title })
	if !ok {
		return clarify(TypeTaskDeletion, fmt.Sprintf("I couldn't find a task matching '%s'.", ref.TaskName),
			errs.NotFound("handlers.delete_task", ref.TaskName), map[string]any{"query": ref.TaskName})
	}

	if err := h.tasks.DeleteTask(ctx, &store.DeleteTask{ID: match.ID, UserID: req.UserID}); err != nil {
		return failure(TypeTaskDeletion, "I had trouble deleting that task. Please try again.", err)
	}

	return &Result{
		Type:    TypeTaskDeletion,
		Data:    map[string]any{"deleted_task": taskData(match)},
		Message: fmt.Sprintf("I've deleted '%s' from your tasks.", match.Title),
	}
}

// priorityFilter detects phrases like "high priority" or "high-priority".
func priorityFilter(utterance string) string {
	lower := strings.ToLower(utterance)
	for _, p := range []string{store.PriorityHigh, store.PriorityMedium, store.PriorityLow} {
		if strings.Contains(lower, p+" priority") || strings.Contains(lower, p+"-priority") {
			return p
		}
	}
	return ""
}

// ListTasks lists pending tasks grouped by priority, optionally filtered to one priority.
func (h *Handlers) ListTasks(ctx context.Context, req *Request) *Result {
	if h.tasks == nil {
		return failure(TypeTaskList, "I can't manage tasks right now.", errs.Configuration("handlers.list_tasks", "task store"))
	}

	filter := priorityFilter(req.Utterance)
	tasks, err := h.pendingTasks(ctx, req.UserID)
	if err != nil {
		return failure(TypeTaskList, "I had trouble listing your tasks.", err)
	}
	if filter != "" {
		var kept []*store.Task
		for _, t := range tasks {
			if t.Priority == filter {
				kept = append(kept, t)
			}
		}
		tasks = kept
	}

	var filterValue any
	if filter != "" {
		filterValue = filter
	}

	if len(tasks) == 0 {
		message := "You don't have any pending tasks."
		if filter != "" {
			message = fmt.Sprintf("You don't have any %s priority tasks.", filter)
		}
		return &Result{Type: TypeTaskList, Data: map[string]any{"tasks": []any{}, "count": 0, "filter": filterValue}, Message: message}
	}

	sortByPriority(tasks)

	lines := make([]string, 0, len(tasks)+1)
	if filter != "" {
		lines = append(lines, fmt.Sprintf("You have %d %s priority %s:", len(tasks), filter, plural(len(tasks), "task")))
	} else {
		lines = append(lines, fmt.Sprintf("You have %d pending %s:", len(tasks), plural(len(tasks), "task")))
	}
	for _, t := range tasks {
		prefix := ""
		if filter == "" {
			prefix = priorityPrefix(t)
		}
		lines = append(lines, "- "+prefix+t.Title)
	}

	return &Result{
		Type:    TypeTaskList,
		Data:    map[string]any{"tasks": tasksData(tasks), "count": len(tasks), "filter": filterValue},
		Message: strings.Join(lines, "\n"),
	}
}

// TaskReminders buckets pending tasks into overdue, due today and due within three days.
func (h *Handlers) TaskReminders(ctx context.Context, req *Request) *Result {
	if h.tasks == nil {
		return failure(TypeTaskReminders, "I can't manage tasks right now.", errs.Configuration("handlers.task_reminders", "task store"))
	}

	tasks, err := h.pendingTasks(ctx, req.UserID)
	if err != nil {
		return failure(TypeTaskReminders, "I had trouble getting your reminders.", err)
	}

	now := h.now()
	todayStart := startOfDay(now)
	todayEnd := endOfDay(now)
	soonEnd := endOfDay(now.AddDate(0, 0, 3))

	var overdue, dueToday, dueSoon, undated []*store.Task
	for _, t := range tasks {
		switch {
		case t.DueDate == nil:
			undated = append(undated, t)
		case t.DueDate.Before(todayStart):
			overdue = append(overdue, t)
		case !t.DueDate.After(todayEnd):
			dueToday = append(dueToday, t)
		case !t.DueDate.After(soonEnd):
			dueSoon = append(dueSoon, t)
		}
	}
	sortByPriority(overdue)
	sortByPriority(dueToday)
	sort.SliceStable(dueSoon, func(i, j int) bool {
		if !dueSoon[i].DueDate.Equal(*dueSoon[j].DueDate) {
			return dueSoon[i].DueDate.Before(*dueSoon[j].DueDate)
		}
		return store.PriorityRank(dueSoon[i].Priority) < store.PriorityRank(dueSoon[j].Priority)
	})

	if len(overdue)+len(dueToday)+len(dueSoon) == 0 {
		if len(undated) > 0 {
			return &Result{
				Type:    TypeTaskReminders,
				Data:    map[string]any{"no_due_date": tasksData(undated)},
				Message: fmt.Sprintf("You have %d pending %s with no due dates.", len(undated), plural(len(undated), "task")),
			}
		}
		return &Result{Type: TypeTaskReminders, Data: map[string]any{}, Message: "You're all caught up! No tasks with upcoming due dates."}
	}

	var b strings.Builder
	b.WriteString("Here's what you need to do:")
	if len(overdue) > 0 {
		fmt.Fprintf(&b, "\n\nOverdue (%d %s):", len(overdue), plural(len(overdue), "task"))
		for _, t := range overdue {
			days := int(now.Sub(*t.DueDate).Hours() / 24)
			fmt.Fprintf(&b, "\n- %s%s (%d %s overdue)", priorityPrefix(t), t.Title, days, plural(days, "day"))
		}
	}
	if len(dueToday) > 0 {
		fmt.Fprintf(&b, "\n\nDue today (%d %s):", len(dueToday), plural(len(dueToday), "task"))
		for _, t := range dueToday {
			fmt.Fprintf(&b, "\n- %s%s", priorityPrefix(t), t.Title)
		}
	}
	if len(dueSoon) > 0 {
		fmt.Fprintf(&b, "\n\nDue soon (%d %s):", len(dueSoon), plural(len(dueSoon), "task"))
		for _, t := range dueSoon {
			fmt.Fprintf(&b, "\n- %s%s (due %s)", priorityPrefix(t), t.Title, t.DueDate.Format("Monday"))
		}
	}

	return &Result{
		Type: TypeTaskReminders,
		Data: map[string]any{
			"overdue":   tasksData(overdue),
			"due_today": tasksData(dueToday),
			"due_soon":  tasksData(dueSoon),
		},
		Message: b.String(),
	}
}
