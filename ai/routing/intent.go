// Package routing classifies utterances into intents and dispatches them to handlers.
package routing

import "strings"

// Intent is a classified user goal.
type Intent string

const (
	IntentGetWeather          Intent = "GET_WEATHER"
	IntentAddTask             Intent = "ADD_TASK"
	IntentCompleteTask        Intent = "COMPLETE_TASK"
	IntentUpdateTask          Intent = "UPDATE_TASK"
	IntentDeleteTask          Intent = "DELETE_TASK"
	IntentListTasks           Intent = "LIST_TASKS"
	IntentGetTaskReminders    Intent = "GET_TASK_REMINDERS"
	IntentDailySummary        Intent = "DAILY_SUMMARY"
	IntentCreateCalendarEvent Intent = "CREATE_CALENDAR_EVENT"
	IntentUpdateCalendarEvent Intent = "UPDATE_CALENDAR_EVENT"
	IntentDeleteCalendarEvent Intent = "DELETE_CALENDAR_EVENT"
	IntentCheckEmail          Intent = "CHECK_EMAIL"
	IntentSearchEmail         Intent = "SEARCH_EMAIL"
	IntentReadEmail           Intent = "READ_EMAIL"
	IntentAnalyzeEmail        Intent = "ANALYZE_EMAIL"
	IntentSearchRestaurants   Intent = "SEARCH_RESTAURANTS"
	IntentRememberThis        Intent = "REMEMBER_THIS"
	IntentRecallMemory        Intent = "RECALL_MEMORY"
	IntentForgetThis          Intent = "FORGET_THIS"
	IntentLearn               Intent = "LEARN"
	IntentGetNews             Intent = "GET_NEWS"
	IntentDocAnalysis         Intent = "DOC_ANALYSIS"
	IntentGeneralChat         Intent = "GENERAL_CHAT"
)

// AllIntents lists every declared intent in taxonomy order.
var AllIntents = []Intent{
	IntentGetWeather,
	IntentAddTask,
	IntentCompleteTask,
	IntentUpdateTask,
	IntentDeleteTask,
	IntentListTasks,
	IntentGetTaskReminders,
	IntentDailySummary,
	IntentCreateCalendarEvent,
	IntentUpdateCalendarEvent,
	IntentDeleteCalendarEvent,
	IntentCheckEmail,
	IntentSearchEmail,
	IntentReadEmail,
	IntentAnalyzeEmail,
	IntentSearchRestaurants,
	IntentRememberThis,
	IntentRecallMemory,
	IntentForgetThis,
	IntentLearn,
	IntentGetNews,
	IntentDocAnalysis,
	IntentGeneralChat,
}

var intentSet = func() map[Intent]struct{} {
	m := make(map[Intent]struct{}, len(AllIntents))
	for _, i := range AllIntents {
		m[i] = struct{}{}
	}
	return m
}()

// ParseIntent normalizes s ("get weather", "Get_Weather") and reports whether it names a declared intent.
func ParseIntent(s string) (Intent, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	i := Intent(norm)
	_, ok := intentSet[i]
	return i, ok
}

// IsConversational reports whether the intent is answered by free-form generation
// rather than a structured handler.
func (i Intent) IsConversational() bool {
	return i == IntentGeneralChat || i == IntentDocAnalysis
}

func (i Intent) String() string { return string(i) }
