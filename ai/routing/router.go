package routing

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/ai/metrics"
)

// ConfidenceThreshold is the minimum confidence for a structured intent to run.
const ConfidenceThreshold = 0.7

// PanicMessage is returned when a handler panics.
const PanicMessage = "Sorry, something went wrong while handling that. Please try again."

// Router dispatches classified intents to the domain handlers.
type Router struct {
	handlers *handlers.Handlers
	metrics  *metrics.Exporter
}

// NewRouter creates a router over h. m may be nil.
func NewRouter(h *handlers.Handlers, m *metrics.Exporter) *Router {
	return &Router{handlers: h, metrics: m}
}

// Effective applies the confidence check and returns the intent that will run.
func Effective(intent Intent, confidence float64) Intent {
	if confidence < ConfidenceThreshold {
		return IntentGeneralChat
	}
	return intent
}

// Route executes the handler for intent and returns its result along with the
// intent that actually ran. The result message is never empty.
func (r *Router) Route(ctx context.Context, intent Intent, confidence float64, req *handlers.Request) (*handlers.Result, Intent) {
	executed := Effective(intent, confidence)
	if executed != intent {
		r.metrics.RecordConfidenceFallback()
		slog.Debug("low confidence, routing to general chat",
			"intent", intent,
			"confidence", confidence,
		)
	}

	fn, ok := r.handlerFor(executed)
	if !ok {
		slog.Warn("no handler for intent, routing to general chat", "intent", executed)
		executed = IntentGeneralChat
		fn, _ = r.handlerFor(executed)
	}

	res := r.invoke(ctx, executed, fn, req)
	if res.Err != nil {
		r.metrics.RecordHandlerFailure(executed.String(), errs.KindOf(res.Err).String())
	}
	return res, executed
}

// invoke runs fn, turning a panic into an apologetic result.
func (r *Router) invoke(ctx context.Context, intent Intent, fn handlers.HandlerFunc, req *handlers.Request) (res *handlers.Result) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("handler panicked",
				"intent", intent,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			res = &handlers.Result{
				Type:    handlers.TypeConversation,
				Data:    map[string]any{"error": "internal"},
				Message: PanicMessage,
				Err:     fmt.Errorf("handler %s panicked: %v", intent, p),
			}
		}
	}()

	res = fn(ctx, req)
	if res == nil || res.Message == "" {
		err := fmt.Errorf("handler %s returned an empty result", intent)
		res = &handlers.Result{Type: handlers.TypeConversation, Message: PanicMessage, Err: err}
	}
	return res
}

// handlerFor maps every declared intent to its handler.
// The default arm reports false so unknown intents fall back to general chat.
func (r *Router) handlerFor(intent Intent) (handlers.HandlerFunc, bool) {
	h := r.handlers
	switch intent {
	case IntentGetWeather:
		return h.Weather, true
	case IntentAddTask:
		return h.AddTask, true
	case IntentCompleteTask:
		return h.CompleteTask, true
	case IntentUpdateTask:
		return h.UpdateTask, true
	case IntentDeleteTask:
		return h.DeleteTask, true
	case IntentListTasks:
		return h.ListTasks, true
	case IntentGetTaskReminders:
		return h.TaskReminders, true
	case IntentDailySummary:
		return h.DailySummary, true
	case IntentCreateCalendarEvent:
		return h.CreateEvent, true
	case IntentUpdateCalendarEvent:
		return h.UpdateEvent, true
	case IntentDeleteCalendarEvent:
		return h.DeleteEvent, true
	case IntentCheckEmail:
		return h.CheckEmail, true
	case IntentSearchEmail:
		return h.SearchEmail, true
	case IntentReadEmail:
		return h.ReadEmail, true
	case IntentAnalyzeEmail:
		return h.AnalyzeEmail, true
	case IntentSearchRestaurants:
		return h.SearchRestaurants, true
	case IntentRememberThis:
		return h.Remember, true
	case IntentRecallMemory:
		return h.Recall, true
	case IntentForgetThis:
		return h.Forget, true
	case IntentLearn:
		return h.Learn, true
	case IntentGetNews:
		return h.News, true
	case IntentDocAnalysis:
		return h.DocAnalysis, true
	case IntentGeneralChat:
		return h.Chat, true
	default:
		return nil, false
	}
}
