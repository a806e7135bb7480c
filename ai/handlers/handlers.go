// Package handlers implements the domain handlers the router dispatches to.
//
// Every handler has the same shape: it receives a Request carrying a copy of the
// caller's profile and history and returns a Result whose Message is never empty.
// Collaborator failures are absorbed here and turned into apologetic results.
package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrygo/manas/ai/cache"
	"github.com/hrygo/manas/ai/core/llm"
	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/metrics"
	"github.com/hrygo/manas/ai/resolver"
	"github.com/hrygo/manas/ai/session"
	"github.com/hrygo/manas/store"
)

// Result types.
const (
	TypeWeather        = "weather"
	TypeTaskCreation   = "task_creation"
	TypeTaskCompletion = "task_completion"
	TypeTaskUpdate     = "task_update"
	TypeTaskDeletion   = "task_deletion"
	TypeTaskList       = "task_list"
	TypeTaskReminders  = "task_reminders"
	TypeSummary        = "summary"
	TypeCalendarCreate = "calendar_create"
	TypeCalendarUpdate = "calendar_update"
	TypeCalendarDelete = "calendar_delete"
	TypeEmail          = "email"
	TypeEmailSearch    = "email_search"
	TypeEmailThread    = "email_thread"
	TypeEmailAnalysis  = "email_analysis"
	TypeRestaurants    = "restaurants"
	TypeMemory         = "memory"
	TypeEducational    = "educational"
	TypeNews           = "news"
	TypeConversation   = "conversation"
)

// Request is the uniform input of every handler.
type Request struct {
	Utterance   string
	UserID      string
	Profile     *store.UserProfile
	History     []session.Turn
	Attachments []Attachment
}

// Result is the uniform output of every handler.
type Result struct {
	Type    string         `json:"type"`
	Data    map[string]any `json:"data,omitempty"`
	Message string         `json:"message"`

	// Err is the cause of a degraded result. It is never serialized.
	Err error `json:"-"`
}

// HandlerFunc is the signature shared by all handlers.
type HandlerFunc func(ctx context.Context, req *Request) *Result

// Config wires the handlers to their collaborators.
// Nil domain services disable the corresponding capability.
type Config struct {
	// LLM generates conversational text (chat, answers, analysis).
	LLM llm.Service
	// LightLLM runs parameter extraction. Defaults to LLM.
	LightLLM llm.Service

	Tasks         TaskStore
	Memories      MemoryStore
	Continuations Continuations
	Resolver      *resolver.Resolver

	Calendar    Calendar
	Mail        Mail
	Weather     Weather
	Locator     Locator
	Restaurants Restaurants
	News        News
	Search      WebSearch

	Metrics *metrics.Exporter
	Now     func() time.Time
}

// Handlers holds the collaborators shared by every handler.
type Handlers struct {
	llm      llm.Service
	light    llm.Service
	tasks    TaskStore
	memories MemoryStore
	conts    Continuations
	resolver *resolver.Resolver

	calendar    Calendar
	mail        Mail
	weather     Weather
	locator     Locator
	restaurants Restaurants
	news        News
	search      WebSearch

	metrics *metrics.Exporter
	now     func() time.Time

	weatherCache *cache.LRU[string, *Conditions]
	answerCache  *cache.LRU[string, *answer]
}

const (
	weatherCacheTTL = 15 * time.Minute
	answerCacheTTL  = time.Hour
)

// New creates the handler set.
func New(cfg Config) *Handlers {
	light := cfg.LightLLM
	if light == nil {
		light = cfg.LLM
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Handlers{
		llm:          cfg.LLM,
		light:        light,
		tasks:        cfg.Tasks,
		memories:     cfg.Memories,
		conts:        cfg.Continuations,
		resolver:     cfg.Resolver,
		calendar:     cfg.Calendar,
		mail:         cfg.Mail,
		weather:      cfg.Weather,
		locator:      cfg.Locator,
		restaurants:  cfg.Restaurants,
		news:         cfg.News,
		search:       cfg.Search,
		metrics:      cfg.Metrics,
		now:          now,
		weatherCache: cache.New[string, *Conditions](256, weatherCacheTTL, cache.WithClock(now)),
		answerCache:  cache.New[string, *answer](256, answerCacheTTL, cache.WithClock(now)),
	}
}

// failure converts an error into an apologetic result.
func failure(resultType, message string, err error) *Result {
	slog.Warn("handler degraded",
		"type", resultType,
		"kind", errs.KindOf(err).String(),
		"error", err,
	)
	return &Result{
		Type:    resultType,
		Data:    map[string]any{"error": err.Error()},
		Message: message,
		Err:     err,
	}
}

// clarify asks the user a question instead of acting.
func clarify(resultType, message string, err error, data map[string]any) *Result {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["error"]; !ok {
		data["error"] = errs.KindOf(err).String()
	}
	return &Result{Type: resultType, Data: data, Message: message, Err: err}
}

func plural(n int, singular string) string {
	if n == 1 {
		return singular
	}
	return singular + "s"
}

// historyBlock renders the recent history used in extraction prompts.
func historyBlock(req *Request, turns int) string {
	block := session.HistoryBlock(req.History, turns)
	if block == "" {
		return ""
	}
	return block + "\n"
}
