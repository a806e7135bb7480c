package routing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hrygo/manas/ai/core/llm"
	"github.com/hrygo/manas/ai/metrics"
	"github.com/hrygo/manas/ai/session"
)

const (
	classifyMaxTokens   = 60
	classifyHistoryTurn = 4

	// FallbackConfidence is reported when the model reply cannot be used.
	FallbackConfidence = 0.5
)

// Classification is the outcome of intent classification.
type Classification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Fallback is returned when classification fails.
var Fallback = Classification{Intent: IntentGeneralChat, Confidence: FallbackConfidence}

// Classifier maps an utterance to an intent with one deterministic LLM call.
type Classifier struct {
	llm     llm.Service
	cache   *ClassificationCache
	metrics *metrics.Exporter
}

// NewClassifier creates a classifier. cache and m may be nil.
func NewClassifier(svc llm.Service, cache *ClassificationCache, m *metrics.Exporter) *Classifier {
	return &Classifier{llm: svc, cache: cache, metrics: m}
}

type classifyReply struct {
	Intent     string   `json:"intent"`
	Confidence *float64 `json:"confidence"`
}

// Classify returns the intent of utterance. It never fails: provider errors and
// unusable replies yield Fallback.
func (c *Classifier) Classify(ctx context.Context, utterance string, history []session.Turn) Classification {
	cacheable := len(history) == 0
	if cacheable && c.cache != nil {
		res, ok := c.cache.Get(utterance)
		c.metrics.RecordCacheLookup("intent", ok)
		if ok {
			return res
		}
	}

	var reply classifyReply
	if err := llm.Extract(ctx, c.llm, classifyPrompt(utterance, history), classifyMaxTokens, &reply); err != nil {
		slog.Warn("intent classification failed, using fallback",
			"utterance", truncate(utterance, 80),
			"error", err,
		)
		return Fallback
	}

	intent, ok := ParseIntent(reply.Intent)
	if !ok || reply.Confidence == nil {
		slog.Warn("intent classification returned unusable reply",
			"intent", reply.Intent,
			"has_confidence", reply.Confidence != nil,
		)
		return Fallback
	}

	res := Classification{Intent: intent, Confidence: clamp(*reply.Confidence)}
	slog.Debug("intent classified",
		"utterance", truncate(utterance, 50),
		"intent", res.Intent,
		"confidence", res.Confidence,
	)
	if cacheable {
		c.cache.Set(utterance, res)
	}
	return res
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func classifyPrompt(utterance string, history []session.Turn) string {
	var sb strings.Builder
	sb.WriteString(`Classify the user's message into exactly one intent.

Intents:
- GET_WEATHER: current weather or forecast for a place
- ADD_TASK: add something to the to-do list
- COMPLETE_TASK: mark a task as done
- UPDATE_TASK: change a task's title, priority or due date
- DELETE_TASK: remove a task
- LIST_TASKS: show the to-do list
- GET_TASK_REMINDERS: what is overdue or due soon
- DAILY_SUMMARY: overview of a day's schedule and tasks
- CREATE_CALENDAR_EVENT: schedule a meeting or event
- UPDATE_CALENDAR_EVENT: move or rename an event
- DELETE_CALENDAR_EVENT: cancel an event
- CHECK_EMAIL: check the inbox or unread mail
- SEARCH_EMAIL: find emails from someone or about something
- READ_EMAIL: open and read a specific email
- ANALYZE_EMAIL: insights, priorities or action items across emails
- SEARCH_RESTAURANTS: find places to eat
- REMEMBER_THIS: the user asks to remember a fact about them
- RECALL_MEMORY: the user asks what you remember
- FORGET_THIS: the user asks to forget something
- LEARN: explain a concept or answer a factual question
- GET_NEWS: news headlines or stories on a topic
- DOC_ANALYSIS: questions about an attached document or image
- GENERAL_CHAT: small talk and anything else

Examples:
"what's it like outside in Boston" -> {"intent": "GET_WEATHER", "confidence": 0.95}
"add buy milk to my list" -> {"intent": "ADD_TASK", "confidence": 0.95}
"I finished the report" -> {"intent": "COMPLETE_TASK", "confidence": 0.85}
"what's on my plate today" -> {"intent": "DAILY_SUMMARY", "confidence": 0.9}
"book a meeting with Sam at 3pm tomorrow" -> {"intent": "CREATE_CALENDAR_EVENT", "confidence": 0.95}
"any new emails?" -> {"intent": "CHECK_EMAIL", "confidence": 0.95}
"find me a sushi place nearby" -> {"intent": "SEARCH_RESTAURANTS", "confidence": 0.95}
"remember that I'm allergic to peanuts" -> {"intent": "REMEMBER_THIS", "confidence": 0.95}
"what do you know about me" -> {"intent": "RECALL_MEMORY", "confidence": 0.9}
"how do black holes form" -> {"intent": "LEARN", "confidence": 0.9}
"what's happening in tech" -> {"intent": "GET_NEWS", "confidence": 0.85}
"how are you doing" -> {"intent": "GENERAL_CHAT", "confidence": 0.9}
`)

	if block := session.HistoryBlock(history, classifyHistoryTurn); block != "" {
		sb.WriteString("\n")
		sb.WriteString(block)
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, `
Message: "%s"

Respond with ONLY a JSON object: {"intent": "<INTENT>", "confidence": <0.0-1.0>}`, utterance)
	return sb.String()
}
