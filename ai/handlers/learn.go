package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hrygo/manas/ai/core/llm"
	"github.com/hrygo/manas/ai/errs"
)

const searchResultsForAnswer = 3

type answer struct {
	Answer     string
	Citations  []string
	Confidence string
}

var levelInstructions = map[string]string{
	"beginner":     "Explain simply, as to someone new to the topic. Avoid jargon and use an everyday analogy.",
	"intermediate": "Explain clearly with the key concepts and a concrete example.",
	"expert":       "Give a precise, technical explanation. Assume strong background knowledge.",
}

func levelInstruction(level string) string {
	if s, ok := levelInstructions[strings.ToLower(level)]; ok {
		return s
	}
	return levelInstructions["intermediate"]
}

// citationDomain turns "https://www.example.com/a/b" into "example.com".
func citationDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// Learn answers an educational question at the user's learning level,
// grounded on web search results when a search service is configured.
func (h *Handlers) Learn(ctx context.Context, req *Request) *Result {
	level := ""
	if req.Profile != nil {
		level = req.Profile.LearningLevel
	}
	question := strings.TrimSpace(req.Utterance)
	key := strings.ToLower(question) + "|" + strings.ToLower(level)

	if a, ok := h.answerCache.Get(key); ok {
		h.metrics.RecordCacheLookup("answer", true)
		return learnResult(a)
	}
	h.metrics.RecordCacheLookup("answer", false)

	var (
		sources   strings.Builder
		citations []string
	)
	if h.search != nil {
		results, err := h.search.Search(ctx, question, searchResultsForAnswer)
		if err != nil {
			slog.Warn("web search failed, answering without sources", "error", err)
		}
		for i, r := range results {
			if i == searchResultsForAnswer {
				break
			}
			fmt.Fprintf(&sources, "[%d] %s: %s\n", i+1, r.Title, r.Description)
			citations = append(citations, citationDomain(r.URL))
		}
	}

	prompt := fmt.Sprintf(`Answer the user's question in 3-5 sentences.
%s`, levelInstruction(level))
	if sources.Len() > 0 {
		prompt += "\nUse these search results where relevant:\n" + sources.String()
	}
	prompt += fmt.Sprintf("\nQuestion: %s", question)

	text, _, err := h.llm.Chat(ctx, []llm.Message{llm.UserMessage(prompt)}, llm.WithTemperature(0.3), llm.WithMaxTokens(400))
	if err == nil && strings.TrimSpace(text) == "" {
		err = errs.Resolution("handlers.learn", "empty answer")
	}
	if err != nil {
		return failure(TypeEducational, "I'm having trouble finding information on that right now.", err)
	}

	confidence := "medium"
	if len(citations) > 0 {
		confidence = "high"
	}
	a := &answer{Answer: strings.TrimSpace(text), Citations: citations, Confidence: confidence}
	h.answerCache.Set(key, a)
	return learnResult(a)
}

func learnResult(a *answer) *Result {
	citations := a.Citations
	if citations == nil {
		citations = []string{}
	}
	return &Result{
		Type: TypeEducational,
		Data: map[string]any{
			"answer":     a.Answer,
			"citations":  citations,
			"confidence": a.Confidence,
		},
		Message: a.Answer,
	}
}
