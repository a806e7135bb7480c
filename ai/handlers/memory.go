package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/manas/ai/core/llm"
	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/resolver"
	"github.com/hrygo/manas/store"
)

const maxRecalled = 10

var (
	generalRecallPhrases = []string{
		"about me", "know about me", "remember about me", "what do you remember",
		"what do you know", "everything you know", "all my memories", "my memories",
	}
	forgetAllPhrases = []string{"forget everything", "forget all", "clear all memories", "delete all memories", "erase everything"}
)

func memoriesData(memories []*store.Memory) []map[string]any {
	out := make([]map[string]any, 0, len(memories))
	for _, m := range memories {
		out = append(out, map[string]any{
			"id":      m.ID,
			"content": m.Content,
			"source":  m.Source,
		})
	}
	return out
}

func memoryUnavailable(op string) *Result {
	return clarify(TypeMemory, "My memory isn't available right now.", errs.Configuration(op, "memory store"),
		map[string]any{"error": "not_configured"})
}

// Remember stores a fact the user explicitly asked to keep.
func (h *Handlers) Remember(ctx context.Context, req *Request) *Result {
	if h.memories == nil {
		return memoryUnavailable("handlers.remember")
	}

	prompt := fmt.Sprintf(`Extract the fact the user wants remembered, written in the first person from the user's view.
Examples:
"remember that my favorite color is blue" -> my favorite color is blue
"don't forget I'm allergic to peanuts" -> I'm allergic to peanuts
"note that my sister's name is Priya" -> my sister's name is Priya

User: "%s"

Return ONLY the fact.`, req.Utterance)

	fact, err := llm.Ask(ctx, h.light, prompt, 100)
	if err != nil {
		if errs.KindOf(err) != errs.KindResolution {
			return failure(TypeMemory, "I had trouble saving that. Please try again.", err)
		}
		fact = stripRememberVerb(req.Utterance)
	}
	if fact == "" {
		return clarify(TypeMemory, "What would you like me to remember?", errs.Resolution("handlers.remember", "no fact"), nil)
	}

	m, err := h.memories.CreateMemory(ctx, &store.Memory{
		UserID:  req.UserID,
		Content: fact,
		Source:  store.MemorySourceExplicit,
	})
	if err != nil {
		return failure(TypeMemory, "I had trouble saving that. Please try again.", err)
	}

	return &Result{
		Type:    TypeMemory,
		Data:    map[string]any{"action": "remember", "memory_id": m.ID, "content": m.Content},
		Message: "Got it! I'll remember that.",
	}
}

// stripRememberVerb drops a leading "remember that" style phrase.
func stripRememberVerb(utterance string) string {
	text := strings.TrimSpace(utterance)
	lower := strings.ToLower(text)
	for _, prefix := range []string{"please remember that ", "remember that ", "please remember ", "remember ", "don't forget that ", "don't forget ", "note that "} {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(text[len(prefix):])
		}
	}
	return text
}

// Recall lists what the assistant remembers, either everything or what matches the question.
func (h *Handlers) Recall(ctx context.Context, req *Request) *Result {
	if h.memories == nil {
		return memoryUnavailable("handlers.recall")
	}

	lower := strings.ToLower(req.Utterance)
	general := containsAny(lower, generalRecallPhrases)

	var (
		memories []*store.Memory
		err      error
	)
	if general {
		memories, err = h.memories.ListMemories(ctx, &store.FindMemory{UserID: &req.UserID, Limit: maxRecalled})
	} else {
		query := req.Utterance
		if resolver.NeedsResolution(query) {
			query = h.resolver.Resolve(ctx, query, req.History)
		}
		memories, err = h.memories.SearchMemories(ctx, req.UserID, query, maxRecalled)
	}
	if err != nil {
		return failure(TypeMemory, "I had trouble remembering that. Please try again.", err)
	}

	if len(memories) == 0 {
		message := "I don't have any memories stored for you yet. Tell me something to remember!"
		if !general {
			message = "I don't remember anything about that. Tell me and I'll remember it!"
		}
		return &Result{
			Type:    TypeMemory,
			Data:    map[string]any{"action": "recall", "memories": []map[string]any{}, "count": 0},
			Message: message,
		}
	}

	var b strings.Builder
	if general {
		b.WriteString("Here's what I remember about you:\n")
	} else {
		b.WriteString("Here's what I remember about that:\n")
	}
	for i, m := range memories {
		fmt.Fprintf(&b, "\n%d. %s", i+1, m.Content)
	}

	return &Result{
		Type: TypeMemory,
		Data: map[string]any{
			"action":   "recall",
			"memories": memoriesData(memories),
			"count":    len(memories),
		},
		Message: b.String(),
	}
}

// Forget deletes every memory or the single best match for the request.
func (h *Handlers) Forget(ctx context.Context, req *Request) *Result {
	if h.memories == nil {
		return memoryUnavailable("handlers.forget")
	}

	lower := strings.ToLower(req.Utterance)
	if containsAny(lower, forgetAllPhrases) {
		n, err := h.memories.DeleteMemory(ctx, &store.DeleteMemory{UserID: req.UserID})
		if err != nil {
			return failure(TypeMemory, "I had trouble forgetting that. Please try again.", err)
		}
		return &Result{
			Type:    TypeMemory,
			Data:    map[string]any{"action": "forget_all", "count": n},
			Message: fmt.Sprintf("Done! I've forgotten everything I knew about you (%d removed).", n),
		}
	}

	query := req.Utterance
	if resolver.NeedsResolution(query) {
		query = h.resolver.Resolve(ctx, query, req.History)
	}
	matches, err := h.memories.SearchMemories(ctx, req.UserID, query, 1)
	if err != nil {
		return failure(TypeMemory, "I had trouble forgetting that. Please try again.", err)
	}
	if len(matches) == 0 {
		return clarify(TypeMemory, "I couldn't find that in my memory. What should I forget?",
			errs.NotFound("handlers.forget", query), nil)
	}

	target := matches[0]
	if _, err := h.memories.DeleteMemory(ctx, &store.DeleteMemory{ID: &target.ID, UserID: req.UserID}); err != nil {
		return failure(TypeMemory, "I had trouble forgetting that. Please try again.", err)
	}

	return &Result{
		Type:    TypeMemory,
		Data:    map[string]any{"action": "forget", "memory_id": target.ID, "content": target.Content},
		Message: "Done! I've forgotten that: " + target.Content,
	}
}
