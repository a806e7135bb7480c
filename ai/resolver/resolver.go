// Package resolver rewrites short follow-up utterances into self-contained ones
// using recent conversation history.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hrygo/manas/ai/core/llm"
	"github.com/hrygo/manas/ai/internal/strutil"
	"github.com/hrygo/manas/ai/session"
)

const (
	// historyTurns is how many recent turns the rewrite prompt sees.
	historyTurns = 4
	// maxWords is the longest utterance considered a follow-up.
	maxWords  = 10
	maxTokens = 100
)

var referenceWords = map[string]struct{}{
	"it": {}, "that": {}, "there": {}, "them": {}, "those": {}, "this": {},
	"he": {}, "she": {}, "him": {}, "her": {}, "one": {}, "more": {}, "else": {},
}

// Resolver substitutes pronouns and implied entities from history.
type Resolver struct {
	llm llm.Service
}

// New creates a Resolver using the given (light) LLM.
func New(svc llm.Service) *Resolver {
	return &Resolver{llm: svc}
}

// NeedsResolution reports whether the utterance is a short follow-up containing a reference word.
func NeedsResolution(utterance string) bool {
	words := strings.Fields(strings.ToLower(utterance))
	if len(words) == 0 || len(words) > maxWords {
		return false
	}
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()")
		w = strings.TrimSuffix(w, "'s")
		if _, ok := referenceWords[w]; ok {
			return true
		}
	}
	return false
}

// Resolve returns utterance rewritten to be self-contained.
// It returns utterance unchanged when history is empty or on any failure.
func (r *Resolver) Resolve(ctx context.Context, utterance string, history []session.Turn) string {
	if r == nil || r.llm == nil || len(history) == 0 {
		return utterance
	}

	prompt := fmt.Sprintf(`%s
Rewrite the user's latest message so it can be understood without the conversation above.
Replace pronouns and implied references (it, that, there, them, one, else...) with the specific things they refer to.
Keep the user's intent and wording otherwise unchanged. If nothing needs replacing, repeat the message as is.
Return ONLY the rewritten message.

Latest message: "%s"

Rewritten:`, session.HistoryBlock(history, historyTurns), utterance)

	resolved, err := llm.Ask(ctx, r.llm, prompt, maxTokens)
	if err != nil {
		slog.Debug("reference resolution skipped", "error", err)
		return utterance
	}
	if len(resolved) > 3*len(utterance)+200 {
		slog.Debug("reference resolution discarded oversized rewrite", "length", len(resolved))
		return utterance
	}

	if resolved != utterance {
		slog.Info("reference resolved",
			"original", strutil.Truncate(utterance, 80),
			"resolved", strutil.Truncate(resolved, 80),
		)
	}
	return resolved
}

// ResolveIfNeeded resolves only follow-ups that NeedsResolution flags.
func (r *Resolver) ResolveIfNeeded(ctx context.Context, utterance string, history []session.Turn) string {
	if len(history) == 0 || !NeedsResolution(utterance) {
		return utterance
	}
	return r.Resolve(ctx, utterance, history)
}
