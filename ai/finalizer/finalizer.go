// Package finalizer polishes handler output for speech and learns profile facts
// from what the user says.
package finalizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hrygo/manas/ai/core/llm"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/ai/metrics"
)

const (
	// MinBeautifyLength is the shortest message worth rewriting.
	MinBeautifyLength = 30

	beautifyTemperature = 0.7
	beautifyMaxTokens   = 120
)

// Finalizer rewrites structured handler messages into natural speech.
type Finalizer struct {
	llm     llm.Service
	metrics *metrics.Exporter
}

// New creates a Finalizer. A nil svc disables rewriting.
func New(svc llm.Service, m *metrics.Exporter) *Finalizer {
	return &Finalizer{llm: svc, metrics: m}
}

// Finalize rewrites res.Message in place when conversational is false and the
// message is long enough. On failure the original message is kept.
func (f *Finalizer) Finalize(ctx context.Context, res *handlers.Result, conversational bool) *handlers.Result {
	if f == nil || f.llm == nil || res == nil {
		return res
	}
	if conversational || len(res.Message) < MinBeautifyLength {
		f.metrics.RecordBeautify("skipped")
		return res
	}

	prompt := fmt.Sprintf(`Make this natural for a voice assistant speaking directly to the user.
Use "you/your" (not "they/their"). Conversational, 2-3 sentences.

Input: %s

Natural:`, res.Message)

	text, _, err := f.llm.Chat(ctx, []llm.Message{llm.UserMessage(prompt)},
		llm.WithTemperature(beautifyTemperature),
		llm.WithMaxTokens(beautifyMaxTokens),
	)
	if err != nil {
		slog.Warn("beautification skipped", "type", res.Type, "error", err)
		f.metrics.RecordBeautify("failure")
		return res
	}

	natural := strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"`))
	if natural == "" {
		f.metrics.RecordBeautify("failure")
		return res
	}

	res.Message = natural
	f.metrics.RecordBeautify("success")
	return res
}
