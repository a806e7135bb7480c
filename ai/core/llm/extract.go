package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/hrygo/manas/ai/errs"
)

// ExtractJSON returns the JSON object embedded in model output.
// Markdown code fences ("```json ... ```" or bare "```") and surrounding prose are tolerated.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)

	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		rest = strings.TrimPrefix(rest, "JSON")
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		text = strings.TrimSpace(rest)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", errs.Resolution("llm.extract_json", "no JSON object in %q", truncate(text, 80))
	}
	return text[start : end+1], nil
}

// DecodeJSON extracts the JSON object from model output and decodes it into v.
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return errs.Resolution("llm.decode_json", "malformed JSON %q: %v", truncate(raw, 80), err)
	}
	return nil
}

// Extract runs a deterministic extraction prompt and decodes the JSON reply into v.
func Extract(ctx context.Context, svc Service, prompt string, maxTokens int, v any) error {
	text, _, err := svc.Chat(ctx, []Message{UserMessage(prompt)}, WithTemperature(0), WithMaxTokens(maxTokens))
	if err != nil {
		return err
	}
	return DecodeJSON(text, v)
}

// Ask runs a deterministic prompt expecting a short plain-text answer.
// Surrounding whitespace and quotes are stripped; "null" and empty answers are resolution failures.
func Ask(ctx context.Context, svc Service, prompt string, maxTokens int) (string, error) {
	text, _, err := svc.Chat(ctx, []Message{UserMessage(prompt)}, WithTemperature(0), WithMaxTokens(maxTokens))
	if err != nil {
		return "", err
	}
	answer := CleanAnswer(text)
	if answer == "" || strings.EqualFold(answer, "null") || strings.EqualFold(answer, "none") {
		return "", errs.Resolution("llm.ask", "empty answer")
	}
	return answer, nil
}

// CleanAnswer trims whitespace and wrapping quotes from a one-line model answer.
func CleanAnswer(text string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(text), "\"'`"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
