package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hrygo/manas/ai/core/llm"
	"github.com/hrygo/manas/ai/session"
	"github.com/hrygo/manas/store"
)

const (
	chatTemperature = 0.7
	chatMaxTokens   = 600
	chatMemoryFacts = 10
	// ChatFallback is the reply when conversation generation fails.
	ChatFallback = "I'm having trouble thinking right now. Can you try again?"

	docFocusPrefix = "[SYSTEM: Analyze the provided document/image. Answer the user based ONLY on the content of the file(s).]"
)

const persona = `You are Manas, a warm and concise personal voice assistant.
You help with tasks, calendar, email, weather, restaurants, news and learning.
Answer conversationally in a few sentences; your replies are usually spoken aloud, so avoid long lists and heavy markdown.`

func profileLines(p *store.UserProfile) string {
	if p == nil {
		return ""
	}
	var lines []string
	if p.Name != "" {
		lines = append(lines, "- Name: "+p.Name)
	}
	if p.Location != "" {
		lines = append(lines, "- Location: "+p.Location)
	}
	if p.DietaryPreference != "" {
		lines = append(lines, "- Dietary preference: "+p.DietaryPreference)
	}
	if p.LearningLevel != "" {
		lines = append(lines, "- Learning level: "+p.LearningLevel)
	}
	if len(p.Interests) > 0 {
		lines = append(lines, "- Interests: "+strings.Join(p.Interests, ", "))
	}
	if len(lines) == 0 {
		return ""
	}
	return "What I know about the user:\n" + strings.Join(lines, "\n")
}

// PrepareChat builds the message list for a conversational reply.
// focused restricts the answer to the attached documents.
func (h *Handlers) PrepareChat(ctx context.Context, req *Request, focused bool) (messages []llm.Message, memoryUsed bool) {
	system := []string{persona}
	if lines := profileLines(req.Profile); lines != "" {
		system = append(system, lines)
	}

	if h.memories != nil {
		memories, err := h.memories.ListMemories(ctx, &store.FindMemory{UserID: &req.UserID, Limit: chatMemoryFacts})
		if err != nil {
			slog.Debug("chat without memories", "user_id", req.UserID, "error", err)
		}
		if len(memories) > 0 {
			facts := make([]string, 0, len(memories))
			for _, m := range memories {
				facts = append(facts, "- "+m.Content)
			}
			system = append(system, "Facts the user told me about themselves:\n"+strings.Join(facts, "\n"))
			memoryUsed = true
		}
	}

	messages = append(messages, llm.SystemPrompt(strings.Join(system, "\n\n")))
	for _, t := range req.History {
		if t.Role == session.RoleAssistant {
			messages = append(messages, llm.AssistantMessage(t.Text))
		} else {
			messages = append(messages, llm.UserMessage(t.Text))
		}
	}

	content := req.Utterance
	var images []string
	if len(req.Attachments) > 0 {
		var inlined string
		inlined, images = inlineAttachments(req.Attachments)
		if inlined != "" {
			content = fmt.Sprintf("%s\n%s", content, inlined)
		}
	}
	if focused {
		content = docFocusPrefix + "\n" + content
	}
	user := llm.UserMessage(content)
	user.Images = images
	messages = append(messages, user)
	return messages, memoryUsed
}

// ChatOptions are the generation options of conversational replies.
func ChatOptions() []llm.CallOption {
	return []llm.CallOption{llm.WithTemperature(chatTemperature), llm.WithMaxTokens(chatMaxTokens)}
}

// Chat replies conversationally using the persona, profile, memories and history.
func (h *Handlers) Chat(ctx context.Context, req *Request) *Result {
	return h.converse(ctx, req, false)
}

// DocAnalysis answers questions about the attached documents or images.
func (h *Handlers) DocAnalysis(ctx context.Context, req *Request) *Result {
	return h.converse(ctx, req, true)
}

func (h *Handlers) converse(ctx context.Context, req *Request, focused bool) *Result {
	messages, memoryUsed := h.PrepareChat(ctx, req, focused)

	text, stats, err := h.llm.Chat(ctx, messages, ChatOptions()...)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("empty chat reply")
	}
	if err != nil {
		res := failure(TypeConversation, ChatFallback, err)
		res.Data["response_type"] = "casual"
		return res
	}
	if stats != nil {
		h.metrics.RecordLLMTokens(stats.PromptTokens, stats.CompletionTokens)
	}

	responseContext := "general"
	if focused {
		responseContext = "document"
	}
	return &Result{
		Type: TypeConversation,
		Data: map[string]any{
			"response_type": "casual",
			"context":       responseContext,
			"memory_used":   memoryUsed,
		},
		Message: strings.TrimSpace(text),
	}
}
