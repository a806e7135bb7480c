package handlers_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/manas/ai/e2e/fakes"
	"github.com/hrygo/manas/ai/e2e/mocks"
	"github.com/hrygo/manas/ai/handlers"
)

func inbox() *fakes.Mail {
	return &fakes.Mail{
		Emails: []handlers.Email{
			{ID: "m1", ThreadID: "t1", From: "Sarah Lee <sarah@example.com>", Subject: "Flight itinerary for the conference in Lisbon next month", Snippet: "Your flight", Unread: true},
			{ID: "m2", ThreadID: "t2", From: "boss@example.com", Subject: "Q3 planning", Snippet: "Agenda attached"},
			{ID: "m3", ThreadID: "t1", From: "Sarah Lee <sarah@example.com>", Subject: "Re: Flight itinerary", Snippet: "Updated times", Unread: true},
		},
		Bodies: map[string]string{
			"m1": "Departure 9am from SFO.",
			"m2": strings.Repeat("x", 2000),
		},
	}
}

func TestCheckEmail(t *testing.T) {
	t.Run("unread list", func(t *testing.T) {
		mail := inbox()
		llm := mocks.NewMockLLM().WithResponse("Extract email query parameters", `{"count": 3, "filter": "unread", "summarize": false}`)
		h := newHandlers(handlers.Config{LLM: llm, Mail: mail})

		res := h.CheckEmail(context.Background(), request("any new emails?"))

		assert.Equal(t, "You have 2 unread emails. Here are the latest 2:\n"+
			"\n1. 'Flight itinerary for the conference in Lisbon n...' from Sarah Lee (unread)"+
			"\n2. 'Re: Flight itinerary' from Sarah Lee (unread)", res.Message)
		assert.Equal(t, 2, res.Data["unread_count"])
		assert.Equal(t, []string{"category:primary is:unread"}, mail.Queries())
	})

	t.Run("count is capped", func(t *testing.T) {
		mail := inbox()
		llm := mocks.NewMockLLM().WithResponse("Extract email query parameters", `{"count": 500, "filter": "all", "summarize": true}`)
		h := newHandlers(handlers.Config{LLM: llm, Mail: mail})

		res := h.CheckEmail(context.Background(), request("summarize all my email"))

		assert.Equal(t, 20, res.Data["count_requested"])
		assert.Equal(t, []string{"category:primary"}, mail.Queries())
		assert.True(t, strings.HasPrefix(res.Message, "You have 3 recent emails (2 unread): "), res.Message)
	})

	t.Run("today filter", func(t *testing.T) {
		mail := inbox()
		llm := mocks.NewMockLLM().WithResponse("Extract email query parameters", `{"count": 5, "filter": "today", "summarize": false}`)
		h := newHandlers(handlers.Config{LLM: llm, Mail: mail})

		h.CheckEmail(context.Background(), request("emails from today"))

		assert.Equal(t, []string{"category:primary after:2025/03/14"}, mail.Queries())
	})

	t.Run("inbox zero", func(t *testing.T) {
		llm := mocks.NewMockLLM().WithResponse("Extract email query parameters", `{"count": 5, "filter": "unread", "summarize": false}`)
		h := newHandlers(handlers.Config{LLM: llm, Mail: &fakes.Mail{}})

		res := h.CheckEmail(context.Background(), request("check my email"))

		assert.Equal(t, "You have no unread emails. Your inbox is all caught up!", res.Message)
	})
}

func TestSearchEmail(t *testing.T) {
	mail := inbox()
	llm := mocks.NewMockLLM().WithResponse("Extract the Gmail search query", "from:Sarah")
	h := newHandlers(handlers.Config{LLM: llm, Mail: mail})

	res := h.SearchEmail(context.Background(), request("find emails from sarah"))

	assert.Equal(t, []string{"category:primary from:Sarah"}, mail.Queries())
	assert.True(t, strings.HasPrefix(res.Message, "I found 3 emails matching your search:"), res.Message)
	assert.Equal(t, "category:primary from:Sarah", res.Data["query"])
}

func TestAnalyzeEmail(t *testing.T) {
	mail := inbox()
	llm := mocks.NewMockLLM().WithResponse("analyzing the user's emails", "Your flight to Lisbon departs at 9am from SFO.")
	h := newHandlers(handlers.Config{LLM: llm, Mail: mail})

	res := h.AnalyzeEmail(context.Background(), request("when does my flight leave? check my last 2 emails"))

	assert.Equal(t, "Your flight to Lisbon departs at 9am from SFO.", res.Message)
	assert.Equal(t, 2, res.Data["emails_analyzed"])

	calls := llm.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0].Prompt()
	assert.Contains(t, prompt, "Departure 9am from SFO.")
	assert.Contains(t, prompt, strings.Repeat("x", 1500)+"...[truncated]")
	assert.NotContains(t, prompt, "Updated times")
	require.NotNil(t, calls[0].Options.Temperature)
	assert.InDelta(t, 0.7, *calls[0].Options.Temperature, 1e-6)
}

func TestReadEmail(t *testing.T) {
	t.Run("sender hint", func(t *testing.T) {
		mail := inbox()
		llm := mocks.NewMockLLM().WithResponse("The user wants to read a specific email",
			`{"thread_id": "", "message_id": "", "sender_hint": "Sarah", "subject_hint": ""}`)
		h := newHandlers(handlers.Config{LLM: llm, Mail: mail})

		res := h.ReadEmail(context.Background(), request("open the one from Sarah"))

		assert.Equal(t, []string{"category:primary from:Sarah"}, mail.Queries())
		assert.Equal(t, handlers.TypeEmailThread, res.Type)
		assert.Equal(t, 2, res.Data["count"])
	})

	t.Run("nothing to open", func(t *testing.T) {
		llm := mocks.NewMockLLM().WithResponse("The user wants to read a specific email",
			`{"thread_id": "", "message_id": "", "sender_hint": "", "subject_hint": ""}`)
		h := newHandlers(handlers.Config{LLM: llm, Mail: &fakes.Mail{}})

		res := h.ReadEmail(context.Background(), request("read it"))

		assert.Equal(t, "I couldn't figure out which email you'd like me to read. Could you be more specific?", res.Message)
	})
}
