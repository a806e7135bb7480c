package handlers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/manas/ai/e2e/fakes"
	"github.com/hrygo/manas/ai/e2e/mocks"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/store"
)

func TestLearn(t *testing.T) {
	search := &fakes.Search{Results: []handlers.SearchResult{
		{Title: "Photosynthesis", Description: "Plants turn light into sugar.", URL: "https://www.britannica.com/science/photosynthesis"},
		{Title: "How plants eat", Description: "Chlorophyll absorbs light.", URL: "https://kids.example.org/plants"},
	}}
	llm := mocks.NewMockLLM().WithResponse("Answer the user's question", "Plants use sunlight to make food.")
	h := newHandlers(handlers.Config{LLM: llm, Search: search})
	req := request("how does photosynthesis work")
	req.Profile = &store.UserProfile{UserID: testUser, LearningLevel: "beginner"}

	res := h.Learn(context.Background(), req)

	assert.Equal(t, handlers.TypeEducational, res.Type)
	assert.Equal(t, "Plants use sunlight to make food.", res.Message)
	assert.Equal(t, []string{"britannica.com", "kids.example.org"}, res.Data["citations"])
	assert.Equal(t, "high", res.Data["confidence"])

	prompt := llm.Calls()[0].Prompt()
	assert.Contains(t, prompt, "Explain simply")
	assert.Contains(t, prompt, "[1] Photosynthesis: Plants turn light into sugar.")

	// answers are cached per question and level
	again := h.Learn(context.Background(), req)
	assert.Equal(t, res.Message, again.Message)
	assert.Equal(t, 1, llm.CallCount())
	assert.Equal(t, 1, search.Calls())
}

func TestLearn_WithoutSearch(t *testing.T) {
	llm := mocks.NewMockLLM().WithResponse("Answer the user's question", "Gravity pulls masses together.")
	h := newHandlers(handlers.Config{LLM: llm})

	res := h.Learn(context.Background(), request("explain gravity"))

	assert.Equal(t, "medium", res.Data["confidence"])
	assert.Equal(t, []string{}, res.Data["citations"])
	require.Len(t, llm.Calls(), 1)
	assert.Contains(t, llm.Calls()[0].Prompt(), "key concepts")
}

func TestLearn_Failure(t *testing.T) {
	h := newHandlers(handlers.Config{LLM: mocks.NewMockLLM().WithDefaultError(errProviderDown)})

	res := h.Learn(context.Background(), request("explain gravity"))

	assert.Equal(t, "I'm having trouble finding information on that right now.", res.Message)
}
