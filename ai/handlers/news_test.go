package handlers_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hrygo/manas/ai/e2e/fakes"
	"github.com/hrygo/manas/ai/e2e/mocks"
	"github.com/hrygo/manas/ai/handlers"
)

func articles(n int) []handlers.Article {
	out := make([]handlers.Article, n)
	for i := range out {
		out[i] = handlers.Article{Title: fmt.Sprintf("Story %d", i+1), URL: fmt.Sprintf("https://news.example.com/%d", i+1), Source: "Example"}
	}
	return out
}

func TestNews(t *testing.T) {
	t.Run("topic", func(t *testing.T) {
		news := &fakes.News{Articles: articles(8)}
		llm := mocks.NewMockLLM().
			WithResponse("Extract the news topic", "Electric Cars").
			WithResponse("spoken introduction", "Here's what's new with electric cars.")
		h := newHandlers(handlers.Config{LLM: llm, News: news})

		res := h.News(context.Background(), request("any news about electric cars?"))

		assert.Equal(t, "Here's what's new with electric cars.", res.Message)
		assert.Equal(t, 5, res.Data["count"])
		assert.Equal(t, []string{"electric cars"}, news.Topics())
	})

	t.Run("defaults to top headlines", func(t *testing.T) {
		news := &fakes.News{Articles: articles(1)}
		llm := mocks.NewMockLLM().
			WithResponse("Extract the news topic", "null").
			WithError("spoken introduction", errProviderDown)
		h := newHandlers(handlers.Config{LLM: llm, News: news})

		res := h.News(context.Background(), request("what's happening"))

		assert.Equal(t, []string{handlers.TopHeadlines}, news.Topics())
		assert.Equal(t, "I've found 1 relevant news story for top headlines.", res.Message)
	})

	t.Run("nothing found", func(t *testing.T) {
		llm := mocks.NewMockLLM().WithResponse("Extract the news topic", "quantum knitting")
		h := newHandlers(handlers.Config{LLM: llm, News: &fakes.News{}})

		res := h.News(context.Background(), request("news on quantum knitting"))

		assert.Equal(t, "I couldn't find any recent news stories regarding 'quantum knitting'.", res.Message)
	})
}
