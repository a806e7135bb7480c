package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/manas/ai/core/llm"
	"github.com/hrygo/manas/ai/errs"
)

// TopHeadlines is the topic meaning general news.
const TopHeadlines = "top headlines"

const maxArticles = 5

func articlesData(articles []Article) []map[string]any {
	out := make([]map[string]any, 0, len(articles))
	for _, a := range articles {
		item := map[string]any{
			"title":       a.Title,
			"description": a.Description,
			"url":         a.URL,
			"thumbnail":   a.ImageURL,
			"source":      a.Source,
		}
		if !a.PublishedAt.IsZero() {
			item["timestamp"] = a.PublishedAt.Format(time.RFC3339)
		}
		out = append(out, item)
	}
	return out
}

// News fetches recent articles for the requested topic and introduces them briefly.
func (h *Handlers) News(ctx context.Context, req *Request) *Result {
	if h.news == nil {
		return clarify(TypeNews, "News service not configured.",
			errs.Configuration("handlers.news", "news"), map[string]any{"error": "not_configured"})
	}

	prompt := fmt.Sprintf(`%sExtract the news topic the user is asking about.
Examples:
"what's the latest news" -> top headlines
"any news about electric cars?" -> electric cars
"what happened with the fed today" -> federal reserve

User: "%s"

Return ONLY the topic, or "top headlines" for general news.`, historyBlock(req, 4), req.Utterance)

	topic, err := llm.Ask(ctx, h.light, prompt, 20)
	if err != nil {
		slog.Debug("news topic defaulted", "error", err)
		topic = TopHeadlines
	}
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" || strings.Contains(topic, "headline") || topic == "news" {
		topic = TopHeadlines
	}

	articles, err := h.news.Headlines(ctx, topic)
	if err != nil {
		return failure(TypeNews, "I'm having trouble fetching the news right now. Please try again.", err)
	}
	if len(articles) > maxArticles {
		articles = articles[:maxArticles]
	}
	if len(articles) == 0 {
		return &Result{
			Type:    TypeNews,
			Data:    map[string]any{"topic": topic, "articles": []map[string]any{}, "count": 0},
			Message: fmt.Sprintf("I couldn't find any recent news stories regarding '%s'.", topic),
		}
	}

	return &Result{
		Type: TypeNews,
		Data: map[string]any{
			"topic":    topic,
			"articles": articlesData(articles),
			"count":    len(articles),
		},
		Message: h.newsIntro(ctx, topic, articles),
	}
}

func (h *Handlers) newsIntro(ctx context.Context, topic string, articles []Article) string {
	stories := "stories"
	if len(articles) == 1 {
		stories = "story"
	}
	fallback := fmt.Sprintf("I've found %d relevant news %s for %s.", len(articles), stories, topic)

	var titles strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&titles, "%d. %s\n", i+1, a.Title)
	}
	prompt := fmt.Sprintf(`Write a one or two sentence spoken introduction to these %s news stories. Do not list them all.
%s`, topic, titles.String())

	text, _, err := h.llm.Chat(ctx, []llm.Message{llm.UserMessage(prompt)}, llm.WithTemperature(0.4), llm.WithMaxTokens(80))
	if err != nil {
		slog.Debug("news intro fell back", "error", err)
		return fallback
	}
	if text = llm.CleanAnswer(text); text == "" {
		return fallback
	}
	return text
}
