// Package news fetches articles from NewsAPI.org.
package news

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/plugin/apiclient"
)

const (
	DefaultBaseURL = "https://newsapi.org/v2"

	pageSize      = 10
	removedMarker = "[Removed]"
	unknownSource = "News Source"
)

// generalTopics select the top-headlines endpoint instead of a search.
var generalTopics = map[string]bool{
	"top headlines": true,
	"latest news":   true,
	"general":       true,
	"":              true,
}

// Config configures the NewsAPI client.
type Config struct {
	APIKey        string
	BaseURL       string
	RatePerSecond int
}

// NewsAPI implements handlers.News.
type NewsAPI struct {
	baseURL string
	client  *apiclient.Client
}

// New creates the client. The API key is required.
func New(cfg Config) (*NewsAPI, error) {
	if cfg.APIKey == "" {
		return nil, errs.Configuration("news", "NewsAPI key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &NewsAPI{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  apiclient.New("newsapi", apiclient.WithRate(cfg.RatePerSecond), apiclient.WithHeader("X-Api-Key", cfg.APIKey)),
	}, nil
}

type articlesResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		URLToImage  string    `json:"urlToImage"`
		PublishedAt time.Time `json:"publishedAt"`
	} `json:"articles"`
}

// Headlines returns English articles for topic, newest first. Removed articles are dropped.
func (n *NewsAPI) Headlines(ctx context.Context, topic string) ([]handlers.Article, error) {
	endpoint := n.baseURL + "/top-headlines"
	params := url.Values{
		"language": {"en"},
		"pageSize": {strconv.Itoa(pageSize)},
	}
	if !generalTopics[strings.ToLower(strings.TrimSpace(topic))] {
		endpoint = n.baseURL + "/everything"
		params.Set("q", topic)
		params.Set("sortBy", "publishedAt")
	}

	var resp articlesResponse
	if err := n.client.GetJSON(ctx, endpoint, params, &resp); err != nil {
		return nil, err
	}

	articles := make([]handlers.Article, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if a.Title == "" || a.URL == "" || strings.Contains(a.Title, removedMarker) {
			continue
		}
		source := a.Source.Name
		if source == "" {
			source = unknownSource
		}
		articles = append(articles, handlers.Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			ImageURL:    a.URLToImage,
			Source:      source,
			PublishedAt: a.PublishedAt,
		})
	}
	return articles, nil
}

var _ handlers.News = (*NewsAPI)(nil)
