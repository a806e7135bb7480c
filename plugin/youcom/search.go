// Package youcom queries the You.com web search index.
package youcom

import (
	"context"
	"net/url"
	"strconv"

	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/plugin/apiclient"
)

// DefaultEndpoint is the You.com search API.
const DefaultEndpoint = "https://ydc-index.io/v1/search"

// Config configures the You.com client.
type Config struct {
	APIKey        string
	Endpoint      string
	RatePerSecond int
}

// Search implements handlers.WebSearch.
type Search struct {
	endpoint string
	client   *apiclient.Client
}

// New creates the client. The API key is required.
func New(cfg Config) (*Search, error) {
	if cfg.APIKey == "" {
		return nil, errs.Configuration("youcom", "You.com API key")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	return &Search{
		endpoint: cfg.Endpoint,
		client:   apiclient.New("youcom", apiclient.WithRate(cfg.RatePerSecond), apiclient.WithHeader("X-API-Key", cfg.APIKey)),
	}, nil
}

type searchResponse struct {
	Results struct {
		Web []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
		} `json:"web"`
	} `json:"results"`
}

// Search returns up to count web results that have both a title and a description.
func (s *Search) Search(ctx context.Context, query string, count int) ([]handlers.SearchResult, error) {
	params := url.Values{"query": {query}}
	if count > 0 {
		params.Set("count", strconv.Itoa(count))
	}

	var resp searchResponse
	if err := s.client.GetJSON(ctx, s.endpoint, params, &resp); err != nil {
		return nil, err
	}

	var results []handlers.SearchResult
	for _, r := range resp.Results.Web {
		if r.Title == "" || r.Description == "" {
			continue
		}
		results = append(results, handlers.SearchResult{Title: r.Title, Description: r.Description, URL: r.URL})
		if count > 0 && len(results) == count {
			break
		}
	}
	return results, nil
}

var _ handlers.WebSearch = (*Search)(nil)
