// Package yelp searches restaurants through the Yelp AI chat API.
package yelp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/plugin/apiclient"
)

const (
	DefaultEndpoint = "https://api.yelp.com/ai/chat/v2"
	DefaultLocale   = "en_US"

	metersPerMile = 1609.344
	timeout       = 30 * time.Second
)

// Config configures the Yelp client.
type Config struct {
	APIKey        string
	Endpoint      string
	Locale        string
	RatePerSecond int
}

// Client implements handlers.Restaurants.
type Client struct {
	endpoint string
	locale   string
	client   *apiclient.Client
}

// New creates the client. The API key is required.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errs.Configuration("yelp", "Yelp API key")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Locale == "" {
		cfg.Locale = DefaultLocale
	}
	return &Client{
		endpoint: cfg.Endpoint,
		locale:   cfg.Locale,
		client: apiclient.New("yelp",
			apiclient.WithTimeout(timeout),
			apiclient.WithRate(cfg.RatePerSecond),
			apiclient.WithHeader("Authorization", "Bearer "+cfg.APIKey),
		),
	}, nil
}

type userContext struct {
	Locale    string   `json:"locale,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type chatRequest struct {
	Query       string       `json:"query"`
	ChatID      string       `json:"chat_id,omitempty"`
	UserContext *userContext `json:"user_context,omitempty"`
}

type business struct {
	ID          string  `json:"id"`
	Alias       string  `json:"alias"`
	Name        string  `json:"name"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	Price       string  `json:"price"`
	Distance    float64 `json:"distance"`
	ImageURL    string  `json:"image_url"`
	URL         string  `json:"url"`
	Phone       string  `json:"phone"`
	Location    struct {
		FormattedAddress string   `json:"formatted_address"`
		DisplayAddress   []string `json:"display_address"`
	} `json:"location"`
	Categories []struct {
		Title string `json:"title"`
	} `json:"categories"`
	ContextualInfo struct {
		Photos []struct {
			OriginalURL string `json:"original_url"`
		} `json:"photos"`
	} `json:"contextual_info"`
}

type chatResponse struct {
	ChatID   string `json:"chat_id"`
	Response struct {
		Text string `json:"text"`
	} `json:"response"`
	Entities []struct {
		Businesses []business `json:"businesses"`
	} `json:"entities"`
}

// Search asks Yelp's assistant for places to eat. Passing the previous ChatID
// continues that conversation.
func (c *Client) Search(ctx context.Context, query handlers.RestaurantQuery) (*handlers.RestaurantReply, error) {
	req := chatRequest{
		Query:       query.Query,
		ChatID:      query.ChatID,
		UserContext: &userContext{Locale: c.locale},
	}
	if query.Latitude != nil && query.Longitude != nil {
		req.UserContext.Latitude = query.Latitude
		req.UserContext.Longitude = query.Longitude
	}

	var resp chatResponse
	if err := c.client.PostJSON(ctx, c.endpoint, req, &resp); err != nil {
		return nil, err
	}

	reply := &handlers.RestaurantReply{
		Text:   strings.TrimSpace(resp.Response.Text),
		ChatID: resp.ChatID,
	}
	for _, entity := range resp.Entities {
		for _, b := range entity.Businesses {
			if b.Name == "" {
				continue
			}
			reply.Businesses = append(reply.Businesses, toBusiness(b))
		}
	}
	return reply, nil
}

func toBusiness(b business) handlers.Business {
	out := handlers.Business{
		ID:          b.ID,
		Name:        b.Name,
		Rating:      b.Rating,
		ReviewCount: b.ReviewCount,
		Price:       b.Price,
		ImageURL:    b.ImageURL,
		URL:         b.URL,
		Phone:       b.Phone,
		Address:     b.Location.FormattedAddress,
	}
	if out.ID == "" {
		out.ID = b.Alias
	}
	if out.ImageURL == "" && len(b.ContextualInfo.Photos) > 0 {
		out.ImageURL = b.ContextualInfo.Photos[0].OriginalURL
	}
	if out.Address == "" {
		out.Address = strings.Join(b.Location.DisplayAddress, ", ")
	}
	if b.Distance > 0 {
		out.Distance = fmt.Sprintf("%.1f mi", b.Distance/metersPerMile)
	}
	for _, cat := range b.Categories {
		if cat.Title != "" {
			out.Categories = append(out.Categories, cat.Title)
		}
	}
	return out
}

var _ handlers.Restaurants = (*Client)(nil)
