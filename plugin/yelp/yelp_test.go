package yelp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/handlers"
)

func TestClient_Search(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer yelp-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"chat_id": "chat-42",
			"response": {"text": " Here are some vegan spots. "},
			"entities": [{"businesses": [
				{"id": "b1", "name": "Green Fork", "rating": 4.5, "review_count": 120, "price": "$$",
				 "distance": 1609.344, "location": {"formatted_address": "1 Main St"},
				 "categories": [{"title": "Vegan"}, {"title": ""}]},
				{"alias": "leaf-cafe", "name": "Leaf Cafe", "location": {"display_address": ["2 Oak Ave", "Springfield"]},
				 "contextual_info": {"photos": [{"original_url": "https://img/leaf.jpg"}]}},
				{"id": "nameless"}
			]}]
		}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "yelp-key", Endpoint: srv.URL})
	require.NoError(t, err)

	lat, lon := 30.44, -84.28
	reply, err := c.Search(context.Background(), handlers.RestaurantQuery{
		Query:     "vegan restaurants",
		Latitude:  &lat,
		Longitude: &lon,
		ChatID:    "chat-41",
	})
	require.NoError(t, err)

	assert.Equal(t, "vegan restaurants", got.Query)
	assert.Equal(t, "chat-41", got.ChatID)
	require.NotNil(t, got.UserContext)
	assert.Equal(t, DefaultLocale, got.UserContext.Locale)
	assert.InDelta(t, lat, *got.UserContext.Latitude, 1e-9)

	assert.Equal(t, "Here are some vegan spots.", reply.Text)
	assert.Equal(t, "chat-42", reply.ChatID)
	require.Len(t, reply.Businesses, 2)

	first := reply.Businesses[0]
	assert.Equal(t, "Green Fork", first.Name)
	assert.Equal(t, "1.0 mi", first.Distance)
	assert.Equal(t, "1 Main St", first.Address)
	assert.Equal(t, []string{"Vegan"}, first.Categories)

	second := reply.Businesses[1]
	assert.Equal(t, "leaf-cafe", second.ID)
	assert.Equal(t, "2 Oak Ave, Springfield", second.Address)
	assert.Equal(t, "https://img/leaf.jpg", second.ImageURL)
	assert.Empty(t, second.Distance)
}

func TestClient_SearchWithoutCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		userCtx, ok := raw["user_context"].(map[string]any)
		require.True(t, ok)
		assert.NotContains(t, userCtx, "latitude")
		assert.NotContains(t, raw, "chat_id")
		_, _ = w.Write([]byte(`{"chat_id": "c", "response": {"text": "ok"}}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", Endpoint: srv.URL})
	require.NoError(t, err)
	reply, err := c.Search(context.Background(), handlers.RestaurantQuery{Query: "pizza"})
	require.NoError(t, err)
	assert.Empty(t, reply.Businesses)
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.True(t, errs.Is(err, errs.KindConfiguration))
}
