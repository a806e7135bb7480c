package handlers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/manas/ai/e2e/fakes"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/ai/session"
	"github.com/hrygo/manas/store"
)

type tokens map[string]string

func (t tokens) ContinuationToken(userID, provider string) string { return t[userID+"/"+provider] }

func (t tokens) SetContinuationToken(userID, provider, token string) { t[userID+"/"+provider] = token }

func TestSearchRestaurants(t *testing.T) {
	businesses := make([]handlers.Business, 7)
	for i := range businesses {
		businesses[i] = handlers.Business{ID: string(rune('a' + i)), Name: "Place " + string(rune('A'+i)), Rating: 4.5}
	}

	t.Run("continues the conversation", func(t *testing.T) {
		yelp := &fakes.Restaurants{Reply: handlers.RestaurantReply{Text: "Here are some great tacos.", ChatID: "chat-2", Businesses: businesses}}
		conts := tokens{testUser + "/yelp": "chat-1"}
		h := newHandlers(handlers.Config{Restaurants: yelp, Continuations: conts})

		res := h.SearchRestaurants(context.Background(), request("find tacos"))

		assert.Equal(t, "Here are some great tacos.", res.Message)
		assert.Equal(t, 5, res.Data["count"])
		queries := yelp.Queries()
		require.Len(t, queries, 1)
		assert.Equal(t, "chat-1", queries[0].ChatID)
		assert.Equal(t, "chat-2", conts[testUser+"/yelp"])
	})

	t.Run("location and preference from memories", func(t *testing.T) {
		yelp := &fakes.Restaurants{Reply: handlers.RestaurantReply{Businesses: businesses[:2]}}
		memories := fakes.NewMemoryStore(
			&store.Memory{UserID: testUser, Content: "I live in Seattle"},
			&store.Memory{UserID: testUser, Content: "I'm vegetarian"},
		)
		h := newHandlers(handlers.Config{Restaurants: yelp, Memories: memories})

		res := h.SearchRestaurants(context.Background(), request("restaurants near me"))

		queries := yelp.Queries()
		require.Len(t, queries, 1)
		assert.Equal(t, "restaurants near me in seattle (i'm vegetarian)", queries[0].Query)
		assert.Equal(t, "I found 2 restaurants for you:\n\n1. Place A, rated 4.5\n2. Place B, rated 4.5", res.Message)
	})

	t.Run("profile coordinates", func(t *testing.T) {
		yelp := &fakes.Restaurants{Reply: handlers.RestaurantReply{Text: "ok"}}
		lat, lon := 47.6, -122.3
		h := newHandlers(handlers.Config{Restaurants: yelp})
		req := request("sushi")
		req.Profile = &store.UserProfile{UserID: testUser, Latitude: &lat, Longitude: &lon}

		h.SearchRestaurants(context.Background(), req)

		q := yelp.Queries()[0]
		require.NotNil(t, q.Latitude)
		assert.Equal(t, 47.6, *q.Latitude)
	})

	t.Run("pronouns are resolved", func(t *testing.T) {
		yelp := &fakes.Restaurants{Reply: handlers.RestaurantReply{Text: "ok"}}
		h := newHandlers(handlers.Config{Restaurants: yelp})
		req := request("any cheap places there?")
		req.History = []session.Turn{session.UserTurn("weather in Austin"), session.AssistantTurn("It's sunny in Austin.")}

		h.SearchRestaurants(context.Background(), req)

		// without a resolver the utterance passes through unchanged
		assert.Equal(t, "any cheap places there?", yelp.Queries()[0].Query)
	})

	t.Run("provider failure", func(t *testing.T) {
		yelp := &fakes.Restaurants{Err: errProviderDown}
		h := newHandlers(handlers.Config{Restaurants: yelp})

		res := h.SearchRestaurants(context.Background(), request("pizza"))

		assert.Equal(t, "I'm having trouble searching for restaurants right now. Please try again.", res.Message)
	})
}
