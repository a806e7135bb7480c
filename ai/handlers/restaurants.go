package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/store"
)

// RestaurantProvider is the continuation-token key of the restaurant search conversation.
const RestaurantProvider = "yelp"

const maxBusinesses = 5

var (
	livesInPhrases  = []string{"live in", "lives in", "living in", "i'm from", "located in", "i'm in", "i am in", "i stay in"}
	foodPrefPhrases = []string{"vegetarian", "vegan", "gluten-free", "halal", "kosher", "allergic", "don't eat", "prefer"}
	nearMePhrases   = []string{"near me", "nearest", "nearby", "around me", "close to me"}
	dietWords       = []string{"vegetarian", "vegan", "gluten", "halal", "kosher"}
	placeReferences = []string{"there", "it", "that", "those", "here"}
)

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// phraseTail returns what follows the first matching phrase: "seattle" for "i live in seattle".
func phraseTail(text string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if i := strings.Index(text, p); i >= 0 {
			return strings.Trim(strings.TrimSpace(text[i+len(p):]), ".,!"), true
		}
	}
	return "", false
}

func hasReferenceWord(text string) bool {
	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, ".,!?;:\"'()")
		for _, r := range placeReferences {
			if w == r {
				return true
			}
		}
	}
	return false
}

// SearchRestaurants runs a conversational restaurant search, continuing the provider's
// previous conversation for this user when there is one.
func (h *Handlers) SearchRestaurants(ctx context.Context, req *Request) *Result {
	if h.restaurants == nil {
		return clarify(TypeRestaurants, "Restaurant search isn't configured yet.",
			errs.Configuration("handlers.search_restaurants", "restaurant search"), map[string]any{"error": "not_configured"})
	}

	lower := strings.ToLower(req.Utterance)
	var lat, lon *float64
	location := ""
	if p := req.Profile; p != nil {
		location = p.Location
		if p.HasCoordinates() {
			lat, lon = p.Latitude, p.Longitude
		}
	}

	foodPreference := ""
	if h.memories != nil {
		memories, err := h.memories.ListMemories(ctx, &store.FindMemory{UserID: &req.UserID})
		if err != nil {
			slog.Debug("restaurant search without memories", "user_id", req.UserID, "error", err)
		}
		for _, m := range memories {
			text := strings.ToLower(m.Content)
			if place, ok := phraseTail(text, livesInPhrases); ok && place != "" && location == "" {
				location = place
			}
			if containsAny(text, foodPrefPhrases) {
				foodPreference = text
			}
		}
	}

	query := req.Utterance
	if len(req.History) > 0 && hasReferenceWord(lower) {
		query = h.resolver.Resolve(ctx, req.Utterance, req.History)
	}

	nearMe := containsAny(lower, nearMePhrases)
	if nearMe && location == "" && lat == nil && h.locator != nil {
		if place, err := h.locator.Locate(ctx); err == nil {
			lat, lon = &place.Latitude, &place.Longitude
			location = place.Name
		} else {
			slog.Debug("ip geolocation failed", "error", err)
		}
	}
	if nearMe && location != "" {
		query = fmt.Sprintf("%s in %s", query, location)
	}
	if foodPreference != "" && !containsAny(lower, dietWords) {
		query = fmt.Sprintf("%s (%s)", query, foodPreference)
	}

	var chatID string
	if h.conts != nil {
		chatID = h.conts.ContinuationToken(req.UserID, RestaurantProvider)
	}

	reply, err := h.restaurants.Search(ctx, RestaurantQuery{Query: query, Latitude: lat, Longitude: lon, ChatID: chatID})
	if err != nil {
		return failure(TypeRestaurants, "I'm having trouble searching for restaurants right now. Please try again.", err)
	}
	if reply.ChatID != "" && h.conts != nil {
		h.conts.SetContinuationToken(req.UserID, RestaurantProvider, reply.ChatID)
	}

	businesses := reply.Businesses
	if len(businesses) > maxBusinesses {
		businesses = businesses[:maxBusinesses]
	}
	if businesses == nil {
		businesses = []Business{}
	}

	message := strings.TrimSpace(reply.Text)
	if message == "" && len(businesses) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "I found %d %s for you:\n", len(businesses), plural(len(businesses), "restaurant"))
		for i, biz := range businesses {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "\n%d. %s", i+1, biz.Name)
			if biz.Rating > 0 {
				fmt.Fprintf(&b, ", rated %.1f", biz.Rating)
			}
			if biz.Price != "" {
				fmt.Fprintf(&b, " (%s)", biz.Price)
			}
		}
		message = b.String()
	}
	if message == "" {
		message = "I couldn't find any restaurants matching your request. Try being more specific about the cuisine or location."
	}

	return &Result{
		Type: TypeRestaurants,
		Data: map[string]any{
			"businesses": businesses,
			"count":      len(businesses),
			"chat_id":    reply.ChatID,
			"query":      query,
		},
		Message: message,
	}
}
