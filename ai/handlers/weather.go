package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/hrygo/manas/ai/core/llm"
	"github.com/hrygo/manas/ai/errs"
)

// centroid of the contiguous United States, the last-resort weather location
var defaultPlace = Place{Name: "United States", Latitude: 37.0902, Longitude: -95.7129}

var weatherLocationMarkers = []string{"weather in ", "weather for ", "weather at ", "temperature in ", "forecast for ", "forecast in ", " in "}

// weatherLocation pulls "Paris" out of "what's the weather in Paris today".
func weatherLocation(utterance string) string {
	lower := strings.ToLower(utterance)
	for _, marker := range weatherLocationMarkers {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(utterance[idx+len(marker):])
		rest = strings.TrimRight(rest, "?.!")
		lowerRest := strings.ToLower(rest)
		for _, suffix := range []string{" today", " tomorrow", " right now", " now", " this week"} {
			if strings.HasSuffix(lowerRest, suffix) {
				rest = rest[:len(rest)-len(suffix)]
				lowerRest = lowerRest[:len(lowerRest)-len(suffix)]
			}
		}
		if rest = strings.TrimSpace(rest); rest != "" {
			return rest
		}
	}
	return ""
}

func (h *Handlers) extractCity(ctx context.Context, req *Request, utterance string) (string, error) {
	prompt := fmt.Sprintf(`%sExtract the city or place the user asks the weather for.
Examples:
"what's the weather in Tokyo" -> Tokyo
"is it raining in new york?" -> New York
"how hot is it" -> null
"what about there" -> null

User: "%s"

Return ONLY the place name or null.`, historyBlock(req, 4), utterance)

	city, err := llm.Ask(ctx, h.light, prompt, 20)
	if err != nil {
		if errs.KindOf(err) == errs.KindResolution {
			return "", nil
		}
		return weatherLocation(utterance), err
	}
	return city, nil
}

// place decides where the weather is looked up:
// the named city, then the profile, then IP geolocation, then the US centroid.
func (h *Handlers) place(ctx context.Context, req *Request, city string) (*Place, error) {
	if city != "" {
		return h.weather.Geocode(ctx, city)
	}
	if p := req.Profile; p != nil {
		if p.HasCoordinates() {
			name := p.Location
			if name == "" {
				name = "your location"
			}
			return &Place{Name: name, Latitude: *p.Latitude, Longitude: *p.Longitude}, nil
		}
		if p.Location != "" {
			place, err := h.weather.Geocode(ctx, p.Location)
			if err == nil {
				return place, nil
			}
			slog.Debug("profile location not geocoded", "location", p.Location, "error", err)
		}
	}
	if h.locator != nil {
		place, err := h.locator.Locate(ctx)
		if err == nil {
			return place, nil
		}
		slog.Debug("ip geolocation failed", "error", err)
	}
	place := defaultPlace
	return &place, nil
}

func (h *Handlers) conditions(ctx context.Context, place *Place) (*Conditions, error) {
	key := fmt.Sprintf("%.2f,%.2f", place.Latitude, place.Longitude)
	if c, ok := h.weatherCache.Get(key); ok {
		h.metrics.RecordCacheLookup("weather", true)
		return c, nil
	}
	h.metrics.RecordCacheLookup("weather", false)

	c, err := h.weather.Current(ctx, place.Latitude, place.Longitude)
	if err != nil {
		return nil, err
	}
	h.weatherCache.Set(key, c)
	return c, nil
}

// Weather reports current conditions for the requested or inferred place.
func (h *Handlers) Weather(ctx context.Context, req *Request) *Result {
	if h.weather == nil {
		return clarify(TypeWeather, "Weather service isn't configured yet.",
			errs.Configuration("handlers.weather", "weather"), map[string]any{"error": "not_configured"})
	}

	// Extract location
	city, err := h.extractCity(ctx, req, req.Utterance)
	if err != nil {
		slog.Warn("weather location extraction failed, using pattern", "error", err)
	}
	if city == "" && err == nil && len(req.History) > 0 {
		if resolved := h.resolver.Resolve(ctx, req.Utterance, req.History); resolved != req.Utterance {
			city, _ = h.extractCity(ctx, req, resolved)
		}
	}

	// Resolve coordinates
	place, err := h.place(ctx, req, city)
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			return clarify(TypeWeather, fmt.Sprintf("I couldn't find %s. Please try another location.", city), err,
				map[string]any{"location": city})
		}
		return failure(TypeWeather, "I'm having trouble getting the weather right now. Please try again.", err)
	}

	// Fetch conditions
	c, err := h.conditions(ctx, place)
	if err != nil {
		return failure(TypeWeather, "I'm having trouble getting the weather right now. Please try again.", err)
	}

	celsius := (c.TemperatureF - 32) * 5 / 9
	windKMH := c.WindMPH * 1.609344
	return &Result{
		Type: TypeWeather,
		Data: map[string]any{
			"location":      place.Name,
			"latitude":      place.Latitude,
			"longitude":     place.Longitude,
			"temperature_f": math.Round(c.TemperatureF),
			"temperature_c": math.Round(celsius),
			"condition":     c.Condition,
			"humidity":      c.Humidity,
			"wind_kmh":      math.Round(windKMH),
		},
		Message: fmt.Sprintf("The weather in %s is %.0f°F (%.0f°C). %s. Humidity is %d%%. Wind speed is %.0f km/h.",
			place.Name, c.TemperatureF, celsius, strings.TrimSuffix(c.Condition, "."), c.Humidity, windKMH),
	}
}
