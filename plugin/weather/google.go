// Package weather reports current conditions through the Google Maps Platform
// and approximates the caller's position by IP address.
package weather

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/plugin/apiclient"
)

const (
	DefaultGeocodeURL    = "https://maps.googleapis.com/maps/api/geocode/json"
	DefaultConditionsURL = "https://weather.googleapis.com/v1/currentConditions:lookup"
)

// Config configures the Google weather client.
type Config struct {
	APIKey        string
	GeocodeURL    string
	ConditionsURL string
	RatePerSecond int
}

// Google implements handlers.Weather.
type Google struct {
	cfg    Config
	client *apiclient.Client
}

// NewGoogle creates the client. The API key is required.
func NewGoogle(cfg Config) (*Google, error) {
	if cfg.APIKey == "" {
		return nil, errs.Configuration("weather", "Google API key")
	}
	if cfg.GeocodeURL == "" {
		cfg.GeocodeURL = DefaultGeocodeURL
	}
	if cfg.ConditionsURL == "" {
		cfg.ConditionsURL = DefaultConditionsURL
	}
	return &Google{
		cfg:    cfg,
		client: apiclient.New("google_weather", apiclient.WithRate(cfg.RatePerSecond)),
	}, nil
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

// Geocode resolves a place name to coordinates.
func (g *Google) Geocode(ctx context.Context, query string) (*handlers.Place, error) {
	var resp geocodeResponse
	params := url.Values{"address": {query}, "key": {g.cfg.APIKey}}
	if err := g.client.GetJSON(ctx, g.cfg.GeocodeURL, params, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, errs.NotFound("weather.geocode", query)
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return nil, errs.ProviderQuota("weather.geocode", fmt.Errorf("geocoding status %s", resp.Status))
	default:
		return nil, errs.Provider("weather.geocode", fmt.Errorf("geocoding status %s: %s", resp.Status, resp.ErrorMessage))
	}
	if len(resp.Results) == 0 {
		return nil, errs.NotFound("weather.geocode", query)
	}

	top := resp.Results[0]
	return &handlers.Place{
		Name:      top.FormattedAddress,
		Latitude:  top.Geometry.Location.Lat,
		Longitude: top.Geometry.Location.Lng,
	}, nil
}

type conditionsResponse struct {
	Temperature struct {
		Degrees float64 `json:"degrees"`
	} `json:"temperature"`
	WeatherCondition struct {
		Description struct {
			Text string `json:"text"`
		} `json:"description"`
	} `json:"weatherCondition"`
	RelativeHumidity int `json:"relativeHumidity"`
	Wind             struct {
		Speed struct {
			Value float64 `json:"value"`
		} `json:"speed"`
	} `json:"wind"`
}

// Current returns conditions at the coordinates in imperial units.
func (g *Google) Current(ctx context.Context, latitude, longitude float64) (*handlers.Conditions, error) {
	params := url.Values{
		"key":                {g.cfg.APIKey},
		"location.latitude":  {strconv.FormatFloat(latitude, 'f', 4, 64)},
		"location.longitude": {strconv.FormatFloat(longitude, 'f', 4, 64)},
		"unitsSystem":        {"IMPERIAL"},
	}

	var resp conditionsResponse
	if err := g.client.GetJSON(ctx, g.cfg.ConditionsURL, params, &resp); err != nil {
		return nil, err
	}

	condition := resp.WeatherCondition.Description.Text
	if condition == "" {
		condition = "Clear"
	}
	return &handlers.Conditions{
		TemperatureF: resp.Temperature.Degrees,
		Condition:    condition,
		Humidity:     resp.RelativeHumidity,
		WindMPH:      resp.Wind.Speed.Value,
	}, nil
}

var _ handlers.Weather = (*Google)(nil)
