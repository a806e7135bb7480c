package weather

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/plugin/apiclient"
)

// DefaultIPAPIURL is the free ip-api.com endpoint. It needs no key.
const DefaultIPAPIURL = "http://ip-api.com/json"

// IPLocator implements handlers.Locator with ip-api.com.
type IPLocator struct {
	endpoint string
	client   *apiclient.Client
}

// NewIPLocator creates a locator. An empty endpoint uses DefaultIPAPIURL.
func NewIPLocator(endpoint string) *IPLocator {
	if endpoint == "" {
		endpoint = DefaultIPAPIURL
	}
	return &IPLocator{
		endpoint: endpoint,
		client:   apiclient.New("ip_api", apiclient.WithTimeout(3*time.Second), apiclient.WithRate(1)),
	}
}

type ipAPIResponse struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	City       string  `json:"city"`
	RegionName string  `json:"regionName"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

// Locate approximates the server's public location.
func (l *IPLocator) Locate(ctx context.Context) (*handlers.Place, error) {
	var resp ipAPIResponse
	if err := l.client.GetJSON(ctx, l.endpoint, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, errs.Provider("weather.locate", fmt.Errorf("ip lookup failed: %s", resp.Message))
	}

	var parts []string
	for _, p := range []string{resp.City, resp.RegionName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return &handlers.Place{
		Name:      strings.Join(parts, ", "),
		Latitude:  resp.Lat,
		Longitude: resp.Lon,
	}, nil
}

var _ handlers.Locator = (*IPLocator)(nil)
