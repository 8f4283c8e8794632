package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"dispatch-service/internal/geo"
)

// Route is one candidate path returned by the directions provider.
type Route struct {
	Summary          string
	DistanceM        int
	DurationS        int
	DurationTrafficS int // 0 when the provider has no traffic data
}

// DirectionsProvider returns candidate routes between two points.
type DirectionsProvider interface {
	Directions(ctx context.Context, from, to geo.LatLng, alternatives bool) ([]Route, error)
}

// Provider calls a Google-Directions-style JSON API. A single Provider is
// constructed at process start and shared; calls are bounded by the client
// timeout and the request context.
type Provider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewProvider creates a directions client. baseURL is overridable so tests
// can point it at a fake server.
func NewProvider(baseURL, apiKey string) *Provider {
	if baseURL == "" {
		baseURL = "https://maps.googleapis.com/maps/api/directions/json"
	}
	return &Provider{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Directions queries the provider with traffic awareness enabled
// (departure_time=now yields duration_in_traffic).
func (p *Provider) Directions(ctx context.Context, from, to geo.LatLng, alternatives bool) ([]Route, error) {
	params := url.Values{}
	params.Set("origin", fmt.Sprintf("%f,%f", from.Lat, from.Lng))
	params.Set("destination", fmt.Sprintf("%f,%f", to.Lat, to.Lng))
	params.Set("departure_time", "now")
	if alternatives {
		params.Set("alternatives", "true")
	}
	if p.apiKey != "" {
		params.Set("key", p.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directions API returned %d", resp.StatusCode)
	}

	var out struct {
		Status string `json:"status"`
		Routes []struct {
			Summary string `json:"summary"`
			Legs    []struct {
				Distance          struct{ Value int } `json:"distance"`
				Duration          struct{ Value int } `json:"duration"`
				DurationInTraffic struct{ Value int } `json:"duration_in_traffic"`
			} `json:"legs"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Status != "OK" {
		return nil, fmt.Errorf("directions API status %q", out.Status)
	}
	if len(out.Routes) == 0 {
		return nil, fmt.Errorf("no route data")
	}

	routes := make([]Route, 0, len(out.Routes))
	for _, r := range out.Routes {
		if len(r.Legs) == 0 {
			continue
		}
		leg := r.Legs[0]
		routes = append(routes, Route{
			Summary:          r.Summary,
			DistanceM:        leg.Distance.Value,
			DurationS:        leg.Duration.Value,
			DurationTrafficS: leg.DurationInTraffic.Value,
		})
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("no route data")
	}
	return routes, nil
}
