// Package weather fetches current conditions for a location from a
// third-party HTTP weather API. It is the demo compute source the
// cmd/weathercache application registers into a cache.Cache: one
// registration per watched location, refreshed on its own schedule.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Conditions is the parsed response for one location. Temperature and wind
// speed are decimal.Decimal rather than float64: they come from an
// external API response and are compared/serialized elsewhere (the
// ClickHouse sink, any future alerting threshold), where float64's binary
// rounding would be a source of surprising drift.
type Conditions struct {
	Location    string
	TemperatureC decimal.Decimal
	WindSpeedKPH decimal.Decimal
	Summary      string
	ObservedAt   time.Time
}

// apiResponse mirrors the subset of the upstream JSON payload this client
// reads.
type apiResponse struct {
	Current struct {
		TempC     json.Number `json:"temp_c"`
		WindKPH   json.Number `json:"wind_kph"`
		Condition struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
}

// Client fetches Conditions for a location from the upstream API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New returns a Client. baseURL is the API root (e.g.
// "https://api.weatherprovider.example/v1"); apiKey is sent as a query
// parameter on every request.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch returns the current Conditions for location. It is meant to be
// used as a cache.Func: cache.Cache.RegisterFunc(location, func(ctx
// context.Context) (any, error) { return client.Fetch(ctx, location) },
// ttl, refreshInterval).
func (c *Client) Fetch(ctx context.Context, location string) (Conditions, error) {
	u := fmt.Sprintf("%s/current.json?key=%s&q=%s", c.baseURL, c.apiKey, url.QueryEscape(location))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Conditions{}, fmt.Errorf("weather: failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Conditions{}, fmt.Errorf("weather: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Conditions{}, fmt.Errorf("weather: unexpected status %d for %q", resp.StatusCode, location)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Conditions{}, fmt.Errorf("weather: failed to decode response: %w", err)
	}

	tempC, err := decimal.NewFromString(payload.Current.TempC.String())
	if err != nil {
		return Conditions{}, fmt.Errorf("weather: invalid temp_c %q: %w", payload.Current.TempC, err)
	}
	windKPH, err := decimal.NewFromString(payload.Current.WindKPH.String())
	if err != nil {
		return Conditions{}, fmt.Errorf("weather: invalid wind_kph %q: %w", payload.Current.WindKPH, err)
	}

	return Conditions{
		Location:     location,
		TemperatureC: tempC,
		WindSpeedKPH: windKPH,
		Summary:      payload.Current.Condition.Text,
		ObservedAt:   time.Now(),
	}, nil
}
