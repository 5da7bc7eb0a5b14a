// Package weather implements the OpenWeather client used for advisory
// context on status replies. The client does one thing: fetch the current
// observation for the configured city. Caching, retries, and advisory text
// live in the service layer.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// Observation is one current-conditions reading.
type Observation struct {
	// Condition is the localized description, e.g. "chuva moderada".
	Condition string
	// Temperature in degrees Celsius.
	Temperature float64

	Rain  bool
	Snow  bool
	Storm bool
}

// Client calls the OpenWeather current-weather endpoint.
type Client struct {
	// HTTP is the underlying client; nil means a 5s-timeout default.
	HTTP *http.Client

	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string

	APIKey string
	CityID string
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 5 * time.Second}
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

type apiResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Rain map[string]float64 `json:"rain"`
	Snow map[string]float64 `json:"snow"`
}

// Current fetches the current observation for the configured city.
func (c *Client) Current(ctx context.Context) (*Observation, error) {
	q := url.Values{}
	q.Set("id", c.CityID)
	q.Set("appid", c.APIKey)
	q.Set("units", "metric")
	q.Set("lang", "pt_br")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("weather upstream: status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("weather upstream: decode: %w", err)
	}
	if len(body.Weather) == 0 {
		return nil, fmt.Errorf("weather upstream: empty conditions")
	}

	main := strings.ToLower(body.Weather[0].Main)
	obs := &Observation{
		Condition:   body.Weather[0].Description,
		Temperature: body.Main.Temp,
		Rain:        len(body.Rain) > 0 || main == "rain" || main == "drizzle",
		Snow:        len(body.Snow) > 0 || main == "snow",
		Storm:       main == "thunderstorm",
	}
	return obs, nil
}
