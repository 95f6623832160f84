// Package geocoding resolves coordinates to addresses with the Google
// Geocoding API. Results are memoized in process.
package geocoding

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
)

// DefaultBaseURL is the Google Geocoding API endpoint
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Client performs reverse geocoding
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	memo    *cache.Cache
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another endpoint
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets the http client used for requests
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New returns a client for the API key. Results are kept for an hour.
func New(apiKey string, options ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		memo:    cache.New(time.Hour, 10*time.Minute),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Reverse returns the geocoding response for the coordinates
func (c *Client) Reverse(ctx context.Context, latitude, longitude float64) (json.RawMessage, error) {
	latlng := strconv.FormatFloat(latitude, 'f', -1, 64) + "," + strconv.FormatFloat(longitude, 'f', -1, 64)
	if x, found := c.memo.Get(latlng); found {
		return x.(json.RawMessage), nil
	}

	query := url.Values{}
	query.Set("latlng", latlng)
	query.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot reach geocoding api: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("cannot read geocoding response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding api returned status %d", res.StatusCode)
	}

	var status struct {
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("invalid geocoding response: %w", err)
	}
	switch status.Status {
	case "OK", "ZERO_RESULTS":
	default:
		return nil, fmt.Errorf("geocoding failed with %s %s", status.Status, status.ErrorMessage)
	}

	result := json.RawMessage(body)
	c.memo.Set(latlng, result, cache.DefaultExpiration)
	return result, nil
}
