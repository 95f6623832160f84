/*
Package weather provides the five day forecast shown with meetings.

Forecasts come from AccuWeather and are kept in a Cache for MaxAge, 24 hours
by default. Concurrent requests on a stale cache may each fetch a forecast;
the last write wins.
*/
package weather

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/harman-mundh/localcommunity/core/logger"
)

// DefaultMaxAge is how long a cached forecast stays fresh
const DefaultMaxAge = 24 * time.Hour

// DefaultBaseURL is the AccuWeather data service
const DefaultBaseURL = "http://dataservice.accuweather.com"

// Source fetches a forecast for a location key
type Source interface {
	Fetch(ctx context.Context, locationKey string) (json.RawMessage, error)
}

// Cache stores forecasts together with the time they were stored. Get
// returns a zero time if there is no entry.
type Cache interface {
	Get(ctx context.Context, key string) (json.RawMessage, time.Time, error)
	Put(ctx context.Context, key string, forecast json.RawMessage) error
}

// AccuWeather is a Source for the AccuWeather five day daily forecast
type AccuWeather struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Fetch implements Source
func (a *AccuWeather) Fetch(ctx context.Context, locationKey string) (json.RawMessage, error) {
	base := a.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	client := a.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	query := url.Values{}
	query.Set("apikey", a.APIKey)
	query.Set("details", "true")
	forecastURL := base + "/forecasts/v1/daily/5day/" + url.PathEscape(locationKey) + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, forecastURL, nil)
	if err != nil {
		return nil, err
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch forecast: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("cannot read forecast: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forecast service returned status %d", res.StatusCode)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("forecast service returned invalid JSON")
	}
	return body, nil
}

// Service returns cached forecasts for one location
type Service struct {
	Source      Source
	Cache       Cache
	LocationKey string
	MaxAge      time.Duration

	now func() time.Time
}

func (s *Service) maxAge() time.Duration {
	if s.MaxAge <= 0 {
		return DefaultMaxAge
	}
	return s.MaxAge
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Forecast returns the cached forecast if it is fresh, otherwise it fetches a
// new one and stores it. A failing cache read falls through to the source, a
// failing cache write is logged.
func (s *Service) Forecast(ctx context.Context) (json.RawMessage, error) {
	rlog := logger.FromContext(ctx)
	if s.Cache != nil {
		forecast, timestamp, err := s.Cache.Get(ctx, s.LocationKey)
		if err != nil {
			rlog.WithError(err).Errorf("Error 4811: cannot read weather cache")
		} else if !timestamp.IsZero() && s.clock().Sub(timestamp) < s.maxAge() {
			return forecast, nil
		}
	}
	return s.Refresh(ctx)
}

// Refresh fetches a new forecast and stores it in the cache
func (s *Service) Refresh(ctx context.Context) (json.RawMessage, error) {
	if s.Source == nil {
		return nil, fmt.Errorf("no weather source configured")
	}
	forecast, err := s.Source.Fetch(ctx, s.LocationKey)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.Put(ctx, s.LocationKey, forecast); err != nil {
			logger.FromContext(ctx).WithError(err).Errorf("Error 4812: cannot write weather cache")
		}
	}
	return forecast, nil
}
