// Package openaq provides the ground sensor source backed by the OpenAQ API.
package openaq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/airfusion/airfusion/internal/airquality"
	"github.com/airfusion/airfusion/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the OpenAQ API.
	DefaultBaseURL = "https://api.openaq.org/v2/"

	// ProviderName identifies this provider.
	ProviderName = "openaq"

	// NearRadiusMeters is the first search radius.
	NearRadiusMeters = 50_000
	// NearLimit caps the results of the first search.
	NearLimit = 50

	// WideRadiusMeters is the fallback search radius for sparse regions.
	WideRadiusMeters = 100_000
	// WideLimit caps the results of the fallback search.
	WideLimit = 20
)

// ClientConfig holds configuration for the OpenAQ client.
type ClientConfig struct {
	// APIKey is sent as X-API-Key when set (optional).
	APIKey string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use.
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Registry receives the default resilient client (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger

	// Now returns the current time (defaults to time.Now).
	Now func() time.Time
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an OpenAQ API client and the ground sensor source.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
	now        func() time.Time
	health     airquality.Health
}

// NewClient creates a new OpenAQ client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Timeout = airquality.DefaultGroundTimeout
		rc.MaxRetries = 2
		rc.InitialInterval = 200 * time.Millisecond
		rc.Registry = cfg.Registry
		httpClient = resilience.NewClient(rc)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
		now:        now,
	}
}

// API response types (from OpenAQ /latest).

type latestResponse struct {
	Results []latestResult `json:"results"`
}

type latestResult struct {
	Location     string        `json:"location"`
	Coordinates  *coordinates  `json:"coordinates"`
	Measurements []measurement `json:"measurements"`
	SourceName   string        `json:"sourceName"`
}

type coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type measurement struct {
	Parameter   string   `json:"parameter"`
	Value       *float64 `json:"value"`
	Unit        string   `json:"unit"`
	LastUpdated string   `json:"lastUpdated"`
}

// Name returns the source name.
func (c *Client) Name() airquality.SourceName {
	return airquality.SourceGround
}

// Health returns the source health.
func (c *Client) Health() airquality.HealthSnapshot {
	return c.health.Snapshot()
}

// Fetch returns ground readings near a point. Empty or failed searches fall
// back to a synthesized estimate.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) airquality.Outcome {
	now := c.now().UTC()

	stations, err := c.FetchStations(ctx, lat, lon, NearRadiusMeters, NearLimit)
	if err != nil || len(stations) == 0 {
		var wideErr error
		stations, wideErr = c.FetchStations(ctx, lat, lon, WideRadiusMeters, WideLimit)
		if wideErr != nil {
			err = wideErr
		} else if len(stations) > 0 {
			err = nil
		}
	}

	switch {
	case len(stations) > 0:
		c.health.RecordSuccess(now)
		return airquality.OK(airquality.NewGroundReading(ProviderName, airquality.Location{Lat: lat, Lon: lon}, now, stations))

	case err != nil:
		c.health.RecordFailure(now)
		c.logger.Warn().Err(err).Float64("lat", lat).Float64("lon", lon).Msg("openaq unavailable, using estimate")
		return airquality.Unavailable(
			airquality.SynthesizeGround(lat, lon, now),
			fmt.Errorf("%w: %s: %w", airquality.ErrProviderUnavailable, ProviderName, err),
		)

	default:
		c.health.RecordSuccess(now)
		c.logger.Info().Float64("lat", lat).Float64("lon", lon).Msg("no openaq stations nearby, using estimate")
		return airquality.NoData(
			airquality.SynthesizeGround(lat, lon, now),
			fmt.Errorf("%w: %s within %d km", airquality.ErrNoDataAtLocation, ProviderName, WideRadiusMeters/1000),
		)
	}
}

// FetchStations retrieves the latest measurements of stations within radius
// meters of a point, grouped per station.
func (c *Client) FetchStations(ctx context.Context, lat, lon float64, radius, limit int) ([]airquality.Station, error) {
	q := url.Values{}
	q.Set("coordinates", fmt.Sprintf("%.6f,%.6f", lat, lon))
	q.Set("radius", strconv.Itoa(radius))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("order_by", "distance")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/latest?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch latest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from latest endpoint", resp.StatusCode)
	}

	var result latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode latest response: %w", err)
	}

	return c.toStations(result.Results, airquality.Location{Lat: lat, Lon: lon}), nil
}

// toStations groups results by location name, measuring distances from origin.
func (c *Client) toStations(results []latestResult, origin airquality.Location) []airquality.Station {
	byName := make(map[string]int, len(results))
	stations := make([]airquality.Station, 0, len(results))

	for _, r := range results {
		idx, ok := byName[r.Location]
		if !ok {
			coords := origin
			distance := airquality.SentinelDistanceKm
			if r.Coordinates != nil {
				coords = airquality.Location{Lat: r.Coordinates.Latitude, Lon: r.Coordinates.Longitude}
				distance = airquality.DistanceKm(origin, coords)
			}
			stations = append(stations, airquality.Station{
				ID:           r.Location,
				Name:         r.Location,
				Coordinates:  coords,
				DistanceKm:   distance,
				Measurements: make(map[airquality.Pollutant]airquality.StationMeasurement),
			})
			idx = len(stations) - 1
			byName[r.Location] = idx
		}

		for _, m := range r.Measurements {
			pollutant := toPollutant(m.Parameter)
			if pollutant == "" || m.Value == nil {
				continue
			}
			updated, _ := time.Parse(time.RFC3339, m.LastUpdated)
			stations[idx].Measurements[pollutant] = airquality.StationMeasurement{
				Value:       *m.Value,
				Unit:        m.Unit,
				LastUpdated: updated,
				Provider:    r.SourceName,
			}
		}
	}

	return stations
}

// toPollutant converts an OpenAQ parameter to our Pollutant type.
func toPollutant(parameter string) airquality.Pollutant {
	switch strings.ToLower(strings.ReplaceAll(parameter, ".", "")) {
	case "pm25":
		return airquality.PollutantPM25
	case "pm10":
		return airquality.PollutantPM10
	case "no2":
		return airquality.PollutantNO2
	case "o3":
		return airquality.PollutantO3
	case "so2":
		return airquality.PollutantSO2
	case "co":
		return airquality.PollutantCO
	default:
		return ""
	}
}
