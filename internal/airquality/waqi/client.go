// Package waqi provides the alternate ground source backed by the World Air
// Quality Index (aqicn.org) API.
package waqi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
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
	// DefaultBaseURL is the base URL for the WAQI API.
	DefaultBaseURL = "https://api.waqi.info/"

	// ProviderName identifies this provider.
	ProviderName = "waqi"

	statusOK = "ok"
)

var (
	// ErrNotOK is returned when the API answers with a non-ok status.
	ErrNotOK = errors.New("waqi status not ok")

	// ErrNoStation is returned when a search finds no station.
	ErrNoStation = errors.New("no station found")

	// ErrNoIndex is returned when a station feed carries no usable index.
	ErrNoIndex = errors.New("station feed has no index")
)

// ClientConfig holds configuration for the WAQI client.
type ClientConfig struct {
	// Token is the API token. Without it the source reports no data.
	Token string

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

// Client is a WAQI API client and the alternate ground source.
type Client struct {
	token      string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
	now        func() time.Time
	health     airquality.Health
}

// NewClient creates a new WAQI client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Timeout = airquality.DefaultAlternateTimeout
		rc.MaxRetries = 1
		rc.Registry = cfg.Registry
		httpClient = resilience.NewClient(rc)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		token:      cfg.Token,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
		now:        now,
	}
}

// API response types.

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type feedData struct {
	AQI          flexibleIndex            `json:"aqi"`
	City         city                     `json:"city"`
	IAQI         map[string]iaqiValue     `json:"iaqi"`
	Attributions []map[string]interface{} `json:"attributions"`
}

type city struct {
	Name string    `json:"name"`
	Geo  []float64 `json:"geo"`
	URL  string    `json:"url"`
}

type iaqiValue struct {
	V flexibleIndex `json:"v"`
}

type searchResult struct {
	UID int `json:"uid"`
}

// flexibleIndex decodes an index that may be a number, a numeric string or
// a placeholder such as "-".
type flexibleIndex struct {
	Value int
	Valid bool
}

func (f *flexibleIndex) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*f = flexibleIndex{}
		return nil
	}
	*f = flexibleIndex{Value: int(math.Round(v)), Valid: true}
	return nil
}

// Name returns the source name.
func (c *Client) Name() airquality.SourceName {
	return airquality.SourceAlternateGround
}

// Health returns the source health.
func (c *Client) Health() airquality.HealthSnapshot {
	return c.health.Snapshot()
}

// Fetch returns the nearest station's indices. The geo feed is tried first,
// then a keyword search for the nearest station.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) airquality.Outcome {
	if c.token == "" {
		return airquality.NoData(nil, nil)
	}

	now := c.now().UTC()

	reading, geoErr := c.FetchGeoFeed(ctx, lat, lon)
	if geoErr == nil {
		c.health.RecordSuccess(now)
		return airquality.OK(reading)
	}

	reading, searchErr := c.FetchNearestStation(ctx, lat, lon)
	if searchErr == nil {
		c.health.RecordSuccess(now)
		return airquality.OK(reading)
	}

	err := errors.Join(geoErr, searchErr)
	c.health.RecordFailure(now)
	c.logger.Warn().Err(err).Float64("lat", lat).Float64("lon", lon).Msg("waqi unavailable, using estimate")
	return airquality.Unavailable(
		airquality.SynthesizeAlternateGround(lat, lon, now),
		fmt.Errorf("%w: %s: %w", airquality.ErrProviderUnavailable, ProviderName, err),
	)
}

// FetchGeoFeed retrieves the feed of the station nearest to a point.
func (c *Client) FetchGeoFeed(ctx context.Context, lat, lon float64) (*airquality.Reading, error) {
	path := fmt.Sprintf("/feed/geo:%s;%s/", formatCoord(lat), formatCoord(lon))

	var data feedData
	if err := c.get(ctx, path, nil, &data); err != nil {
		return nil, fmt.Errorf("geo feed: %w", err)
	}
	return c.toReading(data, lat, lon)
}

// FetchNearestStation searches stations by coordinates and retrieves the
// feed of the first match.
func (c *Client) FetchNearestStation(ctx context.Context, lat, lon float64) (*airquality.Reading, error) {
	q := url.Values{}
	q.Set("keyword", formatCoord(lat)+","+formatCoord(lon))

	var results []searchResult
	if err := c.get(ctx, "/search/", q, &results); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("search: %w", ErrNoStation)
	}

	var data feedData
	if err := c.get(ctx, fmt.Sprintf("/feed/@%d/", results[0].UID), nil, &data); err != nil {
		return nil, fmt.Errorf("station feed: %w", err)
	}
	return c.toReading(data, lat, lon)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Status != statusOK {
		return fmt.Errorf("%w: %s", ErrNotOK, env.Status)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return ErrNoStation
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// toReading converts a station feed to an alternate ground reading. Indices
// with a breakpoint table are also converted back to concentrations.
func (c *Client) toReading(data feedData, lat, lon float64) (*airquality.Reading, error) {
	pollutants := make(map[airquality.Pollutant]airquality.PollutantValue, len(data.IAQI))
	highest := -1
	for code, v := range data.IAQI {
		p := toPollutant(code)
		if p == "" || !v.V.Valid {
			continue
		}
		index := airquality.ClampIndex(v.V.Value)
		value := airquality.PollutantValue{
			Unit:   airquality.UnitIndexOnly,
			Index:  &index,
			Source: ProviderName,
		}
		if conc, ok := airquality.ConcentrationFor(p, index); ok {
			value.Value = conc
			value.Unit = airquality.UnitMicrogramsPerCubicMeter
		}
		pollutants[p] = value
		highest = max(highest, index)
	}

	overall := highest
	if data.AQI.Valid {
		overall = airquality.ClampIndex(data.AQI.Value)
	}
	if overall < 0 {
		return nil, ErrNoIndex
	}

	coords := airquality.Location{Lat: lat, Lon: lon}
	if len(data.City.Geo) == 2 {
		coords = airquality.Location{Lat: data.City.Geo[0], Lon: data.City.Geo[1]}
	}
	name := data.City.Name
	if name == "" {
		name = "Unknown Station"
	}

	return &airquality.Reading{
		Source:       ProviderName,
		Kind:         airquality.KindGround,
		Timestamp:    c.now().UTC(),
		Location:     airquality.Location{Lat: lat, Lon: lon},
		Pollutants:   pollutants,
		OverallIndex: &overall,
		StationInfo: &airquality.StationInfo{
			Name:        name,
			Coordinates: coords,
			URL:         data.City.URL,
		},
	}, nil
}

func toPollutant(code string) airquality.Pollutant {
	switch code {
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

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
