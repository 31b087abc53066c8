// Package tempo provides the satellite source backed by NASA TEMPO
// tropospheric column retrievals.
package tempo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/airfusion/airfusion/internal/airquality"
	"github.com/airfusion/airfusion/internal/provider/resilience"
)

// ProviderName identifies this provider.
const ProviderName = "tempo"

// ErrNoRetrievals is returned when the service answers without any column.
var ErrNoRetrievals = errors.New("no column retrievals in response")

// Coverage is the field of regard of the instrument (lon/lat bound).
var Coverage = orb.Bound{
	Min: orb.Point{-175, 18},
	Max: orb.Point{-40, 71},
}

// Covers reports whether a point lies inside the satellite coverage box.
func Covers(lat, lon float64) bool {
	return Coverage.Contains(orb.Point{lon, lat})
}

// ClientConfig holds configuration for the TEMPO client.
type ClientConfig struct {
	// Token is the Earthdata bearer token. Without it the client only estimates.
	Token string

	// BaseURL is the retrieval service base URL. Without it the client only estimates.
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

// Client is the satellite source.
type Client struct {
	token      string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
	now        func() time.Time
	health     airquality.Health
}

// NewClient creates a new TEMPO client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Timeout = airquality.DefaultSatelliteTimeout
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
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
		now:        now,
	}
}

type columnResponse struct {
	Timestamp string  `json:"timestamp"`
	NO2       *column `json:"no2"`
	O3        *column `json:"o3"`
}

type column struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Name returns the source name.
func (c *Client) Name() airquality.SourceName {
	return airquality.SourceSatellite
}

// Health returns the source health.
func (c *Client) Health() airquality.HealthSnapshot {
	return c.health.Snapshot()
}

// Fetch returns the satellite columns over a point.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) airquality.Outcome {
	if !Covers(lat, lon) {
		return airquality.NoData(nil, nil)
	}

	now := c.now().UTC()
	if c.token == "" || c.baseURL == "" {
		return airquality.Estimated(airquality.SynthesizeSatellite(lat, lon, now))
	}

	reading, err := c.FetchColumns(ctx, lat, lon)
	if err != nil {
		c.health.RecordFailure(now)
		c.logger.Warn().Err(err).Float64("lat", lat).Float64("lon", lon).Msg("tempo unavailable, using estimate")
		return airquality.Unavailable(
			airquality.SynthesizeSatellite(lat, lon, now),
			fmt.Errorf("%w: %s: %w", airquality.ErrProviderUnavailable, ProviderName, err),
		)
	}

	c.health.RecordSuccess(now)
	if reading.Timestamp.IsZero() {
		reading.Timestamp = now
	}
	return airquality.OK(reading)
}

// FetchColumns retrieves the latest NO2 and O3 columns over a point.
func (c *Client) FetchColumns(ctx context.Context, lat, lon float64) (*airquality.Reading, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 4, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/columns?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch columns: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from columns endpoint", resp.StatusCode)
	}

	var result columnResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode columns response: %w", err)
	}
	if result.NO2 == nil && result.O3 == nil {
		return nil, ErrNoRetrievals
	}

	reading := &airquality.Reading{
		Source:     ProviderName,
		Kind:       airquality.KindSatellite,
		Location:   airquality.Location{Lat: lat, Lon: lon},
		Pollutants: make(map[airquality.Pollutant]airquality.PollutantValue, 2),
	}
	if ts, err := time.Parse(time.RFC3339, result.Timestamp); err == nil {
		reading.Timestamp = ts.UTC()
	}
	if result.NO2 != nil {
		reading.Pollutants[airquality.PollutantNO2] = toValue(*result.NO2, airquality.UnitMolPerSquareMeter)
	}
	if result.O3 != nil {
		reading.Pollutants[airquality.PollutantO3] = toValue(*result.O3, airquality.UnitDobson)
	}
	return reading, nil
}

func toValue(col column, defaultUnit string) airquality.PollutantValue {
	unit := col.Unit
	if unit == "" {
		unit = defaultUnit
	}
	return airquality.PollutantValue{Value: col.Value, Unit: unit, Source: ProviderName}
}
