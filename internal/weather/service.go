package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/airfusion/airfusion/internal/airquality"
)

// Provider defines the interface for weather data providers.
type Provider interface {
	// GetCurrentWeather fetches current weather for a location.
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Provider is the weather data provider. When nil the service only
	// produces estimates.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Now returns the current time (defaults to time.Now).
	Now func() time.Time
}

// Service is the weather source. A provider is asked once per fetch and any
// failure is replaced by an estimate.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	now      func() time.Time
	health   airquality.Health
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		now:      now,
	}
}

// Name returns the source name.
func (s *Service) Name() airquality.SourceName {
	return airquality.SourceWeather
}

// Health returns the source health.
func (s *Service) Health() airquality.HealthSnapshot {
	return s.health.Snapshot()
}

// Fetch returns the weather at a point.
func (s *Service) Fetch(ctx context.Context, lat, lon float64) airquality.Outcome {
	now := s.now().UTC()

	if s.provider == nil {
		return airquality.Estimated(airquality.SynthesizeWeather(lat, lon, now))
	}

	obs, err := s.GetCurrentWeather(ctx, lat, lon)
	if err != nil {
		s.health.RecordFailure(now)
		s.logger.Warn().Err(err).
			Float64("lat", lat).
			Float64("lon", lon).
			Str("provider", s.provider.Name()).
			Msg("weather unavailable, using estimate")
		return airquality.Unavailable(
			airquality.SynthesizeWeather(lat, lon, now),
			fmt.Errorf("%w: %s: %w", airquality.ErrProviderUnavailable, s.provider.Name(), err),
		)
	}

	s.health.RecordSuccess(now)

	observed := obs.ObservedAt
	if observed.IsZero() {
		observed = now
	}
	return airquality.OK(&airquality.Reading{
		Source:    s.provider.Name(),
		Kind:      airquality.KindWeather,
		Timestamp: observed.UTC(),
		Location:  airquality.Location{Lat: lat, Lon: lon},
		Weather:   obs.Conditions(),
	})
}

// GetCurrentWeather returns the provider's current observation for a location.
func (s *Service) GetCurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Str("provider", s.provider.Name()).
		Msg("fetching weather from provider")

	return s.provider.GetCurrentWeather(ctx, lat, lon)
}

// validateCoordinates checks if coordinates are valid.
func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}
