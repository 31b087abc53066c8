// Package app assembles the fusion engine and its upstream sources from
// configuration. Both binaries share it.
package app

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/airfusion/airfusion/internal/airquality"
	"github.com/airfusion/airfusion/internal/airquality/openaq"
	"github.com/airfusion/airfusion/internal/airquality/tempo"
	"github.com/airfusion/airfusion/internal/airquality/waqi"
	"github.com/airfusion/airfusion/internal/config"
	"github.com/airfusion/airfusion/internal/provider/resilience"
	"github.com/airfusion/airfusion/internal/weather"
	"github.com/airfusion/airfusion/internal/weather/openweathermap"
)

// NewLogger returns the structured process logger.
func NewLogger(cfg *config.Config, service, version string) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Environment == "development" {
		level = zerolog.DebugLevel
	}

	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("environment", cfg.Environment).
		Logger()
}

// NewEngine builds the four sources and the engine fusing them. Every
// upstream client registers with registry.
func NewEngine(cfg *config.Config, registry *resilience.Registry, logger zerolog.Logger) *airquality.Engine {
	satellite := tempo.NewClient(tempo.ClientConfig{
		Token:    cfg.Satellite.APIKey,
		BaseURL:  cfg.Satellite.BaseURL,
		Registry: registry,
		Logger:   logger.With().Str("source", string(airquality.SourceSatellite)).Logger(),
	})

	ground := openaq.NewClient(openaq.ClientConfig{
		APIKey:   cfg.Ground.APIKey,
		BaseURL:  cfg.Ground.BaseURL,
		Registry: registry,
		Logger:   logger.With().Str("source", string(airquality.SourceGround)).Logger(),
	})

	alternate := waqi.NewClient(waqi.ClientConfig{
		Token:    cfg.AlternateGround.APIKey,
		BaseURL:  cfg.AlternateGround.BaseURL,
		Registry: registry,
		Logger:   logger.With().Str("source", string(airquality.SourceAlternateGround)).Logger(),
	})

	weatherLogger := logger.With().Str("source", string(airquality.SourceWeather)).Logger()
	var provider weather.Provider
	if cfg.Weather.APIKey != "" {
		provider = openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:   cfg.Weather.APIKey,
			BaseURL:  cfg.Weather.BaseURL,
			Registry: registry,
			Logger:   weatherLogger,
		})
	} else {
		logger.Warn().Msg("OPENWEATHER_API_KEY not set, weather will be estimated")
	}

	return airquality.NewEngine(airquality.EngineConfig{
		Sources: airquality.Sources{
			Satellite:       satellite,
			Ground:          ground,
			AlternateGround: alternate,
			Weather: weather.NewService(weather.ServiceConfig{
				Provider: provider,
				Logger:   weatherLogger,
			}),
		},
		Logger: logger,
	})
}
