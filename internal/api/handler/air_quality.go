// Package handler provides the HTTP handlers of the fusion API.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/airfusion/airfusion/internal/airquality"
	"github.com/airfusion/airfusion/internal/api/middleware"
	"github.com/airfusion/airfusion/internal/api/models"
	"github.com/airfusion/airfusion/internal/api/response"
	"github.com/airfusion/airfusion/internal/forecast"
)

// Fuser produces a fused estimate for a point.
type Fuser interface {
	Fuse(ctx context.Context, lat, lon float64) (*airquality.FusionResult, error)
}

// AirQualityHandler serves fused estimates, forecasts and health advice.
type AirQualityHandler struct {
	engine Fuser
	logger zerolog.Logger
	now    func() time.Time
}

// AirQualityHandlerConfig holds configuration for AirQualityHandler.
type AirQualityHandlerConfig struct {
	Engine Fuser
	Logger zerolog.Logger

	// Now returns the current time (defaults to time.Now).
	Now func() time.Time
}

// NewAirQualityHandler creates a new AirQualityHandler.
func NewAirQualityHandler(cfg AirQualityHandlerConfig) *AirQualityHandler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AirQualityHandler{
		engine: cfg.Engine,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
}

// Current handles GET /v1/air-quality/current.
func (h *AirQualityHandler) Current(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r)
	q := p.coordinates()
	if !p.validate(w, q) {
		return
	}

	result, err := h.engine.Fuse(r.Context(), *q.Lat, *q.Lon)
	if err != nil {
		h.writeFuseError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	response.JSON(w, r, http.StatusOK, result)
}

// Forecast handles GET /v1/air-quality/forecast.
func (h *AirQualityHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r)
	q := forecastQuery{coordinateQuery: p.coordinates()}
	if horizon := p.int("horizon"); horizon != nil {
		q.Horizon = *horizon
	}
	if !p.validate(w, q) {
		return
	}

	result, err := h.engine.Fuse(r.Context(), *q.Lat, *q.Lon)
	if err != nil {
		h.writeFuseError(w, r, err)
		return
	}

	f, err := forecast.Generate(result, q.Horizon, h.now())
	if err != nil {
		if errors.Is(err, forecast.ErrInvalidHorizon) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		h.logger.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("forecast generation failed")
		response.InternalError(w, r, "failed to generate forecast")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, models.ForecastResponse{
		Forecast:     f,
		RealTimeData: result,
	})
}

// Recommendations handles GET /v1/health/recommendations.
func (h *AirQualityHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r)
	q := recommendationsQuery{AQI: p.int("aqi")}
	if !p.validate(w, q) {
		return
	}

	response.JSON(w, r, http.StatusOK, models.HealthRecommendations{
		AQI:      *q.AQI,
		Category: airquality.CategoryFor(*q.AQI),
		Advice:   airquality.AdviceFor(*q.AQI),
	})
}

func (h *AirQualityHandler) writeFuseError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, airquality.ErrInvalidCoordinates):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		response.GatewayTimeout(w, r, "fusion did not complete in time")
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads this.
		response.ServiceUnavailable(w, r, "request cancelled")
	default:
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("fusion failed")
		response.InternalError(w, r, "failed to fuse air quality data")
	}
}
