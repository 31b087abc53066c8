// Package api provides the HTTP API of the fusion service.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/airfusion/airfusion/internal/api/handler"
	"github.com/airfusion/airfusion/internal/api/middleware"
	"github.com/airfusion/airfusion/internal/api/response"
)

// DefaultServiceName is used for tracing when RouterConfig.ServiceName is empty.
const DefaultServiceName = "airfusion-api"

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string

	// Metrics is optional.
	Metrics *middleware.Metrics

	// Engine fuses the sources for the air quality endpoints.
	Engine handler.Fuser

	// Sources and Providers feed the ops status endpoint. Optional.
	Sources   handler.SourceHealth
	Providers handler.ProviderHealth

	// OpsTokens protects the ops status endpoint. Nil leaves it public.
	OpsTokens middleware.TokenValidator

	// RateLimitPerMinute caps fusion requests per client IP.
	// Zero uses middleware.DefaultFusionRateLimit.
	RateLimitPerMinute int

	// RequireTLS rejects forwarded plain HTTP requests.
	RequireTLS bool

	// Now returns the current time (defaults to time.Now).
	Now func() time.Time
}

// NewRouter creates a chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	fusionLimit := middleware.DefaultFusionRateLimit
	if cfg.RateLimitPerMinute > 0 {
		fusionLimit = middleware.PerMinute(cfg.RateLimitPerMinute)
	}

	// Order matters: the request ID must exist before tracing and logging.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.CORS)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", "GET, OPTIONS")
		response.MethodNotAllowed(w, r, r.Method+" is not supported on this endpoint")
	})

	airQualityHandler := handler.NewAirQualityHandler(handler.AirQualityHandlerConfig{
		Engine: cfg.Engine,
		Logger: cfg.Logger,
		Now:    cfg.Now,
	})
	metadataHandler := handler.NewMetadataHandler()
	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Sources:   cfg.Sources,
		Providers: cfg.Providers,
		Now:       cfg.Now,
	})

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/air-quality", func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(fusionLimit))
			r.Get("/current", airQualityHandler.Current)
			r.Get("/forecast", airQualityHandler.Forecast)
		})

		r.With(standardRateLimit).Get("/health/recommendations", airQualityHandler.Recommendations)

		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/aqi-scale", metadataHandler.GetAQIScale)
			r.Get("/enums", metadataHandler.GetEnums)
		})

		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)

			if cfg.OpsTokens != nil {
				r.With(
					middleware.Auth(cfg.OpsTokens),
					middleware.RateLimitByOperator(middleware.OpsRateLimit),
				).Get("/status", opsHandler.SystemStatus)
			} else {
				r.With(middleware.RateLimitByIP(middleware.OpsRateLimit)).Get("/status", opsHandler.SystemStatus)
			}
		})
	})

	return r
}
