// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds configuration shared by the API server and the probe worker.
type Config struct {
	Port        string `validate:"required,numeric"`
	Environment string `validate:"required,oneof=development staging production test"`

	TelemetryEnabled bool
	OTLPEndpoint     string `validate:"required_if=TelemetryEnabled true"`

	Satellite       ProviderConfig
	Ground          ProviderConfig
	AlternateGround ProviderConfig
	Weather         ProviderConfig

	// OpsJWTSigningKey protects the ops status endpoint when set.
	OpsJWTSigningKey string `validate:"omitempty,min=16"`

	// RateLimitPerMinute caps fusion requests per client IP.
	RateLimitPerMinute int `validate:"gte=1"`

	// RequireTLS rejects plain HTTP requests forwarded by the load balancer.
	RequireTLS bool

	ProbeInterval time.Duration `validate:"gte=1m"`

	PubSubProjectID    string
	PubSubSubscription string `validate:"required_with=PubSubProjectID"`
}

// ProviderConfig holds the credentials and endpoint of one upstream provider.
type ProviderConfig struct {
	APIKey  string
	BaseURL string `validate:"omitempty,url"`
}

var validate = validator.New()

// Load reads an optional .env file and then the environment.
// Environment variables take precedence over the .env file.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	return FromEnv()
}

// FromEnv builds and validates a Config from environment variables.
func FromEnv() (*Config, error) {
	probeInterval, err := time.ParseDuration(getEnvOrDefault("PROBE_INTERVAL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROBE_INTERVAL: %w", err)
	}

	rateLimit, err := strconv.Atoi(getEnvOrDefault("RATE_LIMIT_PER_MINUTE", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}

	cfg := &Config{
		Port:             getEnvOrDefault("APP_PORT", "8080"),
		Environment:      getEnvOrDefault("APP_ENV", "development"),
		TelemetryEnabled: os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:     getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Satellite: ProviderConfig{
			APIKey:  os.Getenv("NASA_TEMPO_TOKEN"),
			BaseURL: os.Getenv("TEMPO_BASE_URL"),
		},
		Ground: ProviderConfig{
			APIKey:  os.Getenv("OPENAQ_API_KEY"),
			BaseURL: os.Getenv("OPENAQ_BASE_URL"),
		},
		AlternateGround: ProviderConfig{
			APIKey:  os.Getenv("WAQI_API_KEY"),
			BaseURL: os.Getenv("WAQI_BASE_URL"),
		},
		Weather: ProviderConfig{
			APIKey:  os.Getenv("OPENWEATHER_API_KEY"),
			BaseURL: os.Getenv("OPENWEATHER_BASE_URL"),
		},
		OpsJWTSigningKey:   os.Getenv("OPS_JWT_SIGNING_KEY"),
		RateLimitPerMinute: rateLimit,
		RequireTLS:         os.Getenv("REQUIRE_TLS") == "true",
		ProbeInterval:      probeInterval,
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
