package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airfusion/airfusion/internal/config"
)

var keys = []string{
	"APP_PORT", "APP_ENV", "OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"NASA_TEMPO_TOKEN", "TEMPO_BASE_URL", "OPENAQ_API_KEY", "OPENAQ_BASE_URL",
	"WAQI_API_KEY", "WAQI_BASE_URL", "OPENWEATHER_API_KEY", "OPENWEATHER_BASE_URL",
	"OPS_JWT_SIGNING_KEY", "RATE_LIMIT_PER_MINUTE", "REQUIRE_TLS", "PROBE_INTERVAL",
	"PUBSUB_PROJECT_ID", "PUBSUB_SUBSCRIPTION",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.TelemetryEnabled)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, 15*time.Minute, cfg.ProbeInterval)
	assert.Empty(t, cfg.Satellite.APIKey)
	assert.Empty(t, cfg.OpsJWTSigningKey)
	assert.False(t, cfg.RequireTLS)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnv_Providers(t *testing.T) {
	clearEnv(t)
	t.Setenv("NASA_TEMPO_TOKEN", "tempo-token")
	t.Setenv("TEMPO_BASE_URL", "https://tempo.example.com/api")
	t.Setenv("OPENAQ_API_KEY", "openaq-key")
	t.Setenv("WAQI_API_KEY", "waqi-key")
	t.Setenv("WAQI_BASE_URL", "https://api.waqi.info/")
	t.Setenv("OPENWEATHER_API_KEY", "owm-key")
	t.Setenv("APP_ENV", "production")
	t.Setenv("REQUIRE_TLS", "true")

	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "tempo-token", cfg.Satellite.APIKey)
	assert.Equal(t, "https://tempo.example.com/api", cfg.Satellite.BaseURL)
	assert.Equal(t, "openaq-key", cfg.Ground.APIKey)
	assert.Empty(t, cfg.Ground.BaseURL)
	assert.Equal(t, "waqi-key", cfg.AlternateGround.APIKey)
	assert.Equal(t, "owm-key", cfg.Weather.APIKey)
	assert.True(t, cfg.RequireTLS)
	assert.True(t, cfg.IsProduction())
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non numeric port", "APP_PORT", "http"},
		{"unknown environment", "APP_ENV", "qa"},
		{"bad probe interval", "PROBE_INTERVAL", "often"},
		{"probe interval too short", "PROBE_INTERVAL", "10s"},
		{"bad rate limit", "RATE_LIMIT_PER_MINUTE", "many"},
		{"zero rate limit", "RATE_LIMIT_PER_MINUTE", "0"},
		{"short signing key", "OPS_JWT_SIGNING_KEY", "short"},
		{"bad base url", "OPENAQ_BASE_URL", "not a url"},
		{"project without subscription", "PUBSUB_PROJECT_ID", "my-project"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := config.FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestFromEnv_PubSub(t *testing.T) {
	clearEnv(t)
	t.Setenv("PUBSUB_PROJECT_ID", "my-project")
	t.Setenv("PUBSUB_SUBSCRIPTION", "probe-triggers")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "probe-triggers", cfg.PubSubSubscription)
}
