package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airfusion/airfusion/internal/airquality"
	"github.com/airfusion/airfusion/internal/api"
	"github.com/airfusion/airfusion/internal/api/models"
	"github.com/airfusion/airfusion/internal/auth"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeEngine returns a fixed result and tracks calls.
type fakeEngine struct {
	result *airquality.FusionResult
	err    error
	calls  atomic.Int32
	health map[airquality.SourceName]airquality.HealthSnapshot
}

func (f *fakeEngine) Fuse(_ context.Context, lat, lon float64) (*airquality.FusionResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	result := *f.result
	result.Location = airquality.Location{Lat: lat, Lon: lon}
	return &result, nil
}

func (f *fakeEngine) Health() map[airquality.SourceName]airquality.HealthSnapshot {
	return f.health
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		result: &airquality.FusionResult{
			Timestamp:            testNow,
			OverallIndex:         72,
			WeatherAdjustedIndex: 72,
			Category:             airquality.LevelModerate,
			DataSources:          airquality.DataSources{GroundSensors: true, Weather: true},
			DataQuality:          airquality.DataQualityHigh,
			PrimarySource:        airquality.PrimaryGroundSensors,
			Confidence:           airquality.ConfidenceHigh,
			WeatherImpact:        airquality.DispersionModerate,
			Pollutants: map[airquality.Pollutant]airquality.PollutantValue{
				airquality.PollutantPM25: {Value: 22.4, Unit: airquality.UnitMicrogramsPerCubicMeter},
			},
		},
		health: map[airquality.SourceName]airquality.HealthSnapshot{
			airquality.SourceGround:  {LastSuccess: testNow, TotalRequests: 4},
			airquality.SourceWeather: {LastFailure: testNow, ConsecutiveErrors: 1, TotalRequests: 4},
		},
	}
}

func testJWTService() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Now:        func() time.Time { return testNow },
	})
}

func testRouterConfig(engine *fakeEngine) api.RouterConfig {
	return api.RouterConfig{
		Version:   "test",
		BuildTime: "2025-06-01T00:00:00Z",
		Logger:    zerolog.New(io.Discard),
		Engine:    engine,
		Sources:   engine,
		OpsTokens: testJWTService(),
		Now:       func() time.Time { return testNow },
	}
}

func newTestRouter(engine *fakeEngine) http.Handler {
	return api.NewRouter(testRouterConfig(engine))
}

func serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, http.NoBody)
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var problem models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	return problem
}

func TestRouter_HealthCheck(t *testing.T) {
	rec := serve(t, newTestRouter(newFakeEngine()), get("/v1/ops/health"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	rec := serve(t, newTestRouter(newFakeEngine()), get("/v1/ops/ready"))

	assert.Equal(t, http.StatusOK, rec.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_CurrentAirQuality(t *testing.T) {
	engine := newFakeEngine()
	rec := serve(t, newTestRouter(engine), get("/v1/air-quality/current?lat=40.7128&lon=-74.006"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
	assert.Equal(t, int32(1), engine.calls.Load())

	var result airquality.FusionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 72, result.OverallIndex)
	assert.Equal(t, 40.7128, result.Location.Lat)
	assert.Equal(t, -74.006, result.Location.Lon)
	assert.Equal(t, airquality.PrimaryGroundSensors, result.PrimarySource)
}

func TestRouter_CurrentAirQuality_InvalidQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
		code  string
	}{
		{"latitude out of range", "lat=100&lon=0", "lat", "LATITUDE"},
		{"longitude out of range", "lat=0&lon=-200", "lon", "LONGITUDE"},
		{"missing longitude", "lat=10", "lon", "REQUIRED"},
		{"non numeric latitude", "lat=north&lon=0", "lat", "NUMBER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine()
			rec := serve(t, newTestRouter(engine), get("/v1/air-quality/current?"+tt.query))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, engine.calls.Load())

			problem := decodeProblem(t, rec)
			assert.Equal(t, models.ProblemTypeValidation, problem.Type)
			require.Len(t, problem.Errors, 1)
			assert.Equal(t, tt.field, problem.Errors[0].Field)
			assert.Equal(t, tt.code, problem.Errors[0].Code)
		})
	}
}

func TestRouter_CurrentAirQuality_FusionTimeout(t *testing.T) {
	engine := newFakeEngine()
	engine.err = context.DeadlineExceeded

	rec := serve(t, newTestRouter(engine), get("/v1/air-quality/current?lat=1&lon=1"))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, models.ProblemTypeTimeout, decodeProblem(t, rec).Type)
}

func TestRouter_Forecast(t *testing.T) {
	rec := serve(t, newTestRouter(newFakeEngine()), get("/v1/air-quality/forecast?lat=40.7&lon=-74&horizon=6"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))

	var body models.ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Forecast)
	assert.Len(t, body.Hours, 6)
	assert.Equal(t, testNow, body.GeneratedAt)
	require.NotNil(t, body.RealTimeData)
	assert.Equal(t, 72, body.RealTimeData.OverallIndex)
}

func TestRouter_Forecast_DefaultHorizon(t *testing.T) {
	rec := serve(t, newTestRouter(newFakeEngine()), get("/v1/air-quality/forecast?lat=40.7&lon=-74"))

	require.Equal(t, http.StatusOK, rec.Code)

	var body models.ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Hours, 24)
}

func TestRouter_Forecast_HorizonTooLong(t *testing.T) {
	engine := newFakeEngine()
	rec := serve(t, newTestRouter(engine), get("/v1/air-quality/forecast?lat=40.7&lon=-74&horizon=100"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, engine.calls.Load())

	problem := decodeProblem(t, rec)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "horizon", problem.Errors[0].Field)
	assert.Equal(t, "LTE", problem.Errors[0].Code)
}

func TestRouter_HealthRecommendations(t *testing.T) {
	rec := serve(t, newTestRouter(newFakeEngine()), get("/v1/health/recommendations?aqi=160"))

	require.Equal(t, http.StatusOK, rec.Code)

	var body models.HealthRecommendations
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 160, body.AQI)
	assert.Equal(t, airquality.LevelUnhealthy, body.Category.Level)
	assert.Equal(t, airquality.LevelUnhealthy, body.Advice.Level)
	assert.NotEmpty(t, body.Advice.Recommendations)
}

func TestRouter_HealthRecommendations_MissingAQI(t *testing.T) {
	rec := serve(t, newTestRouter(newFakeEngine()), get("/v1/health/recommendations"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decodeProblem(t, rec)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "aqi", problem.Errors[0].Field)
}

func TestRouter_GetAQIScale(t *testing.T) {
	rec := serve(t, newTestRouter(newFakeEngine()), get("/v1/metadata/aqi-scale"))

	require.Equal(t, http.StatusOK, rec.Code)

	var scale models.AQIScale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scale))
	assert.Equal(t, airquality.MaxIndex, scale.MaxIndex)
	require.Len(t, scale.Categories, 6)
	assert.Equal(t, airquality.LevelGood, scale.Categories[0].Level)
	assert.Equal(t, airquality.LevelHazardous, scale.Categories[5].Level)
}

func TestRouter_GetEnums(t *testing.T) {
	rec := serve(t, newTestRouter(newFakeEngine()), get("/v1/metadata/enums"))

	require.Equal(t, http.StatusOK, rec.Code)

	var enums models.Enums
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &enums))
	assert.Contains(t, enums.Pollutants, airquality.PollutantPM25)
	assert.Contains(t, enums.PrimarySources, airquality.PrimaryFallbackModel)
}

func TestRouter_SystemStatus_RequiresToken(t *testing.T) {
	rec := serve(t, newTestRouter(newFakeEngine()), get("/v1/ops/status"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, models.ProblemTypeUnauthorized, decodeProblem(t, rec).Type)
}

func TestRouter_SystemStatus(t *testing.T) {
	token, _, err := testJWTService().GenerateAccessToken("oncall@example.com")
	require.NoError(t, err)

	req := get("/v1/ops/status")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := serve(t, newTestRouter(newFakeEngine()), req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	require.Len(t, status.Sources, 2)
	assert.Equal(t, string(airquality.SourceGround), status.Sources[0].Source)
	assert.Equal(t, models.HealthStatusOK, status.Sources[0].Status)
	assert.Equal(t, models.HealthStatusDegraded, status.Sources[1].Status)
	assert.Empty(t, status.Providers)
}

func TestRouter_SystemStatus_PublicWithoutTokenService(t *testing.T) {
	cfg := testRouterConfig(newFakeEngine())
	cfg.OpsTokens = nil

	rec := serve(t, api.NewRouter(cfg), get("/v1/ops/status"))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RequestID_Generated(t *testing.T) {
	rec := serve(t, newTestRouter(newFakeEngine()), get("/v1/ops/health"))

	assert.Regexp(t, `^req_[0-9a-f]{32}$`, rec.Header().Get("X-Request-Id"))
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	req := get("/v1/ops/health")
	req.Header.Set("X-Request-Id", "client-request-123")

	rec := serve(t, newTestRouter(newFakeEngine()), req)

	assert.Equal(t, "client-request-123", rec.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	rec := serve(t, newTestRouter(newFakeEngine()), get("/v1/nonexistent"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	problem := decodeProblem(t, rec)
	assert.Equal(t, models.ProblemTypeNotFound, problem.Type)
	assert.Equal(t, "/v1/nonexistent", problem.Instance)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/air-quality/current", http.NoBody)
	rec := serve(t, newTestRouter(newFakeEngine()), req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, models.ProblemTypeMethodNotAllowed, decodeProblem(t, rec).Type)
}

func TestRouter_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/v1/air-quality/current", http.NoBody)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	rec := serve(t, newTestRouter(newFakeEngine()), req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_SecurityHeaders(t *testing.T) {
	rec := serve(t, newTestRouter(newFakeEngine()), get("/v1/ops/health"))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRouter_RequireTLS(t *testing.T) {
	cfg := testRouterConfig(newFakeEngine())
	cfg.RequireTLS = true
	router := api.NewRouter(cfg)

	req := get("/v1/ops/health")
	req.Header.Set("X-Forwarded-Proto", "http")
	rec := serve(t, router, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = get("/v1/ops/health")
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = serve(t, router, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_FusionRateLimit(t *testing.T) {
	engine := newFakeEngine()
	cfg := testRouterConfig(engine)
	cfg.RateLimitPerMinute = 2
	router := api.NewRouter(cfg)

	for i := 0; i < 2; i++ {
		rec := serve(t, router, get("/v1/air-quality/current?lat=1&lon=1"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := serve(t, router, get("/v1/air-quality/current?lat=1&lon=1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, int32(2), engine.calls.Load())

	// Metadata has its own budget.
	rec = serve(t, router, get("/v1/metadata/enums"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
