package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airfusion/airfusion/internal/api/models"
)

func TestProblem_Builders(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "req_test123").
		WithDetail("lat must be between -90 and 90").
		WithInstance("/v1/air-quality/current").
		WithErrors([]models.FieldError{{Field: "lat", Message: "out of range", Code: "LATITUDE"}})

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "req_test123", p.TraceID)
	assert.Equal(t, "lat must be between -90 and 90", p.Detail)
	assert.Equal(t, "/v1/air-quality/current", p.Instance)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "LATITUDE", p.Errors[0].Code)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "horizon", Message: "must be at most 72"},
	})
	p.Instance = "/v1/air-quality/forecast"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "Validation error", result.Title)
	assert.Equal(t, "invalid input", result.Detail)
	assert.Equal(t, "/v1/air-quality/forecast", result.Instance)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "horizon", result.Errors[0].Field)
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name    string
		problem *models.Problem
		typ     string
		status  int
	}{
		{"bad request", models.NewBadRequest("req", "d", nil), models.ProblemTypeValidation, http.StatusBadRequest},
		{"unauthorized", models.NewUnauthorized("req", "d"), models.ProblemTypeUnauthorized, http.StatusUnauthorized},
		{"not found", models.NewNotFound("req", "d"), models.ProblemTypeNotFound, http.StatusNotFound},
		{"method not allowed", models.NewMethodNotAllowed("req", "d"), models.ProblemTypeMethodNotAllowed, http.StatusMethodNotAllowed},
		{"too many requests", models.NewTooManyRequests("req", "d"), models.ProblemTypeTooManyRequests, http.StatusTooManyRequests},
		{"internal", models.NewInternalError("req", "d"), models.ProblemTypeInternal, http.StatusInternalServerError},
		{"unavailable", models.NewServiceUnavailable("req", "d"), models.ProblemTypeUnavailable, http.StatusServiceUnavailable},
		{"timeout", models.NewGatewayTimeout("req", "d"), models.ProblemTypeTimeout, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.problem.Type)
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, "d", tt.problem.Detail)
			assert.Equal(t, "req", tt.problem.TraceID)
		})
	}
}

func TestFieldErrorsFrom(t *testing.T) {
	type query struct {
		Lat     *float64 `validate:"required,latitude"`
		Horizon int      `validate:"gte=1,lte=72"`
	}

	lat := 95.0
	err := validator.New().Struct(query{Lat: &lat, Horizon: 100})
	require.Error(t, err)

	fields := models.FieldErrorsFrom(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "Lat", fields[0].Field)
	assert.Equal(t, "LATITUDE", fields[0].Code)
	assert.Equal(t, "must be a latitude between -90 and 90", fields[0].Message)
	assert.Equal(t, "Horizon", fields[1].Field)
	assert.Equal(t, "must be at most 72", fields[1].Message)

	assert.Nil(t, models.FieldErrorsFrom(assert.AnError))
}
