package models

import (
	"github.com/airfusion/airfusion/internal/airquality"
	"github.com/airfusion/airfusion/internal/forecast"
)

// ForecastResponse is the body of the forecast endpoint.
type ForecastResponse struct {
	*forecast.Forecast
	RealTimeData *airquality.FusionResult `json:"real_time_data"`
}

// HealthRecommendations is the body of the recommendations endpoint.
type HealthRecommendations struct {
	AQI      int                     `json:"aqi"`
	Category airquality.Category     `json:"category"`
	Advice   airquality.HealthAdvice `json:"advice"`
}
