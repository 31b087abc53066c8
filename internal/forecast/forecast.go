// Package forecast extrapolates a fused air quality estimate into an hourly
// outlook using diurnal and weather drift factors.
package forecast

import (
	"errors"
	"math"
	"time"

	"github.com/airfusion/airfusion/internal/airquality"
)

const (
	// DefaultHorizon is the number of hours forecast when none is requested.
	DefaultHorizon = 24

	// MaxHorizon is the longest supported forecast.
	MaxHorizon = 72

	// Model names the extrapolation in responses.
	Model = "fusion_extrapolation_v1"

	minIndex           = 5
	maxIndex           = 300
	baseUncertainty    = 10
	uncertaintyPerHour = 2

	// pm25PerIndex estimates PM2.5 from an index when no concentration is known.
	pm25PerIndex = 0.4
)

// ErrInvalidHorizon is returned for horizons outside 1..MaxHorizon.
var ErrInvalidHorizon = errors.New("forecast horizon must be between 1 and 72 hours")

// Forecast is an hourly outlook for one location.
type Forecast struct {
	Location    airquality.Location    `json:"location"`
	Model       string                 `json:"model"`
	DataQuality string                 `json:"data_quality"`
	DataSources airquality.DataSources `json:"data_sources"`
	GeneratedAt time.Time              `json:"generated_at"`
	Hours       []Hour                 `json:"forecast"`
}

// Hour is the forecast for one hour.
type Hour struct {
	Hour      int       `json:"hour"`
	Timestamp time.Time `json:"timestamp"`
	AQI       int       `json:"aqi"`
	AQILower  int       `json:"aqi_lower"`
	AQIUpper  int       `json:"aqi_upper"`
	PM25      float64   `json:"pm25"`
	Category  string    `json:"category"`

	// Set on the first hour only.
	HealthRecommendations *airquality.HealthAdvice `json:"health_recommendations,omitempty"`
	RealTimeSources       *RealTimeSources         `json:"real_time_sources,omitempty"`
}

// RealTimeSources reports which live sources fed the forecast.
type RealTimeSources struct {
	SatelliteData bool `json:"satellite_data"`
	GroundSensors bool `json:"ground_sensors"`
	WeatherData   bool `json:"weather_data"`
}

// HourFactor is the diurnal multiplier for an hour of the day.
func HourFactor(hourOfDay int) float64 {
	switch {
	case (hourOfDay >= 7 && hourOfDay <= 9) || (hourOfDay >= 17 && hourOfDay <= 19):
		return 1.2
	case hourOfDay >= 22 || hourOfDay <= 5:
		return 0.8
	case hourOfDay >= 10 && hourOfDay <= 16:
		return 1.1
	default:
		return 1.0
	}
}

// WeatherDrift is the weather multiplier i hours ahead.
func WeatherDrift(impact airquality.DispersionImpact, i int) float64 {
	h := float64(i)
	switch impact {
	case airquality.DispersionGood:
		return 0.9 - 0.01*h
	case airquality.DispersionPoor:
		return 1.1 + 0.01*h
	case airquality.DispersionCleanse:
		return 0.8 + 0.02*h
	default:
		return 1.0
	}
}

// Generate extrapolates a fused estimate over horizon hours starting at now.
// A zero horizon means DefaultHorizon.
func Generate(result *airquality.FusionResult, horizon int, now time.Time) (*Forecast, error) {
	if horizon == 0 {
		horizon = DefaultHorizon
	}
	if horizon < 1 || horizon > MaxHorizon {
		return nil, ErrInvalidHorizon
	}

	current := float64(result.WeatherAdjustedIndex)
	if current == 0 {
		current = float64(result.OverallIndex)
	}

	pm25 := current * pm25PerIndex
	if v, ok := result.Pollutants[airquality.PollutantPM25]; ok && v.Unit != airquality.UnitIndexOnly {
		pm25 = v.Value
	}

	now = now.UTC()
	hours := make([]Hour, 0, horizon)
	for i := 0; i < horizon; i++ {
		factor := HourFactor((now.Hour()+i)%24) * WeatherDrift(result.WeatherImpact, i)

		aqi := min(max(int(current*factor), minIndex), maxIndex)
		uncertainty := baseUncertainty + uncertaintyPerHour*i

		h := Hour{
			Hour:      i,
			Timestamp: now.Add(time.Duration(i) * time.Hour),
			AQI:       aqi,
			AQILower:  max(0, aqi-uncertainty),
			AQIUpper:  min(airquality.MaxIndex, aqi+uncertainty),
			PM25:      math.Round(math.Max(0, pm25*factor)*10) / 10,
			Category:  airquality.CategoryFor(aqi).Level,
		}
		if i == 0 {
			advice := airquality.AdviceFor(aqi)
			h.HealthRecommendations = &advice
			h.RealTimeSources = &RealTimeSources{
				SatelliteData: result.DataSources.Satellite,
				GroundSensors: result.DataSources.GroundSensors,
				WeatherData:   result.DataSources.Weather,
			}
		}
		hours = append(hours, h)
	}

	return &Forecast{
		Location:    result.Location,
		Model:       Model,
		DataQuality: result.DataQuality,
		DataSources: result.DataSources,
		GeneratedAt: now,
		Hours:       hours,
	}, nil
}
