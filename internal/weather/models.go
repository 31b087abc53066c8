// Package weather turns weather observations into the weather source of the
// fusion pipeline.
package weather

import (
	"errors"
	"strings"
	"time"

	"github.com/airfusion/airfusion/internal/airquality"
)

// Weather errors.
var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Observation represents weather data at a specific point and time.
type Observation struct {
	// Location coordinates
	Lat float64
	Lon float64

	// Temperature in Celsius
	Temperature float64

	// Humidity percentage (0-100)
	Humidity float64

	// Wind data
	WindSpeed     float64 // m/s
	WindDirection float64 // degrees (0-360, 0=N, 90=E, 180=S, 270=W)

	// Atmospheric pressure in hPa
	Pressure float64

	// Weather condition
	Condition   Condition
	Description string

	// Visibility in meters
	Visibility float64

	ObservedAt time.Time
}

// Condition is the general weather condition, named as the provider names it.
type Condition string

const (
	ConditionClear        Condition = "Clear"
	ConditionClouds       Condition = "Clouds"
	ConditionRain         Condition = "Rain"
	ConditionDrizzle      Condition = "Drizzle"
	ConditionThunderstorm Condition = "Thunderstorm"
	ConditionSnow         Condition = "Snow"
	ConditionMist         Condition = "Mist"
	ConditionFog          Condition = "Fog"
	ConditionHaze         Condition = "Haze"
	ConditionUnknown      Condition = "Unknown"
)

// Dispersion thresholds.
const (
	GoodDispersionWindSpeed = 5.0  // m/s, strictly above
	StagnantWindSpeed       = 2.0  // m/s, strictly below
	PoorDispersionHumidity  = 80.0 // %, strictly above
)

// WindCategory categorizes wind speed.
type WindCategory string

const (
	WindCalm     WindCategory = "CALM"     // < 1 m/s
	WindLight    WindCategory = "LIGHT"    // 1-3 m/s
	WindModerate WindCategory = "MODERATE" // 3-8 m/s
	WindStrong   WindCategory = "STRONG"   // > 8 m/s
)

// GetWindCategory returns the wind category for the observation.
func (o *Observation) GetWindCategory() WindCategory {
	switch {
	case o.WindSpeed < 1:
		return WindCalm
	case o.WindSpeed < 3:
		return WindLight
	case o.WindSpeed < 8:
		return WindModerate
	default:
		return WindStrong
	}
}

// DispersionImpact classifies how the observed weather moves pollutants.
// Rules are checked in order: wind, rain, humidity, calm.
func (o *Observation) DispersionImpact() airquality.DispersionImpact {
	switch {
	case o.WindSpeed > GoodDispersionWindSpeed:
		return airquality.DispersionGood
	case strings.Contains(strings.ToLower(string(o.Condition)), "rain"):
		return airquality.DispersionCleanse
	case o.Humidity > PoorDispersionHumidity:
		return airquality.DispersionPoor
	case o.WindSpeed < StagnantWindSpeed:
		return airquality.DispersionStagnant
	default:
		return airquality.DispersionModerate
	}
}

// Conditions converts the observation to the weather part of a reading.
func (o *Observation) Conditions() *airquality.WeatherConditions {
	return &airquality.WeatherConditions{
		Temperature:      o.Temperature,
		Humidity:         o.Humidity,
		Pressure:         o.Pressure,
		WindSpeed:        o.WindSpeed,
		WindDirection:    o.WindDirection,
		Visibility:       o.Visibility,
		Condition:        string(o.Condition),
		DispersionImpact: o.DispersionImpact(),
	}
}
