// Package airquality fuses satellite, ground sensor and weather readings into a
// single confidence-scored air quality estimate.
package airquality

import (
	"errors"
	"fmt"
	"time"
)

// Fusion errors.
var (
	ErrProviderUnavailable = errors.New("air quality provider unavailable")
	ErrNoDataAtLocation    = errors.New("no data at location")
	ErrAllSourcesFailed    = errors.New("all air quality sources failed")
	ErrMalformedReading    = errors.New("malformed reading")
)

// Pollutant is a lowercase pollutant code as used in readings.
type Pollutant string

const (
	PollutantPM25 Pollutant = "pm25"
	PollutantPM10 Pollutant = "pm10"
	PollutantNO2  Pollutant = "no2"
	PollutantO3   Pollutant = "o3"
	PollutantSO2  Pollutant = "so2"
	PollutantCO   Pollutant = "co"

	// PollutantNO2Satellite is the surface NO2 estimate derived from a satellite column.
	PollutantNO2Satellite Pollutant = "no2_satellite"
)

// Units. Concentrations are always carried in Value with their unit in Unit;
// index values are only ever carried in PollutantValue.Index.
const (
	UnitMicrogramsPerCubicMeter = "µg/m³"
	UnitMolPerSquareMeter       = "mol/m²"
	UnitDobson                  = "DU"
	UnitIndexOnly               = ""
)

// Kind is the category of a reading.
type Kind string

const (
	KindSatellite Kind = "satellite"
	KindGround    Kind = "ground"
	KindWeather   Kind = "weather"
)

// DispersionImpact describes how current weather moves pollutants around.
type DispersionImpact string

const (
	DispersionGood     DispersionImpact = "good_dispersion"
	DispersionPoor     DispersionImpact = "poor_dispersion"
	DispersionStagnant DispersionImpact = "stagnant"
	DispersionCleanse  DispersionImpact = "cleansing"
	DispersionModerate DispersionImpact = "moderate"
)

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PollutantValue is one pollutant entry of a reading.
// Value is meaningful only when Unit is not UnitIndexOnly.
type PollutantValue struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Index  *int    `json:"index,omitempty"`
	Source string  `json:"source,omitempty"`
}

// StationMeasurement is a single pollutant measured at a station.
type StationMeasurement struct {
	Value       float64   `json:"value"`
	Unit        string    `json:"unit"`
	LastUpdated time.Time `json:"last_updated"`
	Provider    string    `json:"provider"`
}

// Station is a ground monitoring station near the query point.
type Station struct {
	ID           string                           `json:"id"`
	Name         string                           `json:"name"`
	Coordinates  Location                         `json:"coordinates"`
	DistanceKm   float64                          `json:"distance_km"`
	Measurements map[Pollutant]StationMeasurement `json:"measurements"`
}

// AveragedValue is a distance-weighted pollutant average with its confidence (0-100).
type AveragedValue struct {
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
}

// StationInfo describes the single station an alternate ground reading came from.
type StationInfo struct {
	Name        string   `json:"name"`
	Coordinates Location `json:"coordinates"`
	URL         string   `json:"url,omitempty"`
}

// WeatherConditions is the weather part of a weather-kind reading.
type WeatherConditions struct {
	Temperature      float64          `json:"temperature"`
	Humidity         float64          `json:"humidity"`
	Pressure         float64          `json:"pressure"`
	WindSpeed        float64          `json:"wind_speed"`
	WindDirection    float64          `json:"wind_direction"`
	Visibility       float64          `json:"visibility"`
	Condition        string           `json:"condition"`
	DispersionImpact DispersionImpact `json:"dispersion_impact"`
}

// Reading is one provider's normalized output for a query point.
type Reading struct {
	Source     string                       `json:"source"`
	Kind       Kind                         `json:"kind"`
	Timestamp  time.Time                    `json:"timestamp"`
	Location   Location                     `json:"location"`
	Pollutants map[Pollutant]PollutantValue `json:"pollutants,omitempty"`

	// Ground readings.
	Stations     []Station                   `json:"stations,omitempty"`
	StationCount int                         `json:"stations_count,omitempty"`
	Averaged     map[Pollutant]AveragedValue `json:"averaged,omitempty"`

	// Alternate ground readings.
	OverallIndex *int        `json:"overall_index,omitempty"`
	StationInfo  *StationInfo `json:"station_info,omitempty"`

	// Weather readings.
	Weather *WeatherConditions `json:"weather,omitempty"`
}

// Validate checks the shape contract every adapter must honor.
func (r *Reading) Validate() error {
	if r == nil {
		return nil
	}
	switch r.Kind {
	case KindSatellite:
		if r.Pollutants == nil {
			return fmt.Errorf("%w: satellite reading %q has no pollutants", ErrMalformedReading, r.Source)
		}
	case KindGround:
		if r.Averaged == nil && r.OverallIndex == nil {
			return fmt.Errorf("%w: ground reading %q has neither averages nor overall index", ErrMalformedReading, r.Source)
		}
	case KindWeather:
		if r.Weather == nil {
			return fmt.Errorf("%w: weather reading %q has no conditions", ErrMalformedReading, r.Source)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedReading, r.Kind)
	}
	return nil
}

// SourceName identifies one of the four fused sources.
type SourceName string

const (
	SourceSatellite       SourceName = "tempo"
	SourceGround          SourceName = "openaq"
	SourceAlternateGround SourceName = "waqi"
	SourceWeather         SourceName = "weather"
)

// DataSources flags which sources contributed live data.
type DataSources struct {
	Satellite       bool `json:"satellite"`
	GroundSensors   bool `json:"ground_sensors"`
	AlternateGround bool `json:"alternate_ground"`
	Weather         bool `json:"weather"`
}

// RawReadings holds the four underlying readings; absent ones are nil.
type RawReadings struct {
	Satellite       *Reading `json:"tempo"`
	Ground          *Reading `json:"openaq"`
	AlternateGround *Reading `json:"waqi"`
	Weather         *Reading `json:"weather"`
}

// Data quality labels.
const (
	DataQualityHigh   = "high"
	DataQualityMedium = "medium"
)

// Confidence labels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Primary source tags.
const (
	PrimaryAlternateGround = "aqicn"
	PrimaryGroundSensors   = "ground_sensors"
	PrimaryFallbackModel   = "fallback_model"
)

// FusionResult is the fused estimate for one query point.
type FusionResult struct {
	Timestamp            time.Time                    `json:"timestamp"`
	Location             Location                     `json:"location"`
	OverallIndex         int                          `json:"overall_aqi"`
	WeatherAdjustedIndex int                          `json:"weather_adjusted_aqi"`
	Category             string                       `json:"category"`
	Pollutants           map[Pollutant]PollutantValue `json:"pollutants"`
	DataSources          DataSources                  `json:"data_sources"`
	DataQuality          string                       `json:"data_quality"`
	PrimarySource        string                       `json:"primary_source"`
	Confidence           string                       `json:"confidence"`
	SatelliteEnhancement bool                         `json:"satellite_enhancement"`
	WeatherImpact        DispersionImpact             `json:"weather_impact"`
	Errors               map[SourceName]string        `json:"data_source_errors,omitempty"`
	Raw                  RawReadings                  `json:"raw_data"`
}

func intPtr(v int) *int {
	return &v
}
