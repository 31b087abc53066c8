package airquality_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airfusion/airfusion/internal/airquality"
)

var fixedTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestSeed_Quantized(t *testing.T) {
	assert.Equal(t, airquality.Seed(40.7001, -74.0002), airquality.Seed(40.7002, -74.0001))
	assert.Equal(t, airquality.Seed(40.7, -74), airquality.Seed(40.7004, -73.9996))
	assert.NotEqual(t, airquality.Seed(40.7, -74), airquality.Seed(40.701, -74))
}

func TestSynthesizeGround_Deterministic(t *testing.T) {
	a := airquality.SynthesizeGround(40.7001, -74.0, fixedTime)
	b := airquality.SynthesizeGround(40.7002, -74.0, fixedTime)

	assert.Equal(t, a, b)
}

func TestSynthesizeGround_WellFormed(t *testing.T) {
	points := [][2]float64{
		{40.7, -74.0},
		{0, 0},
		{28.6, 77.2},
		{28.0, 77.0},
		{-33.87, 151.21},
		{89.9, 179.9},
		{-89.9, -179.9},
	}

	for _, p := range points {
		reading := airquality.SynthesizeGround(p[0], p[1], fixedTime)
		require.NoError(t, reading.Validate())

		for _, pollutant := range []airquality.Pollutant{airquality.PollutantPM25, airquality.PollutantPM10, airquality.PollutantNO2} {
			avg, ok := reading.Averaged[pollutant]
			require.True(t, ok, "missing %s at %v", pollutant, p)
			assert.GreaterOrEqual(t, avg.Value, 0.0)
		}
		require.Len(t, reading.Stations, 1)
		assert.Equal(t, 0.0, reading.Stations[0].DistanceKm)
		assert.Equal(t, 75.0, reading.Averaged[airquality.PollutantPM25].Confidence)
		assert.Equal(t, 70.0, reading.Averaged[airquality.PollutantNO2].Confidence)
	}
}

func TestSynthesizeGround_RegionalBands(t *testing.T) {
	t.Run("urban point in high pollution region", func(t *testing.T) {
		reading := airquality.SynthesizeGround(28.0, 77.0, fixedTime)

		pm25 := reading.Averaged[airquality.PollutantPM25].Value
		assert.GreaterOrEqual(t, pm25, 25.0)
		assert.LessOrEqual(t, pm25, 65.0)

		no2 := reading.Averaged[airquality.PollutantNO2].Value
		assert.GreaterOrEqual(t, no2, 20.0)
		assert.LessOrEqual(t, no2, 60.0)
	})

	t.Run("rural point elsewhere", func(t *testing.T) {
		reading := airquality.SynthesizeGround(45.5, 10.5, fixedTime)

		pm25 := reading.Averaged[airquality.PollutantPM25].Value
		assert.GreaterOrEqual(t, pm25, 5.0)
		assert.LessOrEqual(t, pm25, 15.0)

		pm10 := reading.Averaged[airquality.PollutantPM10].Value
		assert.GreaterOrEqual(t, pm10, pm25*1.2-0.1)
		assert.LessOrEqual(t, pm10, pm25*2.0+0.1)
	})
}

func TestRegionHeuristics(t *testing.T) {
	assert.True(t, airquality.InHighPollutionRegion(28.6, 77.2))
	assert.False(t, airquality.InHighPollutionRegion(40.7, -74.0))

	assert.True(t, airquality.IsUrban(41.05, -73.95))
	assert.False(t, airquality.IsUrban(40.7, -74.0))
}

func TestSynthesizeSatellite(t *testing.T) {
	reading := airquality.SynthesizeSatellite(40.7, -74.0, fixedTime)

	require.NoError(t, reading.Validate())
	assert.Equal(t, airquality.KindSatellite, reading.Kind)

	no2 := reading.Pollutants[airquality.PollutantNO2]
	// 0.5 + mod((40.7+74.0)*0.01, 2)
	assert.InDelta(t, 1.65, no2.Value, 0.001)
	assert.Equal(t, airquality.UnitMolPerSquareMeter, no2.Unit)

	o3 := reading.Pollutants[airquality.PollutantO3]
	assert.GreaterOrEqual(t, o3.Value, 30.0)
	assert.LessOrEqual(t, o3.Value, 45.0)
	assert.Equal(t, airquality.UnitDobson, o3.Unit)

	assert.Equal(t, reading, airquality.SynthesizeSatellite(40.7004, -74.0, fixedTime))
}

func TestSynthesizeWeather(t *testing.T) {
	reading := airquality.SynthesizeWeather(51.5, -0.12, fixedTime)

	require.NoError(t, reading.Validate())
	w := reading.Weather
	assert.Equal(t, airquality.DispersionModerate, w.DispersionImpact)
	assert.GreaterOrEqual(t, w.Humidity, 30.0)
	assert.LessOrEqual(t, w.Humidity, 90.0)
	assert.GreaterOrEqual(t, w.Pressure, 980.0)
	assert.LessOrEqual(t, w.Pressure, 1030.0)
	assert.GreaterOrEqual(t, w.WindSpeed, 0.0)
	assert.LessOrEqual(t, w.WindSpeed, 15.0)
	assert.Contains(t, []string{"Clear", "Clouds", "Rain", "Haze"}, w.Condition)

	assert.Equal(t, reading, airquality.SynthesizeWeather(51.5001, -0.1201, fixedTime))
}

func TestSynthesizeAlternateGround(t *testing.T) {
	reading := airquality.SynthesizeAlternateGround(40.7, -74.0, fixedTime)

	require.NoError(t, reading.Validate())
	require.NotNil(t, reading.OverallIndex)
	require.NotNil(t, reading.StationInfo)

	maxIndex := 0
	for _, v := range reading.Pollutants {
		require.NotNil(t, v.Index)
		maxIndex = max(maxIndex, *v.Index)
	}
	assert.Equal(t, maxIndex, *reading.OverallIndex)
}

func TestEmergencyGround(t *testing.T) {
	reading := airquality.EmergencyGround(40.7, -74.0, fixedTime)

	require.NoError(t, reading.Validate())
	assert.Equal(t, airquality.PrimaryFallbackModel, reading.Source)
	assert.Equal(t, 1, reading.StationCount)

	// pm25 base is 25 + mod(114.7*0.5, 40) = 42.35, noise within ±5.
	pm25 := reading.Averaged[airquality.PollutantPM25]
	assert.InDelta(t, 42.35, pm25.Value, 5.1)
	assert.Equal(t, 50.0, pm25.Confidence)
	assert.Equal(t, 45.0, reading.Averaged[airquality.PollutantNO2].Confidence)

	assert.Equal(t, reading, airquality.EmergencyGround(40.7002, -74.0, fixedTime))
}
