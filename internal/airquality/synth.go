package airquality

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Labels carried by synthesized readings.
const (
	EstimateProvider          = "location-based estimate"
	EmergencyEstimateProvider = "emergency fallback estimate"
	SatelliteResolution       = "2.1km x 4.4km"
)

// Stream salts keep the per-kind sequences independent for the same seed.
const (
	saltSatellite uint64 = 0x5a7e111e
	saltGround    uint64 = 0x6a0d5e45
	saltWeather   uint64 = 0x3ea7be12
	saltEmergency uint64 = 0xe3e76e1c
)

var syntheticConditions = []string{"Clear", "Clouds", "Rain", "Haze"}

// Quantize rounds a coordinate to 3 decimal places (about 100 m).
func Quantize(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Seed derives the synthesis seed from coordinates rounded to 3 decimal places.
// Coordinates that round to the same value always produce the same seed.
func Seed(lat, lon float64) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%.3f,%.3f", Quantize(lat), Quantize(lon)))
}

func newRand(lat, lon float64, salt uint64) *rand.Rand {
	seed := Seed(lat, lon)
	return rand.New(rand.NewPCG(seed, seed^salt))
}

func uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// InHighPollutionRegion reports whether a point lies in the Indian subcontinent box.
func InHighPollutionRegion(lat, lon float64) bool {
	return lat >= 6 && lat <= 37 && lon >= 68 && lon <= 97
}

// IsUrban is a coarse urban heuristic: both coordinates lie within 0.1° of a whole degree.
func IsUrban(lat, lon float64) bool {
	return math.Abs(lat-math.Round(lat)) < 0.1 && math.Abs(lon-math.Round(lon)) < 0.1
}

// SynthesizeSatellite produces a plausible satellite column reading for a point.
func SynthesizeSatellite(lat, lon float64, at time.Time) *Reading {
	lat, lon = Quantize(lat), Quantize(lon)
	r := newRand(lat, lon, saltSatellite)

	no2 := 0.5 + math.Mod((math.Abs(lat)+math.Abs(lon))*0.01, 2.0)
	o3 := 35 + uniform(r, -5, 10)

	return &Reading{
		Source:    string(SourceSatellite),
		Kind:      KindSatellite,
		Timestamp: at,
		Location:  Location{Lat: lat, Lon: lon},
		Pollutants: map[Pollutant]PollutantValue{
			PollutantNO2: {Value: round2(no2), Unit: UnitMolPerSquareMeter, Source: EstimateProvider},
			PollutantO3:  {Value: round1(o3), Unit: UnitDobson, Source: EstimateProvider},
		},
	}
}

// SynthesizeGround produces a single-station ground reading for a point.
func SynthesizeGround(lat, lon float64, at time.Time) *Reading {
	lat, lon = Quantize(lat), Quantize(lon)
	r := newRand(lat, lon, saltGround)
	urban := IsUrban(lat, lon)

	var pm25, pm10, no2 float64
	if InHighPollutionRegion(lat, lon) {
		if urban {
			pm25 = uniform(r, 25, 65)
		} else {
			pm25 = uniform(r, 15, 45)
		}
		pm10 = pm25 * uniform(r, 1.5, 2.5)
		if urban {
			no2 = uniform(r, 20, 60)
		} else {
			no2 = uniform(r, 10, 30)
		}
	} else {
		if urban {
			pm25 = uniform(r, 8, 25)
		} else {
			pm25 = uniform(r, 5, 15)
		}
		pm10 = pm25 * uniform(r, 1.2, 2.0)
		if urban {
			no2 = uniform(r, 15, 40)
		} else {
			no2 = uniform(r, 5, 20)
		}
	}

	values := map[Pollutant]float64{
		PollutantPM25: round1(pm25),
		PollutantPM10: round1(pm10),
		PollutantNO2:  round1(no2),
	}
	confidence := map[Pollutant]float64{
		PollutantPM25: 75,
		PollutantPM10: 75,
		PollutantNO2:  70,
	}
	return singleStationReading(string(SourceGround), "Estimated Station", EstimateProvider, lat, lon, at, values, confidence)
}

// EmergencyGround produces the ground reading used when every source failed.
func EmergencyGround(lat, lon float64, at time.Time) *Reading {
	lat, lon = Quantize(lat), Quantize(lon)
	r := newRand(lat, lon, saltEmergency)

	pm25 := 25 + math.Mod((math.Abs(lat)+math.Abs(lon))*0.5, 40)
	pm10 := pm25 * 1.7
	no2 := 10 + math.Mod(math.Abs(lat)*0.3, 20)

	values := map[Pollutant]float64{
		PollutantPM25: math.Max(0, round1(pm25+uniform(r, -5, 5))),
		PollutantPM10: math.Max(0, round1(pm10+uniform(r, -8, 8))),
		PollutantNO2:  math.Max(0, round1(no2+uniform(r, -3, 3))),
	}
	confidence := map[Pollutant]float64{
		PollutantPM25: 50,
		PollutantPM10: 50,
		PollutantNO2:  45,
	}
	return singleStationReading(PrimaryFallbackModel, "Emergency Fallback Station", EmergencyEstimateProvider, lat, lon, at, values, confidence)
}

// SynthesizeAlternateGround produces an index-based alternate reading for a point.
// Values follow SynthesizeGround so both ground estimates agree.
func SynthesizeAlternateGround(lat, lon float64, at time.Time) *Reading {
	ground := SynthesizeGround(lat, lon, at)

	pollutants := make(map[Pollutant]PollutantValue, len(ground.Averaged))
	overall := 0
	for p, avg := range ground.Averaged {
		index, ok := IndexFor(p, avg.Value)
		if !ok {
			continue
		}
		pollutants[p] = PollutantValue{
			Value:  avg.Value,
			Unit:   UnitMicrogramsPerCubicMeter,
			Index:  intPtr(index),
			Source: EstimateProvider,
		}
		overall = max(overall, index)
	}

	return &Reading{
		Source:       string(SourceAlternateGround),
		Kind:         KindGround,
		Timestamp:    at,
		Location:     ground.Location,
		Pollutants:   pollutants,
		OverallIndex: intPtr(overall),
		StationInfo: &StationInfo{
			Name:        ground.Stations[0].Name,
			Coordinates: ground.Location,
		},
	}
}

// SynthesizeWeather produces plausible weather conditions for a point.
// Synthesized weather never claims a dispersion effect.
func SynthesizeWeather(lat, lon float64, at time.Time) *Reading {
	lat, lon = Quantize(lat), Quantize(lon)
	r := newRand(lat, lon, saltWeather)

	return &Reading{
		Source:    string(SourceWeather),
		Kind:      KindWeather,
		Timestamp: at,
		Location:  Location{Lat: lat, Lon: lon},
		Weather: &WeatherConditions{
			Temperature:      round1(15 + uniform(r, -10, 20)),
			Humidity:         float64(30 + r.IntN(61)),
			Pressure:         float64(980 + r.IntN(51)),
			WindSpeed:        round1(uniform(r, 0, 15)),
			WindDirection:    float64(r.IntN(361)),
			Visibility:       float64(5000 + r.IntN(10001)),
			Condition:        syntheticConditions[r.IntN(len(syntheticConditions))],
			DispersionImpact: DispersionModerate,
		},
	}
}

func singleStationReading(source, stationName, provider string, lat, lon float64, at time.Time, values, confidence map[Pollutant]float64) *Reading {
	loc := Location{Lat: lat, Lon: lon}
	measurements := make(map[Pollutant]StationMeasurement, len(values))
	averaged := make(map[Pollutant]AveragedValue, len(values))
	for p, v := range values {
		measurements[p] = StationMeasurement{
			Value:       v,
			Unit:        UnitMicrogramsPerCubicMeter,
			LastUpdated: at,
			Provider:    provider,
		}
		averaged[p] = AveragedValue{Value: v, Confidence: confidence[p]}
	}

	return &Reading{
		Source:    source,
		Kind:      KindGround,
		Timestamp: at,
		Location:  loc,
		Stations: []Station{{
			ID:           fmt.Sprintf("estimate-%.3f,%.3f", lat, lon),
			Name:         fmt.Sprintf("%s %.2f,%.2f", stationName, lat, lon),
			Coordinates:  loc,
			DistanceKm:   0,
			Measurements: measurements,
		}},
		StationCount: 1,
		Averaged:     averaged,
	}
}
