package airquality

import (
	"math"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// SentinelDistanceKm is used when a station distance cannot be computed.
const SentinelDistanceKm = 999.0

// MaxReportedStations is the number of closest stations kept on a ground reading.
const MaxReportedStations = 3

// DistanceKm returns the great-circle distance between two points in kilometres.
// Invalid coordinates yield SentinelDistanceKm instead of an error.
func DistanceKm(from, to Location) float64 {
	if !validCoordinate(from) || !validCoordinate(to) {
		return SentinelDistanceKm
	}
	d := geo.Distance(orb.Point{from.Lon, from.Lat}, orb.Point{to.Lon, to.Lat}) / 1000
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return SentinelDistanceKm
	}
	return math.Round(d*100) / 100
}

func validCoordinate(l Location) bool {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lon) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lon >= -180 && l.Lon <= 180
}

// StationWeight is the inverse-distance weight of a station. It is always positive.
func StationWeight(distanceKm float64) float64 {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
		distanceKm = SentinelDistanceKm
	}
	return 1 / (distanceKm + 1)
}

// AverageStations computes the inverse-distance-weighted average of every
// pollutant observed at one or more stations. Stations without a measurement
// for a pollutant do not contribute to it.
func AverageStations(stations []Station) map[Pollutant]AveragedValue {
	type sums struct {
		weighted float64
		weight   float64
	}

	acc := make(map[Pollutant]*sums)
	for _, st := range stations {
		w := StationWeight(st.DistanceKm)
		for p, m := range st.Measurements {
			if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
				continue
			}
			s, ok := acc[p]
			if !ok {
				s = &sums{}
				acc[p] = s
			}
			s.weighted += m.Value * w
			s.weight += w
		}
	}

	averaged := make(map[Pollutant]AveragedValue, len(acc))
	for p, s := range acc {
		averaged[p] = AveragedValue{
			Value:      math.Round(s.weighted/s.weight*100) / 100,
			Confidence: math.Min(s.weight*10, 100),
		}
	}
	return averaged
}

// NearestStations returns up to n stations ordered by distance, closest first.
// The input slice is not modified.
func NearestStations(stations []Station, n int) []Station {
	sorted := make([]Station, len(stations))
	copy(sorted, stations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DistanceKm < sorted[j].DistanceKm
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// NewGroundReading builds a ground reading from every fetched station:
// averages use all of them while the reported list keeps only the closest.
func NewGroundReading(source string, loc Location, at time.Time, stations []Station) *Reading {
	return &Reading{
		Source:       source,
		Kind:         KindGround,
		Timestamp:    at,
		Location:     loc,
		Stations:     NearestStations(stations, MaxReportedStations),
		StationCount: len(stations),
		Averaged:     AverageStations(stations),
	}
}
