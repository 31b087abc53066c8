// Package worker runs periodic fusion probes that exercise every upstream
// source and report their availability.
package worker

import (
	"sort"
	"time"
)

// ProbeTarget is a named group of probe points.
type ProbeTarget struct {
	Name string

	// Points are fused on every probe run.
	Points []Point

	// Priority orders targets within a run (lower runs first).
	Priority int
}

// Point is a probe coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ProbeConfig holds configuration for the probe job.
type ProbeConfig struct {
	// Targets to probe. If empty, uses DefaultProbeTargets.
	Targets []ProbeTarget

	// Concurrency is the number of points fused at once.
	// Default: 4
	Concurrency int

	// Timeout bounds a single fusion.
	// Default: 20 seconds
	Timeout time.Duration
}

// DefaultProbeConfig returns the default probe configuration.
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Targets:     DefaultProbeTargets(),
		Concurrency: 4,
		Timeout:     20 * time.Second,
	}
}

// DefaultProbeTargets returns points inside and outside satellite coverage so
// that both the live and the estimated paths are exercised.
func DefaultProbeTargets() []ProbeTarget {
	return []ProbeTarget{
		{
			Name:     "New York",
			Priority: 1,
			Points: []Point{
				{Lat: 40.7128, Lon: -74.0060}, // Manhattan
				{Lat: 40.6782, Lon: -73.9442}, // Brooklyn
			},
		},
		{
			Name:     "Los Angeles",
			Priority: 1,
			Points: []Point{
				{Lat: 34.0522, Lon: -118.2437}, // Downtown
				{Lat: 33.9416, Lon: -118.4085}, // LAX
			},
		},
		{
			Name:     "Houston",
			Priority: 2,
			Points: []Point{
				{Lat: 29.7604, Lon: -95.3698},
			},
		},
		{
			Name:     "Chicago",
			Priority: 2,
			Points: []Point{
				{Lat: 41.8781, Lon: -87.6298},
			},
		},
		{
			Name:     "Mexico City",
			Priority: 2,
			Points: []Point{
				{Lat: 19.4326, Lon: -99.1332},
			},
		},
		{
			Name:     "Toronto",
			Priority: 2,
			Points: []Point{
				{Lat: 43.6532, Lon: -79.3832},
			},
		},
		{
			Name:     "London",
			Priority: 3,
			Points: []Point{
				{Lat: 51.5074, Lon: -0.1278},
			},
		},
		{
			Name:     "Delhi",
			Priority: 3,
			Points: []Point{
				{Lat: 28.6139, Lon: 77.2090},
			},
		},
		{
			Name:     "Sydney",
			Priority: 3,
			Points: []Point{
				{Lat: -33.8688, Lon: 151.2093},
			},
		},
	}
}

// AllPoints returns the points of all targets, highest priority first.
func (c ProbeConfig) AllPoints() []Point {
	targets := make([]ProbeTarget, len(c.Targets))
	copy(targets, c.Targets)
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Priority < targets[j].Priority
	})

	var points []Point
	for _, target := range targets {
		points = append(points, target.Points...)
	}
	return points
}

// TotalPoints returns the number of points probed per run.
func (c ProbeConfig) TotalPoints() int {
	total := 0
	for _, target := range c.Targets {
		total += len(target.Points)
	}
	return total
}
