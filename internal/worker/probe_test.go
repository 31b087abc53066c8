package worker_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airfusion/airfusion/internal/airquality"
	"github.com/airfusion/airfusion/internal/worker"
)

// fakeEngine answers live inside a box around North America and with a
// fallback estimate elsewhere. Points at lat 0 fail.
type fakeEngine struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (f *fakeEngine) Fuse(ctx context.Context, lat, lon float64) (*airquality.FusionResult, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if lat == 0 {
		return nil, errors.New("engine exploded")
	}

	result := &airquality.FusionResult{
		Location:             airquality.Location{Lat: lat, Lon: lon},
		OverallIndex:         42,
		WeatherAdjustedIndex: 42,
		DataSources:          airquality.DataSources{Weather: true},
		PrimarySource:        airquality.PrimaryFallbackModel,
		DataQuality:          airquality.DataQualityMedium,
	}
	if lat > 15 && lon < -50 {
		result.DataSources.Satellite = true
		result.DataSources.GroundSensors = true
		result.PrimarySource = airquality.PrimaryGroundSensors
		result.DataQuality = airquality.DataQualityHigh
	}
	return result, nil
}

func newJob(engine worker.Fuser, cfg worker.ProbeConfig) *worker.ProbeJob {
	return worker.NewProbeJob(worker.ProbeJobConfig{
		Config: cfg,
		Engine: engine,
		Logger: zerolog.New(io.Discard),
	})
}

func TestDefaultProbeConfig(t *testing.T) {
	cfg := worker.DefaultProbeConfig()

	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 20*time.Second, cfg.Timeout)
	assert.NotEmpty(t, cfg.Targets)
	assert.Greater(t, cfg.TotalPoints(), 10)
}

func TestDefaultProbeTargets_CoverBothPaths(t *testing.T) {
	var inside, outside bool
	for _, target := range worker.DefaultProbeTargets() {
		for _, p := range target.Points {
			assert.True(t, p.Lat >= -90 && p.Lat <= 90, target.Name)
			assert.True(t, p.Lon >= -180 && p.Lon <= 180, target.Name)
			if p.Lon < -50 {
				inside = true
			} else {
				outside = true
			}
		}
	}
	assert.True(t, inside, "expected probe points in the Americas")
	assert.True(t, outside, "expected probe points elsewhere")
}

func TestProbeConfig_AllPointsByPriority(t *testing.T) {
	cfg := worker.ProbeConfig{
		Targets: []worker.ProbeTarget{
			{Name: "Low", Priority: 3, Points: []worker.Point{{Lat: 3, Lon: 3}}},
			{Name: "High", Priority: 1, Points: []worker.Point{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}},
		},
	}

	points := cfg.AllPoints()
	require.Len(t, points, 3)
	assert.Equal(t, worker.Point{Lat: 1, Lon: 1}, points[0])
	assert.Equal(t, worker.Point{Lat: 3, Lon: 3}, points[2])
	assert.Equal(t, 3, cfg.TotalPoints())
	// The configured order is left alone.
	assert.Equal(t, "Low", cfg.Targets[0].Name)
}

func TestProbeJob_Run(t *testing.T) {
	engine := &fakeEngine{}
	job := newJob(engine, worker.ProbeConfig{
		Targets: []worker.ProbeTarget{
			{Name: "New York", Points: []worker.Point{{Lat: 40.71, Lon: -74.0}, {Lat: 40.67, Lon: -73.94}}},
			{Name: "London", Points: []worker.Point{{Lat: 51.5, Lon: -0.12}}},
			{Name: "Null Island", Points: []worker.Point{{Lat: 0, Lon: 0}}},
		},
	})

	result := job.Run(context.Background())

	assert.Equal(t, 4, result.TotalPoints)
	assert.Equal(t, 3, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Fallbacks)
	assert.Equal(t, 2, result.SourceAvailability[airquality.SourceSatellite])
	assert.Equal(t, 2, result.SourceAvailability[airquality.SourceGround])
	assert.Equal(t, 3, result.SourceAvailability[airquality.SourceWeather])
	assert.Zero(t, result.SourceAvailability[airquality.SourceAlternateGround])

	require.Len(t, result.Errors, 1)
	assert.Equal(t, worker.Point{}, result.Errors[0].Point)
	assert.Equal(t, "engine exploded", result.Errors[0].Error)
	assert.Equal(t, int32(4), engine.calls.Load())
}

func TestProbeJob_RespectsConcurrency(t *testing.T) {
	engine := &fakeEngine{delay: 20 * time.Millisecond}
	points := make([]worker.Point, 10)
	for i := range points {
		points[i] = worker.Point{Lat: float64(i + 1), Lon: 10}
	}
	job := newJob(engine, worker.ProbeConfig{
		Targets:     []worker.ProbeTarget{{Name: "Grid", Points: points}},
		Concurrency: 2,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 10, result.Successful)
	assert.LessOrEqual(t, engine.maxSeen.Load(), int32(2))
}

func TestProbeJob_TimeoutPerPoint(t *testing.T) {
	engine := &fakeEngine{delay: time.Second}
	job := newJob(engine, worker.ProbeConfig{
		Targets: []worker.ProbeTarget{{Name: "Slow", Points: []worker.Point{{Lat: 10, Lon: 10}}}},
		Timeout: 20 * time.Millisecond,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Errors[0].Error, "deadline exceeded")
}

func TestProbeJob_ContextCancelled(t *testing.T) {
	engine := &fakeEngine{}
	job := newJob(engine, worker.ProbeConfig{
		Targets: []worker.ProbeTarget{{Name: "A", Points: []worker.Point{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.Run(ctx)

	assert.Equal(t, 2, result.Failed)
	assert.Zero(t, engine.calls.Load())
}

func TestProbeJob_RunPoints(t *testing.T) {
	job := newJob(&fakeEngine{}, worker.DefaultProbeConfig())

	result := job.RunPoints(context.Background(), []worker.Point{{Lat: 51.5, Lon: -0.12}})

	assert.Equal(t, 1, result.TotalPoints)
	assert.Equal(t, 1, result.Successful)
}

func TestProbeJob_Metrics(t *testing.T) {
	job := newJob(&fakeEngine{}, worker.ProbeConfig{
		Targets: []worker.ProbeTarget{{Name: "A", Points: []worker.Point{{Lat: 51.5, Lon: 0.1}, {Lat: 0, Lon: 0}}}},
	})

	job.Run(context.Background())
	job.Run(context.Background())

	m := job.GetMetrics()
	assert.Equal(t, int64(2), m.TotalRuns)
	assert.Equal(t, int64(2), m.SuccessfulProbes)
	assert.Equal(t, int64(2), m.FailedProbes)
	assert.Equal(t, int64(2), m.FallbackProbes)
	assert.False(t, m.LastRunAt.IsZero())

	snapshot := job.MetricsSnapshot()
	assert.Equal(t, int64(2), snapshot["total_runs"])
	assert.Contains(t, snapshot, "last_run_duration")
}

func TestProbeJob_ConcurrentRuns(t *testing.T) {
	job := newJob(&fakeEngine{}, worker.ProbeConfig{
		Targets: []worker.ProbeTarget{{Name: "A", Points: []worker.Point{{Lat: 1, Lon: 1}}}},
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job.Run(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), job.GetMetrics().TotalRuns)
}
