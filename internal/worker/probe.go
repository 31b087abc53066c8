package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/airfusion/airfusion/internal/airquality"
)

// Fuser produces a fused estimate for a point.
type Fuser interface {
	Fuse(ctx context.Context, lat, lon float64) (*airquality.FusionResult, error)
}

// ProbeJob fuses a fixed set of points and tallies which sources answered.
type ProbeJob struct {
	config  ProbeConfig
	engine  Fuser
	logger  zerolog.Logger
	now     func() time.Time
	metrics *ProbeMetrics
}

// ProbeJobConfig holds configuration for creating a ProbeJob.
type ProbeJobConfig struct {
	Config ProbeConfig
	Engine Fuser
	Logger zerolog.Logger

	// Now returns the current time (defaults to time.Now).
	Now func() time.Time
}

// NewProbeJob creates a new probe job.
func NewProbeJob(cfg ProbeJobConfig) *ProbeJob {
	config := cfg.Config
	defaults := DefaultProbeConfig()
	if len(config.Targets) == 0 {
		config.Targets = defaults.Targets
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &ProbeJob{
		config:  config,
		engine:  cfg.Engine,
		logger:  cfg.Logger,
		now:     cfg.Now,
		metrics: &ProbeMetrics{},
	}
}

// ProbeResult summarises one probe run.
type ProbeResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalPoints int
	Successful  int
	Failed      int

	// Fallbacks counts successful fusions that had no live ground source.
	Fallbacks int

	// SourceAvailability counts the points each source contributed live data to.
	SourceAvailability map[airquality.SourceName]int

	Errors []ProbeError
}

// ProbeError is a fusion that failed outright.
type ProbeError struct {
	Point Point
	Error string
}

// ProbeMetrics accumulates probe statistics across runs.
type ProbeMetrics struct {
	mu sync.RWMutex

	TotalRuns        int64
	SuccessfulProbes int64
	FailedProbes     int64
	FallbackProbes   int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// Run probes every configured point.
func (j *ProbeJob) Run(ctx context.Context) *ProbeResult {
	return j.RunPoints(ctx, j.config.AllPoints())
}

// RunPoints probes the given points with bounded concurrency.
func (j *ProbeJob) RunPoints(ctx context.Context, points []Point) *ProbeResult {
	result := &ProbeResult{
		StartTime:          j.now(),
		TotalPoints:        len(points),
		SourceAvailability: make(map[airquality.SourceName]int),
	}

	j.logger.Info().
		Int("total_points", result.TotalPoints).
		Int("concurrency", j.config.Concurrency).
		Msg("starting probe run")

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(j.config.Concurrency)

	for _, p := range points {
		g.Go(func() error {
			fused, err := j.probe(ctx, p)

			mu.Lock()
			defer mu.Unlock()
			result.add(p, fused, err)
			return nil
		})
	}
	_ = g.Wait()

	result.EndTime = j.now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	j.updateMetrics(result)

	event := j.logger.Info()
	if result.Failed > 0 {
		event = j.logger.Warn()
	}
	dict := zerolog.Dict()
	for name, n := range result.SourceAvailability {
		dict = dict.Int(string(name), n)
	}
	event.
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("fallbacks", result.Fallbacks).
		Dict("source_availability", dict).
		Msg("probe run completed")

	return result
}

func (j *ProbeJob) probe(ctx context.Context, p Point) (*airquality.FusionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	fused, err := j.engine.Fuse(pctx, p.Lat, p.Lon)
	if err != nil {
		j.logger.Warn().Err(err).Float64("lat", p.Lat).Float64("lon", p.Lon).Msg("probe fusion failed")
		return nil, err
	}

	j.logger.Debug().
		Float64("lat", p.Lat).
		Float64("lon", p.Lon).
		Int("aqi", fused.WeatherAdjustedIndex).
		Str("primary_source", fused.PrimarySource).
		Str("data_quality", fused.DataQuality).
		Msg("probe fused")
	return fused, nil
}

func (r *ProbeResult) add(p Point, fused *airquality.FusionResult, err error) {
	if err != nil {
		r.Failed++
		r.Errors = append(r.Errors, ProbeError{Point: p, Error: err.Error()})
		return
	}

	r.Successful++
	if fused.PrimarySource == airquality.PrimaryFallbackModel {
		r.Fallbacks++
	}

	live := map[airquality.SourceName]bool{
		airquality.SourceSatellite:       fused.DataSources.Satellite,
		airquality.SourceGround:          fused.DataSources.GroundSensors,
		airquality.SourceAlternateGround: fused.DataSources.AlternateGround,
		airquality.SourceWeather:         fused.DataSources.Weather,
	}
	for name, ok := range live {
		if ok {
			r.SourceAvailability[name]++
		}
	}
}

func (j *ProbeJob) updateMetrics(result *ProbeResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulProbes += int64(result.Successful)
	j.metrics.FailedProbes += int64(result.Failed)
	j.metrics.FallbackProbes += int64(result.Fallbacks)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the accumulated metrics.
func (j *ProbeJob) GetMetrics() ProbeMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return ProbeMetrics{
		TotalRuns:        j.metrics.TotalRuns,
		SuccessfulProbes: j.metrics.SuccessfulProbes,
		FailedProbes:     j.metrics.FailedProbes,
		FallbackProbes:   j.metrics.FallbackProbes,
		LastRunAt:        j.metrics.LastRunAt,
		LastRunDuration:  j.metrics.LastRunDuration,
		TotalDuration:    j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns the accumulated metrics as log-friendly fields.
func (j *ProbeJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"successful_probes": m.SuccessfulProbes,
		"failed_probes":     m.FailedProbes,
		"fallback_probes":   m.FallbackProbes,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
