package airquality

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/airfusion/airfusion/internal/airquality"

// ErrInvalidCoordinates is returned for points outside the WGS84 range.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// DefaultOverallIndex is used when no ground pollutant can be converted.
const DefaultOverallIndex = 50

// SatelliteNO2SurfaceFactor converts a satellite NO2 column to a surface estimate.
const SatelliteNO2SurfaceFactor = 0.1

// UnitEstimatedMicrograms marks a surface concentration estimated from a column.
const UnitEstimatedMicrograms = UnitMicrogramsPerCubicMeter + " (estimated)"

// Pollutant value source labels.
const (
	ValueSourceGround    = "ground_sensor"
	ValueSourceSatellite = "satellite"
)

// primaryPollutants are the pollutants that drive the overall index.
var primaryPollutants = []Pollutant{PollutantPM25, PollutantO3, PollutantNO2}

// EngineConfig holds configuration for the fusion engine.
type EngineConfig struct {
	// Sources are the four providers to fuse.
	Sources Sources

	// Timeouts bounds each source fetch. Zero values use the defaults.
	Timeouts Timeouts

	// Logger for fusion operations.
	Logger zerolog.Logger

	// Now returns the current time (defaults to time.Now).
	Now func() time.Time
}

// Engine fuses the four sources into one estimate. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	sources  Sources
	timeouts Timeouts
	logger   zerolog.Logger
	now      func() time.Time

	tracer   trace.Tracer
	outcomes metric.Int64Counter
	duration metric.Float64Histogram
}

// NewEngine creates a new fusion engine.
func NewEngine(cfg EngineConfig) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	meter := otel.Meter(instrumentationName)
	outcomes, err := meter.Int64Counter(
		"fusion.source.outcome",
		metric.WithDescription("Source fetch outcomes by status"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("failed to create source outcome counter")
	}
	duration, err := meter.Float64Histogram(
		"fusion.duration",
		metric.WithDescription("Duration of fusion requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("failed to create fusion duration histogram")
	}

	return &Engine{
		sources:  cfg.Sources,
		timeouts: cfg.Timeouts.withDefaults(),
		logger:   cfg.Logger,
		now:      now,
		tracer:   otel.Tracer(instrumentationName),
		outcomes: outcomes,
		duration: duration,
	}
}

// Fuse produces the fused air quality estimate for a point. It only fails on
// invalid input, caller cancellation, or a source that breaks the reading
// contract; provider failures are absorbed into the result.
func (e *Engine) Fuse(ctx context.Context, lat, lon float64) (*FusionResult, error) {
	if !validCoordinate(Location{Lat: lat, Lon: lon}) {
		return nil, fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinates, lat, lon)
	}

	start := e.now()
	ctx, span := e.tracer.Start(ctx, "airquality.Fuse", trace.WithAttributes(
		attribute.Float64("location.lat", lat),
		attribute.Float64("location.lon", lon),
	))
	defer span.End()

	outcomes := Acquire(ctx, e.sources, e.timeouts, lat, lon)
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("acquiring sources: %w", err)
	}

	if err := validateOutcomes(outcomes); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	e.recordOutcomes(ctx, outcomes)

	result := e.combine(lat, lon, outcomes)

	span.SetAttributes(
		attribute.Int("aqi.overall", result.OverallIndex),
		attribute.String("aqi.primary_source", result.PrimarySource),
		attribute.String("aqi.data_quality", result.DataQuality),
	)
	if e.duration != nil {
		e.duration.Record(ctx, e.now().Sub(start).Seconds())
	}
	return result, nil
}

// Health returns the health of every source that reports it.
func (e *Engine) Health() map[SourceName]HealthSnapshot {
	health := make(map[SourceName]HealthSnapshot, 4)
	for _, src := range []Source{e.sources.Satellite, e.sources.Ground, e.sources.AlternateGround, e.sources.Weather} {
		if src == nil {
			continue
		}
		if hr, ok := src.(HealthReporter); ok {
			health[src.Name()] = hr.Health()
		}
	}
	return health
}

func validateOutcomes(outcomes Outcomes) error {
	var errs []error
	outcomes.Each(func(name SourceName, out Outcome) {
		if out.Status == StatusOK && out.Reading == nil {
			errs = append(errs, fmt.Errorf("%w: %s reported ok without a reading", ErrMalformedReading, name))
			return
		}
		if err := out.Reading.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	})
	return errors.Join(errs...)
}

func (e *Engine) recordOutcomes(ctx context.Context, outcomes Outcomes) {
	if e.outcomes == nil {
		return
	}
	outcomes.Each(func(name SourceName, out Outcome) {
		e.outcomes.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", string(name)),
			attribute.String("status", string(out.Status)),
			attribute.Bool("synthesized", out.Synthesized),
		))
	})
}

// combine applies the fusion policy to a set of validated outcomes.
func (e *Engine) combine(lat, lon float64, outcomes Outcomes) *FusionResult {
	now := e.now().UTC()

	result := &FusionResult{
		Timestamp: now,
		Location:  Location{Lat: lat, Lon: lon},
		DataSources: DataSources{
			Satellite:       outcomes.Satellite.Status == StatusOK,
			GroundSensors:   outcomes.Ground.Status == StatusOK,
			AlternateGround: outcomes.AlternateGround.Status == StatusOK,
			Weather:         outcomes.Weather.Status == StatusOK,
		},
		Raw: RawReadings{
			Satellite:       outcomes.Satellite.Reading,
			Ground:          outcomes.Ground.Reading,
			AlternateGround: outcomes.AlternateGround.Reading,
			Weather:         outcomes.Weather.Reading,
		},
	}

	outcomes.Each(func(name SourceName, out Outcome) {
		if out.Err == nil {
			return
		}
		if result.Errors == nil {
			result.Errors = make(map[SourceName]string, 4)
		}
		result.Errors[name] = out.Err.Error()
	})

	allFailed := outcomes.AllFailed()
	if allFailed {
		e.logger.Error().
			Err(ErrAllSourcesFailed).
			Float64("lat", lat).
			Float64("lon", lon).
			Interface("errors", result.Errors).
			Msg("using emergency fallback data")
		result.Raw.Ground = EmergencyGround(lat, lon, now)
	}

	// Primary index.
	switch alt := outcomes.AlternateGround; {
	case !allFailed && alt.Status == StatusOK && !alt.Synthesized && alt.Reading.OverallIndex != nil:
		result.OverallIndex = ClampIndex(*alt.Reading.OverallIndex)
		result.Pollutants = copyPollutants(alt.Reading.Pollutants)
		result.PrimarySource = PrimaryAlternateGround
		result.Confidence = ConfidenceHigh
	default:
		overall, pollutants, contributed := indexFromGround(result.Raw.Ground)
		result.OverallIndex = overall
		result.Pollutants = pollutants
		result.PrimarySource = PrimaryGroundSensors
		result.Confidence = ConfidenceMedium
		if contributed >= 2 {
			result.Confidence = ConfidenceHigh
		}
		if allFailed || result.Raw.Ground == nil {
			result.PrimarySource = PrimaryFallbackModel
			result.Confidence = ConfidenceLow
		}
	}

	// Satellite enhancement.
	if sat := result.Raw.Satellite; sat != nil {
		if no2, ok := sat.Pollutants[PollutantNO2]; ok {
			result.Pollutants[PollutantNO2Satellite] = PollutantValue{
				Value:  round2(no2.Value * SatelliteNO2SurfaceFactor),
				Unit:   UnitEstimatedMicrograms,
				Source: ValueSourceSatellite,
			}
			result.SatelliteEnhancement = true
		}
	}

	// Weather adjustment.
	result.WeatherImpact = DispersionModerate
	if w := result.Raw.Weather; w != nil && w.Weather != nil && w.Weather.DispersionImpact != "" {
		result.WeatherImpact = w.Weather.DispersionImpact
	}
	result.WeatherAdjustedIndex = AdjustForWeather(result.OverallIndex, result.WeatherImpact)

	result.Category = CategoryFor(result.OverallIndex).Level
	result.DataQuality = DataQualityMedium
	if result.DataSources.Satellite &&
		(result.DataSources.GroundSensors || result.DataSources.AlternateGround) &&
		result.DataSources.Weather {
		result.DataQuality = DataQualityHigh
	}

	return result
}

// indexFromGround converts the averaged ground measurements into indices and
// returns the dominant one along with the number of contributing pollutants.
func indexFromGround(ground *Reading) (int, map[Pollutant]PollutantValue, int) {
	pollutants := make(map[Pollutant]PollutantValue, len(primaryPollutants)+1)
	if ground == nil {
		return DefaultOverallIndex, pollutants, 0
	}

	overall, contributed := 0, 0
	for _, p := range primaryPollutants {
		avg, ok := ground.Averaged[p]
		if !ok {
			continue
		}
		index, ok := IndexFor(p, avg.Value)
		if !ok {
			continue
		}
		pollutants[p] = PollutantValue{
			Value:  avg.Value,
			Unit:   UnitMicrogramsPerCubicMeter,
			Index:  intPtr(index),
			Source: ValueSourceGround,
		}
		overall = max(overall, index)
		contributed++
	}
	if contributed == 0 {
		overall = DefaultOverallIndex
	}
	return overall, pollutants, contributed
}

// WeatherFactor returns the multiplier applied for a dispersion impact.
func WeatherFactor(impact DispersionImpact) float64 {
	switch impact {
	case DispersionGood:
		return 0.9
	case DispersionPoor, DispersionStagnant:
		return 1.1
	case DispersionCleanse:
		return 0.8
	default:
		return 1.0
	}
}

// AdjustForWeather scales an index by the weather factor and clamps it to the scale.
func AdjustForWeather(index int, impact DispersionImpact) int {
	return ClampIndex(int(math.Round(float64(index) * WeatherFactor(impact))))
}

func copyPollutants(in map[Pollutant]PollutantValue) map[Pollutant]PollutantValue {
	out := make(map[Pollutant]PollutantValue, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
