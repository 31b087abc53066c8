package airquality

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Default per-source deadlines.
const (
	DefaultGroundTimeout    = 15 * time.Second
	DefaultAlternateTimeout = 15 * time.Second
	DefaultSatelliteTimeout = 10 * time.Second
	DefaultWeatherTimeout   = 10 * time.Second
)

// Sources groups the four providers fused for every request.
// A nil source is treated as having no data.
type Sources struct {
	Satellite       Source
	Ground          Source
	AlternateGround Source
	Weather         Source
}

// Timeouts bounds each source fetch independently.
type Timeouts struct {
	Satellite       time.Duration
	Ground          time.Duration
	AlternateGround time.Duration
	Weather         time.Duration
}

// DefaultTimeouts returns the default per-source deadlines.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Satellite:       DefaultSatelliteTimeout,
		Ground:          DefaultGroundTimeout,
		AlternateGround: DefaultAlternateTimeout,
		Weather:         DefaultWeatherTimeout,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Satellite <= 0 {
		t.Satellite = d.Satellite
	}
	if t.Ground <= 0 {
		t.Ground = d.Ground
	}
	if t.AlternateGround <= 0 {
		t.AlternateGround = d.AlternateGround
	}
	if t.Weather <= 0 {
		t.Weather = d.Weather
	}
	return t
}

// Outcomes holds the result of every source for one acquisition.
type Outcomes struct {
	Satellite       Outcome
	Ground          Outcome
	AlternateGround Outcome
	Weather         Outcome
}

// Each calls fn for every outcome in a fixed order.
func (o Outcomes) Each(fn func(name SourceName, out Outcome)) {
	fn(SourceSatellite, o.Satellite)
	fn(SourceGround, o.Ground)
	fn(SourceAlternateGround, o.AlternateGround)
	fn(SourceWeather, o.Weather)
}

// AllFailed reports whether no source produced a usable outcome.
func (o Outcomes) AllFailed() bool {
	failed := true
	o.Each(func(_ SourceName, out Outcome) {
		if out.Status == StatusOK {
			failed = false
		}
	})
	return failed
}

// Acquire fetches from all four sources concurrently. Each fetch runs under
// its own deadline derived from ctx; a failing or slow source never cancels
// the others, while cancelling ctx reaches all of them.
func Acquire(ctx context.Context, sources Sources, timeouts Timeouts, lat, lon float64) Outcomes {
	timeouts = timeouts.withDefaults()

	var (
		out Outcomes
		g   errgroup.Group
	)

	fetch := func(src Source, timeout time.Duration, dst *Outcome) {
		g.Go(func() error {
			*dst = fetchOne(ctx, src, timeout, lat, lon)
			// Failures are carried in the outcome, never through the group.
			return nil
		})
	}

	fetch(sources.Satellite, timeouts.Satellite, &out.Satellite)
	fetch(sources.Ground, timeouts.Ground, &out.Ground)
	fetch(sources.AlternateGround, timeouts.AlternateGround, &out.AlternateGround)
	fetch(sources.Weather, timeouts.Weather, &out.Weather)

	_ = g.Wait()
	return out
}

func fetchOne(ctx context.Context, src Source, timeout time.Duration, lat, lon float64) (out Outcome) {
	if src == nil {
		return NoData(nil, nil)
	}

	defer func() {
		if r := recover(); r != nil {
			out = Unavailable(nil, fmt.Errorf("%w: %s panicked: %v", ErrProviderUnavailable, src.Name(), r))
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return src.Fetch(fetchCtx, lat, lon)
}
