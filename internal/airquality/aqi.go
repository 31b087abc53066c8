package airquality

import "math"

// MaxIndex is the top of the index scale.
const MaxIndex = 500

// Breakpoint maps a concentration band onto an index band.
type Breakpoint struct {
	ConcLow   float64
	ConcHigh  float64
	IndexLow  int
	IndexHigh int
}

// BreakpointTable is an ordered set of non-overlapping bands.
type BreakpointTable []Breakpoint

// Breakpoint tables. Concentrations are µg/m³.
var (
	// PM25Breakpoints are the EPA 24-hour PM2.5 bands.
	PM25Breakpoints = BreakpointTable{
		{0, 12.0, 0, 50},
		{12.1, 35.4, 51, 100},
		{35.5, 55.4, 101, 150},
		{55.5, 150.4, 151, 200},
		{150.5, 250.4, 201, 300},
		{250.5, 500.4, 301, 500},
	}

	// PM10Breakpoints are the EPA 24-hour PM10 bands.
	PM10Breakpoints = BreakpointTable{
		{0, 54, 0, 50},
		{55, 154, 51, 100},
		{155, 254, 101, 150},
		{255, 354, 151, 200},
		{355, 424, 201, 300},
		{425, 604, 301, 500},
	}

	// O3Breakpoints is a simplified 8-hour ozone approximation.
	// The top band continues the 2-points-per-unit slope up to 500.
	O3Breakpoints = BreakpointTable{
		{0, 54, 0, 50},
		{55, 70, 51, 100},
		{71, 85, 101, 150},
		{86, 105, 151, 200},
		{106, 255.5, 201, 500},
	}

	// NO2Breakpoints is a simplified 1-hour NO2 approximation.
	// The top band continues the half-point-per-unit slope up to 500.
	NO2Breakpoints = BreakpointTable{
		{0, 53, 0, 50},
		{54, 100, 51, 100},
		{101, 360, 101, 150},
		{361, 1059, 151, 500},
	}
)

var breakpointTables = map[Pollutant]BreakpointTable{
	PollutantPM25: PM25Breakpoints,
	PollutantPM10: PM10Breakpoints,
	PollutantO3:   O3Breakpoints,
	PollutantNO2:  NO2Breakpoints,
}

// Index converts a concentration to an index value. It never fails:
// negative concentrations clamp to 0, concentrations above the top band
// saturate at 500, and concentrations that fall in the gap between two bands
// take the upper band's low index.
func (t BreakpointTable) Index(c float64) int {
	if len(t) == 0 || math.IsNaN(c) || c <= 0 {
		return 0
	}
	for _, bp := range t {
		if c > bp.ConcHigh {
			continue
		}
		if c < bp.ConcLow {
			return bp.IndexLow
		}
		return interpolate(c, bp.ConcLow, bp.ConcHigh, float64(bp.IndexLow), float64(bp.IndexHigh))
	}
	return MaxIndex
}

// Concentration is the inverse of Index: it returns the concentration at which
// the table reaches the given index.
func (t BreakpointTable) Concentration(index int) float64 {
	if len(t) == 0 || index <= 0 {
		return 0
	}
	for _, bp := range t {
		if index > bp.IndexHigh {
			continue
		}
		if index < bp.IndexLow {
			return bp.ConcLow
		}
		if bp.IndexHigh == bp.IndexLow {
			return bp.ConcLow
		}
		slope := (bp.ConcHigh - bp.ConcLow) / float64(bp.IndexHigh-bp.IndexLow)
		return math.Round((slope*float64(index-bp.IndexLow)+bp.ConcLow)*100) / 100
	}
	return t[len(t)-1].ConcHigh
}

func interpolate(c, concLow, concHigh, idxLow, idxHigh float64) int {
	if concHigh == concLow {
		return int(idxLow)
	}
	index := (idxHigh-idxLow)/(concHigh-concLow)*(c-concLow) + idxLow
	return ClampIndex(int(math.Round(index)))
}

// IndexFor converts a concentration of the given pollutant to an index.
// The boolean is false when no table exists for the pollutant.
func IndexFor(p Pollutant, concentration float64) (int, bool) {
	table, ok := breakpointTables[p]
	if !ok {
		return 0, false
	}
	return table.Index(concentration), true
}

// ConcentrationFor converts an index back to a concentration of the given pollutant.
func ConcentrationFor(p Pollutant, index int) (float64, bool) {
	table, ok := breakpointTables[p]
	if !ok {
		return 0, false
	}
	return table.Concentration(index), true
}

// PM25ToIndex converts a PM2.5 concentration to an index.
func PM25ToIndex(c float64) int { return PM25Breakpoints.Index(c) }

// O3ToIndex converts an ozone concentration to an index.
func O3ToIndex(c float64) int { return O3Breakpoints.Index(c) }

// NO2ToIndex converts an NO2 concentration to an index.
func NO2ToIndex(c float64) int { return NO2Breakpoints.Index(c) }

// ClampIndex bounds an index to [0, 500].
func ClampIndex(index int) int {
	switch {
	case index < 0:
		return 0
	case index > MaxIndex:
		return MaxIndex
	default:
		return index
	}
}
