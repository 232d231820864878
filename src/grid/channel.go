// Package grid holds the fixed electrical parameters of the monitored microgrid
// and the telemetry types shared by the analysis and control packages.
package grid

import "math"

// Channel identifies one of the two monitored quantities
type Channel int

const (
	Voltage Channel = iota
	Frequency
)

// String returns the wire name used in manual_adjustment commands
func (c Channel) String() string {
	switch c {
	case Voltage:
		return "voltage"
	case Frequency:
		return "frequency"
	default:
		return "unknown"
	}
}

// ParseChannel accepts the wire name of a channel
func ParseChannel(s string) (Channel, bool) {
	switch s {
	case "voltage", "v":
		return Voltage, true
	case "frequency", "f":
		return Frequency, true
	}
	return 0, false
}

// Band is a pair of symmetric limits around nominal. Values strictly outside
// [Low, High] fall into the band.
type Band struct {
	Low, High float64
}

// Outside reports whether value lies beyond either limit
func (b Band) Outside(value float64) bool {
	return value < b.Low || value > b.High
}

// ChannelSpec holds every constant the analyzer, state machine and advisor
// need for one channel
type ChannelSpec struct {
	Channel Channel
	Unit    string

	Nominal          float64
	TolerancePercent float64 // full allowed deviation band for stability scoring

	// Trend classification thresholds
	CriticalDeviation float64 // |nominal - last| above this is CriticalDeviation
	StableChange      float64 // |avgChange| below this is Stable
	ModerateChange    float64 // |avgChange| below this is Gradually*

	// Safety banding, independent of stability score
	Danger  Band
	Warning Band

	// Destabilization drill policy
	LargeDeviation     float64 // current deviation above this counts as already large
	OppositeOffsetMin  float64
	OppositeOffsetMax  float64
	ModerateDrillShift float64

	// Operator UI clamp for manual offsets
	OffsetLimit float64
	OffsetStep  float64
}

// VoltageSpec is the 230V channel
var VoltageSpec = ChannelSpec{
	Channel:            Voltage,
	Unit:               "V",
	Nominal:            230,
	TolerancePercent:   5,
	CriticalDeviation:  15,
	StableChange:       0.5,
	ModerateChange:     1.5,
	Danger:             Band{Low: 207, High: 253},
	Warning:            Band{Low: 218, High: 242},
	LargeDeviation:     5,
	OppositeOffsetMin:  8,
	OppositeOffsetMax:  15,
	ModerateDrillShift: 12,
	OffsetLimit:        25,
	OffsetStep:         1,
}

// FrequencySpec is the 50Hz channel
var FrequencySpec = ChannelSpec{
	Channel:            Frequency,
	Unit:               "Hz",
	Nominal:            50,
	TolerancePercent:   0.5,
	CriticalDeviation:  2,
	StableChange:       0.05,
	ModerateChange:     0.15,
	Danger:             Band{Low: 49.5, High: 50.5},
	Warning:            Band{Low: 49.8, High: 50.2},
	LargeDeviation:     0.3,
	OppositeOffsetMin:  0.6,
	OppositeOffsetMax:  1.0,
	ModerateDrillShift: 0.7,
	OffsetLimit:        1,
	OffsetStep:         0.1,
}

// SpecFor returns the constants for a channel
func SpecFor(c Channel) ChannelSpec {
	if c == Frequency {
		return FrequencySpec
	}
	return VoltageSpec
}

// ClampOffset applies the operator UI contract: clamp to ±OffsetLimit and
// snap to the nearest OffsetStep
func (s ChannelSpec) ClampOffset(value float64) float64 {
	value = max(-s.OffsetLimit, min(s.OffsetLimit, value))
	snapped := math.Round(value/s.OffsetStep) * s.OffsetStep
	// Strip float noise from the step multiplication (0.30000000000000004)
	return math.Round(snapped*1000) / 1000
}
