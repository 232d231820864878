package analysis

import (
	"math"

	"github.com/Reader779/Microgrid/src/grid"
)

// TrendSamples is the number of most recent samples a trend is computed over
const TrendSamples = 5

// Trend is the short-horizon classification of a channel
type Trend int

const (
	InsufficientData Trend = iota
	Stable
	GraduallyRising
	GraduallyFalling
	RapidlyRising
	RapidlyFalling
	CriticalDeviation
	Fluctuating
)

var trendNames = map[Trend]string{
	InsufficientData:  "Insufficient data",
	Stable:            "Stable",
	GraduallyRising:   "Gradually rising",
	GraduallyFalling:  "Gradually falling",
	RapidlyRising:     "Rapidly rising",
	RapidlyFalling:    "Rapidly falling",
	CriticalDeviation: "Critical deviation",
	Fluctuating:       "Fluctuating",
}

func (t Trend) String() string {
	if name, ok := trendNames[t]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText renders the trend name in snapshots
func (t Trend) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Percent is the display intensity of the classification
func (t Trend) Percent() int {
	switch t {
	case Stable:
		return 90
	case GraduallyRising, GraduallyFalling:
		return 70
	case RapidlyRising, RapidlyFalling:
		return 40
	case CriticalDeviation:
		return 20
	case Fluctuating:
		return 45
	default:
		return 50
	}
}

// TrendThresholds are the per-channel limits used by ClassifyTrend
type TrendThresholds struct {
	Nominal  float64
	Critical float64 // deviation of the last sample from nominal
	Stable   float64 // |avgChange| below this is Stable
	Moderate float64 // |avgChange| below this is Gradually*
}

// ThresholdsFor builds trend thresholds from a channel spec
func ThresholdsFor(spec grid.ChannelSpec) TrendThresholds {
	return TrendThresholds{
		Nominal:  spec.Nominal,
		Critical: spec.CriticalDeviation,
		Stable:   spec.StableChange,
		Moderate: spec.ModerateChange,
	}
}

// ClassifyTrend labels the direction and volatility of the last five samples.
// Checks run in strict priority: too few samples, then critical deviation of
// the last sample, then the destabilized override, then the size and sign of
// the average step.
func ClassifyTrend(values []float64, th TrendThresholds, destabilized bool) Trend {
	if len(values) < TrendSamples {
		return InsufficientData
	}

	recent := values[len(values)-TrendSamples:]
	var sum float64
	for i := 1; i < len(recent); i++ {
		sum += recent[i] - recent[i-1]
	}
	avgChange := sum / float64(len(recent)-1)
	deviation := math.Abs(th.Nominal - recent[len(recent)-1])

	switch {
	case deviation > th.Critical:
		return CriticalDeviation
	case destabilized:
		return Fluctuating
	case math.Abs(avgChange) < th.Stable:
		return Stable
	case math.Abs(avgChange) < th.Moderate:
		if avgChange > 0 {
			return GraduallyRising
		}
		return GraduallyFalling
	case avgChange > 0:
		return RapidlyRising
	default:
		return RapidlyFalling
	}
}
