package analysis

import "math"

// Stability scores how close samples sit to nominal on a 0-100 scale.
// Each sample's percent deviation from nominal is averaged and penalised
// linearly, so an average deviation equal to tolerancePercent scores 0.
// An empty window scores 0.
func Stability(values []float64, nominal, tolerancePercent float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var total float64
	for _, v := range values {
		total += math.Abs(v-nominal) / nominal * 100
	}
	avgDeviation := total / float64(len(values))

	return max(0, 100-avgDeviation*(100/tolerancePercent))
}

// Mean returns the arithmetic mean of values, or 0 when empty
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
