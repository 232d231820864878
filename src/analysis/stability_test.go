package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStability_EmptyIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Stability(nil, 230, 5))
	assert.Equal(t, 0.0, Stability([]float64{}, 50, 0.5))
}

func TestStability_NominalIsPerfect(t *testing.T) {
	assert.Equal(t, 100.0, Stability([]float64{230, 230, 230, 230, 230}, 230, 5))
	assert.Equal(t, 100.0, Stability([]float64{50}, 50, 0.5))
}

func TestStability_LinearPenalty(t *testing.T) {
	// 2.3V off is 1% deviation; 1% of a 5% tolerance costs 20 points
	assert.InDelta(t, 80.0, Stability([]float64{232.3}, 230, 5), 1e-9)
	assert.InDelta(t, 80.0, Stability([]float64{227.7}, 230, 5), 1e-9)

	// 0.05Hz off is 0.1% deviation; 0.1% of a 0.5% tolerance costs 20 points
	assert.InDelta(t, 80.0, Stability([]float64{50.05}, 50, 0.5), 1e-9)
}

func TestStability_AveragesDeviations(t *testing.T) {
	// Deviations 0% and 2% average to 1%
	assert.InDelta(t, 80.0, Stability([]float64{230, 234.6}, 230, 5), 1e-9)
}

func TestStability_ClampsAtZero(t *testing.T) {
	assert.Equal(t, 0.0, Stability([]float64{260, 200}, 230, 5))
	assert.Equal(t, 0.0, Stability([]float64{51}, 50, 0.5))
}

func TestStability_MonotonicInDeviation(t *testing.T) {
	prev := Stability([]float64{230}, 230, 5)
	for d := 0.5; d <= 20; d += 0.5 {
		above := Stability([]float64{230 + d}, 230, 5)
		below := Stability([]float64{230 - d}, 230, 5)
		assert.LessOrEqual(t, above, prev, "deviation %.1f", d)
		assert.InDelta(t, above, below, 1e-9, "symmetric at %.1f", d)
		prev = above
	}
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 231.0, Mean([]float64{230, 231, 232}), 1e-9)
}
