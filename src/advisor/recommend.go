// Package advisor turns stability scores and control state into an operator
// advisory. It only reads; nothing here changes control state.
package advisor

import (
	"fmt"
	"math"

	"github.com/Reader779/Microgrid/src/control"
	"github.com/Reader779/Microgrid/src/grid"
)

const (
	// CriticalStability is the weaker-channel score below which the grid is unstable
	CriticalStability = 60
	// AttentionStability is the weaker-channel score below which a channel needs attention
	AttentionStability = 80
)

// Correction is the offset that would bring a channel back to nominal
type Correction struct {
	Value     float64 `json:"value"`
	Direction string  `json:"direction"` // "increase" or "decrease"
}

// Advisory is the structured recommendation shown to the operator
type Advisory struct {
	Severity control.Severity `json:"severity"`
	Title    string           `json:"title"`
	Message  string           `json:"message"`

	VoltageCorrection   Correction `json:"voltageCorrection"`
	FrequencyCorrection Correction `json:"frequencyCorrection"`

	// RecoverySeconds is set while auto-stabilization works on an unstable grid
	RecoverySeconds int `json:"recoverySeconds,omitempty"`
	// Efficiency is set when the grid is healthy
	Efficiency int `json:"efficiency,omitempty"`
	// Attention names the weaker channel when one needs regulator or calibration work
	Attention string `json:"attention,omitempty"`
}

func correctionFor(spec grid.ChannelSpec, last float64) Correction {
	value := spec.Nominal - last
	direction := "increase"
	if value < 0 {
		direction = "decrease"
	}
	return Correction{Value: value, Direction: direction}
}

func (c Correction) describe(unit string) string {
	return fmt.Sprintf("%s by %.2f%s", c.Direction, math.Abs(c.Value), unit)
}

// Recommend builds the advisory. The first matching rule wins: an active
// drill, then an unstable grid, then a channel needing attention, then healthy.
func Recommend(
	voltageStability, frequencyStability float64,
	state control.State,
	lastVoltage, lastFrequency float64,
) Advisory {
	a := Advisory{
		VoltageCorrection:   correctionFor(grid.VoltageSpec, lastVoltage),
		FrequencyCorrection: correctionFor(grid.FrequencySpec, lastFrequency),
	}
	manual := fmt.Sprintf("Manual correction: voltage %s, frequency %s.",
		a.VoltageCorrection.describe(grid.VoltageSpec.Unit),
		a.FrequencyCorrection.describe(grid.FrequencySpec.Unit))

	weakest := min(voltageStability, frequencyStability)

	switch {
	case state.Destabilized:
		a.Severity = control.SeverityWarning
		a.Title = "Grid destabilized"
		a.Message = "Enable auto-stabilization to restore nominal operation. " + manual

	case weakest < CriticalStability && !state.AutoStabilize:
		a.Severity = control.SeverityCritical
		a.Title = "Grid unstable"
		a.Message = "Enable auto-stabilization immediately. " + manual

	case weakest < CriticalStability:
		a.Severity = control.SeverityWarning
		a.Title = "Stabilization in progress"
		a.RecoverySeconds = int(max(0, math.Round(120-voltageStability-frequencyStability)))
		a.Message = fmt.Sprintf("Auto-stabilization is correcting the grid, estimated recovery in %ds.",
			a.RecoverySeconds)

	case weakest < AttentionStability:
		a.Severity = control.SeverityInfo
		if voltageStability <= frequencyStability {
			a.Attention = grid.Voltage.String()
			a.Title = "Voltage needs attention"
			a.Message = fmt.Sprintf("Voltage stability %.1f%%: check the voltage regulator.", voltageStability)
		} else {
			a.Attention = grid.Frequency.String()
			a.Title = "Frequency needs attention"
			a.Message = fmt.Sprintf("Frequency stability %.1f%%: check generator frequency calibration.", frequencyStability)
		}

	default:
		a.Severity = control.SeveritySuccess
		a.Efficiency = int(math.Round((voltageStability + frequencyStability) / 2))
		a.Title = "Grid operating normally"
		a.Message = fmt.Sprintf("Grid efficiency %d%%.", a.Efficiency)
	}

	return a
}
