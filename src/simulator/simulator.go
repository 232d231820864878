// Package simulator generates a demo telemetry feed. It draws readings from
// weighted load scenarios, applies the operator's manual offsets and predicts
// the next value with a moving average.
package simulator

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Reader779/Microgrid/src/grid"
)

const (
	// SequenceLength is the number of samples the predictor needs before the
	// feed emits anything
	SequenceLength = 10

	// ActionManual replaces the suggested action while auto-stabilization is off
	ActionManual = "Manual Control"

	voltageClip   = 15.0
	frequencyClip = 1.0

	voltageActionTolerance   = 5.0
	frequencyActionTolerance = 0.5
)

// Scenario is a grid load condition
type Scenario int

const (
	ScenarioNormal Scenario = iota
	ScenarioPeakLoad
	ScenarioLowLoad
	ScenarioFault
)

func (s Scenario) String() string {
	switch s {
	case ScenarioPeakLoad:
		return "peak_load"
	case ScenarioLowLoad:
		return "low_load"
	case ScenarioFault:
		return "fault"
	default:
		return "normal"
	}
}

type scenarioParams struct {
	voltageSigma   float64
	frequencySigma float64
	weight         float64
}

var scenarios = [...]scenarioParams{
	ScenarioNormal:   {voltageSigma: 2, frequencySigma: 0.1, weight: 0.7},
	ScenarioPeakLoad: {voltageSigma: 4, frequencySigma: 0.3, weight: 0.15},
	ScenarioLowLoad:  {voltageSigma: 3, frequencySigma: 0.2, weight: 0.1},
	ScenarioFault:    {voltageSigma: 8, frequencySigma: 0.5, weight: 0.05},
}

// weights returns the scenario weights biased by hour of day: more peak load
// during working hours, more low load at night
func weights(hour int) [4]float64 {
	var w [4]float64
	for i, p := range scenarios {
		w[i] = p.weight
	}
	switch {
	case hour >= 9 && hour <= 17:
		w[ScenarioPeakLoad] = 0.25
		w[ScenarioNormal] = 0.6
	case hour >= 0 && hour <= 5:
		w[ScenarioLowLoad] = 0.2
		w[ScenarioNormal] = 0.7
	}
	return w
}

// Simulator is safe for concurrent use; commands arrive from the MQTT
// client while Next runs on the feed ticker.
type Simulator struct {
	mu sync.Mutex

	rng *rand.Rand
	now func() time.Time

	voltageOffset   float64
	frequencyOffset float64
	autoStabilize   bool
	perfectMode     bool
	scenario        Scenario

	voltageSeq   []float64
	frequencySeq []float64
}

// New creates a simulator. A nil rng uses a randomly seeded source and a nil
// now uses time.Now.
func New(rng *rand.Rand, now func() time.Time) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if now == nil {
		now = time.Now
	}
	return &Simulator{
		rng:           rng,
		now:           now,
		autoStabilize: true,
	}
}

// ManualAdjustment sets a channel offset and the auto-stabilize flag sent with it
func (s *Simulator) ManualAdjustment(channel grid.Channel, value float64, autoStabilize bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel == grid.Frequency {
		s.frequencyOffset = value
	} else {
		s.voltageOffset = value
	}
	s.autoStabilize = autoStabilize
}

// SetAutoStabilize toggles whether the feed suggests corrective actions
func (s *Simulator) SetAutoStabilize(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoStabilize = enabled
}

// SetStabilizationMode pins the feed to the normal scenario while perfect
// mode is active
func (s *Simulator) SetStabilizationMode(perfect bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perfectMode = perfect
}

// Scenario reports the scenario of the last generated sample
func (s *Simulator) Scenario() Scenario {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scenario
}

func (s *Simulator) pickScenario(hour int) Scenario {
	if s.perfectMode {
		return ScenarioNormal
	}
	w := weights(hour)
	total := 0.0
	for _, v := range w {
		total += v
	}
	r := s.rng.Float64() * total
	for i, v := range w {
		if r < v {
			return Scenario(i)
		}
		r -= v
	}
	return ScenarioNormal
}

func clip(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

// Next generates one sample. It reports false until SequenceLength samples
// have been collected for the predictor.
func (s *Simulator) Next() (grid.Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.scenario = s.pickScenario(now.Hour())
	p := scenarios[s.scenario]

	vNom := grid.VoltageSpec.Nominal
	fNom := grid.FrequencySpec.Nominal
	voltage := clip(vNom+s.rng.NormFloat64()*p.voltageSigma, vNom-voltageClip, vNom+voltageClip)
	frequency := clip(fNom+s.rng.NormFloat64()*p.frequencySigma, fNom-frequencyClip, fNom+frequencyClip)
	voltage += s.voltageOffset
	frequency += s.frequencyOffset

	s.voltageSeq = appendBounded(s.voltageSeq, voltage)
	s.frequencySeq = appendBounded(s.frequencySeq, frequency)
	if len(s.voltageSeq) < SequenceLength {
		return grid.Reading{}, false
	}

	r := grid.Reading{
		Voltage:            voltage,
		Frequency:          frequency,
		PredictedVoltage:   average(s.voltageSeq),
		PredictedFrequency: average(s.frequencySeq),
		VoltageAction:      ActionManual,
		FrequencyAction:    ActionManual,
		Timestamp:          now,
	}
	if s.autoStabilize {
		r.VoltageAction = Action(grid.Voltage, r.PredictedVoltage)
		r.FrequencyAction = Action(grid.Frequency, r.PredictedFrequency)
	}
	return r, true
}

func appendBounded(seq []float64, v float64) []float64 {
	seq = append(seq, v)
	if len(seq) > SequenceLength {
		seq = seq[1:]
	}
	return seq
}

func average(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Action suggests a correction for a predicted value
func Action(channel grid.Channel, predicted float64) string {
	nominal, tolerance, unit := grid.VoltageSpec.Nominal, voltageActionTolerance, "Volt"
	if channel == grid.Frequency {
		nominal, tolerance, unit = grid.FrequencySpec.Nominal, frequencyActionTolerance, "Freq"
	}
	switch {
	case predicted > nominal+tolerance:
		return "Decrease " + unit
	case predicted < nominal-tolerance:
		return "Increase " + unit
	}
	return grid.ActionNone
}
