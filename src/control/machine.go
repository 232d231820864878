package control

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/Reader779/Microgrid/src/grid"
)

const (
	// DrillCooldown clears the transient destabilization affordance
	DrillCooldown = 3 * time.Second
	// SettleDelay is how long recovery reports stabilizing
	SettleDelay = 4 * time.Second
	// QuiescentDelay follows SettleDelay before reporting monitoring again
	QuiescentDelay = 2 * time.Second
)

// Commander is the outbound command channel to the feed
type Commander interface {
	ManualAdjustment(channel grid.Channel, value float64, autoStabilize bool)
	SetAutoStabilize(enabled bool)
	SetStabilizationMode(perfect bool)
}

// Latest is the most recent sample of each channel. Callers fill it from
// Window.Last so an empty history reads as nominal.
type Latest struct {
	Voltage   float64
	Frequency float64
}

// Value returns the sample for a channel
func (l Latest) Value(c grid.Channel) float64 {
	if c == grid.Frequency {
		return l.Frequency
	}
	return l.Voltage
}

// ConfirmFunc asks the operator whether to enter perfect mode
type ConfirmFunc func() bool

// MachineConfig wires a Machine to its collaborators
type MachineConfig struct {
	Commander Commander
	Scheduler Scheduler
	Rand      *rand.Rand // nil uses the global source
	// OnChange is called after a timer changes the state, so the owner can
	// re-render. It is not called for direct operations.
	OnChange func()
}

// Machine is the operator control state machine. It is not safe for
// concurrent use; the coordinator loop is its only caller.
type Machine struct {
	state    State
	notice   Notice
	cmd      Commander
	sched    Scheduler
	rng      *rand.Rand
	onChange func()
}

// NewMachine creates a machine in Monitoring, Standard mode, with
// auto-stabilization on as the feed starts it
func NewMachine(cfg MachineConfig) *Machine {
	m := &Machine{
		state:    State{AutoStabilize: true},
		notice:   Notice{Severity: SeverityInfo, Message: "Monitoring"},
		cmd:      cfg.Commander,
		sched:    cfg.Scheduler,
		rng:      cfg.Rand,
		onChange: cfg.OnChange,
	}
	return m
}

// State returns a copy of the current state
func (m *Machine) State() State {
	return m.state
}

// Notice returns the most recent status message
func (m *Machine) Notice() Notice {
	return m.notice
}

func (m *Machine) setNotice(severity Severity, format string, args ...any) Notice {
	m.notice = Notice{Severity: severity, Message: fmt.Sprintf(format, args...)}
	return m.notice
}

func (m *Machine) changed() {
	if m.onChange != nil {
		m.onChange()
	}
}

// SetOffset stores a manual offset and sends it to the feed. Range clamping
// is the caller's contract.
func (m *Machine) SetOffset(channel grid.Channel, value float64) Notice {
	m.applyOffset(channel, value)
	spec := grid.SpecFor(channel)
	return m.setNotice(SeverityInfo, "%s offset set to %+.2f%s", channel, value, spec.Unit)
}

func (m *Machine) applyOffset(channel grid.Channel, value float64) {
	if channel == grid.Frequency {
		m.state.FrequencyOffset = value
	} else {
		m.state.VoltageOffset = value
	}
	m.cmd.ManualAdjustment(channel, value, m.state.AutoStabilize)
}

// SetAutoStabilize toggles auto-stabilization. Perfect mode needs it, so
// turning it off also drops back to Standard.
func (m *Machine) SetAutoStabilize(enabled bool) Notice {
	m.state.AutoStabilize = enabled
	m.cmd.SetAutoStabilize(enabled)

	if !enabled && m.state.Mode == ModePerfect {
		m.state.Mode = ModeStandard
		m.cmd.SetStabilizationMode(false)
		return m.setNotice(SeverityWarning, "Auto-stabilization disabled, perfect mode ended")
	}
	if enabled {
		return m.setNotice(SeverityInfo, "Auto-stabilization enabled")
	}
	return m.setNotice(SeverityInfo, "Auto-stabilization disabled")
}

// SetMode switches the stabilization mode. Perfect mode is refused while
// auto-stabilization is off.
func (m *Machine) SetMode(mode Mode) Notice {
	if mode == ModePerfect && !m.state.AutoStabilize {
		return m.setNotice(SeverityWarning,
			"Perfect mode requires auto-stabilization; enable auto-stabilization first")
	}

	m.state.Mode = mode
	m.cmd.SetStabilizationMode(mode == ModePerfect)
	if mode == ModePerfect {
		return m.setNotice(SeveritySuccess, "Perfect mode active, destabilization disabled")
	}
	return m.setNotice(SeverityInfo, "Standard mode active")
}

// Destabilize starts a drill by pushing both channels away from nominal.
// It does nothing but report while in perfect mode.
func (m *Machine) Destabilize(latest Latest) Notice {
	if m.state.Mode == ModePerfect {
		return m.setNotice(SeverityWarning, "Destabilization is disabled in perfect mode")
	}

	m.state.Destabilized = true
	m.state.Stabilizing = false
	m.state.DrillActive = true
	m.state.AutoStabilize = false
	m.state.Mode = ModeStandard
	m.cmd.SetAutoStabilize(false)
	m.cmd.SetStabilizationMode(false)

	// A recovery in flight must not report the grid stabilized mid-drill
	m.sched.Cancel(TimerSettle)
	m.sched.Cancel(TimerQuiescent)

	large := math.Abs(latest.Voltage-grid.VoltageSpec.Nominal) > grid.VoltageSpec.LargeDeviation ||
		math.Abs(latest.Frequency-grid.FrequencySpec.Nominal) > grid.FrequencySpec.LargeDeviation

	vOffset := m.drillOffset(grid.VoltageSpec, latest.Voltage, large)
	fOffset := m.drillOffset(grid.FrequencySpec, latest.Frequency, large)
	m.applyOffset(grid.Voltage, vOffset)
	m.applyOffset(grid.Frequency, fOffset)

	m.sched.ScheduleOnce(TimerDrillCooldown, DrillCooldown, func() {
		m.state.DrillActive = false
		m.changed()
	})

	return m.setNotice(SeverityWarning, "Grid destabilized (offsets %+.1fV, %+.2fHz)", vOffset, fOffset)
}

// drillOffset picks the destabilizing offset for one channel. When the grid
// is already far off nominal it pushes back the other way with a random
// magnitude; otherwise it applies a fixed moderate shift in a random direction.
func (m *Machine) drillOffset(spec grid.ChannelSpec, last float64, large bool) float64 {
	if !large {
		return m.randomSign() * spec.ModerateDrillShift
	}

	magnitude := spec.OppositeOffsetMin + m.uniform()*(spec.OppositeOffsetMax-spec.OppositeOffsetMin)
	deviation := last - spec.Nominal
	switch {
	case deviation > 0:
		return -magnitude
	case deviation < 0:
		return magnitude
	default:
		return m.randomSign() * magnitude
	}
}

func (m *Machine) uniform() float64 {
	if m.rng != nil {
		return m.rng.Float64()
	}
	return rand.Float64()
}

func (m *Machine) randomSign() float64 {
	if m.uniform() < 0.5 {
		return -1
	}
	return 1
}

// applyCorrection sends the exact offsets that bring the last samples back
// to nominal and hands control back to auto-stabilization
func (m *Machine) applyCorrection(latest Latest) (vCorrection, fCorrection float64) {
	vCorrection = grid.VoltageSpec.Nominal - latest.Voltage
	fCorrection = grid.FrequencySpec.Nominal - latest.Frequency

	m.state.AutoStabilize = true
	m.state.Destabilized = false
	m.state.DrillActive = false
	m.cmd.SetAutoStabilize(true)
	m.applyOffset(grid.Voltage, vCorrection)
	m.applyOffset(grid.Frequency, fCorrection)
	m.sched.Cancel(TimerDrillCooldown)
	return vCorrection, fCorrection
}

// Recover corrects the grid back to nominal and reports stabilizing until the
// settle delay passes. Calling it again restarts the settle timers.
func (m *Machine) Recover(latest Latest) Notice {
	vCorrection, fCorrection := m.applyCorrection(latest)
	m.state.Stabilizing = true

	m.sched.Cancel(TimerQuiescent)
	m.sched.ScheduleOnce(TimerSettle, SettleDelay, func() {
		m.state.Stabilizing = false
		m.setNotice(SeveritySuccess, "Grid stabilized")
		m.changed()

		m.sched.ScheduleOnce(TimerQuiescent, QuiescentDelay, func() {
			m.setNotice(SeverityInfo, "Monitoring")
			m.changed()
		})
	})

	return m.setNotice(SeverityInfo, "Stabilizing grid (corrections %+.1fV, %+.2fHz)", vCorrection, fCorrection)
}

// ImmediateStabilize corrects a destabilized grid at once and offers perfect
// mode through confirm. It does nothing unless the grid is destabilized.
func (m *Machine) ImmediateStabilize(latest Latest, confirm ConfirmFunc) Notice {
	if !m.state.Destabilized {
		return m.setNotice(SeverityInfo, "Grid is not destabilized, nothing to stabilize")
	}

	m.applyCorrection(latest)
	m.state.Stabilizing = false
	m.sched.Cancel(TimerSettle)
	m.sched.Cancel(TimerQuiescent)

	if confirm != nil && confirm() {
		m.state.Mode = ModePerfect
		m.cmd.SetStabilizationMode(true)
		return m.setNotice(SeveritySuccess, "Grid stabilized, perfect mode active")
	}

	m.state.Mode = ModeStandard
	return m.setNotice(SeveritySuccess, "Grid stabilized")
}
