// Package control owns the operator-driven control state of the microgrid:
// manual offsets, auto-stabilization, stabilization mode and the
// destabilization drill lifecycle.
package control

// Mode is the stabilization mode axis, orthogonal to the drill lifecycle
type Mode int

const (
	ModeStandard Mode = iota
	ModePerfect
)

func (m Mode) String() string {
	if m == ModePerfect {
		return "perfect"
	}
	return "standard"
}

// MarshalText renders the mode name in snapshots
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode accepts the operator's mode names
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "perfect":
		return ModePerfect, true
	case "standard":
		return ModeStandard, true
	}
	return 0, false
}

// Phase is the position in the drill lifecycle
type Phase int

const (
	PhaseMonitoring Phase = iota
	PhaseDestabilized
	PhaseStabilizing
)

func (p Phase) String() string {
	switch p {
	case PhaseDestabilized:
		return "destabilized"
	case PhaseStabilizing:
		return "stabilizing"
	default:
		return "monitoring"
	}
}

// MarshalText renders the phase name in snapshots
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is the complete control state. Machine hands out copies; callers
// never mutate the machine's state directly.
type State struct {
	VoltageOffset   float64 `json:"voltageOffset"`
	FrequencyOffset float64 `json:"frequencyOffset"`
	AutoStabilize   bool    `json:"autoStabilize"`
	Mode            Mode    `json:"mode"`
	Destabilized    bool    `json:"destabilized"`
	Stabilizing     bool    `json:"stabilizing"`

	// DrillActive is the transient affordance shown right after a
	// destabilization; it clears after the cool-down while Destabilized persists
	DrillActive bool `json:"drillActive"`
}

// Phase derives the lifecycle phase from the flags
func (s State) Phase() Phase {
	switch {
	case s.Destabilized:
		return PhaseDestabilized
	case s.Stabilizing:
		return PhaseStabilizing
	default:
		return PhaseMonitoring
	}
}

// Severity tags notices and advisories
type Severity int

const (
	SeveritySuccess Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "success"
	}
}

// MarshalText renders the severity name in snapshots
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Notice is the status message an operation leaves behind, including policy no-ops
type Notice struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}
