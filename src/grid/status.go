package grid

import "strings"

// Level is the safety band a measured value falls into
type Level int

const (
	Safe Level = iota
	Warning
	Danger
)

func (l Level) String() string {
	switch l {
	case Warning:
		return "Warning"
	case Danger:
		return "Danger"
	default:
		return "Safe"
	}
}

// MarshalText renders the level name in snapshots
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Status classifies a measured value against the channel's safety bands.
// Danger is checked first since its band is wider.
func (s ChannelSpec) Status(value float64) Level {
	switch {
	case s.Danger.Outside(value):
		return Danger
	case s.Warning.Outside(value):
		return Warning
	default:
		return Safe
	}
}

// Badge is the severity of a feed action string
type Badge int

const (
	BadgeNominal Badge = iota
	BadgeWarning
	BadgeDanger
)

func (b Badge) String() string {
	switch b {
	case BadgeWarning:
		return "warning"
	case BadgeDanger:
		return "danger"
	default:
		return "nominal"
	}
}

// MarshalText renders the badge name in snapshots
func (b Badge) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// ActionBadge classifies an action string. Matching is exact and case-sensitive.
func ActionBadge(action string) Badge {
	switch {
	case action == ActionNone:
		return BadgeNominal
	case strings.HasPrefix(action, "Increase"):
		return BadgeWarning
	default:
		return BadgeDanger
	}
}
