package grid

import (
	"encoding/json"
	"fmt"
)

// Command names, also used as the final MQTT topic segment
const (
	CommandManualAdjustment     = "manual_adjustment"
	CommandSetAutoStabilize     = "set_auto_stabilize"
	CommandSetStabilizationMode = "set_stabilization_mode"
)

// ManualAdjustment sets the feed's offset for one channel
type ManualAdjustment struct {
	Type          string  `json:"type"`
	Value         float64 `json:"value"`
	AutoStabilize bool    `json:"autoStabilize"`
}

// SetAutoStabilize toggles the feed's auto-stabilization
type SetAutoStabilize struct {
	Enabled bool `json:"enabled"`
}

// SetStabilizationMode switches the feed into or out of perfect mode
type SetStabilizationMode struct {
	PerfectMode bool `json:"perfectMode"`
}

// CommandHandler receives decoded commands
type CommandHandler interface {
	ManualAdjustment(channel Channel, value float64, autoStabilize bool)
	SetAutoStabilize(enabled bool)
	SetStabilizationMode(perfect bool)
}

// DispatchCommand decodes a command payload by name and forwards it to h
func DispatchCommand(name string, payload []byte, h CommandHandler) error {
	switch name {
	case CommandManualAdjustment:
		var c ManualAdjustment
		if err := json.Unmarshal(payload, &c); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
		channel, ok := ParseChannel(c.Type)
		if !ok {
			return fmt.Errorf("decode %s: unknown channel %q", name, c.Type)
		}
		h.ManualAdjustment(channel, c.Value, c.AutoStabilize)
	case CommandSetAutoStabilize:
		var c SetAutoStabilize
		if err := json.Unmarshal(payload, &c); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
		h.SetAutoStabilize(c.Enabled)
	case CommandSetStabilizationMode:
		var c SetStabilizationMode
		if err := json.Unmarshal(payload, &c); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
		h.SetStabilizationMode(c.PerfectMode)
	default:
		return fmt.Errorf("unknown command %q", name)
	}
	return nil
}
