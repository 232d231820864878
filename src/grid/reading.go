package grid

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ActionNone is the feed's action string when no correction is needed
const ActionNone = "No Action Needed"

// Reading is one telemetry event from the feed. It is never modified after decoding.
type Reading struct {
	Voltage            float64   `json:"voltage"`
	Frequency          float64   `json:"frequency"`
	PredictedVoltage   float64   `json:"predicted_voltage"`
	PredictedFrequency float64   `json:"predicted_frequency"`
	VoltageAction      string    `json:"voltage_action"`
	FrequencyAction    string    `json:"frequency_action"`
	Timestamp          time.Time `json:"-"`
}

// Value returns the measured value of a channel
func (r Reading) Value(c Channel) float64 {
	if c == Frequency {
		return r.Frequency
	}
	return r.Voltage
}

// Predicted returns the predicted value of a channel
func (r Reading) Predicted(c Channel) float64 {
	if c == Frequency {
		return r.PredictedFrequency
	}
	return r.PredictedVoltage
}

// Action returns the feed's control action for a channel
func (r Reading) Action(c Channel) string {
	if c == Frequency {
		return r.FrequencyAction
	}
	return r.VoltageAction
}

// wireReading carries the optional Unix-seconds timestamp the feed emits
type wireReading struct {
	Reading
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// DecodeReading parses a telemetry payload. Readings with non-finite
// measurements are rejected so the analyzer only ever sees finite input.
func DecodeReading(payload []byte, received time.Time) (Reading, error) {
	var w wireReading
	if err := json.Unmarshal(payload, &w); err != nil {
		return Reading{}, fmt.Errorf("decode reading: %w", err)
	}

	r := w.Reading
	for _, v := range []float64{r.Voltage, r.Frequency, r.PredictedVoltage, r.PredictedFrequency} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Reading{}, fmt.Errorf("decode reading: non-finite value %v", v)
		}
	}

	r.Timestamp = received
	if w.Timestamp != nil {
		sec, frac := math.Modf(*w.Timestamp)
		r.Timestamp = time.Unix(int64(sec), int64(frac*1e9))
	}
	return r, nil
}

// EncodeReading produces the feed payload for a reading
func EncodeReading(r Reading) ([]byte, error) {
	w := wireReading{Reading: r}
	if !r.Timestamp.IsZero() {
		ts := float64(r.Timestamp.UnixNano()) / 1e9
		w.Timestamp = &ts
	}
	return json.Marshal(w)
}
