package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	channel Channel
	value   float64
	auto    bool
	perfect bool
	calls   []string
}

func (h *recordingHandler) ManualAdjustment(channel Channel, value float64, autoStabilize bool) {
	h.calls = append(h.calls, CommandManualAdjustment)
	h.channel, h.value, h.auto = channel, value, autoStabilize
}

func (h *recordingHandler) SetAutoStabilize(enabled bool) {
	h.calls = append(h.calls, CommandSetAutoStabilize)
	h.auto = enabled
}

func (h *recordingHandler) SetStabilizationMode(perfect bool) {
	h.calls = append(h.calls, CommandSetStabilizationMode)
	h.perfect = perfect
}

func TestDispatchCommand(t *testing.T) {
	h := &recordingHandler{}

	require.NoError(t, DispatchCommand(CommandManualAdjustment,
		[]byte(`{"type":"frequency","value":-0.7,"autoStabilize":true}`), h))
	assert.Equal(t, Frequency, h.channel)
	assert.Equal(t, -0.7, h.value)
	assert.True(t, h.auto)

	require.NoError(t, DispatchCommand(CommandSetAutoStabilize, []byte(`{"enabled":false}`), h))
	assert.False(t, h.auto)

	require.NoError(t, DispatchCommand(CommandSetStabilizationMode, []byte(`{"perfectMode":true}`), h))
	assert.True(t, h.perfect)

	assert.Equal(t, []string{CommandManualAdjustment, CommandSetAutoStabilize, CommandSetStabilizationMode}, h.calls)
}

func TestDispatchCommand_Rejects(t *testing.T) {
	h := &recordingHandler{}

	assert.Error(t, DispatchCommand("reboot", []byte(`{}`), h))
	assert.Error(t, DispatchCommand(CommandManualAdjustment, []byte(`{"type":"current","value":1}`), h))
	assert.Error(t, DispatchCommand(CommandSetAutoStabilize, []byte(`{`), h))
	assert.Empty(t, h.calls)
}
