package main

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Reader779/Microgrid/src/grid"
	"github.com/Reader779/Microgrid/src/simulator"
)

// The feed and the monitor share one wire format: every command the sender
// emits is understood by the simulator and every reading it emits decodes.
func TestSimulatorLoop_CommandsAndTelemetry(t *testing.T) {
	sim := simulator.New(rand.New(rand.NewPCG(9, 9)), func() time.Time {
		return time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	})

	out := make(chan MQTTMessage, 4)
	sender := NewMQTTSender(out, "microgrid/command")
	sender.ManualAdjustment(grid.Voltage, 25, false)
	msg := <-out
	require.NoError(t, grid.DispatchCommand(sender.commandName(msg.Topic), msg.Payload, sim))

	var payload []byte
	for i := 0; i < simulator.SequenceLength; i++ {
		var ok bool
		payload, ok = feedTick(sim)
		assert.Equal(t, i == simulator.SequenceLength-1, ok)
	}

	r, ok := decodeTelemetry(payload, time.Now())
	require.True(t, ok)
	assert.GreaterOrEqual(t, r.Voltage, 240.0)
	assert.Equal(t, simulator.ActionManual, r.VoltageAction)
	assert.Equal(t, 3, r.Timestamp.UTC().Hour())
}
