package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Reader779/Microgrid/src/advisor"
	"github.com/Reader779/Microgrid/src/analysis"
	"github.com/Reader779/Microgrid/src/control"
	"github.com/Reader779/Microgrid/src/grid"
)

func newTestConsole() (*ConsoleState, *bytes.Buffer, chan OperatorAction) {
	var out bytes.Buffer
	actions := make(chan OperatorAction, 4)
	return NewConsoleState(&out, actions), &out, actions
}

func TestParseAction_OffsetIsClamped(t *testing.T) {
	a, ok, err := parseAction([]string{"offset", "voltage", "40"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ActionSetOffset, a.Kind)
	assert.Equal(t, grid.Voltage, a.Channel)
	assert.Equal(t, 25.0, a.Value)

	a, _, err = parseAction([]string{"offset", "f", "-0.46"})
	require.NoError(t, err)
	assert.Equal(t, grid.Frequency, a.Channel)
	assert.InDelta(t, -0.5, a.Value, 1e-9)

	a, _, err = parseAction([]string{"offset", "voltage", "3.4"})
	require.NoError(t, err)
	assert.Equal(t, 3.0, a.Value)
}

func TestParseAction_Errors(t *testing.T) {
	for _, parts := range [][]string{
		{"offset", "voltage"},
		{"offset", "current", "1"},
		{"offset", "voltage", "lots"},
		{"auto", "maybe"},
		{"mode", "turbo"},
	} {
		_, ok, err := parseAction(parts)
		assert.True(t, ok, "%v", parts)
		assert.Error(t, err, "%v", parts)
	}

	_, ok, err := parseAction([]string{"status"})
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestParseAction_Simple(t *testing.T) {
	a, _, _ := parseAction([]string{"auto", "off"})
	assert.Equal(t, OperatorAction{Kind: ActionSetAutoStabilize, Enabled: false}, a)

	a, _, _ = parseAction([]string{"mode", "perfect"})
	assert.Equal(t, OperatorAction{Kind: ActionSetMode, Mode: control.ModePerfect}, a)

	a, _, _ = parseAction([]string{"destabilize"})
	assert.Equal(t, ActionDestabilize, a.Kind)

	a, _, _ = parseAction([]string{"recover"})
	assert.Equal(t, ActionRecover, a.Kind)
}

func TestHandleConsoleLine_SendsActions(t *testing.T) {
	state, _, actions := newTestConsole()

	handleConsoleLine("offset frequency 0.3", state)
	a := <-actions
	assert.Equal(t, ActionSetOffset, a.Kind)
	assert.InDelta(t, 0.3, a.Value, 1e-9)
}

func TestHandleConsoleLine_StabilizeWithoutDrillSkipsPrompt(t *testing.T) {
	state, out, actions := newTestConsole()
	state.UpdateData(Snapshot{})

	handleConsoleLine("stabilize", state)

	a := <-actions
	assert.Equal(t, ActionStabilize, a.Kind)
	assert.Nil(t, a.Confirm)
	assert.NotContains(t, out.String(), confirmPrompt)
}

func TestHandleConsoleLine_StabilizeAsksForPerfectMode(t *testing.T) {
	for answer, want := range map[string]bool{"y": true, "YES": true, "": false, "n": false} {
		state, out, actions := newTestConsole()
		state.UpdateData(Snapshot{Control: control.State{Destabilized: true}})

		handleConsoleLine("stabilize", state)
		assert.Contains(t, out.String(), confirmPrompt)
		assert.Empty(t, actions)

		handleConsoleLine(answer, state)
		a := <-actions
		assert.Equal(t, ActionStabilize, a.Kind)
		require.NotNil(t, a.Confirm)
		assert.Equal(t, want, a.Confirm(), "answer %q", answer)
		assert.False(t, state.awaitConfirm)
	}
}

func TestConsoleWatch_PrintsOnlyChanges(t *testing.T) {
	state, out, _ := newTestConsole()

	handleConsoleLine("watch voltage.trend", state)
	handleConsoleLine("watch phase", state)
	handleConsoleLine("watch bogus", state)
	assert.Contains(t, out.String(), `unknown field "bogus"`)
	assert.Equal(t, []string{"phase", "voltage.trend"}, state.watches)

	out.Reset()
	snap := Snapshot{Voltage: ChannelView{Trend: analysis.Stable}}
	state.UpdateData(snap)
	assert.Contains(t, out.String(), "voltage.trend")
	assert.Contains(t, out.String(), "Stable")

	out.Reset()
	state.UpdateData(snap)
	assert.Empty(t, out.String())

	snap.Control.Destabilized = true
	snap.Phase = control.PhaseDestabilized
	state.UpdateData(snap)
	assert.Contains(t, out.String(), ansiYellow+"destabilized"+ansiReset)

	handleConsoleLine("unwatch phase", state)
	assert.Equal(t, []string{"voltage.trend"}, state.watches)
	handleConsoleLine("unwatch --all", state)
	assert.Empty(t, state.watches)
}

func TestConsoleStatus(t *testing.T) {
	state, out, _ := newTestConsole()
	handleConsoleLine("status", state)
	assert.Contains(t, out.String(), "No data received yet")

	out.Reset()
	state.UpdateData(Snapshot{
		Voltage:  ChannelView{Channel: "voltage", Unit: "V", Current: 231.2, Action: grid.ActionNone},
		Advisory: advisor.Advisory{Title: "All systems nominal"},
		Notice:   control.Notice{Severity: control.SeverityInfo, Message: "Monitoring"},
	})
	handleConsoleLine("status", state)
	assert.Contains(t, out.String(), "231.2")
	assert.Contains(t, out.String(), "All systems nominal")
	assert.Contains(t, out.String(), "[info] Monitoring")
}

func TestConsoleUnknownCommand(t *testing.T) {
	state, out, actions := newTestConsole()
	handleConsoleLine("reboot now", state)
	assert.Contains(t, out.String(), "Unknown command: reboot")
	assert.Empty(t, actions)

	out.Reset()
	handleConsoleLine("fields", state)
	assert.Contains(t, out.String(), "frequency.stability")
}
