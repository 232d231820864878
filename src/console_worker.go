package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog/log"

	"github.com/Reader779/Microgrid/src/control"
	"github.com/Reader779/Microgrid/src/grid"
)

const (
	consolePrompt = "> "
	confirmPrompt = "Enter perfect mode? [y/N] "
)

// watchFields are the snapshot values the console can watch
var watchFields = map[string]func(Snapshot) string{
	"phase":            func(s Snapshot) string { return s.Phase.String() },
	"mode":             func(s Snapshot) string { return s.Control.Mode.String() },
	"auto":             func(s Snapshot) string { return onOff(s.Control.AutoStabilize) },
	"health":           func(s Snapshot) string { return s.Health.String() },
	"advisory":         func(s Snapshot) string { return s.Advisory.Title },
	"notice":           func(s Snapshot) string { return s.Notice.Message },
	"offset.voltage":   func(s Snapshot) string { return fmt.Sprintf("%+.0f", s.Control.VoltageOffset) },
	"offset.frequency": func(s Snapshot) string { return fmt.Sprintf("%+.1f", s.Control.FrequencyOffset) },
}

func init() {
	for _, ch := range channels {
		name := ch.String()
		view := func(s Snapshot) ChannelView { return s.View(ch) }
		watchFields[name] = func(s Snapshot) string { return formatConsoleValue(view(s).Current) }
		watchFields[name+".predicted"] = func(s Snapshot) string { return formatConsoleValue(view(s).Predicted) }
		watchFields[name+".stability"] = func(s Snapshot) string { return fmt.Sprintf("%.1f%%", view(s).Stability) }
		watchFields[name+".trend"] = func(s Snapshot) string { return view(s).Trend.String() }
		watchFields[name+".status"] = func(s Snapshot) string { return view(s).Status.String() }
		watchFields[name+".action"] = func(s Snapshot) string { return view(s).Action }
		watchFields[name+".avg"] = func(s Snapshot) string { return formatConsoleValue(view(s).Average) }
		watchFields[name+".min"] = func(s Snapshot) string { return formatConsoleValue(view(s).HourMin) }
		watchFields[name+".max"] = func(s Snapshot) string { return formatConsoleValue(view(s).HourMax) }
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// formatConsoleValue formats a float with smart precision
func formatConsoleValue(v float64) string {
	if v >= 100 || v <= -100 {
		return fmt.Sprintf("%.1f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

// ANSI color codes for highlighting changes
const (
	ansiReset  = "\033[0m"
	ansiYellow = "\033[33m"
)

// readlineWriter wraps log output to work with readline
type readlineWriter struct {
	rl *readline.Instance
}

func (w *readlineWriter) Write(p []byte) (n int, err error) {
	if w.rl != nil {
		w.rl.Clean()
	}
	n, err = os.Stderr.Write(p)
	if w.rl != nil {
		w.rl.Refresh()
	}
	return n, err
}

// Global readline writer for log output
var rlWriter = &readlineWriter{}

// ConsoleState holds the watch list and the pending confirmation
type ConsoleState struct {
	watches       []string
	headerPrinted bool
	columnWidths  []int
	latest        *Snapshot
	rl            *readline.Instance
	out           io.Writer
	prevValues    map[string]string

	actions      chan<- OperatorAction
	awaitConfirm bool
}

// NewConsoleState creates a console writing to out and sending actions
func NewConsoleState(out io.Writer, actions chan<- OperatorAction) *ConsoleState {
	return &ConsoleState{
		out:        out,
		actions:    actions,
		prevValues: make(map[string]string),
	}
}

// SetReadline sets the readline instance for proper output handling
func (s *ConsoleState) SetReadline(rl *readline.Instance) {
	s.rl = rl
}

// print outputs a line, handling readline prompt properly
func (s *ConsoleState) print(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if s.rl != nil {
		s.rl.Clean()
		_, _ = fmt.Fprintln(s.out, line)
		s.rl.Refresh()
	} else {
		_, _ = fmt.Fprintln(s.out, line)
	}
}

func (s *ConsoleState) setPrompt(prompt string) {
	if s.rl != nil {
		s.rl.SetPrompt(prompt)
		s.rl.Refresh()
	}
}

// AddWatch adds a field and re-sorts the list
func (s *ConsoleState) AddWatch(field string) error {
	if _, ok := watchFields[field]; !ok {
		return fmt.Errorf("unknown field %q (try 'fields')", field)
	}
	if slices.Contains(s.watches, field) {
		s.print("Already watching: %s", field)
		return nil
	}
	s.watches = append(s.watches, field)
	sort.Strings(s.watches)
	s.headerPrinted = false
	s.print("Watching: %s", field)
	return nil
}

// RemoveWatch removes a watched field
func (s *ConsoleState) RemoveWatch(field string) bool {
	i := slices.Index(s.watches, field)
	if i < 0 {
		s.print("No watch found for: %s", field)
		return false
	}
	s.watches = slices.Delete(s.watches, i, i+1)
	s.headerPrinted = false
	s.print("Unwatched: %s", field)
	return true
}

// RemoveAll removes all watches
func (s *ConsoleState) RemoveAll() {
	s.watches = s.watches[:0]
	s.headerPrinted = false
	s.print("All watches removed")
}

// UpdateData stores the latest snapshot and prints a row for watched fields
func (s *ConsoleState) UpdateData(snap Snapshot) {
	s.latest = &snap
	if len(s.watches) > 0 {
		s.PrintRow(snap)
	}
}

// ListFields prints the watchable fields
func (s *ConsoleState) ListFields() {
	names := make([]string, 0, len(watchFields))
	for name := range watchFields {
		names = append(names, name)
	}
	sort.Strings(names)

	s.print("Watchable fields (%d):", len(names))
	for _, name := range names {
		value := "-"
		if s.latest != nil {
			value = watchFields[name](*s.latest)
		}
		s.print("  %-20s %s", name, value)
	}
}

// PrintHeader prints the column headers
func (s *ConsoleState) PrintHeader() {
	if len(s.watches) == 0 {
		return
	}

	s.columnWidths = make([]int, len(s.watches))
	parts := make([]string, 0, len(s.watches))
	for i, w := range s.watches {
		s.columnWidths[i] = len(w)
		parts = append(parts, fmt.Sprintf("%*s", s.columnWidths[i], w))
	}
	s.print("%s", strings.Join(parts, " | "))
	s.headerPrinted = true
	s.prevValues = make(map[string]string)
}

// PrintRow prints the watched values, only if at least one changed
func (s *ConsoleState) PrintRow(snap Snapshot) {
	if len(s.watches) == 0 {
		return
	}
	if !s.headerPrinted {
		s.PrintHeader()
	}

	parts := make([]string, 0, len(s.watches))
	anyChanged := false
	newValues := make(map[string]string, len(s.watches))

	for i, w := range s.watches {
		value := watchFields[w](snap)
		newValues[w] = value

		width := s.columnWidths[i]
		if len(value) > width {
			width = len(value)
			s.columnWidths[i] = width
		}

		prevValue, hasPrev := s.prevValues[w]
		if !hasPrev || prevValue != value {
			anyChanged = true
			parts = append(parts, fmt.Sprintf("%s%*s%s", ansiYellow, width, value, ansiReset))
		} else {
			parts = append(parts, fmt.Sprintf("%*s", width, value))
		}
	}

	if anyChanged {
		s.print("%s", strings.Join(parts, " | "))
		s.prevValues = newValues
	}
}

// PrintStatus prints the full view of the latest snapshot
func (s *ConsoleState) PrintStatus() {
	if s.latest == nil {
		s.print("No data received yet")
		return
	}
	snap := *s.latest

	for _, ch := range channels {
		v := snap.View(ch)
		s.print("%-9s %8s %-2s (pred %s) %-7s stability %5.1f%%  trend %s (%d%%)  %s [%s]",
			v.Channel, formatConsoleValue(v.Current), v.Unit, formatConsoleValue(v.Predicted),
			v.Status, v.Stability, v.Trend, v.TrendPercent, v.Action, v.Badge)
	}
	s.print("Control   auto=%s mode=%s phase=%s offsets %+.0fV %+.1fHz",
		onOff(snap.Control.AutoStabilize), snap.Control.Mode, snap.Phase,
		snap.Control.VoltageOffset, snap.Control.FrequencyOffset)
	s.print("Health    %s (avg %s V, %s Hz; hour %s-%s V)",
		snap.Health, formatConsoleValue(snap.Voltage.Average), formatConsoleValue(snap.Frequency.Average),
		formatConsoleValue(snap.Voltage.HourMin), formatConsoleValue(snap.Voltage.HourMax))
	s.print("Advisory  [%s] %s: %s", snap.Advisory.Severity, snap.Advisory.Title, snap.Advisory.Message)
	s.print("Notice    [%s] %s", snap.Notice.Severity, snap.Notice.Message)
}

func (s *ConsoleState) send(a OperatorAction) {
	s.actions <- a
}

// parseAction turns an action command into an OperatorAction. ok is false
// for commands that are not actions.
func parseAction(parts []string) (action OperatorAction, ok bool, err error) {
	switch parts[0] {
	case "offset":
		if len(parts) != 3 {
			return action, true, errors.New("usage: offset voltage|frequency <value>")
		}
		channel, valid := grid.ParseChannel(parts[1])
		if !valid {
			return action, true, fmt.Errorf("unknown channel %q", parts[1])
		}
		value, perr := strconv.ParseFloat(parts[2], 64)
		if perr != nil {
			return action, true, fmt.Errorf("invalid offset %q", parts[2])
		}
		clamped := grid.SpecFor(channel).ClampOffset(value)
		return OperatorAction{Kind: ActionSetOffset, Channel: channel, Value: clamped}, true, nil

	case "auto":
		if len(parts) != 2 || (parts[1] != "on" && parts[1] != "off") {
			return action, true, errors.New("usage: auto on|off")
		}
		return OperatorAction{Kind: ActionSetAutoStabilize, Enabled: parts[1] == "on"}, true, nil

	case "mode":
		if len(parts) != 2 {
			return action, true, errors.New("usage: mode perfect|standard")
		}
		mode, valid := control.ParseMode(parts[1])
		if !valid {
			return action, true, fmt.Errorf("unknown mode %q", parts[1])
		}
		return OperatorAction{Kind: ActionSetMode, Mode: mode}, true, nil

	case "destabilize":
		return OperatorAction{Kind: ActionDestabilize}, true, nil

	case "recover":
		return OperatorAction{Kind: ActionRecover}, true, nil
	}
	return action, false, nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// handleConsoleLine processes one line of input. While a perfect-mode
// question is open the line is its answer.
func handleConsoleLine(line string, state *ConsoleState) {
	if state.awaitConfirm {
		state.awaitConfirm = false
		state.setPrompt(consolePrompt)
		answer := isYes(line)
		state.send(OperatorAction{Kind: ActionStabilize, Confirm: func() bool { return answer }})
		return
	}

	parts := strings.Fields(line)
	if len(parts) == 0 {
		return
	}

	action, isAction, err := parseAction(parts)
	if err != nil {
		state.print("Error: %v", err)
		return
	}
	if isAction {
		state.send(action)
		return
	}

	switch parts[0] {
	case "stabilize":
		if state.latest != nil && state.latest.Control.Destabilized {
			state.awaitConfirm = true
			state.setPrompt(confirmPrompt)
			if state.rl == nil {
				state.print(confirmPrompt)
			}
			return
		}
		// Not destabilized: the machine reports the no-op
		state.send(OperatorAction{Kind: ActionStabilize})

	case "status":
		state.PrintStatus()

	case "watch":
		if len(parts) != 2 {
			state.print("Usage: watch <field>")
			return
		}
		if err := state.AddWatch(parts[1]); err != nil {
			state.print("Error: %v", err)
		}

	case "unwatch":
		if len(parts) != 2 {
			state.print("Usage: unwatch <field> | unwatch --all")
			return
		}
		if parts[1] == "--all" {
			state.RemoveAll()
			return
		}
		state.RemoveWatch(parts[1])

	case "fields":
		state.ListFields()

	case "help":
		state.print("Commands:")
		state.print("  offset voltage|frequency <value> - Set a manual offset (V: -25..25, Hz: -1..1)")
		state.print("  auto on|off                      - Toggle auto-stabilization")
		state.print("  mode perfect|standard            - Switch stabilization mode")
		state.print("  destabilize                      - Start a destabilization drill")
		state.print("  recover                          - Correct to nominal and let the grid settle")
		state.print("  stabilize                        - Correct at once, optionally entering perfect mode")
		state.print("  status                           - Show the current view")
		state.print("  watch <field>                    - Print a row whenever the field changes")
		state.print("  unwatch <field> | --all          - Remove watches")
		state.print("  fields                           - List watchable fields")
		state.print("  help                             - Show this help")

	default:
		state.print("Unknown command: %s (try 'help')", parts[0])
	}
}

// readlineLoop runs the readline loop, sending lines to the channel
func readlineLoop(
	ctx context.Context,
	cancel context.CancelFunc,
	rl *readline.Instance,
	lineChan chan<- string,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			cancel() // Ctrl+C pressed, shutdown the app
			return
		}
		if err != nil {
			return // EOF or other error
		}
		lineChan <- strings.TrimSpace(line)
	}
}

// getHistoryFilePath returns the path for the console history file
func getHistoryFilePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "" // No history if we can't find home
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	gridwatchCache := filepath.Join(cacheDir, "gridwatch")
	_ = os.MkdirAll(gridwatchCache, 0750)
	return filepath.Join(gridwatchCache, "console_history")
}

// consoleWorker is the interactive operator console
func consoleWorker(
	ctx context.Context,
	cancel context.CancelFunc,
	snapshotChan <-chan Snapshot,
	actionChan chan<- OperatorAction,
) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      consolePrompt,
		HistoryFile: getHistoryFilePath(),
	})
	if err != nil {
		log.Error().Err(err).Msg("Console: readline init failed")
		return
	}
	defer func() {
		_ = rl.Close()
		rlWriter.rl = nil
	}()

	// Log output goes through the readline-aware writer
	rlWriter.rl = rl

	log.Info().Msg("Console started (type 'help' for commands)")

	lineChan := make(chan string, 10)
	state := NewConsoleState(rl.Stdout(), actionChan)
	state.SetReadline(rl)

	go readlineLoop(ctx, cancel, rl, lineChan)

	for {
		select {
		case line := <-lineChan:
			handleConsoleLine(line, state)
		case snap := <-snapshotChan:
			state.UpdateData(snap)
		case <-ctx.Done():
			log.Info().Msg("Console stopped")
			return
		}
	}
}
