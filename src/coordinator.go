package main

import (
	"fmt"
	"time"

	"github.com/Reader779/Microgrid/src/advisor"
	"github.com/Reader779/Microgrid/src/analysis"
	"github.com/Reader779/Microgrid/src/control"
	"github.com/Reader779/Microgrid/src/grid"
)

// ActionKind identifies an operator action
type ActionKind int

const (
	ActionSetOffset ActionKind = iota
	ActionSetAutoStabilize
	ActionSetMode
	ActionDestabilize
	ActionRecover
	ActionStabilize
)

func (k ActionKind) String() string {
	switch k {
	case ActionSetOffset:
		return "set_offset"
	case ActionSetAutoStabilize:
		return "set_auto_stabilize"
	case ActionSetMode:
		return "set_mode"
	case ActionDestabilize:
		return "destabilize"
	case ActionRecover:
		return "recover"
	case ActionStabilize:
		return "stabilize"
	default:
		return "unknown"
	}
}

// OperatorAction is a request from the console. Only the fields relevant to
// Kind are read.
type OperatorAction struct {
	Kind    ActionKind
	Channel grid.Channel
	Value   float64
	Enabled bool
	Mode    control.Mode
	// Confirm answers the perfect-mode question for ActionStabilize
	Confirm control.ConfirmFunc
}

// ChannelView is the rendered state of one channel
type ChannelView struct {
	Channel      string         `json:"channel"`
	Unit         string         `json:"unit"`
	Current      float64        `json:"current"`
	Predicted    float64        `json:"predicted"`
	Action       string         `json:"action"`
	Badge        grid.Badge     `json:"badge"`
	Status       grid.Level     `json:"status"`
	Stability    float64        `json:"stability"`
	Trend        analysis.Trend `json:"trend"`
	TrendPercent int            `json:"trendPercent"`
	Average      float64        `json:"average"`
	HourMin      float64        `json:"hourMin"`
	HourMax      float64        `json:"hourMax"`
	Samples      int            `json:"samples"`
}

// Snapshot is the complete view model handed to every renderer
type Snapshot struct {
	Timestamp  time.Time        `json:"timestamp"`
	HasReading bool             `json:"hasReading"`
	Voltage    ChannelView      `json:"voltage"`
	Frequency  ChannelView      `json:"frequency"`
	Advisory   advisor.Advisory `json:"advisory"`
	Notice     control.Notice   `json:"notice"`
	Control    control.State    `json:"control"`
	Phase      control.Phase    `json:"phase"`
	Health     analysis.Health  `json:"health"`
}

// View returns the view of a channel
func (s Snapshot) View(c grid.Channel) ChannelView {
	if c == grid.Frequency {
		return s.Frequency
	}
	return s.Voltage
}

var channels = [...]grid.Channel{grid.Voltage, grid.Frequency}

// Coordinator owns the telemetry windows, trend memo and control machine.
// It must only be driven from a single goroutine.
type Coordinator struct {
	windows  [2]*analysis.Window
	extremes [2]*analysis.RollingExtremes
	trends   [2]analysis.Trend

	machine  *control.Machine
	sched    control.Scheduler
	debounce time.Duration

	latest     grid.Reading
	hasReading bool

	emit func(Snapshot)
	now  func() time.Time
}

// CoordinatorConfig wires a Coordinator
type CoordinatorConfig struct {
	Commander control.Commander
	Scheduler control.Scheduler
	Debounce  time.Duration
	Emit      func(Snapshot)
	Now       func() time.Time
	Machine   control.MachineConfig
}

// NewCoordinator creates a coordinator with empty windows and every trend
// reporting InsufficientData
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	c := &Coordinator{
		sched:    cfg.Scheduler,
		debounce: cfg.Debounce,
		emit:     cfg.Emit,
		now:      cfg.Now,
	}
	if c.now == nil {
		c.now = time.Now
	}
	for _, ch := range channels {
		c.windows[ch] = analysis.NewWindow()
		c.extremes[ch] = analysis.NewRollingExtremes()
		c.trends[ch] = analysis.InsufficientData
	}

	mc := cfg.Machine
	mc.Commander = cfg.Commander
	mc.Scheduler = cfg.Scheduler
	mc.OnChange = c.publish
	c.machine = control.NewMachine(mc)
	return c
}

// HandleReading records a telemetry event. The snapshot goes out at once with
// the memoised trends; classification follows after the debounce interval.
func (c *Coordinator) HandleReading(r grid.Reading) {
	if r.Timestamp.IsZero() {
		r.Timestamp = c.now()
	}
	for _, ch := range channels {
		v := r.Value(ch)
		c.windows[ch].Push(v)
		c.extremes[ch].Update(v, r.Timestamp)
	}
	c.latest = r
	c.hasReading = true

	if c.debounce <= 0 {
		c.reclassify(false)
		c.publish()
		return
	}

	c.publish()
	c.sched.ScheduleOnce(control.TimerDebounce, c.debounce, func() {
		c.reclassify(false)
		c.publish()
	})
}

// HandleAction applies an operator action and re-renders with fresh trends
func (c *Coordinator) HandleAction(a OperatorAction) control.Notice {
	latest := c.Latest()

	var notice control.Notice
	switch a.Kind {
	case ActionSetOffset:
		spec := grid.SpecFor(a.Channel)
		notice = c.machine.SetOffset(a.Channel, spec.ClampOffset(a.Value))
	case ActionSetAutoStabilize:
		notice = c.machine.SetAutoStabilize(a.Enabled)
	case ActionSetMode:
		notice = c.machine.SetMode(a.Mode)
	case ActionDestabilize:
		notice = c.machine.Destabilize(latest)
	case ActionRecover:
		notice = c.machine.Recover(latest)
	case ActionStabilize:
		notice = c.machine.ImmediateStabilize(latest, a.Confirm)
	default:
		notice = control.Notice{Severity: control.SeverityWarning, Message: fmt.Sprintf("Unknown action %d", a.Kind)}
	}

	c.sched.Cancel(control.TimerDebounce)
	c.reclassify(false)
	c.publish()
	return notice
}

// Refresh is the periodic re-evaluation. It re-classifies only channels with
// enough samples so an empty window never erases a memoised trend.
func (c *Coordinator) Refresh() {
	c.reclassify(true)
	c.publish()
}

// Latest returns the last sample of each channel, nominal when empty
func (c *Coordinator) Latest() control.Latest {
	return control.Latest{
		Voltage:   c.windows[grid.Voltage].Last(grid.VoltageSpec.Nominal),
		Frequency: c.windows[grid.Frequency].Last(grid.FrequencySpec.Nominal),
	}
}

// State returns the control state
func (c *Coordinator) State() control.State {
	return c.machine.State()
}

// Trend returns the memoised classification of a channel
func (c *Coordinator) Trend(ch grid.Channel) analysis.Trend {
	return c.trends[ch]
}

func (c *Coordinator) reclassify(onlyWithData bool) {
	destabilized := c.machine.State().Destabilized
	for _, ch := range channels {
		w := c.windows[ch]
		if onlyWithData && w.Len() < analysis.TrendSamples {
			continue
		}
		c.trends[ch] = analysis.ClassifyTrend(w.Values(), analysis.ThresholdsFor(grid.SpecFor(ch)), destabilized)
	}
}

func (c *Coordinator) publish() {
	if c.emit != nil {
		c.emit(c.Snapshot())
	}
}

func (c *Coordinator) channelView(ch grid.Channel) ChannelView {
	spec := grid.SpecFor(ch)
	w := c.windows[ch]
	values := w.Values()
	current := w.Last(spec.Nominal)

	view := ChannelView{
		Channel:      ch.String(),
		Unit:         spec.Unit,
		Current:      current,
		Predicted:    spec.Nominal,
		Action:       grid.ActionNone,
		Status:       spec.Status(current),
		Stability:    analysis.Stability(values, spec.Nominal, spec.TolerancePercent),
		Trend:        c.trends[ch],
		TrendPercent: c.trends[ch].Percent(),
		Average:      analysis.Mean(values),
		HourMin:      c.extremes[ch].Min(),
		HourMax:      c.extremes[ch].Max(),
		Samples:      w.Len(),
	}
	if c.hasReading {
		view.Predicted = c.latest.Predicted(ch)
		view.Action = c.latest.Action(ch)
	}
	view.Badge = grid.ActionBadge(view.Action)
	return view
}

// Snapshot builds the current view model. Stability is recomputed on every
// call and never stored.
func (c *Coordinator) Snapshot() Snapshot {
	state := c.machine.State()
	voltage := c.channelView(grid.Voltage)
	frequency := c.channelView(grid.Frequency)

	ts := c.now()
	if c.hasReading {
		ts = c.latest.Timestamp
	}

	return Snapshot{
		Timestamp:  ts,
		HasReading: c.hasReading,
		Voltage:    voltage,
		Frequency:  frequency,
		Advisory:   advisor.Recommend(voltage.Stability, frequency.Stability, state, voltage.Current, frequency.Current),
		Notice:     c.machine.Notice(),
		Control:    state,
		Phase:      state.Phase(),
		Health:     analysis.SystemHealth(voltage.Stability, frequency.Stability),
	}
}
