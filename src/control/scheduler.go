package control

import (
	"sort"
	"time"
)

// TimerKey names a scheduled callback. Scheduling a key that is already
// pending replaces it.
type TimerKey string

const (
	TimerDebounce      TimerKey = "debounce"
	TimerDrillCooldown TimerKey = "drill-cooldown"
	TimerSettle        TimerKey = "settle"
	TimerQuiescent     TimerKey = "quiescent"
)

// Scheduler runs callbacks after a delay on the caller's thread of control
type Scheduler interface {
	// ScheduleOnce runs fn after delay, cancelling any pending callback for key
	ScheduleOnce(key TimerKey, delay time.Duration, fn func())
	// Cancel drops a pending callback for key, if any
	Cancel(key TimerKey)
}

// Firing is delivered by LoopScheduler when a timer expires. The owning loop
// passes it back to Fire so the callback runs on the loop goroutine.
type Firing struct {
	key TimerKey
	gen uint64
}

type loopEntry struct {
	gen   uint64
	timer *time.Timer
	fn    func()
}

// LoopScheduler arms real timers but never runs callbacks itself: expiries are
// posted to C and executed by Fire from the owning select loop. A firing that
// has been superseded by a later ScheduleOnce or Cancel is ignored, so stale
// timers can never act on newer data.
type LoopScheduler struct {
	c       chan Firing
	gen     uint64
	pending map[TimerKey]loopEntry
}

// NewLoopScheduler creates a scheduler whose firings are buffered on C
func NewLoopScheduler() *LoopScheduler {
	return &LoopScheduler{
		c:       make(chan Firing, 16),
		pending: make(map[TimerKey]loopEntry),
	}
}

// C returns the channel the owning loop must drain
func (s *LoopScheduler) C() <-chan Firing {
	return s.c
}

// ScheduleOnce implements Scheduler
func (s *LoopScheduler) ScheduleOnce(key TimerKey, delay time.Duration, fn func()) {
	s.Cancel(key)
	s.gen++
	f := Firing{key: key, gen: s.gen}
	s.pending[key] = loopEntry{
		gen: s.gen,
		fn:  fn,
		timer: time.AfterFunc(delay, func() {
			s.c <- f
		}),
	}
}

// Cancel implements Scheduler
func (s *LoopScheduler) Cancel(key TimerKey) {
	if e, ok := s.pending[key]; ok {
		e.timer.Stop()
		delete(s.pending, key)
	}
}

// Fire runs the callback for a firing if it is still current
func (s *LoopScheduler) Fire(f Firing) {
	e, ok := s.pending[f.key]
	if !ok || e.gen != f.gen {
		return
	}
	delete(s.pending, f.key)
	e.fn()
}

// Stop cancels every pending timer
func (s *LoopScheduler) Stop() {
	for key := range s.pending {
		s.Cancel(key)
	}
}

type manualEntry struct {
	due time.Duration
	seq uint64
	fn  func()
}

// ManualScheduler is a Scheduler driven by Advance instead of wall-clock time
type ManualScheduler struct {
	now     time.Duration
	seq     uint64
	pending map[TimerKey]manualEntry
}

// NewManualScheduler creates a scheduler at time zero
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{pending: make(map[TimerKey]manualEntry)}
}

// ScheduleOnce implements Scheduler
func (s *ManualScheduler) ScheduleOnce(key TimerKey, delay time.Duration, fn func()) {
	s.seq++
	s.pending[key] = manualEntry{due: s.now + delay, seq: s.seq, fn: fn}
}

// Cancel implements Scheduler
func (s *ManualScheduler) Cancel(key TimerKey) {
	delete(s.pending, key)
}

// Pending reports whether a callback for key is scheduled
func (s *ManualScheduler) Pending(key TimerKey) bool {
	_, ok := s.pending[key]
	return ok
}

// Advance moves time forward, running due callbacks in due order. Callbacks
// may schedule further callbacks; those run too if they fall within d.
func (s *ManualScheduler) Advance(d time.Duration) {
	target := s.now + d
	for {
		key, e, ok := s.next()
		if !ok || e.due > target {
			break
		}
		delete(s.pending, key)
		s.now = e.due
		e.fn()
	}
	s.now = target
}

func (s *ManualScheduler) next() (TimerKey, manualEntry, bool) {
	if len(s.pending) == 0 {
		return "", manualEntry{}, false
	}
	keys := make([]TimerKey, 0, len(s.pending))
	for k := range s.pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := s.pending[keys[i]], s.pending[keys[j]]
		if a.due != b.due {
			return a.due < b.due
		}
		return a.seq < b.seq
	})
	return keys[0], s.pending[keys[0]], true
}
