package analysis

import (
	"math"
	"time"
)

// extremesWindow is the number of one-minute slots covered by RollingExtremes
const extremesWindow = 60

type minuteRange struct {
	lo, hi float64
}

var noSamples = minuteRange{lo: math.Inf(1), hi: math.Inf(-1)}

// RollingExtremes reports the lowest and highest sample of a channel over the
// last hour. Samples are folded into per-minute slots indexed by the absolute
// minute, so a slot older than an hour is never mistaken for a current one.
type RollingExtremes struct {
	slots   [extremesWindow]minuteRange
	last    int64 // absolute minute of the newest sample
	started bool
}

// NewRollingExtremes creates a tracker with no samples
func NewRollingExtremes() *RollingExtremes {
	r := &RollingExtremes{}
	r.clear()
	return r
}

func (r *RollingExtremes) clear() {
	for i := range r.slots {
		r.slots[i] = noSamples
	}
}

// Update records a sample taken at the given time
func (r *RollingExtremes) Update(value float64, at time.Time) {
	r.updateAt(value, at.Unix()/60)
}

func (r *RollingExtremes) updateAt(value float64, minute int64) {
	switch {
	case !r.started, minute < r.last, minute-r.last >= extremesWindow:
		// First sample, clock went backwards, or the feed was silent for an hour
		r.clear()
	case minute > r.last:
		for m := r.last + 1; m <= minute; m++ {
			r.slots[m%extremesWindow] = noSamples
		}
	}
	r.started = true
	r.last = minute

	slot := &r.slots[minute%extremesWindow]
	slot.lo = min(slot.lo, value)
	slot.hi = max(slot.hi, value)
}

// Min returns the lowest sample of the last hour, or 0 if none
func (r *RollingExtremes) Min() float64 {
	lo := math.Inf(1)
	for _, s := range r.slots {
		lo = min(lo, s.lo)
	}
	if math.IsInf(lo, 1) {
		return 0
	}
	return lo
}

// Max returns the highest sample of the last hour, or 0 if none
func (r *RollingExtremes) Max() float64 {
	hi := math.Inf(-1)
	for _, s := range r.slots {
		hi = max(hi, s.hi)
	}
	if math.IsInf(hi, -1) {
		return 0
	}
	return hi
}
