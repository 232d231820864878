// Package analysis derives stability and trend metrics from recent telemetry.
// Everything here is a pure function of its inputs except Window and
// RollingExtremes, which own their sample buffers.
package analysis

// WindowSize is the number of samples kept per channel
const WindowSize = 20

// Window is a fixed-capacity FIFO of recent samples for one channel.
// It is backed by a ring buffer so Push never reallocates.
type Window struct {
	buf   [WindowSize]float64
	start int
	count int
}

// NewWindow creates an empty window
func NewWindow() *Window {
	return &Window{}
}

// Push appends a sample, evicting the oldest one when the window is full
func (w *Window) Push(value float64) {
	if w.count < WindowSize {
		w.buf[(w.start+w.count)%WindowSize] = value
		w.count++
		return
	}
	w.buf[w.start] = value
	w.start = (w.start + 1) % WindowSize
}

// Values returns the samples oldest first. The slice is a copy.
func (w *Window) Values() []float64 {
	out := make([]float64, w.count)
	for i := range w.count {
		out[i] = w.buf[(w.start+i)%WindowSize]
	}
	return out
}

// Last returns the most recent sample, or nominal when the window is empty
func (w *Window) Last(nominal float64) float64 {
	if w.count == 0 {
		return nominal
	}
	return w.buf[(w.start+w.count-1)%WindowSize]
}

// Len returns the number of samples held
func (w *Window) Len() int {
	return w.count
}

// Reset empties the window
func (w *Window) Reset() {
	w.start = 0
	w.count = 0
}
