package resource

import "time"

// Window is the sender's additive-increase/multiplicative-decrease part
// count (spec.md §4.8 "flow-control window"): grown by one part whenever a
// batch is fully accommodated without a follow-up REQ, halved the moment a
// REQ reveals gaps.
type Window struct {
	size int
	min  int
	max  int
}

// defaultWindowMin/Max bound how aggressively the window can shrink or
// grow; the spec leaves exact bounds unspecified, so these mirror typical
// TCP-like defaults scaled to part counts rather than bytes.
const (
	defaultWindowMin = 1
	defaultWindowMax = 64
)

// NewWindow seeds a window from an RTT estimate: a higher RTT starts more
// conservatively, since a full window's worth of parts in flight costs more
// to retransmit if it's wrong.
func NewWindow(rtt time.Duration) *Window {
	size := 8
	switch {
	case rtt <= 0:
		size = 4
	case rtt > 2*time.Second:
		size = 2
	case rtt > 500*time.Millisecond:
		size = 4
	}
	return &Window{size: size, min: defaultWindowMin, max: defaultWindowMax}
}

// Size returns the current number of parts the sender may have in flight.
func (w *Window) Size() int { return w.size }

// Grow additively increases the window by one part, capped at max.
func (w *Window) Grow() {
	if w.size < w.max {
		w.size++
	}
}

// Shrink multiplicatively halves the window, floored at min.
func (w *Window) Shrink() {
	w.size /= 2
	if w.size < w.min {
		w.size = w.min
	}
}
