package trust

import "math"

// WindowSize is the number of signal-strength samples retained.
const WindowSize = 10

// Window is a fixed-size circular buffer of signal-strength samples
// (a dBm-like quantity). Once seeded it is always fully populated, so the
// stability computation never sees an empty window.
type Window struct {
	samples [WindowSize]float64
	next    int
	seeded  bool
}

func NewWindow() *Window {
	return &Window{}
}

// Seed fills the whole window from the source.
func (w *Window) Seed(sample func() float64) {
	for i := range w.samples {
		w.samples[i] = sample()
	}
	w.seeded = true
}

// Push overwrites the oldest sample.
func (w *Window) Push(sample float64) {
	w.samples[w.next] = sample
	w.next = (w.next + 1) % WindowSize
	w.seeded = true
}

func (w *Window) Seeded() bool {
	return w.seeded
}

func (w *Window) mean() float64 {
	var sum float64
	for _, s := range w.samples {
		sum += s
	}
	return sum / WindowSize
}

func (w *Window) stddev() float64 {
	m := w.mean()
	var sq float64
	for _, s := range w.samples {
		d := s - m
		sq += d * d
	}
	return math.Sqrt(sq / WindowSize)
}
