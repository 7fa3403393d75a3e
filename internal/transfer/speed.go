package transfer

import "time"

type speedSample struct {
	at    time.Time
	bytes int64
}

// speedWindow derives transfer speed from bytes received over a trailing
// time window.
type speedWindow struct {
	window  time.Duration
	now     func() time.Time
	samples []speedSample
}

func newSpeedWindow(window time.Duration, now func() time.Time) *speedWindow {
	if window <= 0 {
		window = 2 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &speedWindow{window: window, now: now}
}

func (w *speedWindow) add(n int64) {
	w.prune()
	w.samples = append(w.samples, speedSample{at: w.now(), bytes: n})
}

// rate returns bytes per second over the trailing window.
func (w *speedWindow) rate() float64 {
	w.prune()
	var total int64
	for _, s := range w.samples {
		total += s.bytes
	}
	return float64(total) / w.window.Seconds()
}

func (w *speedWindow) prune() {
	cutoff := w.now().Add(-w.window)
	i := 0
	for i < len(w.samples) && w.samples[i].at.Before(cutoff) {
		i++
	}
	w.samples = w.samples[i:]
}
