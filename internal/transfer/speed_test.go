package transfer

import (
	"testing"
	"time"
)

func TestSpeedWindowRate(t *testing.T) {
	now := time.Unix(1000, 0)
	w := newSpeedWindow(2*time.Second, func() time.Time { return now })

	w.add(1000)
	w.add(3000)

	// 4000 bytes over a 2s window.
	if got := w.rate(); got != 2000 {
		t.Errorf("expected 2000 B/s, got %f", got)
	}
}

func TestSpeedWindowPrunesOldSamples(t *testing.T) {
	now := time.Unix(1000, 0)
	w := newSpeedWindow(2*time.Second, func() time.Time { return now })

	w.add(4000)
	now = now.Add(3 * time.Second)
	w.add(1000)

	if got := w.rate(); got != 500 {
		t.Errorf("expected 500 B/s after pruning, got %f", got)
	}
}

func TestSpeedWindowEmpty(t *testing.T) {
	w := newSpeedWindow(2*time.Second, nil)
	if got := w.rate(); got != 0 {
		t.Errorf("expected 0 for empty window, got %f", got)
	}
}
