package vitals

import (
	"fmt"

	"VitalSense/internal/domain/models"
)

// Window is the bounded FIFO history of one subject. It is not safe for
// concurrent use; Engine guards it with its own lock.
type Window struct {
	buf  []models.Reading
	head int // index of the oldest reading
	size int
}

// NewWindow creates a window with a fixed capacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		panic(fmt.Sprintf("vitals: invalid window capacity %d", capacity))
	}
	return &Window{buf: make([]models.Reading, capacity)}
}

// Cap returns the fixed capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Len returns the number of readings held.
func (w *Window) Len() int { return w.size }

// Record appends r, evicting the oldest reading once at capacity.
func (w *Window) Record(r models.Reading) {
	if w.size < len(w.buf) {
		w.buf[(w.head+w.size)%len(w.buf)] = r
		w.size++
		return
	}
	w.buf[w.head] = r
	w.head = (w.head + 1) % len(w.buf)
}

// Snapshot copies the window contents in chronological order.
// A window whose sequence numbers are not strictly increasing is corrupted
// and causes a panic.
func (w *Window) Snapshot() []models.Reading {
	if w.size > len(w.buf) {
		panic(fmt.Sprintf("vitals: window size %d exceeds capacity %d", w.size, len(w.buf)))
	}
	out := make([]models.Reading, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	for i := 1; i < len(out); i++ {
		if out[i].Seq <= out[i-1].Seq {
			panic(fmt.Sprintf("vitals: window out of order at %d (seq %d after %d)", i, out[i].Seq, out[i-1].Seq))
		}
	}
	return out
}
