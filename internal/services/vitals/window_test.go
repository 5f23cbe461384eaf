package vitals

import (
	"testing"

	"VitalSense/internal/domain/models"
)

func reading(seq uint64, temp, hr float64) models.Reading {
	return models.Reading{SubjectID: "s1", Seq: seq, Temperature: temp, HeartRate: hr}
}

func TestWindowEvictsOldestFirst(t *testing.T) {
	for _, capacity := range []int{1, 3, 12} {
		w := NewWindow(capacity)
		total := capacity + 7
		for i := 1; i <= total; i++ {
			w.Record(reading(uint64(i), 38, 80))
			if w.Len() > capacity {
				t.Fatalf("cap %d: len %d after %d records", capacity, w.Len(), i)
			}
		}
		snap := w.Snapshot()
		if len(snap) != capacity {
			t.Fatalf("cap %d: snapshot len %d", capacity, len(snap))
		}
		for i, r := range snap {
			want := uint64(total - capacity + 1 + i)
			if r.Seq != want {
				t.Fatalf("cap %d: snap[%d].Seq = %d, want %d", capacity, i, r.Seq, want)
			}
		}
	}
}

func TestWindowSnapshotIsCopy(t *testing.T) {
	w := NewWindow(3)
	w.Record(reading(1, 38, 80))
	snap := w.Snapshot()
	snap[0].Temperature = 99
	if got := w.Snapshot()[0].Temperature; got != 38 {
		t.Fatalf("window mutated through snapshot: %v", got)
	}
}

func TestWindowCorruptionPanics(t *testing.T) {
	mustPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		fn()
	}

	mustPanic("zero capacity", func() { NewWindow(0) })
	mustPanic("oversized", func() {
		w := NewWindow(2)
		w.size = 5
		w.Snapshot()
	})
	mustPanic("out of order", func() {
		w := NewWindow(3)
		w.Record(reading(2, 38, 80))
		w.Record(reading(1, 38, 80))
		w.Snapshot()
	})
}
