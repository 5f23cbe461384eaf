package vitals

import (
	"math"
	"testing"

	"VitalSense/internal/domain/models"
)

func TestBaselineShortWindowReturnsDefaults(t *testing.T) {
	cfg := DefaultBaselineConfig()
	want := models.BaselineStats{MeanTemp: 38.5, MeanHR: 85, StdTemp: 0.2, StdHR: 5}
	windows := [][]models.Reading{
		nil,
		{reading(1, 41, 190)},
		{reading(1, 36, 50), reading(2, 40, 160)},
	}
	for i, w := range windows {
		if got := Baseline(w, cfg); got != want {
			t.Fatalf("window %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestBaselineFloorsStd(t *testing.T) {
	w := []models.Reading{reading(1, 38.5, 80), reading(2, 38.5, 80), reading(3, 38.5, 80)}
	got := Baseline(w, DefaultBaselineConfig())
	if got.MeanTemp != 38.5 || got.MeanHR != 80 {
		t.Fatalf("unexpected means %+v", got)
	}
	if got.StdTemp != 0.1 || got.StdHR != 1 {
		t.Fatalf("std not floored: %+v", got)
	}
}

func TestBaselineComputesPopulationStd(t *testing.T) {
	w := []models.Reading{reading(1, 38, 80), reading(2, 39, 90), reading(3, 40, 100)}
	got := Baseline(w, DefaultBaselineConfig())
	if math.Abs(got.MeanTemp-39) > 1e-9 || math.Abs(got.MeanHR-90) > 1e-9 {
		t.Fatalf("means %+v", got)
	}
	if math.Abs(got.StdTemp-math.Sqrt(2.0/3.0)) > 1e-9 {
		t.Fatalf("std temp %v", got.StdTemp)
	}
}

func TestDeviationAlwaysFinite(t *testing.T) {
	for _, std := range []float64{0, -1, -1e9, math.NaN()} {
		d := Deviation(39, 38.5, std)
		if math.IsNaN(d) || math.IsInf(d, 0) {
			t.Fatalf("std %v: deviation %v not finite", std, d)
		}
	}
	if d := Deviation(40, 38, 0.5); d != 4 {
		t.Fatalf("deviation = %v, want 4", d)
	}
	if d := Deviation(36, 38, 0.5); d != 4 {
		t.Fatalf("deviation below mean = %v, want 4", d)
	}
}

func TestTrend(t *testing.T) {
	if got := Trend(nil); got != 0 {
		t.Fatalf("nil trend = %v", got)
	}
	if got := Trend([]float64{30, 45}); got != 0 {
		t.Fatalf("two-value trend = %v", got)
	}
	if got := Trend([]float64{100, 110, 95}); got != -5 {
		t.Fatalf("trend = %v, want -5", got)
	}
}
