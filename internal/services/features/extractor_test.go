package features

import (
	"math"
	"testing"

	"VitalSense/internal/domain/models"
)

func TestMeanStdPopulation(t *testing.T) {
	mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Fatalf("mean = %v, want 5", mean)
	}
	if std != 2 {
		t.Fatalf("std = %v, want 2", std)
	}
}

func TestMeanStdEmpty(t *testing.T) {
	mean, std := MeanStd(nil)
	if mean != 0 || std != 0 {
		t.Fatalf("expected zeros, got %v %v", mean, std)
	}
}

func TestRange(t *testing.T) {
	if got := Range([]float64{38.5, 30.1, 39.0, 40.2}); math.Abs(got-10.1) > 1e-9 {
		t.Fatalf("range = %v", got)
	}
	if Range(nil) != 0 {
		t.Fatalf("expected 0 for empty")
	}
}

func TestScalerRoundTrip(t *testing.T) {
	s := DefaultScaler()
	v := [2]float64{38.5, 85}
	got := s.Inverse(s.Transform(v))
	if math.Abs(got[0]-v[0]) > 1e-9 || math.Abs(got[1]-v[1]) > 1e-9 {
		t.Fatalf("round trip mismatch: %v", got)
	}
	lo := s.Transform([2]float64{s.TempMin, s.HRMin})
	if lo[0] != 0 || lo[1] != 0 {
		t.Fatalf("expected lower bounds to scale to 0, got %v", lo)
	}
}

func TestMeanSquaredError(t *testing.T) {
	if got := MeanSquaredError([2]float64{0.5, 0.5}, [2]float64{0.5, 0.5}); got != 0 {
		t.Fatalf("identical vectors: %v", got)
	}
	if got := MeanSquaredError([2]float64{0, 0}, [2]float64{1, 1}); got != 1 {
		t.Fatalf("mse = %v, want 1", got)
	}
}

func TestVectorsKeepsOrder(t *testing.T) {
	rs := []models.Reading{{Temperature: 38.1, HeartRate: 80}, {Temperature: 38.4, HeartRate: 92}}
	vs := Vectors(rs)
	if len(vs) != 2 || vs[1] != [2]float64{38.4, 92} {
		t.Fatalf("unexpected vectors %v", vs)
	}
	if ts := Temperatures(rs); ts[0] != 38.1 {
		t.Fatalf("unexpected temperatures %v", ts)
	}
	if hs := HeartRates(rs); hs[1] != 92 {
		t.Fatalf("unexpected heart rates %v", hs)
	}
}
