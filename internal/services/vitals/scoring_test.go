package vitals

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"VitalSense/internal/domain/models"
)

func TestFuzzyTemperatureBoundaries(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{37, 0},
		{38.3, 0},
		{39.2, 1},
		{39.7, 1.5},
		{40, 1.8},
		{41, 2},
		{45, 2},
	}
	for _, c := range cases {
		if got := FuzzyTemperature(c.in); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("FuzzyTemperature(%v) = %v, want %v", c.in, got, c.want)
		}
	}
	if got := FuzzyTemperature(38.75); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("ramp midpoint = %v", got)
	}
}

func TestFuzzyHeartRate(t *testing.T) {
	if got := FuzzyHeartRate(100, 60, 140); got != 0 {
		t.Fatalf("inside = %v", got)
	}
	if got := FuzzyHeartRate(280, 60, 140); got != 1 {
		t.Fatalf("above = %v", got)
	}
	if got := FuzzyHeartRate(30, 60, 140); got != 0.5 {
		t.Fatalf("below = %v", got)
	}
	if got := FuzzyHeartRate(700, 60, 140); got != 4 {
		t.Fatalf("unbounded tail = %v", got)
	}
}

func TestBreedTable(t *testing.T) {
	if BreedRange(models.BreedGiant).Contains(95) {
		t.Fatalf("95 should be outside giant range")
	}
	if !BreedRange(models.BreedLarge).Contains(95) {
		t.Fatalf("95 should be inside large range")
	}
	if r := BreedRange("hamster"); r != (HRRange{Min: 60, Max: 140}) {
		t.Fatalf("unknown breed range %+v", r)
	}
	if ParseBreed(" Giant ") != models.BreedGiant || ParseBreed("") != models.BreedUnknown {
		t.Fatalf("ParseBreed mismatch")
	}
}

func TestFuse(t *testing.T) {
	cfg := DefaultFusionConfig()
	cases := []struct {
		name string
		out  models.AnomalyOutputs
		want float64
	}{
		{"nothing", models.AnomalyOutputs{}, 0},
		{"point only", models.AnomalyOutputs{HasPoint: true, PointFlag: true}, 0.4},
		{"point normal", models.AnomalyOutputs{HasPoint: true}, 0},
		{"sequence half", models.AnomalyOutputs{HasSequence: true, SequenceError: 0.05}, 0.3},
		{"sequence ignored when absent", models.AnomalyOutputs{SequenceError: 5}, 0},
		{"both saturated", models.AnomalyOutputs{HasPoint: true, PointFlag: true, HasSequence: true, SequenceError: 3}, 1},
	}
	for _, c := range cases {
		if got := Fuse(c.out, cfg); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestThresholdsClassify(t *testing.T) {
	th := DefaultThresholds()
	cases := map[float64]models.RiskLevel{
		0: models.RiskStable, 39.9: models.RiskStable,
		40: models.RiskWarning, 69.9: models.RiskWarning,
		70: models.RiskCritical, 100: models.RiskCritical,
	}
	for score, want := range cases {
		if got := th.Classify(score); got != want {
			t.Fatalf("Classify(%v) = %s, want %s", score, got, want)
		}
	}
}

func TestAggregateScoreBoundedAndDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	breeds := []models.BreedGroup{models.BreedSmall, models.BreedMedium, models.BreedLarge, models.BreedGiant, models.BreedUnknown}
	for i := 0; i < 2000; i++ {
		s := Signals{
			Temp:      30 + rng.Float64()*15,
			HR:        10 + rng.Float64()*400,
			Breed:     BreedRange(breeds[rng.Intn(len(breeds))]),
			ZTemp:     rng.Float64() * 6,
			ZHR:       rng.Float64() * 6,
			TrendTemp: rng.Float64()*4 - 2,
			TrendHR:   rng.Float64()*80 - 40,
			HasPoint:  rng.Intn(2) == 0,
			PointFlag: rng.Intn(2) == 0,
		}
		v1 := Aggregate(s, DefaultThresholds())
		v2 := Aggregate(s, DefaultThresholds())
		if v1.Score < 0 || v1.Score > 100 {
			t.Fatalf("score out of bounds: %v for %+v", v1.Score, s)
		}
		if v1.Score != v2.Score || v1.HealthIndex != 100-v1.Score {
			t.Fatalf("non-deterministic or bad health index: %v %v %v", v1.Score, v2.Score, v1.HealthIndex)
		}
		if len(v1.Reasons) == 0 {
			t.Fatalf("no reasons for %+v", s)
		}
	}
}

func TestAggregateStableReading(t *testing.T) {
	v := Aggregate(Signals{Temp: 38.5, HR: 90, Breed: BreedRange(models.BreedMedium)}, DefaultThresholds())
	if v.Level != models.RiskStable {
		t.Fatalf("level = %s", v.Level)
	}
	if len(v.Reasons) != 1 || v.Reasons[0] != ReasonStable {
		t.Fatalf("reasons = %v", v.Reasons)
	}
	if len(v.Recommendations) != 0 {
		t.Fatalf("recommendations = %v", v.Recommendations)
	}
}

func TestAggregatePreservesRuleOrder(t *testing.T) {
	v := Aggregate(Signals{
		Temp:  41,
		HR:    190,
		Breed: BreedRange(models.BreedUnknown),
		ZTemp: 3,
		ZHR:   3,
	}, DefaultThresholds())
	want := []string{ReasonDangerousTemp, ReasonDangerousHR, ReasonBreedHR, ReasonTempRange, ReasonTempDeviation, ReasonHRDeviation, ReasonFeverPattern}
	if len(v.Reasons) != len(want) {
		t.Fatalf("reasons = %v", v.Reasons)
	}
	for i := range want {
		if v.Reasons[i] != want[i] {
			t.Fatalf("reasons[%d] = %q, want %q", i, v.Reasons[i], want[i])
		}
	}
	recs := []string{AdviceImmediateVet, AdviceCardiacDistress, AdviceMonitor, AdviceHydrate}
	for i := range recs {
		if v.Recommendations[i] != recs[i] {
			t.Fatalf("recommendations = %v", v.Recommendations)
		}
	}
}

func TestAggregatePointGate(t *testing.T) {
	base := Signals{Temp: 38.5, HR: 90, Breed: BreedRange(models.BreedMedium)}
	flagged := base
	flagged.HasPoint, flagged.PointFlag = true, true

	v0 := Aggregate(base, DefaultThresholds())
	v1 := Aggregate(flagged, DefaultThresholds())
	if math.Abs(v1.Score-v0.Score-20) > 1e-9 {
		t.Fatalf("point gate added %v", v1.Score-v0.Score)
	}
	if v1.Reasons[len(v1.Reasons)-1] != ReasonAnomaly {
		t.Fatalf("reasons = %v", v1.Reasons)
	}
}

func TestConsistencyNeedsFullWindow(t *testing.T) {
	cfg := DefaultConsistencyConfig()
	var w []models.Reading
	for i := 1; i <= 11; i++ {
		temp := 30.0
		if i%2 == 0 {
			temp = 42
		}
		w = append(w, reading(uint64(i), temp, 80))
		if Inconsistent(w, cfg) {
			t.Fatalf("flagged with %d readings", len(w))
		}
	}
	w = append(w, reading(12, 30, 80))
	if !Inconsistent(w, cfg) {
		t.Fatalf("expected flag at 12 readings")
	}
}

func TestValidateVitals(t *testing.T) {
	bad := [][2]float64{{0, 80}, {38, 0}, {-1, 80}, {math.NaN(), 80}, {38, math.Inf(1)}}
	for _, b := range bad {
		err := ValidateVitals(b[0], b[1])
		if err == nil {
			t.Fatalf("%v accepted", b)
		}
		var ie *InputError
		if !errors.As(err, &ie) || !errors.Is(err, ErrRejectedInput) {
			t.Fatalf("%v: not an InputError: %v", b, err)
		}
	}
	if err := ValidateVitals(38.5, 90); err != nil {
		t.Fatalf("valid reading rejected: %v", err)
	}
}
