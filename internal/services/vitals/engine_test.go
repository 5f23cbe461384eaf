package vitals

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"VitalSense/internal/domain/models"
	domsvc "VitalSense/internal/domain/service"
)

type fakePoint struct {
	res domsvc.PointClassification
	err error
}

func (f fakePoint) Predict(context.Context, float64, float64) (domsvc.PointClassification, error) {
	return f.res, f.err
}

type fakeSequence struct {
	mu    sync.Mutex
	calls int
	last  [][2]float64
	pred  [2]float64
	err   error
}

func (f *fakeSequence) PredictNext(_ context.Context, w [][2]float64) ([2]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = w
	return f.pred, f.err
}

type adapterFunc func(context.Context, []models.Reading) (*models.ParameterDelta, error)

func (f adapterFunc) Adapt(ctx context.Context, w []models.Reading) (*models.ParameterDelta, error) {
	return f(ctx, w)
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func unknown() models.SubjectProfile { return models.SubjectProfile{Breed: models.BreedUnknown} }

func TestEngineSustainedTemperatureRise(t *testing.T) {
	e := NewEngine("rex", DefaultConfig())
	ctx := context.Background()
	readings := [][2]float64{{38.7, 90}, {39.2, 105}, {39.8, 120}}

	var last *Result
	for i, r := range readings {
		res, err := e.Assess(ctx, r[0], r[1], unknown())
		if err != nil {
			t.Fatalf("reading %d: %v", i, err)
		}
		if i < 2 && contains(res.Assessment.Reasons, ReasonTempRise) {
			t.Fatalf("temp rise fired too early at reading %d", i)
		}
		last = res
	}
	if !contains(last.Assessment.Reasons, ReasonTempRise) {
		t.Fatalf("reasons = %v", last.Assessment.Reasons)
	}
	if last.Assessment.WindowSize != 3 || last.Assessment.Seq != 3 {
		t.Fatalf("window %d seq %d", last.Assessment.WindowSize, last.Assessment.Seq)
	}
}

func TestEngineDangerousVitalsClamped(t *testing.T) {
	e := NewEngine("rex", DefaultConfig())
	res, err := e.Assess(context.Background(), 41, 190, unknown())
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	a := res.Assessment
	if a.RiskScore != 100 || a.HealthIndex != 0 {
		t.Fatalf("score %v health %v", a.RiskScore, a.HealthIndex)
	}
	if a.RiskLevel != models.RiskCritical {
		t.Fatalf("level %s", a.RiskLevel)
	}
	if !contains(a.Reasons, ReasonDangerousTemp) || !contains(a.Reasons, ReasonDangerousHR) {
		t.Fatalf("reasons = %v", a.Reasons)
	}
	if a.RetrainEligible {
		t.Fatalf("critical reading marked retrain eligible")
	}
	if a.Baseline != DefaultBaselineStats() {
		t.Fatalf("first reading should use default baseline, got %+v", a.Baseline)
	}
}

func TestEngineBreedConditionedRange(t *testing.T) {
	ctx := context.Background()

	giant, err := NewEngine("g", DefaultConfig()).Assess(ctx, 38.5, 95, models.SubjectProfile{Breed: models.BreedGiant})
	if err != nil {
		t.Fatalf("giant: %v", err)
	}
	if !contains(giant.Assessment.Reasons, ReasonBreedHR) {
		t.Fatalf("giant reasons = %v", giant.Assessment.Reasons)
	}

	large, err := NewEngine("l", DefaultConfig()).Assess(ctx, 38.5, 95, models.SubjectProfile{Breed: models.BreedLarge})
	if err != nil {
		t.Fatalf("large: %v", err)
	}
	if contains(large.Assessment.Reasons, ReasonBreedHR) {
		t.Fatalf("large reasons = %v", large.Assessment.Reasons)
	}
}

func TestEngineConsistencyFlagNeedsTwelveReadings(t *testing.T) {
	e := NewEngine("rex", DefaultConfig())
	ctx := context.Background()
	for i := 0; i < 11; i++ {
		temp := 30.0
		if i%2 == 1 {
			temp = 42
		}
		res, err := e.Assess(ctx, temp, 80, unknown())
		if err != nil {
			t.Fatalf("assess %d: %v", i, err)
		}
		if res.Assessment.ConsistencyFlag {
			t.Fatalf("flag set after %d readings", i+1)
		}
	}
	res, err := e.Assess(ctx, 42, 80, unknown())
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if !res.Assessment.ConsistencyFlag || !contains(res.Assessment.Recommendations, AdviceProfileMismatch) {
		t.Fatalf("expected consistency flag, got %+v", res.Assessment)
	}
}

func TestEngineRejectsInvalidInput(t *testing.T) {
	e := NewEngine("rex", DefaultConfig())
	for _, r := range [][2]float64{{0, 80}, {38.5, 0}, {math.NaN(), 80}, {-3, 80}} {
		res, err := e.Assess(context.Background(), r[0], r[1], unknown())
		if !errors.Is(err, ErrRejectedInput) || res != nil {
			t.Fatalf("%v: res %v err %v", r, res, err)
		}
	}
	if e.Len() != 0 {
		t.Fatalf("rejected readings recorded: len %d", e.Len())
	}
}

func TestEngineModelFailuresDegrade(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SequenceLength = 1
	seq := &fakeSequence{err: errors.New("predictor offline")}
	e := NewEngine("rex", cfg,
		WithPointClassifier(fakePoint{err: errors.New("classifier offline")}),
		WithSequencePredictor(seq),
		WithLocalAdapter(adapterFunc(func(context.Context, []models.Reading) (*models.ParameterDelta, error) {
			panic("boom")
		})),
	)
	res, err := e.Assess(context.Background(), 38.5, 90, unknown())
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	a := res.Assessment
	for _, k := range []string{DegradedPoint, DegradedSequence, DegradedAdapter} {
		if _, ok := a.Degraded[k]; !ok {
			t.Fatalf("missing degraded key %q in %v", k, a.Degraded)
		}
	}
	if a.AnomalyProbability != 0 || res.Delta != nil {
		t.Fatalf("unexpected anomaly %v delta %v", a.AnomalyProbability, res.Delta)
	}
}

func TestEnginePointFlagAddsAnomaly(t *testing.T) {
	e := NewEngine("rex", DefaultConfig(),
		WithPointClassifier(fakePoint{res: domsvc.PointClassification{Anomalous: true, Score: 0.9}}))
	res, err := e.Assess(context.Background(), 38.5, 90, models.SubjectProfile{Breed: models.BreedMedium})
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	a := res.Assessment
	if math.Abs(a.AnomalyProbability-0.4) > 1e-9 || a.PointScore != 0.9 {
		t.Fatalf("anomaly %v point score %v", a.AnomalyProbability, a.PointScore)
	}
	if !contains(a.Reasons, ReasonAnomaly) {
		t.Fatalf("reasons = %v", a.Reasons)
	}
	if a.Degraded != nil {
		t.Fatalf("degraded = %v", a.Degraded)
	}
}

func TestEngineSequenceWarmup(t *testing.T) {
	cfg := DefaultConfig()
	seq := &fakeSequence{pred: [2]float64{38.5, 90}}
	e := NewEngine("rex", cfg, WithSequencePredictor(seq))
	ctx := context.Background()

	for i := 1; i < cfg.SequenceLength; i++ {
		res, err := e.Assess(ctx, 38.5, 90, unknown())
		if err != nil {
			t.Fatalf("assess %d: %v", i, err)
		}
		if res.Assessment.SequenceError != 0 {
			t.Fatalf("sequence error during warm-up: %v", res.Assessment.SequenceError)
		}
	}
	if seq.calls != 0 {
		t.Fatalf("predictor called %d times during warm-up", seq.calls)
	}

	res, err := e.Assess(ctx, 39.9, 90, unknown())
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if seq.calls != 1 || len(seq.last) != cfg.SequenceLength {
		t.Fatalf("calls %d input len %d", seq.calls, len(seq.last))
	}
	if seq.last[len(seq.last)-1] != [2]float64{39.9, 90} {
		t.Fatalf("input does not end with current reading: %v", seq.last[len(seq.last)-1])
	}
	// (1.4/7)^2 / 2 on the scaled temperature axis
	if math.Abs(res.Assessment.SequenceError-0.02) > 1e-9 {
		t.Fatalf("sequence error %v", res.Assessment.SequenceError)
	}
	if math.Abs(res.Assessment.AnomalyProbability-0.12) > 1e-9 {
		t.Fatalf("anomaly %v", res.Assessment.AnomalyProbability)
	}
}

func TestEngineAdapterDeltaTagged(t *testing.T) {
	e := NewEngine("rex", DefaultConfig(),
		WithLocalAdapter(NewOnlineAdapter(DefaultAdapterConfig(), DefaultConfig().Scaler)))
	ctx := context.Background()
	var res *Result
	var err error
	for i := 0; i < 10; i++ {
		res, err = e.Assess(ctx, 38.4+float64(i%3)*0.2, 85+float64(i%4), unknown())
		if err != nil {
			t.Fatalf("assess %d: %v", i, err)
		}
		if i < 9 && res.Delta != nil {
			t.Fatalf("delta before 10 readings")
		}
	}
	if res.Delta == nil || res.Delta.SubjectID != "rex" || res.Delta.Seq != 10 {
		t.Fatalf("delta = %+v", res.Delta)
	}
}

func TestEngineConcurrentAssess(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEngine("rex", cfg)
	var wg sync.WaitGroup
	seen := make(chan uint64, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Assess(context.Background(), 38.6, 88, unknown())
			if err != nil {
				t.Errorf("assess: %v", err)
				return
			}
			seen <- res.Assessment.Seq
		}()
	}
	wg.Wait()
	close(seen)

	uniq := map[uint64]bool{}
	for s := range seen {
		if uniq[s] {
			t.Fatalf("duplicate seq %d", s)
		}
		uniq[s] = true
	}
	if len(uniq) != 100 || e.Len() != cfg.WindowSize {
		t.Fatalf("seqs %d len %d", len(uniq), e.Len())
	}
}

func TestEngineReleasesLockAfterCorruptWindow(t *testing.T) {
	e := NewEngine("rex", DefaultConfig())
	if _, err := e.Assess(context.Background(), 38.6, 88, unknown()); err != nil {
		t.Fatalf("assess: %v", err)
	}
	// a reading with a stale seq breaks chronological order
	e.window.Record(models.Reading{SubjectID: "rex", Seq: 1})

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected corrupt window to panic")
			}
		}()
		_, _ = e.Assess(context.Background(), 38.6, 88, unknown())
	}()

	done := make(chan int, 1)
	go func() { done <- e.Len() }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("engine lock still held after panic")
	}
}
