package vitals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"VitalSense/internal/domain/models"
	domsvc "VitalSense/internal/domain/service"
	"VitalSense/internal/services/features"
	"VitalSense/pkg/logger"
)

// Config holds the engine calibration shared by all subjects.
type Config struct {
	WindowSize     int                   `yaml:"window_size" default:"12"`
	SequenceLength int                   `yaml:"sequence_length" default:"12"`
	Baseline       BaselineConfig        `yaml:"baseline"`
	Fusion         FusionConfig          `yaml:"fusion"`
	Thresholds     Thresholds            `yaml:"thresholds"`
	Consistency    ConsistencyConfig     `yaml:"consistency"`
	Adapter        AdapterConfig         `yaml:"adapter"`
	Scaler         features.MinMaxScaler `yaml:"scaler"`
}

func DefaultConfig() Config {
	return Config{
		WindowSize:     12,
		SequenceLength: 12,
		Baseline:       DefaultBaselineConfig(),
		Fusion:         DefaultFusionConfig(),
		Thresholds:     DefaultThresholds(),
		Consistency:    DefaultConsistencyConfig(),
		Adapter:        DefaultAdapterConfig(),
		Scaler:         features.DefaultScaler(),
	}
}

// Degraded-mode keys reported on an assessment.
const (
	DegradedPoint    = "point_classifier"
	DegradedSequence = "sequence_predictor"
	DegradedAdapter  = "local_adapter"
)

type Option func(*Engine)

func WithPointClassifier(c domsvc.PointAnomalyClassifier) Option {
	return func(e *Engine) { e.point = c }
}

func WithSequencePredictor(p domsvc.SequencePredictor) Option {
	return func(e *Engine) { e.sequence = p }
}

func WithLocalAdapter(a domsvc.LocalAdapter) Option {
	return func(e *Engine) { e.adapter = a }
}

func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.l = l }
}

// Engine assesses the reading stream of a single subject. Calls to Assess
// may come from several goroutines; the window is only locked for the
// append and snapshot.
type Engine struct {
	subjectID string
	cfg       Config

	mu     sync.Mutex
	window *Window
	seq    uint64

	adaptMu sync.Mutex

	point    domsvc.PointAnomalyClassifier
	sequence domsvc.SequencePredictor
	adapter  domsvc.LocalAdapter
	l        *logger.Logger
}

// Result is one assessment plus the optional adaptation delta.
type Result struct {
	Assessment *models.RiskAssessment
	Delta      *models.ParameterDelta
}

func NewEngine(subjectID string, cfg Config, opts ...Option) *Engine {
	if cfg.SequenceLength <= 0 {
		cfg.SequenceLength = cfg.WindowSize
	}
	e := &Engine{
		subjectID: subjectID,
		cfg:       cfg,
		window:    NewWindow(cfg.WindowSize),
		adapter:   NoopAdapter{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) SubjectID() string { return e.subjectID }

// Len returns the number of readings currently held.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.window.Len()
}

// Assess validates and records one reading, then returns a fresh assessment.
// Rejected input returns an error wrapping ErrRejectedInput and leaves the
// window untouched. Model failures never fail the call; they are listed in
// Assessment.Degraded.
func (e *Engine) Assess(ctx context.Context, temperature, heartRate float64, profile models.SubjectProfile) (*Result, error) {
	if err := ValidateVitals(temperature, heartRate); err != nil {
		return nil, err
	}

	now := time.Now()
	current, snap := e.record(temperature, heartRate, now)

	base := Baseline(snap, e.cfg.Baseline)
	zTemp := Deviation(temperature, base.MeanTemp, base.StdTemp)
	zHR := Deviation(heartRate, base.MeanHR, base.StdHR)
	trendTemp := Trend(features.Temperatures(snap))
	trendHR := Trend(features.HeartRates(snap))

	out, degraded := e.infer(ctx, current, snap)
	anomaly := Fuse(out, e.cfg.Fusion)

	breed := profile.Breed
	if breed == "" {
		breed = models.BreedUnknown
	}
	verdict := Aggregate(Signals{
		Temp:      temperature,
		HR:        heartRate,
		Breed:     BreedRange(breed),
		ZTemp:     zTemp,
		ZHR:       zHR,
		TrendTemp: trendTemp,
		TrendHR:   trendHR,
		HasPoint:  out.HasPoint,
		PointFlag: out.PointFlag,
		Anomaly:   anomaly,
	}, e.cfg.Thresholds)

	inconsistent := Inconsistent(snap, e.cfg.Consistency)
	if inconsistent {
		verdict.Recommendations = append(verdict.Recommendations, AdviceProfileMismatch)
	}

	a := &models.RiskAssessment{
		ID:                 uuid.NewString(),
		SubjectID:          e.subjectID,
		Seq:                current.Seq,
		Temperature:        temperature,
		HeartRate:          heartRate,
		Breed:              breed,
		RiskScore:          verdict.Score,
		HealthIndex:        verdict.HealthIndex,
		RiskLevel:          verdict.Level,
		Reasons:            verdict.Reasons,
		Recommendations:    verdict.Recommendations,
		AnomalyProbability: anomaly,
		ConsistencyFlag:    inconsistent,
		Baseline:           base,
		ZTemp:              zTemp,
		ZHR:                zHR,
		TrendTemp:          trendTemp,
		TrendHR:            trendHR,
		PointScore:         out.PointScore,
		SequenceError:      out.SequenceError,
		WindowSize:         len(snap),
		RetrainEligible:    verdict.Score < retrainMaxScore,
		AssessedAt:         now,
	}

	delta, err := e.adapt(ctx, snap)
	if err != nil {
		degraded[DegradedAdapter] = err.Error()
	}
	if delta != nil {
		delta.SubjectID = e.subjectID
		delta.Seq = current.Seq
	}
	if len(degraded) > 0 {
		a.Degraded = degraded
	}
	return &Result{Assessment: a, Delta: delta}, nil
}

// infer runs the external models concurrently on an immutable snapshot.
// record appends the reading and snapshots the window under the lock.
func (e *Engine) record(temperature, heartRate float64, at time.Time) (models.Reading, []models.Reading) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	current := models.Reading{
		SubjectID:   e.subjectID,
		Seq:         e.seq,
		Temperature: temperature,
		HeartRate:   heartRate,
		ReceivedAt:  at,
	}
	e.window.Record(current)
	return current, e.window.Snapshot()
}

func (e *Engine) infer(ctx context.Context, current models.Reading, snap []models.Reading) (models.AnomalyOutputs, map[string]string) {
	var (
		out      models.AnomalyOutputs
		degraded = map[string]string{}
		mu       sync.Mutex
	)
	fail := func(key string, err error) {
		mu.Lock()
		degraded[key] = err.Error()
		mu.Unlock()
		if e.l != nil {
			e.l.Warn("model inference failed",
				logger.String("subject_id", e.subjectID),
				logger.String("model", key),
				logger.Error(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if e.point != nil {
		g.Go(func() error {
			pc, err := e.point.Predict(gctx, current.Temperature, current.HeartRate)
			if err != nil {
				fail(DegradedPoint, err)
				return nil
			}
			mu.Lock()
			out.HasPoint, out.PointFlag, out.PointScore = true, pc.Anomalous, pc.Score
			mu.Unlock()
			return nil
		})
	}
	if e.sequence != nil && len(snap) >= e.cfg.SequenceLength {
		input := features.Vectors(snap[len(snap)-e.cfg.SequenceLength:])
		g.Go(func() error {
			pred, err := e.sequence.PredictNext(gctx, input)
			if err != nil {
				fail(DegradedSequence, err)
				return nil
			}
			actual := e.cfg.Scaler.Transform([2]float64{current.Temperature, current.HeartRate})
			mse := features.MeanSquaredError(e.cfg.Scaler.Transform(pred), actual)
			mu.Lock()
			out.HasSequence, out.SequenceError = true, mse
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out, degraded
}

// adapt is best effort; a panicking adapter is reported as an error.
func (e *Engine) adapt(ctx context.Context, snap []models.Reading) (delta *models.ParameterDelta, err error) {
	if e.adapter == nil {
		return nil, nil
	}
	e.adaptMu.Lock()
	defer e.adaptMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			delta, err = nil, fmt.Errorf("adapter panic: %v", r)
		}
		if err != nil && e.l != nil {
			e.l.Warn("local adaptation failed",
				logger.String("subject_id", e.subjectID),
				logger.Error(err))
		}
	}()
	return e.adapter.Adapt(ctx, snap)
}
