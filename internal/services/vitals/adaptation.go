package vitals

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"VitalSense/internal/domain/models"
	domsvc "VitalSense/internal/domain/service"
	"VitalSense/internal/services/features"
)

// ErrAdaptationDiverged is returned when an update step produces
// non-finite or runaway parameters. The step is rolled back.
var ErrAdaptationDiverged = errors.New("local adaptation diverged")

// NoopAdapter never adapts.
type NoopAdapter struct{}

func (NoopAdapter) Adapt(context.Context, []models.Reading) (*models.ParameterDelta, error) {
	return nil, nil
}

// AdapterConfig controls the online next-step predictor.
type AdapterConfig struct {
	MinReadings  int     `yaml:"min_readings" default:"10"`
	LearningRate float64 `yaml:"learning_rate" default:"0.05"`
	MaxParam     float64 `yaml:"max_param" default:"1000"`
}

func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{MinReadings: 10, LearningRate: 0.05, MaxParam: 1000}
}

// OnlineAdapter keeps a per-feature linear next-step model x[t+1] = a*x[t] + b
// on scaled values and takes one gradient step per call. Only parameter
// deltas leave the adapter.
type OnlineAdapter struct {
	mu     sync.Mutex
	cfg    AdapterConfig
	scaler features.MinMaxScaler
	params [4]float64 // temp.a, temp.b, hr.a, hr.b
}

var paramNames = [4]string{"temp.a", "temp.b", "hr.a", "hr.b"}

// NewOnlineAdapter starts from the persistence model (a=1, b=0).
func NewOnlineAdapter(cfg AdapterConfig, scaler features.MinMaxScaler) *OnlineAdapter {
	return &OnlineAdapter{cfg: cfg, scaler: scaler, params: [4]float64{1, 0, 1, 0}}
}

// Params returns a copy of the current parameters.
func (a *OnlineAdapter) Params() [4]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.params
}

func (a *OnlineAdapter) Adapt(ctx context.Context, window []models.Reading) (*models.ParameterDelta, error) {
	if len(window) < a.cfg.MinReadings || len(window) < 2 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	xs := make([][2]float64, len(window))
	for i, v := range features.Vectors(window) {
		xs[i] = a.scaler.Transform(v)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var grad [4]float64
	loss := 0.0
	n := float64(len(xs) - 1)
	for i := 0; i+1 < len(xs); i++ {
		for f := 0; f < 2; f++ {
			pa, pb := a.params[2*f], a.params[2*f+1]
			x, y := xs[i][f], xs[i+1][f]
			e := pa*x + pb - y
			loss += e * e / (2 * n)
			grad[2*f] += 2 * e * x / n
			grad[2*f+1] += 2 * e / n
		}
	}

	next := a.params
	deltas := make(map[string]float64, len(next))
	for i := range next {
		d := -a.cfg.LearningRate * grad[i]
		next[i] += d
		deltas[paramNames[i]] = d
		if math.IsNaN(next[i]) || math.IsInf(next[i], 0) || math.Abs(next[i]) > a.cfg.MaxParam {
			return nil, ErrAdaptationDiverged
		}
	}
	a.params = next

	return &models.ParameterDelta{
		Model:     "online-linear-v1",
		Deltas:    deltas,
		Samples:   len(xs) - 1,
		Loss:      loss,
		CreatedAt: time.Now(),
	}, nil
}

var (
	_ domsvc.LocalAdapter = NoopAdapter{}
	_ domsvc.LocalAdapter = (*OnlineAdapter)(nil)
)
