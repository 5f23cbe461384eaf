package vitals

import (
	"math"

	"VitalSense/internal/domain/models"
	"VitalSense/internal/services/features"
)

// stdEpsilon is the last-resort divisor floor for Deviation.
const stdEpsilon = 1e-6

// BaselineConfig controls the rolling baseline estimator.
type BaselineConfig struct {
	MinReadings int                  `yaml:"min_readings" default:"3"`
	MinStdTemp  float64              `yaml:"min_std_temp" default:"0.1"`
	MinStdHR    float64              `yaml:"min_std_hr" default:"1"`
	Default     models.BaselineStats `yaml:"-"`
}

// DefaultBaselineStats is used while the window is too short for statistics.
func DefaultBaselineStats() models.BaselineStats {
	return models.BaselineStats{MeanTemp: 38.5, MeanHR: 85, StdTemp: 0.2, StdHR: 5}
}

func DefaultBaselineConfig() BaselineConfig {
	return BaselineConfig{
		MinReadings: 3,
		MinStdTemp:  0.1,
		MinStdHR:    1,
		Default:     DefaultBaselineStats(),
	}
}

// Baseline computes the rolling mean/std over window. Windows shorter than
// cfg.MinReadings yield cfg.Default unchanged; computed stds are floored.
func Baseline(window []models.Reading, cfg BaselineConfig) models.BaselineStats {
	if len(window) < cfg.MinReadings || len(window) == 0 {
		return cfg.Default
	}
	mt, st := features.MeanStd(features.Temperatures(window))
	mh, sh := features.MeanStd(features.HeartRates(window))
	return models.BaselineStats{
		MeanTemp: mt,
		MeanHR:   mh,
		StdTemp:  floorStd(st, cfg.MinStdTemp),
		StdHR:    floorStd(sh, cfg.MinStdHR),
	}
}

func floorStd(std, floor float64) float64 {
	if floor <= 0 {
		floor = stdEpsilon
	}
	if !(std > floor) {
		return floor
	}
	return std
}

// Deviation returns |value-mean|/std. Non-positive std is clamped first.
func Deviation(value, mean, std float64) float64 {
	if !(std > stdEpsilon) {
		std = stdEpsilon
	}
	return math.Abs(value-mean) / std
}

// Trend returns last-first over values, or 0 when fewer than 3 are available.
func Trend(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}
	return values[len(values)-1] - values[0]
}
