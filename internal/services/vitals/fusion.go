package vitals

import "VitalSense/internal/domain/models"

// FusionConfig weights the sequence and point anomaly signals.
type FusionConfig struct {
	SequenceWeight float64 `yaml:"sequence_weight" default:"0.6"`
	PointWeight    float64 `yaml:"point_weight" default:"0.4"`
	ErrorScale     float64 `yaml:"error_scale" default:"10"`
}

func DefaultFusionConfig() FusionConfig {
	return FusionConfig{SequenceWeight: 0.6, PointWeight: 0.4, ErrorScale: 10}
}

// SequenceProbability converts a reconstruction error to [0,1].
func SequenceProbability(err, scale float64) float64 {
	return clamp(err*scale, 0, 1)
}

// PointProbability is 1 for a flagged reading, else 0.
func PointProbability(anomalous bool) float64 {
	if anomalous {
		return 1
	}
	return 0
}

// Fuse combines the available anomaly signals. Missing signals contribute 0.
func Fuse(out models.AnomalyOutputs, cfg FusionConfig) float64 {
	var seq, point float64
	if out.HasSequence {
		seq = SequenceProbability(out.SequenceError, cfg.ErrorScale)
	}
	if out.HasPoint {
		point = PointProbability(out.PointFlag)
	}
	return clamp(cfg.SequenceWeight*seq+cfg.PointWeight*point, 0, 1)
}

func clamp(x, lo, hi float64) float64 {
	if x != x {
		return lo
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
