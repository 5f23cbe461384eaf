package service

import (
	"context"

	"VitalSense/internal/domain/models"
)

// PointClassification is the verdict of the point-anomaly classifier.
type PointClassification struct {
	Anomalous bool
	Score     float64 // higher = more anomalous
}

// PointAnomalyClassifier scores a single (temperature, heart rate) pair.
// Trained offline on healthy data and frozen at serving time.
type PointAnomalyClassifier interface {
	Predict(ctx context.Context, temperature, heartRate float64) (PointClassification, error)
}

// SequencePredictor forecasts the next [temperature, heart_rate] vector
// from the last k readings. Frozen at serving time.
type SequencePredictor interface {
	PredictNext(ctx context.Context, window [][2]float64) ([2]float64, error)
}

// LocalAdapter performs one privacy-preserving local update step over the
// in-memory window. It returns nil when there is not enough data.
type LocalAdapter interface {
	Adapt(ctx context.Context, window []models.Reading) (*models.ParameterDelta, error)
}
