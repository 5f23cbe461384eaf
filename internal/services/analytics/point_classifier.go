package analytics

import (
	"context"
	"math"

	domsvc "VitalSense/internal/domain/service"
	"VitalSense/pkg/config"
)

const pointPath = "/anomaly/point"

type pointRequest struct {
	Temperature float64 `json:"temperature"`
	HeartRate   float64 `json:"heart_rate"`
}

type pointResponse struct {
	Anomalous bool    `json:"anomalous"`
	Score     float64 `json:"score"`
}

// HTTPPointClassifier calls the frozen point-anomaly model over HTTP.
type HTTPPointClassifier struct {
	base *HTTPServiceBase
}

func NewHTTPPointClassifier(cfg *config.Config) *HTTPPointClassifier {
	return &HTTPPointClassifier{base: NewHTTPServiceBase(cfg, "point_classifier")}
}

func NewHTTPPointClassifierWithBase(base *HTTPServiceBase) *HTTPPointClassifier {
	return &HTTPPointClassifier{base: base}
}

func (c *HTTPPointClassifier) Predict(ctx context.Context, temperature, heartRate float64) (domsvc.PointClassification, error) {
	var resp pointResponse
	if err := c.base.PostJSONWithRetry(ctx, pointPath, pointRequest{Temperature: temperature, HeartRate: heartRate}, &resp); err != nil {
		return domsvc.PointClassification{}, err
	}
	score := resp.Score
	if math.IsNaN(score) || math.IsInf(score, 0) {
		score = 0
	}
	return domsvc.PointClassification{Anomalous: resp.Anomalous, Score: score}, nil
}

var _ domsvc.PointAnomalyClassifier = (*HTTPPointClassifier)(nil)
