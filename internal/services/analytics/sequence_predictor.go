package analytics

import (
	"context"
	"fmt"
	"math"

	domsvc "VitalSense/internal/domain/service"
	"VitalSense/pkg/config"
)

const sequencePath = "/sequence/predict"

type sequenceRequest struct {
	Window [][2]float64 `json:"window"`
}

type sequenceResponse struct {
	Next []float64 `json:"next"`
}

// HTTPSequencePredictor calls the frozen next-step model over HTTP.
// Vectors are [temperature, heart_rate] in raw units both ways.
type HTTPSequencePredictor struct {
	base *HTTPServiceBase
}

func NewHTTPSequencePredictor(cfg *config.Config) *HTTPSequencePredictor {
	return &HTTPSequencePredictor{base: NewHTTPServiceBase(cfg, "sequence_predictor")}
}

func NewHTTPSequencePredictorWithBase(base *HTTPServiceBase) *HTTPSequencePredictor {
	return &HTTPSequencePredictor{base: base}
}

func (p *HTTPSequencePredictor) PredictNext(ctx context.Context, window [][2]float64) ([2]float64, error) {
	var resp sequenceResponse
	if err := p.base.PostJSONWithRetry(ctx, sequencePath, sequenceRequest{Window: window}, &resp); err != nil {
		return [2]float64{}, err
	}
	if len(resp.Next) != 2 {
		return [2]float64{}, fmt.Errorf("sequence predictor: expected 2 values, got %d", len(resp.Next))
	}
	for _, v := range resp.Next {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return [2]float64{}, fmt.Errorf("sequence predictor: non-finite prediction")
		}
	}
	return [2]float64{resp.Next[0], resp.Next[1]}, nil
}

var _ domsvc.SequencePredictor = (*HTTPSequencePredictor)(nil)
