package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"VitalSense/internal/domain/models"
	drepo "VitalSense/internal/domain/repository"
	mid "VitalSense/internal/middleware"
	"VitalSense/internal/services/vitals"
	"VitalSense/pkg/logger"
)

// AssessmentProcessor runs one reading request through the subject's engine
// and hands the result to the sink pipeline.
type AssessmentProcessor struct {
	sessions *SessionRegistry
	pipe     *mid.RealtimePipeline
	deltas   drepo.Publisher
	metrics  drepo.Metrics
	l        *logger.Logger
}

// NewAssessmentProcessor wires the processor. pipe and deltas may be nil.
func NewAssessmentProcessor(
	sessions *SessionRegistry,
	pipe *mid.RealtimePipeline,
	deltas drepo.Publisher,
	metrics drepo.Metrics,
	l *logger.Logger,
) *AssessmentProcessor {
	return &AssessmentProcessor{sessions: sessions, pipe: pipe, deltas: deltas, metrics: metrics, l: l}
}

// Sessions exposes the registry for lifecycle endpoints.
func (p *AssessmentProcessor) Sessions() *SessionRegistry { return p.sessions }

// Process assesses req. Rejected input returns an error wrapping
// vitals.ErrRejectedInput and never touches the subject's window. Sink and
// delta publication failures are logged, not returned.
func (p *AssessmentProcessor) Process(ctx context.Context, req *models.ReadingRequest) (*models.RiskAssessment, error) {
	if req == nil {
		return nil, fmt.Errorf("reading request is nil")
	}
	if req.Temperature == nil {
		return nil, p.reject(req.SubjectID, &vitals.InputError{Field: "temperature", Reason: "missing"})
	}
	if req.HeartRate == nil {
		return nil, p.reject(req.SubjectID, &vitals.InputError{Field: "heart_rate", Reason: "missing"})
	}

	start := time.Now()
	engine, profile := p.sessions.Acquire(req.SubjectID, profileOf(req))
	res, err := engine.Assess(ctx, *req.Temperature, *req.HeartRate, profile)
	if err != nil {
		if errors.Is(err, vitals.ErrRejectedInput) {
			return nil, p.reject(req.SubjectID, err)
		}
		p.metrics.RecordError("assess")
		return nil, fmt.Errorf("assess %s: %w", req.SubjectID, err)
	}

	a := res.Assessment
	p.metrics.RecordAssessment(string(a.RiskLevel))
	p.metrics.RecordRiskScore(a.SubjectID, a.RiskScore)
	p.metrics.RecordLatency("assess", time.Since(start).Seconds())

	if p.pipe != nil {
		if err := p.pipe.Process(ctx, a); err != nil && p.l != nil {
			p.l.Warn("assessment delivery deferred",
				logger.String("subject_id", a.SubjectID),
				logger.Uint64("seq", a.Seq),
				logger.Error(err),
			)
		}
	}
	if res.Delta != nil && p.deltas != nil {
		if err := p.deltas.PublishDelta(ctx, res.Delta); err != nil {
			p.metrics.RecordError("delta_publish")
			if p.l != nil {
				p.l.Warn("parameter delta publish failed",
					logger.String("subject_id", res.Delta.SubjectID),
					logger.Uint64("seq", res.Delta.Seq),
					logger.Error(err),
				)
			}
		}
	}
	return a, nil
}

func (p *AssessmentProcessor) reject(subjectID string, err error) error {
	field := "unknown"
	var ie *vitals.InputError
	if errors.As(err, &ie) {
		field = ie.Field
	}
	p.metrics.RecordRejected(field)
	if p.l != nil {
		p.l.Warn("reading rejected",
			logger.String("subject_id", subjectID),
			logger.String("field", field),
			logger.Error(err),
		)
	}
	return err
}

// profileOf returns nil when the request carries no profile information, so
// the session keeps what it already knows. An explicit "unknown" breed is
// information: it resets the subject to the default range.
func profileOf(req *models.ReadingRequest) *models.SubjectProfile {
	if req.BreedGroup == "" && req.WeightKg == 0 && req.AgeYears == 0 {
		return nil
	}
	breed := models.BreedGroup(req.BreedGroup)
	if breed == "" {
		breed = models.BreedUnknown
	}
	return &models.SubjectProfile{Breed: breed, WeightKg: req.WeightKg, AgeYears: req.AgeYears}
}
