package repository

import (
	"context"
	"time"

	"VitalSense/internal/domain/models"
)

// DeviceStream delivers readings pushed by a device gateway.
type DeviceStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.ReadingRequest, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher emits assessments and model deltas to downstream consumers.
type Publisher interface {
	PublishAssessment(ctx context.Context, a *models.RiskAssessment) error
	PublishDelta(ctx context.Context, d *models.ParameterDelta) error
	Close() error
}

// AssessmentStore persists assessments durably.
type AssessmentStore interface {
	Store(ctx context.Context, a *models.RiskAssessment) error
	Query(ctx context.Context, subjectID string, from, to time.Time, limit int) ([]*models.RiskAssessment, error)
	Health(ctx context.Context) error
	Close() error
}

// LatestCache keeps the most recent assessment per subject.
type LatestCache interface {
	SetLatest(ctx context.Context, a *models.RiskAssessment) error
	GetLatest(ctx context.Context, subjectID string) (*models.RiskAssessment, error)
	Delete(ctx context.Context, subjectID string) error
}

type Metrics interface {
	RecordAssessment(level string)
	RecordRejected(field string)
	RecordError(kind string)
	RecordRiskScore(subjectID string, score float64)
	RecordLatency(op string, seconds float64)
}
