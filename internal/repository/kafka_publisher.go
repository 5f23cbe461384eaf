package repository

import (
	"context"

	"VitalSense/internal/domain/models"
	domrepo "VitalSense/internal/domain/repository"
	pkgkafka "VitalSense/pkg/kafka"
)

// KafkaPublisher implements Publisher for Kafka. Messages are keyed by
// subject id so one subject's records land on one partition in order.
type KafkaPublisher struct {
	producer         *pkgkafka.Producer
	assessmentsTopic string
	deltasTopic      string
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, assessmentsTopic, deltasTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, assessmentsTopic: assessmentsTopic, deltasTopic: deltasTopic}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

// Deliver lets the publisher act as a pipeline sink.
func (p *KafkaPublisher) Deliver(ctx context.Context, a *models.RiskAssessment) error {
	return p.PublishAssessment(ctx, a)
}

func (p *KafkaPublisher) PublishAssessment(ctx context.Context, a *models.RiskAssessment) error {
	return p.producer.Publish(ctx, p.assessmentsTopic, []byte(a.SubjectID), a)
}

func (p *KafkaPublisher) PublishDelta(ctx context.Context, d *models.ParameterDelta) error {
	return p.producer.Publish(ctx, p.deltasTopic, []byte(d.SubjectID), d)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
