package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"VitalSense/internal/domain/models"
	drepo "VitalSense/internal/domain/repository"
	"VitalSense/internal/services/vitals"
	pkghttp "VitalSense/pkg/http"
	pkgkafka "VitalSense/pkg/kafka"
)

// KafkaReadingsHandler feeds readings from the readings topic into the
// processor. The topic is keyed by subject id and the consumer pins each
// partition to a single worker, so a subject's readings arrive in order.
type KafkaReadingsHandler struct {
	topic   string
	proc    *AssessmentProcessor
	metrics drepo.Metrics
}

var _ pkgkafka.MessageHandler = (*KafkaReadingsHandler)(nil)

func NewKafkaReadingsHandler(topic string, proc *AssessmentProcessor, metrics drepo.Metrics) *KafkaReadingsHandler {
	return &KafkaReadingsHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaReadingsHandler) Topic() string { return h.topic }

// Handle decodes one reading. Malformed payloads and rejected readings are
// permanent failures and go straight to the DLQ.
func (h *KafkaReadingsHandler) Handle(ctx context.Context, b []byte) error {
	var req models.ReadingRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode reading: %w", err))
	}
	if errs := pkghttp.ValidateStruct(ctx, &req); len(errs) > 0 {
		h.metrics.RecordError("consumer_validate")
		return pkgkafka.Permanent(fmt.Errorf("invalid reading: %s %s", errs[0].Field, errs[0].Message))
	}

	if _, err := h.proc.Process(ctx, &req); err != nil {
		if errors.Is(err, vitals.ErrRejectedInput) {
			return pkgkafka.Permanent(err)
		}
		return err
	}
	return nil
}
