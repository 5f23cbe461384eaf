package usecase

import (
	"context"
	"errors"

	"VitalSense/internal/domain/models"
	drepo "VitalSense/internal/domain/repository"
	"VitalSense/internal/services/vitals"
	"VitalSense/pkg/logger"
)

// ReadingCollector pulls readings pushed by the device gateway and runs
// them through the processor.
type ReadingCollector struct {
	stream  drepo.DeviceStream
	proc    *AssessmentProcessor
	metrics drepo.Metrics
	l       *logger.Logger
	done    chan struct{}
}

func NewReadingCollector(stream drepo.DeviceStream, proc *AssessmentProcessor, metrics drepo.Metrics, l *logger.Logger) *ReadingCollector {
	return &ReadingCollector{stream: stream, proc: proc, metrics: metrics, l: l, done: make(chan struct{})}
}

// IsConnected returns true if the device stream is connected.
func (c *ReadingCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *ReadingCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	rCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, rCh, errCh)
	return nil
}

// Done is closed when the consume loop exits.
func (c *ReadingCollector) Done() <-chan struct{} { return c.done }

func (c *ReadingCollector) consume(ctx context.Context, rCh <-chan *models.ReadingRequest, errCh <-chan error) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err == nil {
				continue
			}
			c.metrics.RecordError("stream")
			if c.l != nil {
				c.l.Warn("device stream error", logger.Error(err))
			}
			if rerr := c.stream.Reconnect(ctx); rerr != nil && c.l != nil {
				c.l.Error("device stream reconnect failed", logger.Error(rerr))
			}
		case r, ok := <-rCh:
			if !ok {
				return
			}
			if r == nil {
				continue
			}
			if _, err := c.proc.Process(ctx, r); err != nil && !errors.Is(err, vitals.ErrRejectedInput) && c.l != nil {
				c.l.Error("device reading failed", logger.String("subject_id", r.SubjectID), logger.Error(err))
			}
		}
	}
}

func (c *ReadingCollector) Stop() error { return c.stream.Close() }
