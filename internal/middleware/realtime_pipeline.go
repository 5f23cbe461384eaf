package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"VitalSense/internal/domain/models"
	domrepo "VitalSense/internal/domain/repository"
	"VitalSense/pkg/logger"
)

// Sink is one downstream target for finished assessments.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, a *models.RiskAssessment) error
}

type pending struct {
	sink     Sink
	a        *models.RiskAssessment
	attempts int
}

// RealtimePipeline sits between the engine and the persistence targets.
// Each assessment is delivered to every sink; a failed delivery is buffered
// and retried in the background for that sink only, so persistence trouble
// never reaches the caller of Process as a failed assessment.
type RealtimePipeline struct {
	sinks      []Sink
	metrics    domrepo.Metrics
	l          *logger.Logger
	bufSize    int
	retryMax   int
	backoffMin time.Duration
	backoffMax time.Duration
	bufCh      chan pending
	stopCh     chan struct{}
	wg         sync.WaitGroup
	started    bool
	mu         sync.Mutex
}

type PipelineOption func(*RealtimePipeline)

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithRetry sets the number of background attempts per buffered delivery and
// the backoff bounds between them.
func WithRetry(attempts int, minBackoff, maxBackoff time.Duration) PipelineOption {
	return func(p *RealtimePipeline) {
		if attempts > 0 {
			p.retryMax = attempts
		}
		if minBackoff > 0 {
			p.backoffMin = minBackoff
		}
		if maxBackoff >= p.backoffMin {
			p.backoffMax = maxBackoff
		}
	}
}

func WithPipelineLogger(l *logger.Logger) PipelineOption {
	return func(p *RealtimePipeline) { p.l = l }
}

// NewRealtimePipeline creates a new pipeline over the given sinks.
func NewRealtimePipeline(metrics domrepo.Metrics, sinks []Sink, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		sinks:      sinks,
		metrics:    metrics,
		bufSize:    1000,
		retryMax:   5,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan pending, p.bufSize)
	return p
}

// Start launches background redelivery of buffered assessments. It may be
// called again after Stop; items buffered in between are picked up.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	stop := make(chan struct{})
	p.stopCh = stop
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		backoff := p.backoffMin
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case item := <-p.bufCh:
				if err := item.sink.Deliver(ctx, item.a); err != nil {
					item.attempts++
					p.metrics.RecordError("pipeline_flush_" + item.sink.Name())
					if item.attempts >= p.retryMax {
						p.metrics.RecordError("pipeline_retry_exhausted")
						if p.l != nil {
							p.l.Error("dropping assessment after retries",
								logger.String("sink", item.sink.Name()),
								logger.String("subject_id", item.a.SubjectID),
								logger.Uint64("seq", item.a.Seq),
								logger.Error(err))
						}
						continue
					}
					backoff *= 2
					if backoff > p.backoffMax {
						backoff = p.backoffMax
					}
					select {
					case <-time.After(backoff):
					case <-stop:
						return
					case <-ctx.Done():
						return
					}
					p.enqueue(item)
				} else {
					backoff = p.backoffMin
				}
			}
		}
	}()
}

// Stop stops the background flushing and waits for it to exit.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	p.mu.Unlock()
	p.wg.Wait()
}

// Pending returns the number of buffered deliveries.
func (p *RealtimePipeline) Pending() int { return len(p.bufCh) }

// Process delivers a to every sink. Failed deliveries are buffered and the
// joined error is returned for logging only.
func (p *RealtimePipeline) Process(ctx context.Context, a *models.RiskAssessment) error {
	if a == nil {
		return fmt.Errorf("assessment nil")
	}
	start := time.Now()
	var errs []error
	for _, s := range p.sinks {
		if err := s.Deliver(ctx, a); err != nil {
			p.metrics.RecordError("pipeline_process_" + s.Name())
			p.enqueue(pending{sink: s, a: a, attempts: 1})
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	if len(errs) > 0 {
		return fmt.Errorf("pipeline downstream: %w", errors.Join(errs...))
	}
	return nil
}

func (p *RealtimePipeline) enqueue(item pending) {
	select {
	case p.bufCh <- item:
	default:
		p.metrics.RecordError("pipeline_buffer_full")
	}
}
