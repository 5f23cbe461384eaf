package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	svcmetrics "VitalSense/internal/service/metrics"
	"VitalSense/pkg/config"
	xhttp "VitalSense/pkg/http"
)

// ErrNotConfigured is returned when no model service URL is set.
var ErrNotConfigured = errors.New("model service not configured")

// BreakerSettings tunes the per-endpoint circuit breaker.
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// HTTPServiceBase is the shared foundation of the model clients: one JSON
// POST helper with retry, guarded by a circuit breaker per endpoint.
type HTTPServiceBase struct {
	baseURL  string
	client   *xhttp.Client
	attempts int
	backoff  time.Duration
	breaker  *gobreaker.CircuitBreaker[struct{}]
}

// NewHTTPServiceBase builds the client from the models section of the config.
func NewHTTPServiceBase(cfg *config.Config, endpoint string) *HTTPServiceBase {
	m := cfg.Models
	return NewHTTPServiceBaseWith(m.ServiceURL, endpoint, m.Timeout, m.Retries+1, BreakerSettings{
		MaxRequests:      m.Breaker.MaxRequests,
		Interval:         m.Breaker.Interval,
		Timeout:          m.Breaker.Timeout,
		FailureThreshold: m.Breaker.FailureThreshold,
	})
}

func NewHTTPServiceBaseWith(baseURL, endpoint string, timeout time.Duration, attempts int, bs BreakerSettings) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if bs.FailureThreshold == 0 {
		bs.FailureThreshold = 5
	}
	threshold := bs.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: bs.MaxRequests,
		Interval:    bs.Interval,
		Timeout:     bs.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// a rejected payload says nothing about the service's health
			var se *xhttp.StatusError
			if errors.As(err, &se) && !se.Retryable() {
				return true
			}
			return err == nil
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			svcmetrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return &HTTPServiceBase{
		baseURL:  baseURL,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		attempts: attempts,
		backoff:  50 * time.Millisecond,
		breaker:  cb,
	}
}

// State exposes the breaker state for health reporting.
func (b *HTTPServiceBase) State() gobreaker.State {
	return b.breaker.State()
}

// PostJSON posts the given payload to `path` under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return ErrNotConfigured
	}
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    b.baseURL + path,
			Headers: map[string]string{
				"Content-Type": "application/json",
			},
			Body: payload,
		}, dest)
	})
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry retries transient failures with linear backoff. Client
// errors and an open breaker are returned immediately.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	start := time.Now()
	var err error
	for i := 1; i <= b.attempts || i == 1; i++ {
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil || !retryable(err) || i >= b.attempts {
			break
		}
		select {
		case <-time.After(time.Duration(i) * b.backoff):
		case <-ctx.Done():
			err = ctx.Err()
			svcmetrics.ObserveCall(path, start, err)
			return err
		}
	}
	svcmetrics.ObserveCall(path, start, err)
	return err
}

func retryable(err error) bool {
	if errors.Is(err, ErrNotConfigured) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) ||
		errors.Is(err, context.Canceled) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
