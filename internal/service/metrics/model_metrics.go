package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ModelLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vitals",
			Subsystem: "model",
			Name:      "latency_seconds",
			Help:      "Latency of frozen model endpoints",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"endpoint"},
	)

	ModelErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vitals",
			Subsystem: "model",
			Name:      "errors_total",
			Help:      "Errors by model endpoint",
		},
		[]string{"endpoint"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vitals",
			Subsystem: "model",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per endpoint (0 closed, 1 half-open, 2 open)",
		},
		[]string{"endpoint"},
	)
)

// Register adds the model collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(ModelLatency, ModelErrors, BreakerState)
	})
}

// ObserveCall records the outcome of one model call started at start.
func ObserveCall(endpoint string, start time.Time, err error) {
	ModelLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		ModelErrors.WithLabelValues(endpoint).Inc()
	}
}
